// Package openmeteo fetches hourly variables from the Open-Meteo ERA5
// archive, the secondary snow source. Stations are addressed by coordinates
// rather than identifier, and values are converted to output units here, at
// the source boundary, so the merge stage never sees raw archive units.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fjordsol/metharvest/internal/domain"
	"github.com/fjordsol/metharvest/internal/observability"
)

const sourceName = "openmeteo"

const maxBodyExcerpt = 200

// hourlyLayout is the timestamp format of the archive's hourly.time array
// when timezone=UTC is requested: no zone suffix, minute resolution.
const hourlyLayout = "2006-01-02T15:04"

// variable binds a canonical element name to its archive variable and the
// unit conversion applied to fetched values.
type variable struct {
	api     string
	convert func(float64) float64
}

var variables = map[string]variable{
	// The archive reports snow depth in meters; the output tables use cm.
	domain.ElementSnowDepth: {api: "snow_depth", convert: func(v float64) float64 { return v * 100 }},
}

// Client calls the Open-Meteo archive endpoint. No credential is required.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an Open-Meteo archive client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch requests hourly variables for the station's coordinates. The archive
// takes day-granular dates, so the response can overshoot the window; rows
// outside [window.Start, window.End) are discarded after parsing.
func (c *Client) Fetch(ctx context.Context, station domain.Station, window domain.TimeWindow, elements []string) domain.FetchOutcome {
	if station.Geo == nil {
		return c.observe(domain.Fatal(fmt.Sprintf("station %s has no coordinates", station.Name)))
	}

	apiVars := make([]string, len(elements))
	for i, el := range elements {
		if v, ok := variables[el]; ok {
			apiVars[i] = v.api
		} else {
			apiVars[i] = el
		}
	}

	params := url.Values{
		"latitude":   {strconv.FormatFloat(station.Geo.Lat, 'f', 4, 64)},
		"longitude":  {strconv.FormatFloat(station.Geo.Lon, 'f', 4, 64)},
		"start_date": {window.Start.UTC().Format("2006-01-02")},
		"end_date":   {window.End.Add(-time.Second).UTC().Format("2006-01-02")},
		"hourly":     {strings.Join(apiVars, ",")},
		"timezone":   {"UTC"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return c.observe(domain.Fatal(fmt.Sprintf("create request: %v", err)))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.observe(domain.Retryable(fmt.Sprintf("openmeteo request: %v", err)))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.observe(classifyStatus(resp))
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return c.observe(domain.Fatal(fmt.Sprintf("decode openmeteo response: %v", err)))
	}

	rows, err := parseHourly(payload.Hourly, elements, window)
	if err != nil {
		return c.observe(domain.Fatal(err.Error()))
	}
	if len(rows) == 0 {
		return c.observe(domain.Empty())
	}
	return c.observe(domain.Success(rows))
}

func (c *Client) observe(out domain.FetchOutcome) domain.FetchOutcome {
	c.metrics.UpstreamRequests.WithLabelValues(sourceName, out.Outcome.String()).Inc()
	return out
}

func classifyStatus(resp *http.Response) domain.FetchOutcome {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyExcerpt))

	switch {
	case resp.StatusCode == http.StatusRequestTimeout ||
		resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode >= 500:
		return domain.Retryable(fmt.Sprintf("openmeteo status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusRequestEntityTooLarge ||
		resp.StatusCode == http.StatusRequestURITooLong:
		return domain.Fatal(fmt.Sprintf("window too large: status %d", resp.StatusCode))
	default:
		return domain.Fatal(fmt.Sprintf("openmeteo status %d: %s", resp.StatusCode, body))
	}
}

// parseHourly turns the archive's parallel arrays into observation rows.
// Null entries mean "not measured" and leave the element absent; rows where
// every requested element is absent are dropped.
func parseHourly(hourly map[string]json.RawMessage, elements []string, window domain.TimeWindow) ([]domain.ObservationRow, error) {
	if len(hourly) == 0 {
		return nil, nil
	}

	var times []string
	if raw, ok := hourly["time"]; ok {
		if err := json.Unmarshal(raw, &times); err != nil {
			return nil, fmt.Errorf("parse hourly.time: %w", err)
		}
	}

	series := make(map[string][]*float64, len(elements))
	for _, el := range elements {
		v, known := variables[el]
		apiName := el
		if known {
			apiName = v.api
		}
		raw, ok := hourly[apiName]
		if !ok {
			continue
		}
		var values []*float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("parse hourly.%s: %w", apiName, err)
		}
		if len(values) != len(times) {
			return nil, fmt.Errorf("hourly.%s has %d values for %d timestamps", apiName, len(values), len(times))
		}
		series[el] = values
	}

	rows := make([]domain.ObservationRow, 0, len(times))
	for i, stamp := range times {
		ts, err := time.ParseInLocation(hourlyLayout, stamp, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse hourly timestamp %q: %w", stamp, err)
		}
		if !window.Contains(ts) {
			continue
		}

		values := make(map[string]float64, len(series))
		for el, col := range series {
			if col[i] == nil {
				continue
			}
			v := *col[i]
			if def, ok := variables[el]; ok && def.convert != nil {
				v = def.convert(v)
			}
			values[el] = v
		}
		if len(values) == 0 {
			continue
		}
		rows = append(rows, domain.ObservationRow{Timestamp: ts, Values: values})
	}
	return rows, nil
}

// Open-Meteo archive response shape: an "hourly" object of parallel arrays
// keyed by variable name, always including "time".
type response struct {
	Hourly map[string]json.RawMessage `json:"hourly"`
}
