// Package frost fetches hourly observations from the MET Norway Frost API,
// the primary climate source. One Fetch call performs exactly one HTTP
// request and classifies its result; retrying and pacing belong to callers.
package frost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjordsol/metharvest/internal/domain"
	"github.com/fjordsol/metharvest/internal/observability"
)

const sourceName = "frost"

// maxBodyExcerpt caps the response-body excerpt carried in failure reasons.
const maxBodyExcerpt = 200

// apiNames maps canonical element names to Frost element identifiers.
// Requests translate canonical to Frost; responses translate back. Names
// missing from the table pass through unchanged, so raw Frost element ids
// remain usable in configuration.
var apiNames = map[string]string{
	domain.ElementGlobalRadiation: "mean(surface_downwelling_shortwave_flux_in_air PT1H)",
	domain.ElementAirTemperature:  "air_temperature",
	domain.ElementCloudCover:      "cloud_area_fraction",
	domain.ElementSnowDepth:       "surface_snow_thickness",
}

var canonicalNames = func() map[string]string {
	m := make(map[string]string, len(apiNames))
	for canonical, api := range apiNames {
		m[api] = canonical
	}
	return m
}()

// Client calls the Frost observations endpoint. The client ID is passed as
// the HTTP basic-auth username with an empty password, per the Frost API.
type Client struct {
	clientID   string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Frost API client.
func NewClient(clientID, baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		clientID: clientID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch requests hourly observations for one station and window. Elements are
// canonical names; the response comes back keyed by canonical names again.
func (c *Client) Fetch(ctx context.Context, station domain.Station, window domain.TimeWindow, elements []string) domain.FetchOutcome {
	apiElements := make([]string, len(elements))
	for i, el := range elements {
		if api, ok := apiNames[el]; ok {
			apiElements[i] = api
		} else {
			apiElements[i] = el
		}
	}

	params := url.Values{
		"sources":         {station.ID},
		"elements":        {strings.Join(apiElements, ",")},
		"referencetime":   {window.String()},
		"timeresolutions": {"PT1H"},
		"levels":          {"default"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return c.observe(domain.Fatal(fmt.Sprintf("create request: %v", err)))
	}
	req.SetBasicAuth(c.clientID, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts, DNS failures, and connection resets are all transient.
		return c.observe(domain.Retryable(fmt.Sprintf("frost request: %v", err)))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.observe(classifyStatus(resp))
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return c.observe(domain.Fatal(fmt.Sprintf("decode frost response: %v", err)))
	}

	rows := parseObservations(payload.Data)
	if len(rows) == 0 {
		return c.observe(domain.Empty())
	}
	return c.observe(domain.Success(rows))
}

func (c *Client) observe(out domain.FetchOutcome) domain.FetchOutcome {
	c.metrics.UpstreamRequests.WithLabelValues(sourceName, out.Outcome.String()).Inc()
	return out
}

// classifyStatus maps a non-200 Frost status to a fetch outcome.
//   - 404 and 412: the station has no data for the window, an expected gap
//   - 408, 429, 5xx: transient, worth retrying
//   - 413 and 414: the window asks for more data than one request may carry;
//     only narrowing the window can fix it
func classifyStatus(resp *http.Response) domain.FetchOutcome {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyExcerpt))

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusPreconditionFailed:
		return domain.Empty()
	case resp.StatusCode == http.StatusRequestTimeout ||
		resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode >= 500:
		return domain.Retryable(fmt.Sprintf("frost status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusRequestEntityTooLarge ||
		resp.StatusCode == http.StatusRequestURITooLong ||
		(resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(string(body)), "too much data")):
		return domain.Fatal(fmt.Sprintf("window too large: status %d", resp.StatusCode))
	default:
		return domain.Fatal(fmt.Sprintf("frost status %d: %s", resp.StatusCode, body))
	}
}

// parseObservations flattens the Frost data array into one row per distinct
// reference time, keeping the first value seen per element. Null values mean
// the element was not measured that hour and are left absent.
func parseObservations(data []observationSet) []domain.ObservationRow {
	rows := make([]domain.ObservationRow, 0, len(data))
	index := make(map[time.Time]int, len(data))

	for _, set := range data {
		ts := set.ReferenceTime.UTC()
		i, ok := index[ts]
		if !ok {
			i = len(rows)
			index[ts] = i
			rows = append(rows, domain.ObservationRow{
				Timestamp: ts,
				Values:    make(map[string]float64, len(set.Observations)),
			})
		}
		for _, obs := range set.Observations {
			if obs.Value == nil {
				continue
			}
			name := obs.ElementID
			if canonical, ok := canonicalNames[name]; ok {
				name = canonical
			}
			if _, exists := rows[i].Values[name]; !exists {
				rows[i].Values[name] = *obs.Value
			}
		}
	}
	return rows
}

// Frost API response types.

type response struct {
	Data []observationSet `json:"data"`
}

type observationSet struct {
	ReferenceTime time.Time     `json:"referenceTime"`
	Observations  []measurement `json:"observations"`
}

type measurement struct {
	ElementID string   `json:"elementId"`
	Value     *float64 `json:"value"`
}
