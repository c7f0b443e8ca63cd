package frost

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjordsol/metharvest/internal/domain"
	"github.com/fjordsol/metharvest/internal/observability"
)

const testClientID = "00000000-0000-0000-0000-000000000000"

var testStation = domain.Station{Name: "Tingvoll", ID: "SN64510"}

func testWindow() domain.TimeWindow {
	start := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	return domain.TimeWindow{Start: start, End: start.AddDate(0, 0, 30)}
}

func testClient(baseURL string) *Client {
	return NewClient(testClientID, baseURL, 5*time.Second,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting())
}

const successBody = `{
	"data": [
		{
			"referenceTime": "2020-01-01T00:00:00.000Z",
			"observations": [
				{"elementId": "mean(surface_downwelling_shortwave_flux_in_air PT1H)", "value": 12.5},
				{"elementId": "air_temperature", "value": -3.2},
				{"elementId": "cloud_area_fraction", "value": null}
			]
		},
		{
			"referenceTime": "2020-01-01T01:00:00.000Z",
			"observations": [
				{"elementId": "air_temperature", "value": -3.0}
			]
		}
	]
}`

func TestClient_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok, "frost auth is basic auth")
		assert.Equal(t, testClientID, user)
		assert.Empty(t, pass, "the client id travels as username with empty password")

		q := r.URL.Query()
		assert.Equal(t, "SN64510", q.Get("sources"))
		assert.Equal(t, "PT1H", q.Get("timeresolutions"))
		assert.Equal(t, "2020-01-01T00:00:00Z/2020-01-31T00:00:00Z", q.Get("referencetime"))
		assert.Contains(t, q.Get("elements"), "mean(surface_downwelling_shortwave_flux_in_air PT1H)")
		assert.Contains(t, q.Get("elements"), "air_temperature")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, successBody)
	}))
	defer srv.Close()

	elements := []string{domain.ElementGlobalRadiation, domain.ElementAirTemperature, domain.ElementCloudCover}
	out := testClient(srv.URL).Fetch(context.Background(), testStation, testWindow(), elements)

	require.Equal(t, domain.OutcomeSuccess, out.Outcome)
	require.Len(t, out.Rows, 2)

	first := out.Rows[0]
	assert.Equal(t, 12.5, first.Values[domain.ElementGlobalRadiation], "verbose flux id remaps to canonical name")
	assert.Equal(t, -3.2, first.Values[domain.ElementAirTemperature])
	_, hasCloud := first.Values[domain.ElementCloudCover]
	assert.False(t, hasCloud, "null value means not measured, not zero")

	second := out.Rows[1]
	assert.Equal(t, time.Date(2020, time.January, 1, 1, 0, 0, 0, time.UTC), second.Timestamp)
	assert.Equal(t, -3.0, second.Values[domain.ElementAirTemperature])
}

func TestClient_Fetch_MergesDuplicateReferenceTimes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data": [
			{"referenceTime": "2020-01-01T00:00:00Z", "observations": [{"elementId": "air_temperature", "value": 1.0}]},
			{"referenceTime": "2020-01-01T00:00:00Z", "observations": [{"elementId": "air_temperature", "value": 2.0}, {"elementId": "cloud_area_fraction", "value": 50}]}
		]}`)
	}))
	defer srv.Close()

	out := testClient(srv.URL).Fetch(context.Background(), testStation, testWindow(), nil)

	require.Equal(t, domain.OutcomeSuccess, out.Outcome)
	require.Len(t, out.Rows, 1, "one row per distinct timestamp")
	assert.Equal(t, 1.0, out.Rows[0].Values[domain.ElementAirTemperature], "first value wins")
	assert.Equal(t, 50.0, out.Rows[0].Values[domain.ElementCloudCover])
}

func TestClient_Fetch_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer srv.Close()

	out := testClient(srv.URL).Fetch(context.Background(), testStation, testWindow(), nil)
	assert.Equal(t, domain.OutcomeEmpty, out.Outcome)
}

func TestClient_Fetch_StatusClassification(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		want     domain.Outcome
		inReason string
	}{
		{"no data period", http.StatusPreconditionFailed, `{"error":{}}`, domain.OutcomeEmpty, ""},
		{"unknown station", http.StatusNotFound, `{"error":{}}`, domain.OutcomeEmpty, ""},
		{"throttled", http.StatusTooManyRequests, "slow down", domain.OutcomeRetryable, "429"},
		{"server error", http.StatusInternalServerError, "boom", domain.OutcomeRetryable, "500"},
		{"bad gateway", http.StatusBadGateway, "", domain.OutcomeRetryable, "502"},
		{"payload too large", http.StatusRequestEntityTooLarge, "", domain.OutcomeFatal, "window too large"},
		{"uri too long", http.StatusRequestURITooLong, "", domain.OutcomeFatal, "window too large"},
		{"too much data", http.StatusBadRequest, "418916 is too much data to return", domain.OutcomeFatal, "window too large"},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"Unauthorized"}}`, domain.OutcomeFatal, "401"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			out := testClient(srv.URL).Fetch(context.Background(), testStation, testWindow(), nil)
			assert.Equal(t, tc.want, out.Outcome)
			if tc.inReason != "" {
				assert.Contains(t, out.Reason, tc.inReason)
			}
		})
	}
}

func TestClient_Fetch_TransportFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	out := testClient(srv.URL).Fetch(context.Background(), testStation, testWindow(), nil)
	assert.Equal(t, domain.OutcomeRetryable, out.Outcome)
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(testClientID, srv.URL, 50*time.Millisecond,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		observability.NewMetricsForTesting())

	out := c.Fetch(context.Background(), testStation, testWindow(), nil)
	assert.Equal(t, domain.OutcomeRetryable, out.Outcome)
}

func TestClient_Fetch_UnparseableBodyIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	defer srv.Close()

	out := testClient(srv.URL).Fetch(context.Background(), testStation, testWindow(), nil)
	assert.Equal(t, domain.OutcomeFatal, out.Outcome)
}
