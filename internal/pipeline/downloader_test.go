package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjordsol/metharvest/internal/domain"
	"github.com/fjordsol/metharvest/internal/observability"
	"github.com/fjordsol/metharvest/internal/pipeline"
)

// hourlyStub returns one row for every hour of the requested window, failing
// fatally for windows whose start is in failStarts.
type hourlyStub struct {
	failStarts map[time.Time]bool
	windows    []domain.TimeWindow
}

func (f *hourlyStub) Fetch(_ context.Context, _ domain.Station, window domain.TimeWindow, _ []string) domain.FetchOutcome {
	f.windows = append(f.windows, window)
	if f.failStarts[window.Start] {
		return domain.Fatal("exhausted retries: status 503")
	}

	var rows []domain.ObservationRow
	for ts := window.Start; ts.Before(window.End); ts = ts.Add(time.Hour) {
		rows = append(rows, domain.ObservationRow{
			Timestamp: ts,
			Values:    map[string]float64{domain.ElementAirTemperature: float64(ts.Hour())},
		})
	}
	if len(rows) == 0 {
		return domain.Empty()
	}
	return domain.Success(rows)
}

func newDownloader(fetcher pipeline.Fetcher) *pipeline.Downloader {
	return pipeline.NewDownloader("frost", fetcher, 0, testLogger(), observability.NewMetricsForTesting())
}

func rangeStart() time.Time {
	return time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func TestDownloader_FullRange(t *testing.T) {
	stub := &hourlyStub{}
	d := newDownloader(stub)

	start := rangeStart()
	end := start.AddDate(0, 0, 65)
	res, err := d.DownloadStation(context.Background(), testStation, start, end, nil, 30)
	require.NoError(t, err)

	require.Len(t, stub.windows, 3, "65 days at 30-day span is 30+30+5")
	assert.Equal(t, 3, res.WindowsTotal)
	assert.Equal(t, 3, res.WindowsData)
	assert.Zero(t, res.WindowsFailed)
	assert.False(t, res.FailedEntirely())

	require.Equal(t, 65*24, res.Table.Len(), "24 rows per day over 65 days, no duplicates")
	rows := res.Table.Rows()
	assert.Equal(t, start, rows[0].Timestamp)
	for i := 1; i < len(rows); i++ {
		assert.Equal(t, time.Hour, rows[i].Timestamp.Sub(rows[i-1].Timestamp), "gapless hourly series")
	}
}

func TestDownloader_Idempotent(t *testing.T) {
	start := rangeStart()
	end := start.AddDate(0, 0, 65)

	download := func() []domain.ObservationRow {
		res, err := newDownloader(&hourlyStub{}).DownloadStation(context.Background(), testStation, start, end, nil, 30)
		require.NoError(t, err)
		return res.Table.Rows()
	}

	if diff := cmp.Diff(download(), download()); diff != "" {
		t.Fatalf("repeated download differs (-first +second):\n%s", diff)
	}
}

func TestDownloader_WindowFailureLosesOnlyItsHours(t *testing.T) {
	start := rangeStart()
	end := start.AddDate(0, 0, 65)
	stub := &hourlyStub{failStarts: map[time.Time]bool{start.AddDate(0, 0, 30): true}}
	d := newDownloader(stub)

	res, err := d.DownloadStation(context.Background(), testStation, start, end, nil, 30)
	require.NoError(t, err)

	assert.Equal(t, 1, res.WindowsFailed)
	assert.Equal(t, 2, res.WindowsData)
	assert.False(t, res.FailedEntirely())
	assert.Equal(t, (30+5)*24, res.Table.Len(), "windows 1 and 3 survive")

	// The failed window's hours are genuinely absent.
	missing := start.AddDate(0, 0, 30)
	for _, row := range res.Table.Rows() {
		if !row.Timestamp.Before(missing) && row.Timestamp.Before(start.AddDate(0, 0, 60)) {
			t.Fatalf("row %s should be missing", row.Timestamp)
		}
	}
}

func TestDownloader_AllWindowsFailed(t *testing.T) {
	start := rangeStart()
	end := start.AddDate(0, 0, 60)
	fail := map[time.Time]bool{start: true}
	fail[start.AddDate(0, 0, 30)] = true
	d := newDownloader(&hourlyStub{failStarts: fail})

	res, err := d.DownloadStation(context.Background(), testStation, start, end, nil, 30)
	require.NoError(t, err)

	assert.True(t, res.Table.Empty())
	assert.True(t, res.FailedEntirely())
	assert.Equal(t, 2, res.WindowsFailed)
}

// overlappingStub reports the window's end hour as well, as an upstream
// might when interval handling is inclusive; the downloader must keep the
// chronologically first copy.
type overlappingStub struct{}

func (overlappingStub) Fetch(_ context.Context, _ domain.Station, window domain.TimeWindow, _ []string) domain.FetchOutcome {
	rows := []domain.ObservationRow{
		{Timestamp: window.Start, Values: map[string]float64{"v": float64(window.Start.Day())}},
		{Timestamp: window.End, Values: map[string]float64{"v": -1}},
	}
	return domain.Success(rows)
}

func TestDownloader_DeduplicatesWindowBoundaries(t *testing.T) {
	start := rangeStart()
	end := start.AddDate(0, 0, 2)
	d := newDownloader(overlappingStub{})

	res, err := d.DownloadStation(context.Background(), testStation, start, end, nil, 1)
	require.NoError(t, err)

	require.Equal(t, 3, res.Table.Len())
	rows := res.Table.Rows()
	// Day 2's start was first reported as day 1's end (-1); the first
	// occurrence wins.
	assert.Equal(t, -1.0, rows[1].Values["v"])
}

func TestDownloader_InvalidRange(t *testing.T) {
	d := newDownloader(&hourlyStub{})

	_, err := d.DownloadStation(context.Background(), testStation, rangeStart(), rangeStart(), nil, 30)
	require.Error(t, err)

	var rangeErr *domain.InvalidRangeError
	assert.ErrorAs(t, err, &rangeErr)
}

func TestDownloader_EmptyWindowsAreNotFailures(t *testing.T) {
	stub := &scriptedFetcher{outcomes: []domain.FetchOutcome{domain.Empty()}}
	d := newDownloader(stub)

	start := rangeStart()
	res, err := d.DownloadStation(context.Background(), testStation, start, start.AddDate(0, 0, 60), nil, 30)
	require.NoError(t, err)

	assert.True(t, res.Table.Empty())
	assert.Equal(t, 2, res.WindowsEmpty)
	assert.Zero(t, res.WindowsFailed)
	assert.False(t, res.FailedEntirely(), "an offline station is not a failed download")
}
