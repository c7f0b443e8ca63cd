package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjordsol/metharvest/internal/domain"
	"github.com/fjordsol/metharvest/internal/observability"
)

// Downloader drives a Fetcher across the sub-windows of one station's date
// range and assembles the results into a single deduplicated, sorted table.
// A failed sub-window costs only its own hours, never the whole station.
type Downloader struct {
	source  string // label for logs: "frost" or "openmeteo"
	fetcher Fetcher
	pacing  time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewDownloader creates a station downloader. pacing is the mandatory delay
// between window requests; it keeps the upstream rate limiter quiet and must
// not be skipped against a live API.
func NewDownloader(source string, fetcher Fetcher, pacing time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Downloader {
	return &Downloader{
		source:  source,
		fetcher: fetcher,
		pacing:  pacing,
		logger:  logger,
		metrics: metrics,
	}
}

// DownloadResult is one station's assembled table and window bookkeeping.
type DownloadResult struct {
	Table         domain.StationTable
	WindowsTotal  int
	WindowsData   int
	WindowsEmpty  int
	WindowsFailed int
}

// FailedEntirely reports whether no window produced a usable response,
// meaning the station yielded nothing at all.
func (r DownloadResult) FailedEntirely() bool {
	return r.WindowsTotal > 0 && r.WindowsFailed == r.WindowsTotal
}

// DownloadStation fetches [start, end) for one station in windows of at most
// maxSpanDays. Fatal window failures are logged and skipped; the assembled
// table is deduplicated keep-first and sorted ascending before return. The
// only error is an invalid range, which aborts before any network traffic.
func (d *Downloader) DownloadStation(ctx context.Context, station domain.Station, start, end time.Time, elements []string, maxSpanDays int) (DownloadResult, error) {
	windows, err := domain.Chunk(start, end, maxSpanDays)
	if err != nil {
		return DownloadResult{}, err
	}

	var res DownloadResult
	for window := range windows {
		if res.WindowsTotal > 0 && !sleepWithContext(ctx, d.pacing) {
			d.logger.Info("download interrupted", "source", d.source, "station", station.ID, "reason", ctx.Err())
			break
		}
		res.WindowsTotal++

		out := d.fetcher.Fetch(ctx, station, window, elements)
		switch out.Outcome {
		case domain.OutcomeSuccess:
			res.Table.Append(out.Rows...)
			res.WindowsData++
			d.metrics.RowsDownloaded.Add(float64(len(out.Rows)))
			d.logger.Debug("window downloaded",
				"source", d.source, "station", station.ID, "window", window.String(), "rows", len(out.Rows))
		case domain.OutcomeEmpty:
			res.WindowsEmpty++
			d.logger.Debug("window empty", "source", d.source, "station", station.ID, "window", window.String())
		default:
			// Fatal, or a retryable that leaked past an absent Retrier.
			// Either way the window's hours are lost, not the station.
			res.WindowsFailed++
			d.metrics.WindowFailures.Inc()
			d.logger.Warn("window failed",
				"source", d.source, "station", station.ID, "window", window.String(), "reason", out.Reason)
		}
	}

	res.Table.Compact()
	return res, nil
}
