package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fjordsol/metharvest/internal/domain"
	"github.com/fjordsol/metharvest/internal/observability"
)

// RecordWriter persists one station's merged records and the run summary.
type RecordWriter interface {
	// WriteStation writes one table and returns the path of the created file.
	WriteStation(station domain.Station, columns []string, records []domain.MergedRecord) (string, error)
	// WriteSummary writes the run-level summary and returns its path.
	WriteSummary(result RunResult) (string, error)
}

// RunSpec is everything one harvest run needs: the station set, date range,
// element lists, and retrieval tuning. Stations are processed in slice order,
// so a run is reproducible from identical configuration.
type RunSpec struct {
	Stations     []domain.Station
	Start        time.Time
	End          time.Time
	Elements     []string // primary-source canonical elements
	SnowElements []string // secondary-source canonical elements; empty disables the cross-reference
	SpanDays     int
	SnowSpanDays int
	Pacing       time.Duration
}

// columns returns the output column order: primary elements first, then
// secondary, matching how the merge fills each record.
func (s RunSpec) columns() []string {
	cols := make([]string, 0, len(s.Elements)+len(s.SnowElements))
	cols = append(cols, s.Elements...)
	cols = append(cols, s.SnowElements...)
	return cols
}

// StationResult records how one station fared.
type StationResult struct {
	Station        domain.Station
	Rows           int
	WindowFailures int
	File           string // empty when the station failed
	Failed         bool
	Reason         string
}

// RunResult aggregates per-station results and run-level counters.
type RunResult struct {
	StationsSucceeded int
	StationsFailed    int
	TotalRows         int
	WindowFailures    int
	Stations          []StationResult
	Files             []string
	SummaryFile       string
	StartedAt         time.Time
	FinishedAt        time.Time
}

// Elapsed returns the run's wall time.
func (r RunResult) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Progress is a live snapshot of a run, served by the progress HTTP server.
type Progress struct {
	StationsTotal int64 `json:"stations_total"`
	StationsDone  int64 `json:"stations_done"`
	Rows          int64 `json:"rows"`
	Active        bool  `json:"active"`
}

// Runner iterates the configured stations, downloading, merging, and writing
// one output table per station. Stations are isolated: one station's total
// failure never stops the ones after it, and the run always completes with a
// summary of what succeeded.
type Runner struct {
	primary   *Downloader
	secondary *Downloader // nil when the snow cross-reference is disabled
	writer    RecordWriter
	logger    *slog.Logger
	metrics   *observability.Metrics

	stationsTotal atomic.Int64
	stationsDone  atomic.Int64
	rows          atomic.Int64
	active        atomic.Bool
}

// NewRunner creates a station runner. Pass a nil secondary downloader to
// harvest from the primary source only.
func NewRunner(primary, secondary *Downloader, writer RecordWriter, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		primary:   primary,
		secondary: secondary,
		writer:    writer,
		logger:    logger,
		metrics:   metrics,
	}
}

// Progress reports the run's live counters.
func (r *Runner) Progress() Progress {
	return Progress{
		StationsTotal: r.stationsTotal.Load(),
		StationsDone:  r.stationsDone.Load(),
		Rows:          r.rows.Load(),
		Active:        r.active.Load(),
	}
}

// Run processes every station in spec order. The returned error is non-nil
// only for an invalid date range, which is a configuration problem detected
// before any network traffic.
func (r *Runner) Run(ctx context.Context, spec RunSpec) (RunResult, error) {
	// Validate both chunkings up front so a bad range aborts the whole run
	// instead of failing once per station.
	if _, err := domain.Chunk(spec.Start, spec.End, spec.SpanDays); err != nil {
		return RunResult{}, err
	}
	if r.secondary != nil {
		if _, err := domain.Chunk(spec.Start, spec.End, spec.SnowSpanDays); err != nil {
			return RunResult{}, err
		}
	}

	result := RunResult{StartedAt: domain.Now()}
	r.stationsTotal.Store(int64(len(spec.Stations)))
	r.stationsDone.Store(0)
	r.rows.Store(0)
	r.active.Store(true)
	r.metrics.RunActive.Set(1)
	defer func() {
		r.active.Store(false)
		r.metrics.RunActive.Set(0)
	}()

	r.logger.Info("run started",
		"stations", len(spec.Stations),
		"start", spec.Start.Format(time.RFC3339),
		"end", spec.End.Format(time.RFC3339),
		"elements", spec.Elements,
		"snow_elements", spec.SnowElements,
	)

	for i, station := range spec.Stations {
		if i > 0 && !sleepWithContext(ctx, r.primary.pacing) {
			r.logger.Info("run interrupted", "reason", ctx.Err())
			break
		}
		sr := r.runStation(ctx, station, spec)

		result.Stations = append(result.Stations, sr)
		result.WindowFailures += sr.WindowFailures
		if sr.Failed {
			result.StationsFailed++
			r.metrics.StationsCompleted.WithLabelValues("failed").Inc()
			r.logger.Warn("station failed", "station", station.Name, "reason", sr.Reason)
		} else {
			result.StationsSucceeded++
			result.TotalRows += sr.Rows
			result.Files = append(result.Files, sr.File)
			r.rows.Add(int64(sr.Rows))
			r.metrics.StationsCompleted.WithLabelValues("succeeded").Inc()
			r.logger.Info("station complete",
				"station", station.Name, "rows", sr.Rows, "window_failures", sr.WindowFailures, "file", sr.File)
		}
		r.stationsDone.Add(1)
	}

	result.FinishedAt = domain.Now()

	if path, err := r.writer.WriteSummary(result); err != nil {
		r.logger.Error("write summary failed", "error", err)
	} else {
		result.SummaryFile = path
	}

	r.logger.Info("run complete",
		"stations_succeeded", result.StationsSucceeded,
		"stations_failed", result.StationsFailed,
		"total_rows", result.TotalRows,
		"window_failures", result.WindowFailures,
		"files", len(result.Files),
		"elapsed", result.Elapsed().String(),
	)
	return result, nil
}

// runStation downloads both sources for one station and writes the merged
// table. Secondary failures degrade to absent snow values; only an empty
// primary table fails the station.
func (r *Runner) runStation(ctx context.Context, station domain.Station, spec RunSpec) StationResult {
	started := time.Now()
	defer func() {
		r.metrics.StationDuration.Observe(time.Since(started).Seconds())
	}()

	sr := StationResult{Station: station}

	primary, err := r.primary.DownloadStation(ctx, station, spec.Start, spec.End, spec.Elements, spec.SpanDays)
	if err != nil {
		sr.Failed = true
		sr.Reason = err.Error()
		return sr
	}
	sr.WindowFailures = primary.WindowsFailed

	if primary.Table.Empty() {
		sr.Failed = true
		if primary.FailedEntirely() {
			sr.Reason = "all windows failed"
		} else {
			sr.Reason = "no observations in range"
		}
		return sr
	}

	var secondary domain.StationTable
	if r.secondary != nil && station.Geo != nil && len(spec.SnowElements) > 0 {
		secRes, err := r.secondary.DownloadStation(ctx, station, spec.Start, spec.End, spec.SnowElements, spec.SnowSpanDays)
		if err == nil {
			secondary = secRes.Table
			sr.WindowFailures += secRes.WindowsFailed
		}
		if secondary.Empty() {
			// Tolerated: the merged table simply carries no snow values.
			r.logger.Warn("secondary source returned nothing", "station", station.Name)
		}
	}

	records := domain.Merge(primary.Table, secondary)
	sr.Rows = len(records)

	file, err := r.writer.WriteStation(station, spec.columns(), records)
	if err != nil {
		sr.Failed = true
		sr.Reason = "write output: " + err.Error()
		return sr
	}
	sr.File = file
	return sr
}
