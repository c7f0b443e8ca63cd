package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjordsol/metharvest/internal/domain"
	"github.com/fjordsol/metharvest/internal/observability"
)

// Retrier wraps a Fetcher with bounded retry. Transient failures are
// absorbed here: callers of a Retrier never see OutcomeRetryable. A fatal
// failure passes through untouched, since repeating a structurally rejected
// request cannot succeed.
type Retrier struct {
	fetcher     Fetcher
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewRetrier creates a retrying wrapper around fetcher. maxAttempts is the
// total attempt budget per window, including the first try.
func NewRetrier(fetcher Fetcher, maxAttempts int, backoff time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Retrier {
	return &Retrier{
		fetcher:     fetcher,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      logger,
		metrics:     metrics,
	}
}

// Fetch attempts the underlying fetch up to maxAttempts times, sleeping
// backoff between attempts. After exhausting the budget the last transient
// failure is surfaced as fatal.
func (r *Retrier) Fetch(ctx context.Context, station domain.Station, window domain.TimeWindow, elements []string) domain.FetchOutcome {
	var last domain.FetchOutcome
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		out := r.fetcher.Fetch(ctx, station, window, elements)
		if out.Outcome != domain.OutcomeRetryable {
			return out
		}
		last = out

		if attempt == r.maxAttempts {
			break
		}
		r.metrics.RetryAttempts.Inc()
		r.logger.Warn("transient fetch failure, retrying",
			"station", station.ID,
			"window", window.String(),
			"attempt", attempt,
			"max_attempts", r.maxAttempts,
			"reason", out.Reason,
		)
		if !sleepWithContext(ctx, r.backoff) {
			return domain.Fatal("cancelled during backoff: " + ctx.Err().Error())
		}
	}
	return domain.Fatal("exhausted retries: " + last.Reason)
}
