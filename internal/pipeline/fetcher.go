package pipeline

import (
	"context"
	"time"

	"github.com/fjordsol/metharvest/internal/domain"
)

// Fetcher performs one upstream request for a station and time window and
// classifies the result. Implementations make exactly one network call per
// invocation and never sleep; retrying and pacing are the caller's job.
type Fetcher interface {
	Fetch(ctx context.Context, station domain.Station, window domain.TimeWindow, elements []string) domain.FetchOutcome
}

// sleepWithContext sleeps for d unless the context is cancelled first.
// Returns false when cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
