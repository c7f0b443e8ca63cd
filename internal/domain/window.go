package domain

import (
	"fmt"
	"iter"
	"time"
)

// TimeWindow is a half-open interval [Start, End) with Start < End.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Span returns the window's length.
func (w TimeWindow) Span() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains reports whether t falls inside the half-open window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("%s/%s", w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339))
}

// InvalidRangeError reports a chunking request that cannot be satisfied:
// a reversed or empty interval, or a non-positive span limit.
type InvalidRangeError struct {
	Start       time.Time
	End         time.Time
	MaxSpanDays int
}

func (e *InvalidRangeError) Error() string {
	if e.MaxSpanDays < 1 {
		return fmt.Sprintf("invalid range: max span must be at least 1 day, got %d", e.MaxSpanDays)
	}
	return fmt.Sprintf("invalid range: start %s is not before end %s",
		e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339))
}

// Chunk splits [start, end) into contiguous, non-overlapping windows of at
// most maxSpanDays each; only the final window may be shorter. The returned
// sequence is lazy and can be ranged over more than once.
func Chunk(start, end time.Time, maxSpanDays int) (iter.Seq[TimeWindow], error) {
	if maxSpanDays < 1 || !start.Before(end) {
		return nil, &InvalidRangeError{Start: start, End: end, MaxSpanDays: maxSpanDays}
	}

	span := time.Duration(maxSpanDays) * 24 * time.Hour
	return func(yield func(TimeWindow) bool) {
		for cur := start; cur.Before(end); {
			next := cur.Add(span)
			if next.After(end) {
				next = end
			}
			if !yield(TimeWindow{Start: cur, End: next}) {
				return
			}
			cur = next
		}
	}, nil
}
