package domain

import (
	"slices"
	"time"
)

// ObservationRow is one hour of measurements: a UTC hour-aligned timestamp and
// a map from canonical element name to value. A missing key means the element
// was not measured that hour, which is distinct from a measured zero.
type ObservationRow struct {
	Timestamp time.Time
	Values    map[string]float64
}

// StationTable is a per-station time series of observation rows. It is built
// incrementally with Append and finalized with Compact, after which timestamps
// are unique and sorted ascending.
type StationTable struct {
	rows []ObservationRow
}

// NewStationTable builds a table from the given rows without copying them.
func NewStationTable(rows ...ObservationRow) StationTable {
	return StationTable{rows: rows}
}

// Append adds rows to the table in arrival order.
func (t *StationTable) Append(rows ...ObservationRow) {
	t.rows = append(t.rows, rows...)
}

// Rows returns the underlying row slice. Callers must treat it as read-only.
func (t *StationTable) Rows() []ObservationRow {
	return t.rows
}

// Len returns the number of rows.
func (t *StationTable) Len() int {
	return len(t.rows)
}

// Empty reports whether the table has no rows.
func (t *StationTable) Empty() bool {
	return len(t.rows) == 0
}

// Compact deduplicates rows by timestamp, keeping the first occurrence in
// arrival order, and sorts the result ascending by timestamp. Windows are
// fetched start-to-end, so "first" corresponds to chronological precedence
// when adjacent windows report the same boundary hour.
func (t *StationTable) Compact() {
	if len(t.rows) == 0 {
		return
	}

	seen := make(map[time.Time]struct{}, len(t.rows))
	unique := t.rows[:0]
	for _, row := range t.rows {
		key := row.Timestamp.UTC()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, row)
	}

	slices.SortFunc(unique, func(a, b ObservationRow) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	t.rows = unique
}
