package domain

import "time"

// MergedRecord is the union, by timestamp, of a primary-source row and its
// matching secondary-source row, if any. Element values from both sources
// share one map; on a name collision the primary value wins.
type MergedRecord struct {
	Timestamp time.Time
	Values    map[string]float64
}

// Merge left-joins secondary onto primary by exact timestamp equality.
// Every primary row yields exactly one record; secondary rows without a
// primary counterpart are dropped. Secondary values arrive already converted
// to output units by the secondary fetcher.
func Merge(primary, secondary StationTable) []MergedRecord {
	if primary.Empty() {
		return nil
	}

	byTime := make(map[time.Time]ObservationRow, secondary.Len())
	for _, row := range secondary.Rows() {
		key := row.Timestamp.UTC()
		if _, ok := byTime[key]; !ok {
			byTime[key] = row
		}
	}

	records := make([]MergedRecord, 0, primary.Len())
	for _, row := range primary.Rows() {
		values := make(map[string]float64, len(row.Values)+1)
		if sec, ok := byTime[row.Timestamp.UTC()]; ok {
			for name, v := range sec.Values {
				values[name] = v
			}
		}
		// Primary is authoritative: overwrite any colliding secondary value.
		for name, v := range row.Values {
			values[name] = v
		}
		records = append(records, MergedRecord{Timestamp: row.Timestamp, Values: values})
	}
	return records
}
