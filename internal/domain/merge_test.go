package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjordsol/metharvest/internal/domain"
)

func primaryRow(ts time.Time, temp float64) domain.ObservationRow {
	return domain.ObservationRow{
		Timestamp: ts,
		Values:    map[string]float64{domain.ElementAirTemperature: temp},
	}
}

func snowRow(ts time.Time, depth float64) domain.ObservationRow {
	return domain.ObservationRow{
		Timestamp: ts,
		Values:    map[string]float64{domain.ElementSnowDepth: depth},
	}
}

func TestMerge_LeftJoinByTimestamp(t *testing.T) {
	t1, t2, t3 := hour(1), hour(2), hour(3)
	t4 := hour(4)

	primary := domain.NewStationTable(primaryRow(t1, 1), primaryRow(t2, 2), primaryRow(t3, 3))
	secondary := domain.NewStationTable(snowRow(t2, 12), snowRow(t4, 40))

	records := domain.Merge(primary, secondary)

	require.Len(t, records, 3, "every primary row yields exactly one record")

	assert.Equal(t, t1, records[0].Timestamp)
	_, hasSnow := records[0].Values[domain.ElementSnowDepth]
	assert.False(t, hasSnow, "no secondary match for t1")

	assert.Equal(t, 12.0, records[1].Values[domain.ElementSnowDepth])
	assert.Equal(t, 2.0, records[1].Values[domain.ElementAirTemperature])

	_, hasSnow = records[2].Values[domain.ElementSnowDepth]
	assert.False(t, hasSnow, "no secondary match for t3")

	for _, rec := range records {
		assert.NotEqual(t, t4, rec.Timestamp, "secondary-only timestamps are dropped")
	}
}

func TestMerge_EmptyPrimaryWinsOverSecondary(t *testing.T) {
	secondary := domain.NewStationTable(snowRow(hour(0), 5))
	records := domain.Merge(domain.StationTable{}, secondary)
	assert.Empty(t, records)
}

func TestMerge_EmptySecondary(t *testing.T) {
	primary := domain.NewStationTable(primaryRow(hour(0), 1), primaryRow(hour(1), 2))
	records := domain.Merge(primary, domain.StationTable{})

	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Len(t, rec.Values, 1)
	}
}

func TestMerge_PrimaryValueWinsOnCollision(t *testing.T) {
	ts := hour(0)
	primary := domain.NewStationTable(domain.ObservationRow{
		Timestamp: ts,
		Values:    map[string]float64{domain.ElementSnowDepth: 7},
	})
	secondary := domain.NewStationTable(snowRow(ts, 99))

	records := domain.Merge(primary, secondary)
	require.Len(t, records, 1)
	assert.Equal(t, 7.0, records[0].Values[domain.ElementSnowDepth])
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	ts := hour(0)
	primary := domain.NewStationTable(primaryRow(ts, 1))
	secondary := domain.NewStationTable(snowRow(ts, 2))

	_ = domain.Merge(primary, secondary)

	assert.Len(t, primary.Rows()[0].Values, 1, "merge must build fresh value maps")
	assert.Len(t, secondary.Rows()[0].Values, 1)
}
