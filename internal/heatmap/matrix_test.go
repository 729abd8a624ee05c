package heatmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otboard/internal/domain"
)

func aggRecord(stop, slot string, total, onTime int) domain.StatRecord {
	return domain.StatRecord{
		Kind:     domain.RecordAggregate,
		StopName: stop,
		TimeSlot: slot,
		Total:    total,
		OnTime:   onTime,
	}
}

func TestBuildMatrixLookup(t *testing.T) {
	records := []domain.StatRecord{
		aggRecord("Central", "06:00", 10, 8),
		aggRecord("Central", "07:00", 12, 6),
		aggRecord("Harbor", "06:00", 4, 4),
	}

	m := BuildMatrix(records)

	rec, ok := m.Lookup("Central", "07:00")
	require.True(t, ok)
	assert.Equal(t, 12, rec.Total)

	_, ok = m.Lookup("Harbor", "07:00")
	assert.False(t, ok, "missing cell must stay absent, not zero-valued")

	_, ok = m.Lookup("Nowhere", "06:00")
	assert.False(t, ok)
}

func TestBuildMatrixOrderIndependent(t *testing.T) {
	records := []domain.StatRecord{
		aggRecord("Central", "06:00", 10, 8),
		aggRecord("Harbor", "06:00", 4, 4),
		aggRecord("Central", "07:00", 12, 6),
	}
	reversed := []domain.StatRecord{records[2], records[1], records[0]}

	assert.Equal(t, BuildMatrix(records), BuildMatrix(reversed))
}

func TestBuildMatrixCollisionLastWins(t *testing.T) {
	records := []domain.StatRecord{
		aggRecord("Central", "06:00", 10, 8),
		aggRecord("Central", "06:00", 99, 1),
	}

	m := BuildMatrix(records)
	rec, ok := m.Lookup("Central", "06:00")
	require.True(t, ok)
	assert.Equal(t, 99, rec.Total)
}

func TestBuildMatrixSkipsIncompleteRecords(t *testing.T) {
	records := []domain.StatRecord{
		aggRecord("", "06:00", 10, 8),
		aggRecord("Central", "", 10, 8),
		aggRecord("Central", "06:00", 10, 8),
	}

	m := BuildMatrix(records)
	assert.Equal(t, []string{"Central"}, m.Stops())
	assert.Equal(t, []string{"06:00"}, m.SlotLabels())
}

func TestBuildMatrixTripRecordsKeyByTripID(t *testing.T) {
	records := []domain.StatRecord{
		{Kind: domain.RecordTrip, StopName: "Central", TripID: "t-42", Delay: 30},
	}

	m := BuildMatrix(records)
	rec, ok := m.Lookup("Central", "t-42")
	require.True(t, ok)
	assert.Equal(t, 30.0, rec.Delay)
}
