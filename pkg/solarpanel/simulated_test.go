package solarpanel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulated(t *testing.T) {
	now := time.Date(2025, 6, 1, 13, 30, 0, 0, time.UTC)
	s := &Simulated{
		history: 24 * time.Hour,
		now:     func() time.Time { return now },
	}
	ctx := context.Background()

	t.Run("FetchFromTimestamp", func(t *testing.T) {
		since := time.Date(2025, 6, 1, 5, 0, 0, 0, time.UTC)
		records, err := s.FetchFromTimestamp(ctx, "unit-1", since)
		require.NoError(t, err)
		// 06, 08, 10, 12
		require.Len(t, records, 4)
		assert.Equal(t, time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC), records[0].Timestamp)
		assert.Equal(t, 0.0, records[0].EnergyProduced)
		assert.Greater(t, records[3].EnergyProduced, records[1].EnergyProduced)
		for _, rec := range records {
			assert.Equal(t, "unit-1", rec.SolarUnitID)
			assert.Equal(t, 2.0, rec.IntervalHours)
			assert.LessOrEqual(t, rec.EnergyProduced, simulatedPeakKW*2)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		a, err := s.FetchAll(ctx, "unit-1")
		require.NoError(t, err)
		b, err := s.FetchAll(ctx, "unit-1")
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Len(t, a, 12)
	})

	t.Run("Night", func(t *testing.T) {
		assert.Equal(t, 0.0, s.energy(time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC)))
		assert.Equal(t, 0.0, s.energy(time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)))
	})
}

func TestNewSimulated(t *testing.T) {
	s := NewSimulated(4 * time.Hour)
	records, err := s.FetchAll(context.Background(), "unit-1")
	require.NoError(t, err)
	// 4h window on a 2h grid yields 2 or 3 records depending on alignment
	assert.GreaterOrEqual(t, len(records), 2)
	assert.LessOrEqual(t, len(records), 3)
}
