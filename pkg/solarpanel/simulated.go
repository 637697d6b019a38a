package solarpanel

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/sunledger/sunledger/pkg/types"
)

const (
	simulatedInterval = 2 * time.Hour
	simulatedPeakKW   = 3.0
)

// Simulated generates a deterministic daylight curve instead of calling the
// real service. Records fall on even UTC hours and their IDs are derived from
// the unit and timestamp, so fetching the same window twice yields the same
// records.
type Simulated struct {
	history time.Duration
	now     func() time.Time
}

// NewSimulated returns a Simulated whose full fetch reaches back history.
func NewSimulated(history time.Duration) *Simulated {
	return &Simulated{history: history, now: time.Now}
}

func configuredSimulated() *Simulated {
	s := NewSimulated(0)
	history := lflag.Duration("solar-panel-simulated-history", 7*24*time.Hour, "How far back the simulated solar panel reports on a full fetch")

	lflag.Do(func() {
		s.history = *history
	})

	return s
}

// FetchAll returns the records for the configured history window.
func (s *Simulated) FetchAll(ctx context.Context, solarUnitID string) ([]types.EnergyRecord, error) {
	return s.generate(solarUnitID, s.now().Add(-s.history)), nil
}

// FetchFromTimestamp returns the records at or after since.
func (s *Simulated) FetchFromTimestamp(ctx context.Context, solarUnitID string, since time.Time) ([]types.EnergyRecord, error) {
	return s.generate(solarUnitID, since), nil
}

func (s *Simulated) generate(solarUnitID string, since time.Time) []types.EnergyRecord {
	now := s.now().UTC()
	ts := since.UTC().Truncate(simulatedInterval)
	if ts.Before(since) {
		ts = ts.Add(simulatedInterval)
	}

	var records []types.EnergyRecord
	for ; !ts.After(now); ts = ts.Add(simulatedInterval) {
		records = append(records, types.EnergyRecord{
			ID:             fmt.Sprintf("sim-%s-%d", solarUnitID, ts.Unix()),
			SolarUnitID:    solarUnitID,
			Timestamp:      ts,
			EnergyProduced: s.energy(ts),
			IntervalHours:  simulatedInterval.Hours(),
		})
	}
	return records
}

// energy is the kWh produced over the interval ending at ts. Output follows a
// sine between 06:00 and 19:00 UTC and is zero at night.
func (s *Simulated) energy(ts time.Time) float64 {
	hour := float64(ts.Hour()) + float64(ts.Minute())/60.0
	if hour < 6 || hour > 19 {
		return 0
	}
	kw := simulatedPeakKW * math.Sin((hour-6)/13*math.Pi)
	return math.Round(kw*simulatedInterval.Hours()*100) / 100
}
