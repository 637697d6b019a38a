// Package analytics groups energy records into calendar buckets.
package analytics

import (
	"math"
	"sort"

	"github.com/sunledger/sunledger/pkg/types"
)

// Key returns the bucket a record at the given time falls into. All buckets
// are computed in UTC and weekly buckets use ISO years and weeks.
func Key(rec types.EnergyRecord, period types.AnalyticsPeriod) types.BucketKey {
	ts := rec.Timestamp.UTC()
	switch period {
	case types.AnalyticsPeriodWeekly:
		year, week := ts.ISOWeek()
		return types.BucketKey{Year: year, Week: week}
	case types.AnalyticsPeriodMonthly:
		return types.BucketKey{Year: ts.Year(), Month: int(ts.Month())}
	default:
		return types.BucketKey{Year: ts.Year(), Month: int(ts.Month()), Day: ts.Day()}
	}
}

// Aggregate groups records by period and returns at most
// types.MaxAnalyticsBuckets buckets, most recent first. The result is never
// nil.
func Aggregate(records []types.EnergyRecord, period types.AnalyticsPeriod) []types.AnalyticsBucket {
	byKey := make(map[types.BucketKey]*types.AnalyticsBucket)
	for _, rec := range records {
		key := Key(rec, period)
		b, ok := byKey[key]
		if !ok {
			b = &types.AnalyticsBucket{
				Bucket:            key,
				MaxEnergyProduced: math.Inf(-1),
				MinEnergyProduced: math.Inf(1),
			}
			byKey[key] = b
		}
		b.TotalEnergyProduced += rec.EnergyProduced
		b.RecordCount++
		b.MaxEnergyProduced = math.Max(b.MaxEnergyProduced, rec.EnergyProduced)
		b.MinEnergyProduced = math.Min(b.MinEnergyProduced, rec.EnergyProduced)
	}

	buckets := make([]types.AnalyticsBucket, 0, len(byKey))
	for _, b := range byKey {
		b.AverageEnergyProduced = b.TotalEnergyProduced / float64(b.RecordCount)
		buckets = append(buckets, *b)
	}
	Sort(buckets)
	if len(buckets) > types.MaxAnalyticsBuckets {
		buckets = buckets[:types.MaxAnalyticsBuckets]
	}
	return buckets
}

// Sort orders buckets most recent first.
func Sort(buckets []types.AnalyticsBucket) {
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[j].Bucket.Less(buckets[i].Bucket)
	})
}

// Totals summarizes records. The bool is false when there are no records.
func Totals(solarUnitID string, records []types.EnergyRecord) (types.EnergyTotals, bool) {
	if len(records) == 0 {
		return types.EnergyTotals{}, false
	}
	t := types.EnergyTotals{
		SolarUnitID: solarUnitID,
		FirstRecord: records[0].Timestamp,
		LastRecord:  records[0].Timestamp,
	}
	for _, rec := range records {
		t.TotalEnergyProduced += rec.EnergyProduced
		t.TotalRecords++
		if rec.Timestamp.Before(t.FirstRecord) {
			t.FirstRecord = rec.Timestamp
		}
		if rec.Timestamp.After(t.LastRecord) {
			t.LastRecord = rec.Timestamp
		}
	}
	t.AverageEnergyProduced = t.TotalEnergyProduced / float64(t.TotalRecords)
	return t, true
}
