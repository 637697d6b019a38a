package types

import "strings"

// MaxAnalyticsBuckets is the number of most recent buckets returned by an
// analytics query.
const MaxAnalyticsBuckets = 30

// AnalyticsPeriod is the calendar granularity used to group records.
type AnalyticsPeriod string

const (
	AnalyticsPeriodDaily   AnalyticsPeriod = "daily"
	AnalyticsPeriodWeekly  AnalyticsPeriod = "weekly"
	AnalyticsPeriodMonthly AnalyticsPeriod = "monthly"
)

// ParseAnalyticsPeriod parses p, defaulting to daily when p is empty.
func ParseAnalyticsPeriod(p string) (AnalyticsPeriod, error) {
	switch AnalyticsPeriod(strings.ToLower(strings.TrimSpace(p))) {
	case "", AnalyticsPeriodDaily:
		return AnalyticsPeriodDaily, nil
	case AnalyticsPeriodWeekly:
		return AnalyticsPeriodWeekly, nil
	case AnalyticsPeriodMonthly:
		return AnalyticsPeriodMonthly, nil
	}
	return "", Errorf(ErrValidation, "Invalid period. Use 'daily', 'weekly', or 'monthly'")
}

// BucketKey identifies a calendar bucket. Only the fields relevant to the
// period are set: Year/Month/Day for daily, Year/Week (ISO) for weekly and
// Year/Month for monthly.
type BucketKey struct {
	Year  int `json:"year"`
	Month int `json:"month,omitempty"`
	Week  int `json:"week,omitempty"`
	Day   int `json:"day,omitempty"`
}

// Less reports whether k sorts before o chronologically.
func (k BucketKey) Less(o BucketKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	if k.Month != o.Month {
		return k.Month < o.Month
	}
	if k.Week != o.Week {
		return k.Week < o.Week
	}
	return k.Day < o.Day
}

// AnalyticsBucket holds the aggregate of all records that fall in a bucket.
type AnalyticsBucket struct {
	Bucket                BucketKey `json:"bucket"`
	TotalEnergyProduced   float64   `json:"totalEnergyProduced"`
	RecordCount           int       `json:"recordCount"`
	MaxEnergyProduced     float64   `json:"maxEnergyProduced"`
	MinEnergyProduced     float64   `json:"minEnergyProduced"`
	AverageEnergyProduced float64   `json:"averageEnergyProduced"`
}
