package schema

import (
	"io"
	"math"
	"strconv"
	"time"

	"github.com/sunledger/sunledger/pkg/types"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type pagination struct {
	Page  int `json:"page" validate:"gte=1"`
	Limit int `json:"limit" validate:"gte=1,lte=100"`
}

// Pagination parses the page and limit query values. Empty values take the
// defaults.
func Pagination(page, limit string) (int, int, error) {
	p := pagination{Page: DefaultPage, Limit: DefaultLimit}
	if page != "" {
		n, err := strconv.Atoi(page)
		if err != nil {
			return 0, 0, types.Errorf(types.ErrValidation, "page must be a number")
		}
		p.Page = n
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return 0, 0, types.Errorf(types.ErrValidation, "limit must be a number")
		}
		p.Limit = n
	}
	if err := check(&p); err != nil {
		return 0, 0, err
	}
	// keep the (page-1)*limit offset within int32
	if p.Page-1 > math.MaxInt32/p.Limit {
		return 0, 0, types.Errorf(types.ErrValidation, "page is too large")
	}
	return p.Page, p.Limit, nil
}

type dateRange struct {
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndDate   string `json:"endDate" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// DateRange parses the startDate and endDate query values. The end is nil
// when the range is open.
func DateRange(startDate, endDate string) (time.Time, *time.Time, error) {
	q := dateRange{StartDate: startDate, EndDate: endDate}
	if err := check(&q); err != nil {
		return time.Time{}, nil, err
	}
	start, err := parseTime(&q.StartDate)
	if err != nil {
		return time.Time{}, nil, err
	}
	if q.EndDate == "" {
		return *start, nil, nil
	}
	end, err := parseTime(&q.EndDate)
	if err != nil {
		return time.Time{}, nil, err
	}
	if end.Before(*start) {
		return time.Time{}, nil, types.Errorf(types.ErrValidation, "endDate must not be before startDate")
	}
	return *start, end, nil
}

// Period parses the analytics period query value.
func Period(p string) (types.AnalyticsPeriod, error) {
	return types.ParseAnalyticsPeriod(p)
}

type manualSyncBody struct {
	FromTimestamp string `json:"fromTimestamp" validate:"required"`
}

// ManualSync parses the body of a sync request and returns the raw
// fromTimestamp. Use Timestamp to interpret it.
func ManualSync(r io.Reader) (string, error) {
	var body manualSyncBody
	if err := decode(r, &body); err != nil {
		return "", err
	}
	if err := check(&body); err != nil {
		return "", err
	}
	return body.FromTimestamp, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateOnly,
}

// Timestamp parses a loosely formatted timestamp. Values without a zone are
// taken as UTC.
func Timestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, types.Errorf(types.ErrValidation, "Invalid timestamp format")
}
