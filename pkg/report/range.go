package report

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissingDate   = errors.New("fromDate/toDate or date (YYYY-MM-DD) is required")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvertedRange = errors.New("range ends before it starts")
)

const (
	defaultFromTime = "00:00"
	defaultToTime   = "23:59"
)

// RangeQuery carries the raw query parameters of an export request.
type RangeQuery struct {
	Date     string
	FromDate string
	ToDate   string
	FromTime string
	ToTime   string
}

// Range is the resolved query window. FromDate and ToDate keep the dates as
// the user typed them (YYYY-MM-DD).
type Range struct {
	From     time.Time
	To       time.Time
	FromDate string
	ToDate   string
}

// ResolveRange applies the date defaulting rules: a lone date selects that
// day, a missing bound copies the other one, and times default to
// 00:00 / 23:59 when absent or not HH:MM. The window covers whole minutes,
// from :00 to :59 seconds.
func ResolveRange(q RangeQuery) (Range, error) {
	fromDate, toDate := q.FromDate, q.ToDate
	if q.Date != "" && fromDate == "" && toDate == "" {
		fromDate, toDate = q.Date, q.Date
	}
	if fromDate == "" {
		fromDate = toDate
		if fromDate == "" {
			fromDate = q.Date
		}
	}
	if toDate == "" {
		toDate = fromDate
	}
	if fromDate == "" || toDate == "" {
		return Range{}, ErrMissingDate
	}

	fromTime := q.FromTime
	if !isClock(fromTime) {
		fromTime = defaultFromTime
	}
	toTime := q.ToTime
	if !isClock(toTime) {
		toTime = defaultToTime
	}

	from, err := time.Parse(time.RFC3339, fromDate+"T"+fromTime+":00Z")
	if err != nil {
		return Range{}, fmt.Errorf("%w: from %q %q", ErrInvalidDate, fromDate, fromTime)
	}
	to, err := time.Parse(time.RFC3339, toDate+"T"+toTime+":59Z")
	if err != nil {
		return Range{}, fmt.Errorf("%w: to %q %q", ErrInvalidDate, toDate, toTime)
	}
	if to.Before(from) {
		return Range{}, ErrInvertedRange
	}

	return Range{From: from, To: to, FromDate: fromDate, ToDate: toDate}, nil
}

// SingleDay reports whether the user asked for exactly one calendar date.
func (r Range) SingleDay() bool {
	return r.FromDate != "" && r.FromDate == r.ToDate
}

// SelectedDate is the requested start date rewritten as DD/MM/YYYY.
func (r Range) SelectedDate() string {
	d := r.FromDate
	if len(d) < 10 {
		return d
	}
	return d[8:10] + "/" + d[5:7] + "/" + d[0:4]
}

// FromISO and ToISO are the bounds sent upstream.
func (r Range) FromISO() string { return r.From.UTC().Format(time.RFC3339) }

func (r Range) ToISO() string { return r.To.UTC().Format(time.RFC3339) }

// isClock matches HH:MM.
func isClock(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
