package report

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"tripreport/pkg/types"
)

// instantLayouts are tried in order. Fractional seconds are accepted by
// time.Parse even when a layout does not spell them out.
var instantLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizedTrip is a trip whose timestamps parsed and satisfy StartMs <= EndMs.
type NormalizedTrip struct {
	Raw     types.RawTrip
	StartMs int64
	EndMs   int64
}

// NormalizedStop is a stop whose timestamps parsed and satisfy StartMs <= EndMs.
// IdleMs and DurMs are never negative.
type NormalizedStop struct {
	StartMs int64
	EndMs   int64
	IdleMs  int64
	DurMs   int64
}

// ParseInstant converts a timestamp field to epoch milliseconds. Strings are
// parsed as ISO-8601, numbers are taken as epoch milliseconds. Anything else,
// including unparsable strings, reports false.
func ParseInstant(s types.Scalar) (int64, bool) {
	if f, ok := s.Number(); ok {
		return int64(f), true
	}
	str, ok := s.Text()
	if !ok {
		return 0, false
	}
	return ParseInstantString(str)
}

// ParseInstantString parses an ISO-8601 timestamp. Values without an offset
// are read as UTC.
func ParseInstantString(str string) (int64, bool) {
	str = strings.TrimSpace(str)
	if str == "" {
		return 0, false
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// DurationMs reads a millisecond duration, defaulting to 0 when the field is
// missing, non-numeric or not positive.
func DurationMs(s types.Scalar) int64 {
	if f, ok := s.Number(); ok && f > 0 {
		return int64(f)
	}
	return 0
}

// NormalizeTrips drops trips with missing, unparsable or inverted timestamps
// and returns the rest sorted by start time. The sort is stable so trips
// sharing a start keep their reported order.
func NormalizeTrips(raw []types.RawTrip) []NormalizedTrip {
	out := make([]NormalizedTrip, 0, len(raw))
	for _, t := range raw {
		start, ok := ParseInstant(t.StartTime)
		if !ok {
			continue
		}
		end, ok := ParseInstant(t.EndTime)
		if !ok || end < start {
			continue
		}
		out = append(out, NormalizedTrip{Raw: t, StartMs: start, EndMs: end})
	}
	slices.SortStableFunc(out, func(a, b NormalizedTrip) int {
		return cmp.Compare(a.StartMs, b.StartMs)
	})
	return out
}

// NormalizeStops is the stop counterpart of NormalizeTrips.
func NormalizeStops(raw []types.RawStop) []NormalizedStop {
	out := make([]NormalizedStop, 0, len(raw))
	for _, s := range raw {
		start, ok := ParseInstant(s.StartTime)
		if !ok {
			continue
		}
		end, ok := ParseInstant(s.EndTime)
		if !ok || end < start {
			continue
		}
		out = append(out, NormalizedStop{
			StartMs: start,
			EndMs:   end,
			IdleMs:  DurationMs(s.IdleTime),
			DurMs:   DurationMs(s.Duration),
		})
	}
	slices.SortStableFunc(out, func(a, b NormalizedStop) int {
		return cmp.Compare(a.StartMs, b.StartMs)
	})
	return out
}
