package report

import (
	"fmt"
	"math"
	"time"
)

// KnotToKmh converts the upstream speed unit to km/h.
const KnotToKmh = 1.852

// RoundN rounds to n decimals with half-up ties, matching the rounding the
// report has always used (so -2.5 rounds to -2). The product is forced to
// float64 to keep the intermediate from being fused into a wider operation.
func RoundN(num float64, n int) float64 {
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return 0
	}
	f := math.Pow(10, float64(n))
	scaled := float64(num * f)
	r := math.Floor(scaled)
	if scaled-r >= 0.5 {
		r++
	}
	return r / f
}

// ApproxDistance1Dec rounds a distance to 2 decimals and then to 1 decimal.
// The two steps are intentional: 2.449 becomes 2.45 and then 2.5.
func ApproxDistance1Dec(km float64) float64 {
	return RoundN(RoundN(km, 2), 1)
}

// FormatDuration renders milliseconds as HH:MM:SS. Hours are not wrapped.
func FormatDuration(ms int64) string {
	if ms < 0 {
		return "00:00:00"
	}
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// FormatDate renders an epoch-millisecond instant as DD/MM/YYYY in UTC.
func FormatDate(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("02/01/2006")
}

// FormatClock renders an epoch-millisecond instant as HH:MM:SS in UTC.
func FormatClock(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("15:04:05")
}
