package report

// Apportion is the stop time credited to one trip.
type Apportion struct {
	IdleMs  int64
	ArretMs int64
}

// Sweep credits each trip with the stops that fall entirely inside the gap
// that follows it: [trip.EndMs, next.StartMs), or [trip.EndMs, rangeEndMs) for
// the last trip. Stops straddling a window edge are not credited at all.
//
// Both slices must be sorted by StartMs. The stop cursor j is shared across
// trips and only moves forward, so the whole sweep is linear in
// len(trips)+len(stops) for non-overlapping trips.
func Sweep(trips []NormalizedTrip, stops []NormalizedStop, rangeEndMs int64) []Apportion {
	out := make([]Apportion, len(trips))
	j := 0
	for i, t := range trips {
		windowStart := t.EndMs
		windowEnd := rangeEndMs
		if i+1 < len(trips) {
			windowEnd = trips[i+1].StartMs
		}

		for j < len(stops) && stops[j].EndMs <= windowStart {
			j++
		}

		var idleSum, durSum int64
		for k := j; k < len(stops) && stops[k].StartMs < windowEnd; k++ {
			s := stops[k]
			if s.StartMs >= windowStart && s.EndMs <= windowEnd {
				idleSum += s.IdleMs
				durSum += s.DurMs
			}
		}

		out[i] = Apportion{IdleMs: idleSum, ArretMs: max(0, durSum-idleSum)}
	}
	return out
}
