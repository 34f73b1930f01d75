package report

import "tripreport/pkg/types"

// DeviceStats describes what normalization discarded for one device.
type DeviceStats struct {
	TripsDropped int
	StopsDropped int
}

// BuildDeviceReport runs normalization, the stop sweep and row building for
// one device. ok is false when no valid trip remains, in which case the
// device is left out of the report.
func BuildDeviceReport(dev types.Device, trips []types.RawTrip, stops []types.RawStop, lookups *Lookups, rng Range) (types.DeviceReport, DeviceStats, bool) {
	normTrips := NormalizeTrips(trips)
	normStops := NormalizeStops(stops)
	stats := DeviceStats{
		TripsDropped: len(trips) - len(normTrips),
		StopsDropped: len(stops) - len(normStops),
	}
	if len(normTrips) == 0 {
		return types.DeviceReport{}, stats, false
	}

	apportioned := Sweep(normTrips, normStops, rng.To.UnixMilli())

	rep := types.DeviceReport{
		Device: dev,
		Rows:   make([]types.ReportRow, 0, len(normTrips)),
	}
	for i, t := range normTrips {
		row := BuildRow(t, apportioned[i], dev, lookups, rng)
		rep.Rows = append(rep.Rows, row)
		rep.Totals.Add(row)
	}
	rep.Totals.Finalize()

	return rep, stats, true
}
