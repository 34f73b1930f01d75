package types

// ReportRow is one trip line of the vehicles report.
type ReportRow struct {
	DeviceID     int64   `json:"device_id"`
	Vehicle      string  `json:"vehicle"`
	Group        string  `json:"group"`
	Model        string  `json:"model"`
	Driver       string  `json:"driver"`
	Date         string  `json:"date"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	Destination  string  `json:"destination"`
	DurationMs   int64   `json:"duration_ms"`
	IdleMs       int64   `json:"idle_ms"`
	ArretMs      int64   `json:"arret_ms"`
	DistanceKm   float64 `json:"distance_km"`
	AvgSpeedKmh  float64 `json:"avg_speed_kmh"`
	MaxSpeedKmh  float64 `json:"max_speed_kmh"`
	FuelL        float64 `json:"fuel_l"`
	FuelPer100Km float64 `json:"fuel_per_100km"`
}

// DeviceTotals accumulates a device's rows. Sums are kept as sums; the
// speed and consumption fields become averages once Finalize is called.
type DeviceTotals struct {
	Rows         int     `json:"rows"`
	DurationMs   int64   `json:"duration_ms"`
	IdleMs       int64   `json:"idle_ms"`
	ArretMs      int64   `json:"arret_ms"`
	DistanceKm   float64 `json:"distance_km"`
	FuelL        float64 `json:"fuel_l"`
	AvgSpeedKmh  float64 `json:"avg_speed_kmh"`
	MaxSpeedKmh  float64 `json:"max_speed_kmh"`
	FuelPer100Km float64 `json:"fuel_per_100km"`

	finalized bool
}

// Add folds one row into the running totals.
func (t *DeviceTotals) Add(r ReportRow) {
	t.Rows++
	t.DurationMs += r.DurationMs
	t.IdleMs += r.IdleMs
	t.ArretMs += r.ArretMs
	t.DistanceKm += r.DistanceKm
	t.FuelL += r.FuelL
	t.AvgSpeedKmh += r.AvgSpeedKmh
	t.MaxSpeedKmh += r.MaxSpeedKmh
	t.FuelPer100Km += r.FuelPer100Km
}

// Finalize turns the averaged fields into means over Rows. Calling it more
// than once is a no-op.
func (t *DeviceTotals) Finalize() {
	if t.finalized {
		return
	}
	t.finalized = true
	if t.Rows == 0 {
		t.AvgSpeedKmh, t.MaxSpeedKmh, t.FuelPer100Km = 0, 0, 0
		return
	}
	n := float64(t.Rows)
	t.AvgSpeedKmh /= n
	t.MaxSpeedKmh /= n
	t.FuelPer100Km /= n
}

// DeviceReport is the output of one device pipeline.
type DeviceReport struct {
	Device Device       `json:"device"`
	Rows   []ReportRow  `json:"rows"`
	Totals DeviceTotals `json:"totals"`
}
