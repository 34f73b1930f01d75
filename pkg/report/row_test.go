package report

import (
	"math"
	"testing"

	"tripreport/pkg/types"
)

func mustResolve(t *testing.T, q RangeQuery) Range {
	t.Helper()
	rng, err := ResolveRange(q)
	if err != nil {
		t.Fatalf("ResolveRange: %v", err)
	}
	return rng
}

func TestLookups(t *testing.T) {
	l := NewLookups(
		[]types.Group{{ID: 1, Name: "North"}, {ID: 2}},
		[]types.Device{
			{ID: 10, Model: types.TextValue("  Sprinter ")},
			{ID: 11, Model: types.NumberValue(316)},
			{ID: 12, Model: types.NumberValue(0)},
			{ID: 13},
		},
	)

	groups := map[int64]string{1: "North", 2: "Group 2", 99: "—"}
	for id, want := range groups {
		if got := l.GroupName(id); got != want {
			t.Errorf("GroupName(%d) = %q, want %q", id, got, want)
		}
	}
	models := map[int64]string{10: "Sprinter", 11: "316", 12: "", 13: "", 99: ""}
	for id, want := range models {
		if got := l.Model(id); got != want {
			t.Errorf("Model(%d) = %q, want %q", id, got, want)
		}
	}

	var nilLookups *Lookups
	if nilLookups.GroupName(1) != "—" || nilLookups.Model(1) != "" {
		t.Error("nil lookups should fall back to defaults")
	}
}

func TestBuildRow(t *testing.T) {
	dev := types.Device{ID: 42, Name: "Van 42", GroupID: 1}
	lookups := NewLookups([]types.Group{{ID: 1, Name: "North"}}, []types.Device{{ID: 42, Model: types.TextValue("Kangoo")}})
	trip := NormalizedTrip{
		Raw: types.RawTrip{
			DeviceID:      42,
			DeviceName:    types.TextValue("Van 42 (trip)"),
			StartOdometer: types.NumberValue(100000),
			EndOdometer:   types.NumberValue(112500),
			AverageSpeed:  types.NumberValue(20),
			MaxSpeed:      types.NumberValue(50),
			SpentFuel:     types.NumberValue(1.5),
			DriverName:    types.TextValue("  Ana  "),
			EndAddress:    types.TextValue(" Rua Augusta, Lisboa "),
		},
		StartMs: ms("2024-03-02T10:00:00Z"),
		EndMs:   ms("2024-03-02T10:30:15Z"),
	}
	apportion := Apportion{IdleMs: 60000, ArretMs: 120000}

	row := BuildRow(trip, apportion, dev, lookups, mustResolve(t, RangeQuery{FromDate: "2024-03-01", ToDate: "2024-03-03"}))

	if row.Vehicle != "Van 42 (trip)" {
		t.Errorf("Vehicle = %q", row.Vehicle)
	}
	if row.Group != "North" || row.Model != "Kangoo" {
		t.Errorf("Group/Model = %q/%q", row.Group, row.Model)
	}
	if row.Driver != "Ana" || row.Destination != "Rua Augusta, Lisboa" {
		t.Errorf("Driver/Destination = %q/%q", row.Driver, row.Destination)
	}
	if row.Date != "02/03/2024" || row.Start != "10:00:00" || row.End != "10:30:15" {
		t.Errorf("Date/Start/End = %q %q %q", row.Date, row.Start, row.End)
	}
	if row.DurationMs != 1815000 || row.IdleMs != 60000 || row.ArretMs != 120000 {
		t.Errorf("durations = %d/%d/%d", row.DurationMs, row.IdleMs, row.ArretMs)
	}
	if row.DistanceKm != 12.5 {
		t.Errorf("DistanceKm = %v, want 12.5", row.DistanceKm)
	}
	if math.Abs(row.AvgSpeedKmh-37.04) > 1e-9 || math.Abs(row.MaxSpeedKmh-92.6) > 1e-9 {
		t.Errorf("speeds = %v/%v", row.AvgSpeedKmh, row.MaxSpeedKmh)
	}
	if row.FuelL != 1.5 || row.FuelPer100Km != 12 {
		t.Errorf("fuel = %v L, %v L/100km", row.FuelL, row.FuelPer100Km)
	}
}

func TestBuildRow_Fallbacks(t *testing.T) {
	singleDay := mustResolve(t, RangeQuery{Date: "2024-03-01"})
	trip := NormalizedTrip{
		Raw: types.RawTrip{
			DeviceID:      7,
			EndOdometer:   types.NumberValue(5000),
			StartOdometer: types.TextValue("unknown"),
			AverageSpeed:  types.TextValue("fast"),
			SpentFuel:     types.NumberValue(-3),
			DriverName:    types.NumberValue(12),
		},
		// trip starts after midnight UTC but the report is for the selected day
		StartMs: ms("2024-03-02T00:10:00Z"),
		EndMs:   ms("2024-03-02T00:20:00Z"),
	}

	tests := []struct {
		name        string
		dev         types.Device
		wantVehicle string
	}{
		{name: "device name", dev: types.Device{ID: 7, Name: "Truck 7"}, wantVehicle: "Truck 7"},
		{name: "device id", dev: types.Device{ID: 7}, wantVehicle: "Device 7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := BuildRow(trip, Apportion{}, tt.dev, nil, singleDay)
			if row.Vehicle != tt.wantVehicle {
				t.Errorf("Vehicle = %q, want %q", row.Vehicle, tt.wantVehicle)
			}
			if row.Group != "—" {
				t.Errorf("Group = %q", row.Group)
			}
			if row.Date != "01/03/2024" {
				t.Errorf("Date = %q, want selected day", row.Date)
			}
			if row.DistanceKm != 0 || row.FuelPer100Km != 0 {
				t.Errorf("missing start odometer should give 0 distance, got %v km, %v L/100", row.DistanceKm, row.FuelPer100Km)
			}
			if row.AvgSpeedKmh != 0 || row.MaxSpeedKmh != 0 {
				t.Errorf("non-numeric speeds should be 0, got %v/%v", row.AvgSpeedKmh, row.MaxSpeedKmh)
			}
			if row.FuelL != 0 {
				t.Errorf("negative fuel should clamp to 0, got %v", row.FuelL)
			}
			if row.Driver != "" {
				t.Errorf("non-string driver should be empty, got %q", row.Driver)
			}
		})
	}
}

func TestBuildRow_NegativeDistanceHasNoConsumption(t *testing.T) {
	trip := NormalizedTrip{
		Raw: types.RawTrip{
			StartOdometer: types.NumberValue(5000),
			EndOdometer:   types.NumberValue(4000),
			SpentFuel:     types.NumberValue(2),
		},
		StartMs: ms("2024-03-01T10:00:00Z"),
		EndMs:   ms("2024-03-01T10:10:00Z"),
	}
	row := BuildRow(trip, Apportion{}, types.Device{ID: 1}, nil, mustResolve(t, RangeQuery{Date: "2024-03-01"}))
	if row.DistanceKm != -1 {
		t.Errorf("DistanceKm = %v, want -1", row.DistanceKm)
	}
	if row.FuelPer100Km != 0 {
		t.Errorf("FuelPer100Km = %v, want 0", row.FuelPer100Km)
	}
}
