package report

import (
	"fmt"
	"strconv"
	"strings"

	"tripreport/pkg/types"
)

// Lookups are the shared, read-only tables used to label rows. They are
// built once before devices are processed and never written afterwards.
type Lookups struct {
	groupNames map[int64]string
	models     map[int64]string
}

// NewLookups indexes group names by group id and models by device id.
// Unnamed groups are labelled "Group <id>".
func NewLookups(groups []types.Group, devices []types.Device) *Lookups {
	l := &Lookups{
		groupNames: make(map[int64]string, len(groups)),
		models:     make(map[int64]string, len(devices)),
	}
	for _, g := range groups {
		name := g.Name
		if name == "" {
			name = fmt.Sprintf("Group %d", g.ID)
		}
		l.groupNames[g.ID] = name
	}
	for _, d := range devices {
		l.models[d.ID] = modelName(d.Model)
	}
	return l
}

// GroupName returns the group label, or "—" when the group is unknown.
func (l *Lookups) GroupName(groupID int64) string {
	if l != nil {
		if name, ok := l.groupNames[groupID]; ok && name != "" {
			return name
		}
	}
	return "—"
}

func (l *Lookups) Model(deviceID int64) string {
	if l == nil {
		return ""
	}
	return l.models[deviceID]
}

func modelName(s types.Scalar) string {
	if str, ok := s.Text(); ok {
		return strings.TrimSpace(str)
	}
	if f, ok := s.Number(); ok && f != 0 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// BuildRow derives one report row from a trip and the stop time credited to it.
func BuildRow(t NormalizedTrip, a Apportion, dev types.Device, lookups *Lookups, rng Range) types.ReportRow {
	raw := t.Raw

	var distKm float64
	startOdo, okStart := raw.StartOdometer.Number()
	endOdo, okEnd := raw.EndOdometer.Number()
	if okStart && okEnd {
		distKm = (endOdo - startOdo) / 1000
	}

	var avgSpeed, maxSpeed float64
	if v, ok := raw.AverageSpeed.Number(); ok {
		avgSpeed = v * KnotToKmh
	}
	if v, ok := raw.MaxSpeed.Number(); ok {
		maxSpeed = v * KnotToKmh
	}

	var fuelL float64
	if v, ok := raw.SpentFuel.Number(); ok {
		fuelL = max(0, v)
	}
	var fuelPer100 float64
	if distKm > 0 {
		fuelPer100 = fuelL / distKm * 100
	}

	date := FormatDate(t.StartMs)
	if rng.SingleDay() {
		date = rng.SelectedDate()
	}

	return types.ReportRow{
		DeviceID:     dev.ID,
		Vehicle:      vehicleName(raw, dev),
		Group:        lookups.GroupName(dev.GroupID),
		Model:        lookups.Model(dev.ID),
		Driver:       trimmedText(raw.DriverName),
		Date:         date,
		Start:        FormatClock(t.StartMs),
		End:          FormatClock(t.EndMs),
		Destination:  trimmedText(raw.EndAddress),
		DurationMs:   t.EndMs - t.StartMs,
		IdleMs:       a.IdleMs,
		ArretMs:      a.ArretMs,
		DistanceKm:   distKm,
		AvgSpeedKmh:  avgSpeed,
		MaxSpeedKmh:  maxSpeed,
		FuelL:        fuelL,
		FuelPer100Km: fuelPer100,
	}
}

func vehicleName(raw types.RawTrip, dev types.Device) string {
	if name, ok := raw.DeviceName.Text(); ok && name != "" {
		return name
	}
	if dev.Name != "" {
		return dev.Name
	}
	return fmt.Sprintf("Device %d", dev.ID)
}

func trimmedText(s types.Scalar) string {
	str, _ := s.Text()
	return strings.TrimSpace(str)
}
