// Package export renders aggregated device reports into downloadable
// documents.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"tripreport/pkg/report"
	"tripreport/pkg/types"
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
)

// ParseFormat maps a query or flag value to a Format. Empty selects XLSX.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatXML:
		return FormatXML, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatXML:
		return "application/xml; charset=utf-8"
	case FormatJSON:
		return "application/json; charset=utf-8"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// FileName is the attachment name offered to the browser.
func (f Format) FileName() string {
	if f == FormatXLSX || f == "" {
		return "Trip report.xlsx"
	}
	return "Trip report." + string(f)
}

// Document is one export run ready to be rendered.
type Document struct {
	Range       report.Range
	Devices     []types.DeviceReport
	GeneratedAt time.Time
}

type Writer interface {
	Write(w io.Writer, doc Document) error
}

func NewWriter(f Format) Writer {
	switch f {
	case FormatXML:
		return XMLWriter{}
	case FormatJSON:
		return JSONWriter{}
	default:
		return XLSXWriter{}
	}
}

type column struct {
	Header string
	Key    string
	Width  float64
}

var columns = []column{
	{Header: "Véhicule", Key: "vehicle", Width: 30},
	{Header: "Groupe", Key: "group", Width: 28},
	{Header: "Modèle", Key: "model", Width: 24},
	{Header: "Conducteur", Key: "driver", Width: 26},
	{Header: "Date", Key: "date", Width: 14},
	{Header: "Commencer", Key: "start", Width: 14},
	{Header: "Fin", Key: "end", Width: 14},
	{Header: "Destination", Key: "destination", Width: 50},
	{Header: "Durée", Key: "duration", Width: 12},
	{Header: "tourner au ralenti", Key: "idle", Width: 20},
	{Header: "Arrêt", Key: "stopped", Width: 12},
	{Header: "Distance (km)", Key: "distance_km", Width: 16},
	{Header: "Vitesse moyenne (km/h)", Key: "avg_speed_kmh", Width: 22},
	{Header: "Vitesse maximale (km/h)", Key: "max_speed_kmh", Width: 22},
	{Header: "Consommation (L)", Key: "fuel_l", Width: 20},
	{Header: "Consommation (L/100)", Key: "fuel_per_100km", Width: 22},
}

const totalsLabel = "Totaux et moyennes"

// rowValues returns the display values of a trip row in column order.
func rowValues(r types.ReportRow) []any {
	return []any{
		r.Vehicle,
		r.Group,
		r.Model,
		r.Driver,
		r.Date,
		r.Start,
		r.End,
		r.Destination,
		report.FormatDuration(r.DurationMs),
		report.FormatDuration(r.IdleMs),
		report.FormatDuration(r.ArretMs),
		report.ApproxDistance1Dec(r.DistanceKm),
		report.RoundN(r.AvgSpeedKmh, 2),
		report.RoundN(r.MaxSpeedKmh, 2),
		report.RoundN(r.FuelL, 2),
		report.RoundN(r.FuelPer100Km, 2),
	}
}

// totalsValues returns the display values of a finalized totals row.
func totalsValues(t types.DeviceTotals) []any {
	return []any{
		"", "", "", "", "", "", "",
		totalsLabel,
		report.FormatDuration(t.DurationMs),
		report.FormatDuration(t.IdleMs),
		report.FormatDuration(t.ArretMs),
		report.ApproxDistance1Dec(t.DistanceKm),
		report.RoundN(t.AvgSpeedKmh, 2),
		report.RoundN(t.MaxSpeedKmh, 2),
		report.RoundN(t.FuelL, 2),
		report.RoundN(t.FuelPer100Km, 2),
	}
}

// record keys the display values by column key.
func record(values []any) map[string]any {
	m := make(map[string]any, len(columns))
	for i, c := range columns {
		m[c.Key] = values[i]
	}
	return m
}
