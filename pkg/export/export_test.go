package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"tripreport/pkg/report"
	"tripreport/pkg/types"

	"github.com/xuri/excelize/v2"
)

func testDocument(t *testing.T) Document {
	t.Helper()
	rng, err := report.ResolveRange(report.RangeQuery{Date: "2024-03-01"})
	if err != nil {
		t.Fatalf("ResolveRange: %v", err)
	}

	van := types.DeviceReport{
		Device: types.Device{ID: 1, Name: "Van 1"},
		Rows: []types.ReportRow{
			{
				DeviceID: 1, Vehicle: "Van 1", Group: "North", Date: "01/03/2024",
				Start: "10:00:00", End: "10:30:00", Destination: "Depot",
				DurationMs: 30 * 60 * 1000, IdleMs: 600000, ArretMs: 600000,
				DistanceKm: 2.449, AvgSpeedKmh: 37.04, MaxSpeedKmh: 74.08, FuelL: 1.234, FuelPer100Km: 50.388,
			},
			{
				DeviceID: 1, Vehicle: "Van 1", Group: "North", Date: "01/03/2024",
				Start: "11:00:00", End: "11:45:00",
				DurationMs: 45 * 60 * 1000, DistanceKm: 10, AvgSpeedKmh: 20, MaxSpeedKmh: 40,
			},
		},
	}
	for _, r := range van.Rows {
		van.Totals.Add(r)
	}

	truck := types.DeviceReport{
		Device: types.Device{ID: 2, Name: "Truck 2"},
		Rows:   []types.ReportRow{{DeviceID: 2, Vehicle: "Truck 2", Group: "—", Start: "08:00:00", End: "08:10:00", DurationMs: 600000}},
	}
	truck.Totals.Add(truck.Rows[0])

	return Document{
		Range:       rng,
		Devices:     []types.DeviceReport{van, truck},
		GeneratedAt: time.Date(2024, 3, 2, 6, 0, 0, 0, time.UTC),
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in        string
		want      Format
		expectErr bool
	}{
		{in: "", want: FormatXLSX},
		{in: "XLSX", want: FormatXLSX},
		{in: "xml", want: FormatXML},
		{in: " json ", want: FormatJSON},
		{in: "csv", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.expectErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormat_FileName(t *testing.T) {
	if got := FormatXLSX.FileName(); got != "Trip report.xlsx" {
		t.Errorf("xlsx file name = %q", got)
	}
	if got := FormatJSON.FileName(); got != "Trip report.json" {
		t.Errorf("json file name = %q", got)
	}
	if !strings.Contains(FormatXLSX.ContentType(), "spreadsheetml") {
		t.Errorf("unexpected xlsx content type %q", FormatXLSX.ContentType())
	}
}

func TestXLSXWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := (XLSXWriter{}).Write(&buf, testDocument(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != "Trips" {
		t.Fatalf("unexpected sheets %v", sheets)
	}

	get := func(cell string) string {
		t.Helper()
		v, err := f.GetCellValue("Trips", cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s): %v", cell, err)
		}
		return v
	}

	cells := map[string]string{
		"A1": "Véhicule",
		"J1": "tourner au ralenti",
		"P1": "Consommation (L/100)",
		"A2": "Van 1",
		"H2": "Depot",
		"I2": "00:30:00",
		"K2": "00:10:00",
		"L2": "2.5",
		"M2": "37.04",
		"O2": "1.23",
		"P2": "50.39",
		"A3": "Van 1",
		"A4": "",
		"H4": "Totaux et moyennes",
		"I4": "01:15:00",
		"L4": "12.5",
		"M4": "28.52",
		"A5": "",
		"H5": "",
		"A6": "Truck 2",
		"B6": "—",
		"H7": "Totaux et moyennes",
	}
	for cell, want := range cells {
		if got := get(cell); got != want {
			t.Errorf("%s = %q, want %q", cell, got, want)
		}
	}

	width, err := f.GetColWidth("Trips", "H")
	if err != nil {
		t.Fatalf("GetColWidth: %v", err)
	}
	if width != 50 {
		t.Errorf("destination column width = %v, want 50", width)
	}

	plain, _ := f.GetCellStyle("Trips", "H2")
	totals, _ := f.GetCellStyle("Trips", "H4")
	if totals == 0 || totals == plain {
		t.Errorf("totals row should carry its own style, got %d (plain %d)", totals, plain)
	}
}

func TestXMLWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := (XMLWriter{}).Write(&buf, testDocument(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		"<report>",
		`from="2024-03-01T00:00:00Z"`,
		`id="1"`,
		`name="Truck 2"`,
		"<duration>00:30:00</duration>",
		"<destination>Totaux et moyennes</destination>",
		"<generated_at>2024-03-02T06:00:00Z</generated_at>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("XML missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "<trip>"); n != 3 {
		t.Errorf("expected 3 trip elements, got %d", n)
	}
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONWriter{}).Write(&buf, testDocument(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var got jsonDocument
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.From != "2024-03-01T00:00:00Z" || got.To != "2024-03-01T23:59:59Z" {
		t.Errorf("unexpected range %s - %s", got.From, got.To)
	}
	if len(got.Devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(got.Devices))
	}
	van := got.Devices[0]
	if van.ID != 1 || len(van.Trips) != 2 {
		t.Fatalf("unexpected first device %+v", van)
	}
	if van.Trips[0]["distance_km"] != 2.5 {
		t.Errorf("distance_km = %v, want 2.5", van.Trips[0]["distance_km"])
	}
	if van.Totals["destination"] != "Totaux et moyennes" {
		t.Errorf("totals destination = %v", van.Totals["destination"])
	}
	if van.Totals["stopped"] != "00:10:00" {
		t.Errorf("totals stopped = %v", van.Totals["stopped"])
	}
}

func TestWritersSkipEmptyDevices(t *testing.T) {
	doc := testDocument(t)
	doc.Devices = append(doc.Devices, types.DeviceReport{Device: types.Device{ID: 3, Name: "Idle"}})

	var buf bytes.Buffer
	if err := NewWriter(FormatJSON).Write(&buf, doc); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if strings.Contains(buf.String(), `"Idle"`) {
		t.Error("device without rows should not be rendered")
	}
}
