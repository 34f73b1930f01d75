package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// JSONWriter renders the same display values as the spreadsheet, grouped
// per device.
type JSONWriter struct{}

type jsonDocument struct {
	From        string       `json:"from"`
	To          string       `json:"to"`
	GeneratedAt string       `json:"generated_at"`
	Devices     []jsonDevice `json:"devices"`
}

type jsonDevice struct {
	ID     int64            `json:"id"`
	Name   string           `json:"name"`
	Trips  []map[string]any `json:"trips"`
	Totals map[string]any   `json:"totals"`
}

func (JSONWriter) Write(w io.Writer, doc Document) error {
	out := jsonDocument{
		From:        doc.Range.FromISO(),
		To:          doc.Range.ToISO(),
		GeneratedAt: doc.GeneratedAt.UTC().Format(time.RFC3339),
		Devices:     make([]jsonDevice, 0, len(doc.Devices)),
	}
	for _, dev := range doc.Devices {
		if len(dev.Rows) == 0 {
			continue
		}
		jd := jsonDevice{
			ID:    dev.Device.ID,
			Name:  dev.Device.Name,
			Trips: make([]map[string]any, 0, len(dev.Rows)),
		}
		for _, r := range dev.Rows {
			jd.Trips = append(jd.Trips, record(rowValues(r)))
		}
		totals := dev.Totals
		totals.Finalize()
		jd.Totals = record(totalsValues(totals))
		out.Devices = append(out.Devices, jd)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return nil
}
