package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/clbanning/mxj/v2"
)

// XMLWriter renders the report as
// <report><range/><device id=".."><trip/>..<totals/></device>..</report>.
type XMLWriter struct{}

func (XMLWriter) Write(w io.Writer, doc Document) error {
	devices := make([]any, 0, len(doc.Devices))
	for _, dev := range doc.Devices {
		if len(dev.Rows) == 0 {
			continue
		}
		trips := make([]any, 0, len(dev.Rows))
		for _, r := range dev.Rows {
			trips = append(trips, record(rowValues(r)))
		}
		totals := dev.Totals
		totals.Finalize()

		devices = append(devices, map[string]any{
			"-id":    strconv.FormatInt(dev.Device.ID, 10),
			"-name":  dev.Device.Name,
			"trip":   trips,
			"totals": record(totalsValues(totals)),
		})
	}

	m := mxj.Map{
		"range": map[string]any{
			"-from": doc.Range.FromISO(),
			"-to":   doc.Range.ToISO(),
		},
		"generated_at": doc.GeneratedAt.UTC().Format(time.RFC3339),
		"device":       devices,
	}

	out, err := m.XmlIndent("", "  ", "report")
	if err != nil {
		return fmt.Errorf("failed to encode XML report: %w", err)
	}
	if _, err := io.WriteString(w, xmlHeader); err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
