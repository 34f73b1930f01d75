package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Trips"

// XLSXWriter writes the report as a single "Trips" worksheet. Every device
// contributes its trip rows, a shaded totals row and one blank row.
type XLSXWriter struct{}

func (XLSXWriter) Write(w io.Writer, doc Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c.Header
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, col, col, c.Width); err != nil {
			return fmt.Errorf("failed to set width of column %s: %w", col, err)
		}
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	totalsStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F2F2F2"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create totals style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(columns))
	if err != nil {
		return err
	}

	rowNum := 2
	for _, dev := range doc.Devices {
		if len(dev.Rows) == 0 {
			continue
		}
		for _, r := range dev.Rows {
			values := rowValues(r)
			if err := f.SetSheetRow(sheetName, cell(1, rowNum), &values); err != nil {
				return fmt.Errorf("failed to write row %d: %w", rowNum, err)
			}
			rowNum++
		}

		totals := dev.Totals
		totals.Finalize()
		values := totalsValues(totals)
		if err := f.SetSheetRow(sheetName, cell(1, rowNum), &values); err != nil {
			return fmt.Errorf("failed to write totals row %d: %w", rowNum, err)
		}
		if err := f.SetCellStyle(sheetName, cell(1, rowNum), fmt.Sprintf("%s%d", lastCol, rowNum), totalsStyle); err != nil {
			return fmt.Errorf("failed to style totals row %d: %w", rowNum, err)
		}
		// blank separator
		rowNum += 2
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
