package reporting

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the XLSX report.
const (
	DetectionsSheet = "Detections"
	SummarySheet    = "Summary"
)

// RenderXLSX builds a workbook with a Detections sheet holding the same
// formatted columns as the CSV and a Summary sheet with per-offset totals.
// The caller must Close the returned file.
func RenderXLSX(r *Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := fillXLSX(f, r); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func fillXLSX(f *excelize.File, r *Report) error {
	if err := f.SetSheetName(f.GetSheetName(0), DetectionsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	rows := [][]string{header(r.Offsets)}
	for _, row := range r.Rows {
		rows = append(rows, formatRow(row, len(r.Offsets)))
	}
	if err := writeSheet(f, DetectionsSheet, rows, bold); err != nil {
		return err
	}
	if err := f.SetColWidth(DetectionsSheet, "A", "A", 48); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(DetectionsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	summary := [][]string{{"offset", "measured", "positive", "mean_gain_pct", "best_gain_pct"}}
	for _, s := range Summarize(r) {
		mean, best := "", ""
		if s.Measured > 0 {
			mean = FormatPercent(&s.MeanGain)
			best = FormatPercent(&s.BestGain)
		}
		summary = append(summary, []string{
			s.Offset, strconv.Itoa(s.Measured), strconv.Itoa(s.Positive), mean, best,
		})
	}
	return writeSheet(f, SummarySheet, summary, bold)
}

// writeSheet writes rows from A1 and styles the first row.
func writeSheet(f *excelize.File, sheet string, rows [][]string, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}

// WriteXLSX renders r and saves it to path.
func WriteXLSX(path string, r *Report) error {
	f, err := RenderXLSX(r)
	if err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		_ = f.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	return f.Close()
}
