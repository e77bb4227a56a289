package reporting

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// RenderCSV renders report rows as CSV with formatted values.
func RenderCSV(r *Report) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header(r.Offsets)); err != nil {
		return "", err
	}

	for _, row := range r.Rows {
		if err := w.Write(formatRow(row, len(r.Offsets))); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// header returns the column names shared by the CSV and XLSX renderers.
func header(offsets []string) []string {
	cols := []string{"identifier", "date", "time", "baseline_price", "baseline_market_cap"}
	for _, o := range offsets {
		cols = append(cols, fmt.Sprintf("gain_%s_pct", o))
	}
	return cols
}

func formatRow(row Row, offsets int) []string {
	rec := []string{
		row.Identifier,
		row.Date,
		row.Time,
		FormatUSD(row.BaselinePrice, 6),
		FormatUSD(row.BaselineMarketCap, 2),
	}
	for i := 0; i < offsets; i++ {
		var g *float64
		if i < len(row.Gains) {
			g = row.Gains[i]
		}
		rec = append(rec, FormatPercent(g))
	}
	return rec
}
