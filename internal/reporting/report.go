package reporting

import "time"

// Report is the gain summary for detections within a date range.
type Report struct {
	GeneratedAt time.Time
	FromDate    string   // YYYY-MM-DD, inclusive
	ToDate      string   // YYYY-MM-DD, inclusive
	Offsets     []string // offset names, in column order

	// Rows ordered by detection date and time DESC, one per
	// (identifier, date, time).
	Rows []Row

	// Duplicates counts records dropped by the (identifier, date, time) dedup.
	Duplicates int
}

// Row is one detection in the report.
type Row struct {
	Identifier        string
	Date              string
	Time              string
	BaselinePrice     float64
	BaselineMarketCap float64
	// Gains holds one entry per Report.Offsets; nil means not measured.
	Gains []*float64
}

// Summary aggregates per-offset gains over measured rows.
type Summary struct {
	Offset   string
	Measured int
	Positive int
	MeanGain float64
	BestGain float64
}

// FileName returns the report file name for the generation date,
// e.g. report_20250105.csv.
func FileName(generatedAt time.Time, ext string) string {
	return "report_" + generatedAt.Format("20060102") + "." + ext
}
