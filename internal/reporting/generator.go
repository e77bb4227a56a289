package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"solana-trend-monitor/internal/domain"
	"solana-trend-monitor/internal/storage"
)

// Generator produces gain reports from stored tracking records.
type Generator struct {
	store   storage.TrackingStore
	offsets []string
	loc     *time.Location
	now     func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator with one gain column per offset.
func NewGenerator(store storage.TrackingStore, offsets []domain.Offset) *Generator {
	names := make([]string, len(offsets))
	for i, o := range offsets {
		names[i] = o.Name
	}
	return &Generator{
		store:   store,
		offsets: names,
		loc:     time.Local,
		now:     time.Now,
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithLocation sets the zone that date boundaries are evaluated in.
func (g *Generator) WithLocation(loc *time.Location) *Generator {
	if loc != nil {
		g.loc = loc
	}
	return g
}

// LastDays returns the range covering today and the preceding days.
func (g *Generator) LastDays(days int) (from, to time.Time) {
	to = g.now().In(g.loc)
	return to.AddDate(0, 0, -days), to
}

// Generate builds a report for detections dated from..to inclusive.
// Only the calendar date of from and to is used.
func (g *Generator) Generate(ctx context.Context, from, to time.Time) (*Report, error) {
	start := startOfDay(from.In(g.loc))
	end := startOfDay(to.In(g.loc)).AddDate(0, 0, 1)
	if end.Before(start) || end.Equal(start) {
		return nil, fmt.Errorf("invalid range: %s is after %s",
			start.Format(domain.DateLayout), to.In(g.loc).Format(domain.DateLayout))
	}

	records, err := g.store.GetByDetectionRange(ctx, start.UnixMilli(), end.UnixMilli()-1)
	if err != nil {
		return nil, fmt.Errorf("load tracking records: %w", err)
	}

	report := &Report{
		GeneratedAt: g.now(),
		FromDate:    start.Format(domain.DateLayout),
		ToDate:      to.In(g.loc).Format(domain.DateLayout),
		Offsets:     g.offsets,
	}

	type rowKey struct{ identifier, date, clock string }
	seen := make(map[rowKey]struct{}, len(records))

	// Records arrive newest first, so the latest record wins a duplicate key.
	for _, rec := range records {
		k := rowKey{rec.Identifier, rec.DetectionDate, rec.DetectionTime}
		if _, dup := seen[k]; dup {
			report.Duplicates++
			continue
		}
		seen[k] = struct{}{}
		report.Rows = append(report.Rows, g.row(rec))
	}
	return report, nil
}

func (g *Generator) row(rec *domain.TrackingRecord) Row {
	row := Row{
		Identifier:        rec.Identifier,
		Date:              rec.DetectionDate,
		Time:              rec.DetectionTime,
		BaselinePrice:     rec.BaselinePrice,
		BaselineMarketCap: rec.BaselineMarketCap,
		Gains:             make([]*float64, len(g.offsets)),
	}
	for i, name := range g.offsets {
		if s := rec.Sample(name); s != nil {
			gain := s.GainPct
			row.Gains[i] = &gain
		}
	}
	return row
}

// WriteFiles renders the report as CSV, Markdown and XLSX into dir and
// returns the written paths.
func WriteFiles(dir string, r *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	csvContent, err := RenderCSV(r)
	if err != nil {
		return nil, fmt.Errorf("render csv: %w", err)
	}
	csvPath := filepath.Join(dir, FileName(r.GeneratedAt, "csv"))
	if err := os.WriteFile(csvPath, []byte(csvContent), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", csvPath, err)
	}

	mdPath := filepath.Join(dir, FileName(r.GeneratedAt, "md"))
	if err := os.WriteFile(mdPath, []byte(RenderMarkdown(r)), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", mdPath, err)
	}

	xlsxPath := filepath.Join(dir, FileName(r.GeneratedAt, "xlsx"))
	if err := WriteXLSX(xlsxPath, r); err != nil {
		return nil, fmt.Errorf("write %s: %w", xlsxPath, err)
	}

	return []string{csvPath, mdPath, xlsxPath}, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
