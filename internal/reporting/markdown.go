package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Trend Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Period: %s to %s | Detections: %d", r.FromDate, r.ToDate, len(r.Rows)))
	if r.Duplicates > 0 {
		sb.WriteString(fmt.Sprintf(" | Duplicates dropped: %d", r.Duplicates))
	}
	sb.WriteString("\n\n")

	if len(r.Rows) == 0 {
		sb.WriteString("No detections found for the period.\n")
		return sb.String()
	}

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Offset | Measured | Positive | Mean Gain | Best Gain |\n")
	sb.WriteString("|--------|----------|----------|-----------|-----------|\n")
	for _, s := range Summarize(r) {
		mean, best := "", ""
		if s.Measured > 0 {
			mean = FormatPercent(&s.MeanGain)
			best = FormatPercent(&s.BestGain)
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s | %s |\n", s.Offset, s.Measured, s.Positive, mean, best))
	}
	sb.WriteString("\n")

	// Detections
	sb.WriteString("## Detections\n\n")
	sb.WriteString("| Identifier | Date | Time | Baseline Price | Baseline Market Cap |")
	for _, o := range r.Offsets {
		sb.WriteString(fmt.Sprintf(" Gain %s |", o))
	}
	sb.WriteString("\n|------------|------|------|----------------|---------------------|")
	for range r.Offsets {
		sb.WriteString("------|")
	}
	sb.WriteString("\n")

	for _, row := range r.Rows {
		cells := formatRow(row, len(r.Offsets))
		sb.WriteString("| `" + cells[0] + "` | ")
		sb.WriteString(strings.Join(cells[1:], " | "))
		sb.WriteString(" |\n")
	}

	return sb.String()
}

// Summarize computes per-offset statistics over measured gains.
func Summarize(r *Report) []Summary {
	out := make([]Summary, len(r.Offsets))
	for i, o := range r.Offsets {
		s := Summary{Offset: o}
		var total float64
		for _, row := range r.Rows {
			if i >= len(row.Gains) || row.Gains[i] == nil {
				continue
			}
			g := *row.Gains[i]
			if s.Measured == 0 || g > s.BestGain {
				s.BestGain = g
			}
			s.Measured++
			total += g
			if g > 0 {
				s.Positive++
			}
		}
		if s.Measured > 0 {
			s.MeanGain = total / float64(s.Measured)
		}
		out[i] = s
	}
	return out
}
