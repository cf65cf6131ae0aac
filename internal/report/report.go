// Package report renders overlap and duration results for people (styled
// terminal text) and for tools (JSON).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/banshee-data/overlap.report/internal/durstats"
	"github.com/banshee-data/overlap.report/internal/interval"
)

// OverlapSummary is the headline of one overlap analysis.
type OverlapSummary struct {
	Trace        string  `json:"trace"`
	GroupA       string  `json:"group_a"`
	GroupB       string  `json:"group_b"`
	Rate         float64 `json:"rate"`
	OverlapTotal float64 `json:"overlap_total"`
	TotalSpan    float64 `json:"total_span"`
	CoverageA    float64 `json:"coverage_a"`
	CoverageB    float64 `json:"coverage_b"`
	MinTs        float64 `json:"min_ts"`
	MaxTe        float64 `json:"max_te"`
	SegmentsA    int     `json:"segments_a"`
	SegmentsB    int     `json:"segments_b"`
	Intervals    int     `json:"overlap_intervals"`

	// Result is the full interval detail; only written when requested.
	Result *interval.OverlapResult `json:"result,omitempty"`
}

// SummarizeOverlap condenses res into an OverlapSummary.
func SummarizeOverlap(trace, groupA, groupB string, res interval.OverlapResult) OverlapSummary {
	return OverlapSummary{
		Trace:        trace,
		GroupA:       groupA,
		GroupB:       groupB,
		Rate:         res.Rate,
		OverlapTotal: res.OverlapTotal,
		TotalSpan:    res.TotalSpan,
		CoverageA:    res.CoverageA(),
		CoverageB:    res.CoverageB(),
		MinTs:        res.MinTs,
		MaxTe:        res.MaxTe,
		SegmentsA:    len(res.SegmentsA),
		SegmentsB:    len(res.SegmentsB),
		Intervals:    len(res.OverlapIntervals),
	}
}

// StatsSummary is the duration distribution of one selection. Stats is nil
// when nothing matched.
type StatsSummary struct {
	Trace string          `json:"trace"`
	Group string          `json:"group"`
	Stats *durstats.Stats `json:"stats"`
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteOverlap writes a terminal summary of an overlap analysis.
func WriteOverlap(w io.Writer, s OverlapSummary) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render(s.Trace) + "\n")
	if s.Intervals == 0 && (s.SegmentsA == 0 || s.SegmentsB == 0 || !(s.TotalSpan > 0)) {
		b.WriteString(warnStyle.Render("no overlap: a group is empty or the trace has no time span") + "\n")
	}
	rows := [][2]string{
		{"overlap rate", rateStyle.Render(percent(s.Rate))},
		{"overlap time", micros(s.OverlapTotal)},
		{"trace span", micros(s.TotalSpan)},
		{"coverage " + s.GroupA, groupAStyle.Render(percent(s.CoverageA))},
		{"coverage " + s.GroupB, groupBStyle.Render(percent(s.CoverageB))},
		{"segments", fmt.Sprintf("%s / %s", groupAStyle.Render(fmt.Sprint(s.SegmentsA)), groupBStyle.Render(fmt.Sprint(s.SegmentsB)))},
		{"overlap intervals", fmt.Sprint(s.Intervals)},
	}
	writeRows(&b, rows)
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteStats writes a terminal summary of a duration distribution.
func WriteStats(w io.Writer, s StatsSummary) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s: %s", s.Trace, s.Group)) + "\n")
	if s.Stats == nil {
		b.WriteString(warnStyle.Render("no matching events with a finite duration") + "\n")
		_, err := io.WriteString(w, b.String())
		return err
	}
	st := s.Stats
	writeRows(&b, [][2]string{
		{"count", fmt.Sprint(st.Count)},
		{"total", micros(st.Total)},
		{"min", micros(st.Min)},
		{"p5", micros(st.P5)},
		{"p10", micros(st.P10)},
		{"p50", micros(st.P50)},
		{"p90", micros(st.P90)},
		{"p95", micros(st.P95)},
		{"max", micros(st.Max)},
		{"mean", micros(st.Mean)},
		{"stddev", micros(st.StdDev)},
	})
	_, err := io.WriteString(w, b.String())
	return err
}

func writeRows(b *strings.Builder, rows [][2]string) {
	width := 0
	for _, r := range rows {
		width = max(width, lipgloss.Width(r[0]))
	}
	for _, r := range rows {
		pad := strings.Repeat(" ", width-lipgloss.Width(r[0]))
		b.WriteString("  " + labelStyle.Render(r[0]) + pad + "  " + r[1] + "\n")
	}
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func micros(us float64) string {
	return fmt.Sprintf("%.3f us", us)
}
