package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/banshee-data/overlap.report/internal/report"
	"github.com/banshee-data/overlap.report/internal/runstore"
)

func (a *app) cmdHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	db := fs.String("db", "", "Run history database (required)")
	kind := fs.String("kind", "", "Only runs of this kind (overlap or stats)")
	tr := fs.String("trace", "", "Only runs of this trace file name")
	limit := fs.Int("limit", 20, "Maximum runs to list (0 for all)")
	asJSON := fs.Bool("json", false, "Print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *db == "" {
		return fmt.Errorf("--db is required")
	}
	if *kind != "" && *kind != runstore.KindOverlap && *kind != runstore.KindStats {
		return fmt.Errorf("unknown run kind %q", *kind)
	}

	store, err := runstore.Open(*db)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, runstore.ListOptions{Kind: *kind, Trace: *tr, Limit: *limit})
	if err != nil {
		return err
	}
	if *asJSON {
		return report.WriteJSON(a.stdout, runs)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RUN", "WHEN", "KIND", "TRACE", "GROUPS", "RESULT")
	for _, r := range runs {
		t.Row(r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Kind, r.Trace, groups(r), headline(r))
	}
	_, err = fmt.Fprintln(a.stdout, t.String())
	return err
}

func groups(r runstore.Run) string {
	if r.GroupB == "" {
		return r.GroupA
	}
	return r.GroupA + " / " + r.GroupB
}

func headline(r runstore.Run) string {
	switch {
	case r.Overlap != nil:
		return fmt.Sprintf("rate %.2f%% of %.3f us", r.Overlap.Rate*100, r.Overlap.TotalSpan)
	case r.Stats != nil && r.Stats.Stats != nil:
		return fmt.Sprintf("n=%d p50 %.3f us p95 %.3f us", r.Stats.Stats.Count, r.Stats.Stats.P50, r.Stats.Stats.P95)
	default:
		return "no matching events"
	}
}
