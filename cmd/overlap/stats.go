package main

import (
	"context"
	"fmt"

	"github.com/banshee-data/overlap.report/internal/chart"
	"github.com/banshee-data/overlap.report/internal/classify"
	"github.com/banshee-data/overlap.report/internal/durstats"
	"github.com/banshee-data/overlap.report/internal/report"
)

func (a *app) cmdStats(ctx context.Context, args []string) error {
	c := a.newFlagSet("stats")
	name := c.fs.String("name", "", "Select events with exactly this name")
	group := c.fs.String("group", "", "Select a preset or name substring (default: config group_a)")
	png := c.fs.Bool("png", false, "Write a duration histogram PNG")
	bins := c.fs.Int("bins", 0, "Histogram bins (default: 50)")

	cfg, err := c.parse(a, args)
	if err != nil {
		return err
	}
	if c.isSet("bins") {
		cfg.HistogramBins = bins
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	sel := cfg.GetGroupA()
	switch {
	case *name != "":
		sel = classify.NamedGroup(*name)
	case *group != "":
		sel = classify.GroupFromFlag(*group)
	}
	pred, err := sel.Predicate()
	if err != nil {
		return err
	}

	files, err := a.loadTraces(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	summaries := make([]report.StatsSummary, 0, len(files))
	for _, f := range files {
		durations := durstats.Durations(f.Events, pred)
		sum := report.StatsSummary{Trace: f.FileName(), Group: sel.Name}
		if st, ok := durstats.FromDurations(durations); ok {
			sum.Stats = &st
		}

		if *png && sum.Stats != nil {
			p, err := chart.DurationHistogram(durations, chart.HistogramOptions{Title: sel.Name, Bins: cfg.GetHistogramBins()})
			if err != nil {
				return err
			}
			path, err := outputPathIn(cfg.GetOutputDir(), f.FileName()+"."+sel.Name+".hist.png")
			if err != nil {
				return err
			}
			if err := chart.WritePNG(a.fsys, path, p); err != nil {
				return err
			}
		}
		if store != nil {
			id, err := store.RecordStats(ctx, sum)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "recorded run %s\n", id)
		}
		summaries = append(summaries, sum)
	}

	if c.json {
		return report.WriteJSON(a.stdout, summaries)
	}
	for _, s := range summaries {
		if err := report.WriteStats(a.stdout, s); err != nil {
			return err
		}
	}
	return nil
}
