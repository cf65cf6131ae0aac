package main

import (
	"context"
	"fmt"

	"github.com/banshee-data/overlap.report/internal/chart"
	"github.com/banshee-data/overlap.report/internal/classify"
	"github.com/banshee-data/overlap.report/internal/interval"
	"github.com/banshee-data/overlap.report/internal/report"
	"github.com/banshee-data/overlap.report/internal/trace"
)

func (a *app) cmdOverlap(ctx context.Context, args []string) error {
	c := a.newFlagSet("overlap")
	groupA := c.fs.String("a", "", "Group A: preset or name substring (default: compute)")
	groupB := c.fs.String("b", "", "Group B: preset or name substring (default: comm)")
	title := c.fs.String("title", "", "Chart title (default: Profile)")
	normalize := c.fs.Bool("normalize", true, "Start the chart time axis at zero")
	noHTML := c.fs.Bool("no-html", false, "Skip the HTML timeline")
	memory := c.fs.Bool("memory", false, "Overlay the allocated/reserved memory ratio")
	full := c.fs.Bool("full", false, "Include every interval in JSON output")

	cfg, err := c.parse(a, args)
	if err != nil {
		return err
	}
	if c.isSet("a") {
		g := classify.GroupFromFlag(*groupA)
		cfg.GroupA = &g
	}
	if c.isSet("b") {
		g := classify.GroupFromFlag(*groupB)
		cfg.GroupB = &g
	}
	if c.isSet("title") {
		cfg.Title = title
	}
	if c.isSet("normalize") {
		cfg.NormalizeTime = normalize
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

	selA, selB := cfg.GetGroupA(), cfg.GetGroupB()
	var summaries []report.OverlapSummary
	for _, f := range files {
		eventsA, err := selA.Select(f)
		if err != nil {
			return fmt.Errorf("group A: %w", err)
		}
		eventsB, err := selB.Select(f)
		if err != nil {
			return fmt.Errorf("group B: %w", err)
		}

		res := interval.ComputeOverlap(f.Events, eventsA, eventsB)
		sum := report.SummarizeOverlap(f.FileName(), selA.Name, selB.Name, res)

		if !*noHTML {
			o := chart.TimelineOptions{Title: cfg.GetTitle(), NormalizeTime: cfg.GetNormalizeTime()}
			if *memory {
				if o.Memory, err = memoryEvents(memoryGroup, f); err != nil {
					return err
				}
			}
			if err := a.writeOverlapChart(cfg.GetOutputDir(), f, res, o); err != nil {
				return err
			}
		}
		if store != nil {
			id, err := store.RecordOverlap(ctx, sum)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "recorded run %s\n", id)
		}

		if *full {
			sum.Result = &res
		}
		summaries = append(summaries, sum)
	}

	if c.json {
		return report.WriteJSON(a.stdout, summaries)
	}
	for _, s := range summaries {
		if err := report.WriteOverlap(a.stdout, s); err != nil {
			return err
		}
	}
	return nil
}

// memoryGroup selects the allocator samples drawn under --memory.
var memoryGroup = classify.PresetGroup("memory")

func memoryEvents(g classify.Group, f *trace.File) ([]trace.Event, error) {
	events, err := g.Select(f)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}
	return events, nil
}

func (a *app) writeOverlapChart(outDir string, f *trace.File, res interval.OverlapResult, o chart.TimelineOptions) error {
	path, err := outputPathIn(outDir, f.FileName()+".overlap.html")
	if err != nil {
		return err
	}
	return chart.WriteHTML(a.fsys, path, chart.OverlapTimeline(res, o))
}
