package main

import (
	"bytes"
	"context"
	"fmt"
	"runtime"

	"github.com/banshee-data/overlap.report/internal/chart"
	"github.com/banshee-data/overlap.report/internal/classify"
	"github.com/banshee-data/overlap.report/internal/comm"
	"github.com/banshee-data/overlap.report/internal/report"
)

func (a *app) cmdComm(args []string) error {
	c := a.newFlagSet("comm")
	pg := c.fs.String("pg", "", "Only collectives of this process group (name or description)")
	save := c.fs.Bool("save", false, "Write <trace>.comm.tsv to the output directory instead of stdout")

	cfg, err := c.parse(a, args)
	if err != nil {
		return err
	}
	if c.isSet("pg") {
		cfg.ProcessGroup = pg
	}

	files, err := a.loadTraces(cfg)
	if err != nil {
		return err
	}
	filter := comm.CollectiveFilter{ProcessGroup: cfg.GetProcessGroup()}
	for _, f := range files {
		rows, err := comm.ExtractCollectives(f, filter)
		if err != nil {
			return err
		}
		if !*save {
			if err := comm.WriteTSV(a.stdout, rows); err != nil {
				return err
			}
			continue
		}

		var buf bytes.Buffer
		if err := comm.WriteTSV(&buf, rows); err != nil {
			return err
		}
		path, err := outputPathIn(cfg.GetOutputDir(), f.FileName()+".comm.tsv")
		if err != nil {
			return err
		}
		if err := a.fsys.MkdirAll(cfg.GetOutputDir(), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := a.fsys.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintf(a.stderr, "%s: %d collectives -> %s\n", f.FileName(), len(rows), path)
	}
	return nil
}

func (a *app) cmdMultiTrack(args []string) error {
	c := a.newFlagSet("multitrack")
	group := c.fs.String("group", "nccl-kernel", "Spans to draw: preset or name substring")
	title := c.fs.String("title", "", "Chart title (default: Profile)")
	normalize := c.fs.Bool("normalize", true, "Start the time axis at zero")

	cfg, err := c.parse(a, args)
	if err != nil {
		return err
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
	sel := classify.GroupFromFlag(*group)
	tracks := make([]chart.Track, 0, len(files))
	for _, f := range files {
		spans, err := sel.Select(f)
		if err != nil {
			return err
		}
		tracks = append(tracks, chart.Track{File: f, Spans: spans})
	}

	mt, err := chart.MultiTrack(tracks, chart.TimelineOptions{Title: cfg.GetTitle(), NormalizeTime: cfg.GetNormalizeTime()})
	if err != nil {
		return err
	}
	path, err := outputPathIn(cfg.GetOutputDir(), "multitrack.html")
	if err != nil {
		return err
	}
	return chart.WriteHTML(a.fsys, path, mt)
}

func (a *app) cmdMoE(ctx context.Context, args []string) error {
	c := a.newFlagSet("moe")
	ranks := c.fs.Int("ranks", 0, "Number of ranks to scan (default: 8)")
	step := c.fs.Int("step", 0, "Profiled step number (default: 4)")
	prefix := c.fs.String("prefix", "", "Marker name prefix (default: XXXXXXXX:)")
	workers := c.fs.Int("workers", runtime.NumCPU(), "Ranks correlated in parallel")

	cfg, err := c.parse(a, args)
	if err != nil {
		return err
	}
	if c.isSet("ranks") {
		cfg.Ranks = ranks
	}
	if c.isSet("step") {
		cfg.Step = step
	}
	if c.isSet("prefix") {
		cfg.MarkerPrefix = prefix
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	dir := cfg.GetTraceDir()
	if dir == "" {
		return fmt.Errorf("moe needs --dir with trace_rank{N}_step{S}.json files")
	}

	opts := comm.DefaultMarkerOptions()
	opts.Prefix = cfg.GetMarkerPrefix()
	results, err := comm.CorrelateRanks(ctx, a.fsys, dir, cfg.GetRanks(), cfg.GetStep(), *workers, opts)
	if err != nil {
		return err
	}

	if c.json {
		return report.WriteJSON(a.stdout, results)
	}
	for _, r := range results {
		fmt.Fprintf(a.stdout, "rank %d (%s)\n", r.Rank, r.Path)
		for _, l := range r.Layers {
			id := l.ExternalID
			if id == "" {
				id = "-"
			}
			fmt.Fprintf(a.stdout, "  layer %-4s external id %-8s kernels %d params %d\n", l.Layer, id, len(l.Kernels), len(l.Params))
		}
	}
	return nil
}
