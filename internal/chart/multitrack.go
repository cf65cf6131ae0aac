package chart

import (
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/overlap.report/internal/trace"
)

// Track is one row of a multi-track timeline: the events selected from a
// single trace file.
type Track struct {
	File  *trace.File
	Spans []trace.Event
}

// Label returns the row label, the trace's base name.
func (t Track) Label() string {
	if t.File == nil {
		return "Unknown"
	}
	return t.File.FileName()
}

// MultiTrack lines up the selected spans of several traces, one row per
// trace. The time window covers every valid event of every trace. A
// selected span without a positive finite duration is an error.
func MultiTrack(tracks []Track, o TimelineOptions) (*charts.Custom, error) {
	minTs, maxTe, ok := tracksSpan(tracks)
	if !ok {
		minTs, maxTe = 0, 0
	}
	axis := newTimeAxis(minTs, maxTe, o.NormalizeTime)

	rows := make([]string, len(tracks))
	colors := rowColors(len(tracks))
	var data []opts.CustomData
	for i, t := range tracks {
		rows[i] = t.Label()
		for _, e := range t.Spans {
			if !e.Valid() {
				return nil, fmt.Errorf("invalid span event %q in %s: missing or invalid ts/dur", e.Name, rows[i])
			}
			data = append(data, spanData(i, e.Name, axis.at(e.Start), axis.at(e.End()), colors[i]))
		}
	}

	c := charts.NewCustom()
	c.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.Title, Width: "100%", Height: fmt.Sprintf("%dpx", 200+40*len(tracks)), AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: o.Title, Subtitle: fmt.Sprintf("%d traces, %d spans", len(tracks), len(data)), Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item", Formatter: opts.FuncOpts(spanTooltip)}),
		charts.WithXAxisOpts(axis.xAxis()),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: rows}),
		charts.WithDataZoomOpts(zoomOpts()...),
	)
	c.AddSeries("spans", data,
		charts.WithCustomChartOpts(opts.CustomChart{RenderItem: opts.FuncOpts(renderSpan)}),
		charts.WithEncodeOpts(opts.Encode{X: []int{1, 2}, Y: 0}),
		charts.WithItemStyleOpts(opts.ItemStyle{Opacity: opts.Float(0.8)}),
	)
	return c, nil
}

func tracksSpan(tracks []Track) (minTs, maxTe float64, ok bool) {
	for _, t := range tracks {
		if t.File == nil {
			continue
		}
		lo, hi, found := t.File.Span()
		if !found {
			continue
		}
		if !ok || lo < minTs {
			minTs = lo
		}
		if !ok || hi > maxTe {
			maxTe = hi
		}
		ok = true
	}
	return minTs, maxTe, ok
}
