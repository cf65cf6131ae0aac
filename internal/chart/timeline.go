package chart

import (
	"math"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/overlap.report/internal/interval"
	"github.com/banshee-data/overlap.report/internal/trace"
)

// Row colours of the overlap timeline.
const (
	colorA       = "#74d5d8"
	colorB       = "#9774d8"
	colorOverlap = "#9c24af"
	colorMemory  = "#ff7f50"
)

// Memory event argument keys.
const (
	argAllocated = "Total Allocated"
	argReserved  = "Total Reserved"
)

// TimelineOptions controls how an overlap result is drawn.
type TimelineOptions struct {
	Title string
	// NormalizeTime shifts the x axis so the trace window starts at zero.
	NormalizeTime bool
	// Memory events, when present, are drawn as the allocated/reserved
	// ratio on a secondary axis.
	Memory []trace.Event
}

// OverlapRows are the y-axis labels of the overlap timeline.
var OverlapRows = []string{"A", "B", "Overlap"}

// OverlapTimeline draws the named segments of both groups and their overlap
// on three rows.
func OverlapTimeline(res interval.OverlapResult, o TimelineOptions) *charts.Custom {
	axis := newTimeAxis(res.MinTs, res.MaxTe, o.NormalizeTime)

	c := charts.NewCustom()
	c.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.Title, Width: "100%", Height: "480px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: o.Title, Subtitle: overlapSubtitle(res), Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item", Formatter: opts.FuncOpts(spanTooltip)}),
		charts.WithXAxisOpts(axis.xAxis()),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: OverlapRows}),
		charts.WithDataZoomOpts(zoomOpts()...),
		charts.WithGridOpts(opts.Grid{Height: "300px"}),
	)
	c.AddSeries("spans", overlapData(res, axis),
		charts.WithCustomChartOpts(opts.CustomChart{RenderItem: opts.FuncOpts(renderSpan)}),
		charts.WithEncodeOpts(opts.Encode{X: []int{1, 2}, Y: 0}),
		charts.WithItemStyleOpts(opts.ItemStyle{Opacity: opts.Float(0.8)}),
	)

	if mem := memoryData(o.Memory, axis); len(mem) > 0 {
		c.ExtendYAxis(opts.YAxis{Type: "value", Name: "allocated / reserved", Min: 0, Max: 1, Position: "right"})
		line := charts.NewLine()
		line.AddSeries("Memory Trace", mem,
			charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1, ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorMemory}),
		)
		c.Overlap(line)
	}
	return c
}

func overlapSubtitle(res interval.OverlapResult) string {
	return "overlap " + formatPercent(res.Rate) + " of " + formatMicros(res.TotalSpan)
}

func overlapData(res interval.OverlapResult, axis timeAxis) []opts.CustomData {
	data := make([]opts.CustomData, 0, len(res.SegmentsA)+len(res.SegmentsB)+len(res.OverlapIntervals))
	for _, seg := range res.SegmentsA {
		data = append(data, spanData(0, seg.Label(), axis.at(seg.Interval.Start), axis.at(seg.Interval.End), colorA))
	}
	for _, seg := range res.SegmentsB {
		data = append(data, spanData(1, seg.Label(), axis.at(seg.Interval.Start), axis.at(seg.Interval.End), colorB))
	}
	for _, iv := range res.OverlapIntervals {
		data = append(data, spanData(2, OverlapRows[2], axis.at(iv.Start), axis.at(iv.End), colorOverlap))
	}
	return data
}

// memoryData returns [time, allocated/reserved] points in time order,
// skipping samples without a finite timestamp or a positive reservation.
func memoryData(events []trace.Event, axis timeAxis) []opts.LineData {
	type sample struct{ ts, ratio float64 }
	samples := make([]sample, 0, len(events))
	for _, e := range events {
		alloc, okA := e.Arg(argAllocated).(float64)
		reserved, okR := e.Arg(argReserved).(float64)
		if !okA || !okR || !(reserved > 0) || math.IsNaN(e.Start) || math.IsInf(e.Start, 0) {
			continue
		}
		samples = append(samples, sample{ts: e.Start, ratio: alloc / reserved})
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].ts < samples[j].ts })

	data := make([]opts.LineData, 0, len(samples))
	for _, s := range samples {
		data = append(data, opts.LineData{Value: []interface{}{axis.at(s.ts), s.ratio}})
	}
	return data
}
