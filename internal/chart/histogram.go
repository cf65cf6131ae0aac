package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/overlap.report/internal/durstats"
	"github.com/banshee-data/overlap.report/internal/fsutil"
)

// ErrNoDurations is returned when a histogram is requested for an empty
// sample.
var ErrNoDurations = errors.New("no durations to plot")

// HistogramOptions controls the duration histogram.
type HistogramOptions struct {
	Title string
	Bins  int
}

// DurationHistogram bins a duration sample and marks its P50 and P95.
func DurationHistogram(durations []float64, o HistogramOptions) (*plot.Plot, error) {
	if len(durations) == 0 {
		return nil, ErrNoDurations
	}
	bins := o.Bins
	if bins < 1 {
		bins = 1
	}

	p := plot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = "Duration (us)"
	p.Y.Label.Text = "Events"

	h, err := plotter.NewHist(plotter.Values(durations), bins)
	if err != nil {
		return nil, fmt.Errorf("failed to bin durations: %w", err)
	}
	h.FillColor = color.RGBA{R: 0x97, G: 0x74, B: 0xd8, A: 0xff}
	p.Add(h)

	if stats, ok := durstats.FromDurations(durations); ok {
		top := 0.0
		for _, b := range h.Bins {
			top = max(top, b.Weight)
		}
		for _, m := range []struct {
			name  string
			value float64
			color color.Color
		}{
			{"P50", stats.P50, color.RGBA{R: 0x74, G: 0xd5, B: 0xd8, A: 0xff}},
			{"P95", stats.P95, color.RGBA{R: 0xff, G: 0x7f, B: 0x50, A: 0xff}},
		} {
			line, err := plotter.NewLine(plotter.XYs{{X: m.value, Y: 0}, {X: m.value, Y: top}})
			if err != nil {
				return nil, fmt.Errorf("failed to mark %s: %w", m.name, err)
			}
			line.Color = m.color
			line.Width = vg.Points(1.5)
			p.Add(line)
			p.Legend.Add(fmt.Sprintf("%s %.3f", m.name, m.value), line)
		}
	}
	return p, nil
}

// WritePNG encodes p as a PNG and writes it to path.
func WritePNG(fsys fsutil.FileSystem, path string, p *plot.Plot) error {
	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to encode plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to encode plot: %w", err)
	}
	return writeFile(fsys, path, buf.Bytes())
}
