// Package chart renders analysis results: interactive go-echarts timelines
// written as standalone HTML, and gonum/plot PNG histograms.
package chart

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/overlap.report/internal/fsutil"
	"github.com/banshee-data/overlap.report/internal/monitoring"
)

// AssetsHost is where the rendered pages load the echarts script from.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Renderer is satisfied by every go-echarts chart and page.
type Renderer interface {
	Render(w io.Writer) error
}

// renderSpan draws each data item [row, start, end, duration] as a bar
// clipped to the plotting area.
const renderSpan = `function (params, api) {
	var row = api.value(0);
	var start = api.coord([api.value(1), row]);
	var end = api.coord([api.value(2), row]);
	var height = api.size([0, 1])[1] * 0.6;
	var shape = echarts.graphic.clipRectByRect({
		x: start[0], y: start[1] - height / 2, width: Math.max(end[0] - start[0], 1), height: height
	}, {
		x: params.coordSys.x, y: params.coordSys.y, width: params.coordSys.width, height: params.coordSys.height
	});
	return shape && {type: 'rect', transition: ['shape'], shape: shape, style: api.style()};
}`

// spanTooltip shows the segment label and its extent.
const spanTooltip = `function (p) {
	if (p.seriesType !== 'custom') {
		return p.marker + p.seriesName + ': ' + p.value[1].toFixed(3);
	}
	return p.marker + p.name + '<br/>' + p.value[1].toFixed(3) + ' - ' + p.value[2].toFixed(3) + ' (' + p.value[3].toFixed(3) + ' us)';
}`

// timeAxis maps trace timestamps onto the chart's x axis.
type timeAxis struct {
	origin float64
	min    float64
	max    float64
}

func newTimeAxis(minTs, maxTe float64, normalize bool) timeAxis {
	if normalize {
		return timeAxis{origin: minTs, min: 0, max: maxTe - minTs}
	}
	return timeAxis{min: minTs, max: maxTe}
}

func (a timeAxis) at(ts float64) float64 {
	return ts - a.origin
}

func (a timeAxis) xAxis() opts.XAxis {
	return opts.XAxis{Type: "value", Name: "time (us)", Min: a.min, Max: a.max, Scale: opts.Bool(true)}
}

func spanData(row int, label string, start, end float64, color string) opts.CustomData {
	return opts.CustomData{
		Name:      label,
		Value:     []interface{}{row, start, end, end - start},
		ItemStyle: &opts.ItemStyle{Color: color},
	}
}

func zoomOpts() []opts.DataZoom {
	return []opts.DataZoom{
		{Type: "slider", XAxisIndex: 0},
		{Type: "inside", XAxisIndex: 0},
	}
}

// WriteHTML renders r and writes it to path, creating parent directories.
func WriteHTML(fsys fsutil.FileSystem, path string, r Renderer) error {
	var buf bytes.Buffer
	if err := r.Render(&buf); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return writeFile(fsys, path, buf.Bytes())
}

func writeFile(fsys fsutil.FileSystem, path string, data []byte) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := fsys.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	monitoring.Logf("wrote %s (%d bytes)", path, len(data))
	return nil
}

// rowColors returns n colours with hues spread evenly around the wheel.
func rowColors(n int) []string {
	colors := make([]string, n)
	for i := range colors {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.55, 0.6)
		colors[i] = fmt.Sprintf("#%02x%02x%02x", r, g, b)
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return channel(p, q, h+1.0/3.0), channel(p, q, h), channel(p, q, h-1.0/3.0)
}

func channel(p, q, t float64) uint8 {
	t -= math.Floor(t)
	var v float64
	switch {
	case t < 1.0/6.0:
		v = p + (q-p)*6*t
	case t < 0.5:
		v = q
	case t < 2.0/3.0:
		v = p + (q-p)*(2.0/3.0-t)*6
	default:
		v = p
	}
	return uint8(math.Round(v * 255))
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func formatMicros(us float64) string {
	return fmt.Sprintf("%.3f ms", us/1000)
}
