// Package durstats summarises the duration distribution of a selected
// subset of trace events.
package durstats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/overlap.report/internal/trace"
)

// Stats holds nearest-rank percentiles and extrema of a duration sample.
type Stats struct {
	Max float64 `json:"max"`
	Min float64 `json:"min"`
	P95 float64 `json:"p95"`
	P90 float64 `json:"p90"`
	P50 float64 `json:"p50"`
	P10 float64 `json:"p10"`
	P5  float64 `json:"p5"`

	Count  int     `json:"count"`
	Total  float64 `json:"total"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// Durations returns the finite durations of events matching pred, in input
// order. A nil pred selects everything.
func Durations(events []trace.Event, pred trace.Predicate) []float64 {
	out := make([]float64, 0)
	for _, e := range events {
		if !e.HasFiniteDuration() {
			continue
		}
		if pred != nil && !pred(e) {
			continue
		}
		out = append(out, e.Duration)
	}
	return out
}

// Aggregate computes Stats over the finite durations of events matching
// pred. ok is false when nothing matched.
func Aggregate(events []trace.Event, pred trace.Predicate) (Stats, bool) {
	return FromDurations(Durations(events, pred))
}

// FromDurations computes Stats over a raw sample. The sample is not modified.
func FromDurations(durations []float64) (Stats, bool) {
	n := len(durations)
	if n == 0 {
		return Stats{}, false
	}

	sorted := make([]float64, n)
	copy(sorted, durations)
	sort.Float64s(sorted)

	s := Stats{
		Max:   floats.Max(sorted),
		Min:   floats.Min(sorted),
		P95:   Percentile(sorted, 95),
		P90:   Percentile(sorted, 90),
		P50:   Percentile(sorted, 50),
		P10:   Percentile(sorted, 10),
		P5:    Percentile(sorted, 5),
		Count: n,
		Total: floats.Sum(sorted),
	}
	s.Mean = stat.Mean(sorted, nil)
	if n > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	return s, true
}

// Percentile returns the nearest-rank value at index floor(p/100 * n) of an
// ascending sample, without interpolation. The index is clamped to the
// sample so p = 100 yields the maximum.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	idx := int(math.Floor(p / 100 * float64(n)))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}
