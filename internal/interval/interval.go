// Package interval is the interval algebra used for overlap analysis:
// sweep-line labelling of events, union merging, and intersection of
// interval sets. Every function is pure; inputs are never reordered or
// modified, so callers may share slices across goroutines.
package interval

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/overlap.report/internal/trace"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start float64
	End   float64
}

// Len returns End - Start.
func (iv Interval) Len() float64 {
	return iv.End - iv.Start
}

// Empty reports whether the interval covers no time.
func (iv Interval) Empty() bool {
	return !(iv.End > iv.Start)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%g,%g)", iv.Start, iv.End)
}

// MarshalJSON encodes the interval as a two-element array.
func (iv Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{iv.Start, iv.End})
}

// UnmarshalJSON decodes a two-element array.
func (iv *Interval) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("interval must be a [start, end] pair: %w", err)
	}
	iv.Start, iv.End = pair[0], pair[1]
	return nil
}

// NamedSegment is a maximal window during which exactly Names were active.
type NamedSegment struct {
	Names    []string `json:"names"`
	Interval Interval `json:"interval"`
}

// TotalLength sums the lengths of ivs. Overlapping input is counted twice.
func TotalLength(ivs []Interval) float64 {
	total := 0.0
	for _, iv := range ivs {
		total += iv.Len()
	}
	return total
}

// Intervals drops the names from segs.
func Intervals(segs []NamedSegment) []Interval {
	out := make([]Interval, len(segs))
	for i, seg := range segs {
		out[i] = seg.Interval
	}
	return out
}

// FromEvents returns [start, start+duration) for each valid event.
func FromEvents(events []trace.Event) []Interval {
	out := make([]Interval, 0, len(events))
	for _, e := range events {
		if e.Valid() {
			out = append(out, Interval{Start: e.Start, End: e.End()})
		}
	}
	return out
}
