package interval

import (
	"slices"
	"sort"
	"strings"

	"github.com/banshee-data/overlap.report/internal/trace"
)

type endpointKind int

const (
	endpointOpen endpointKind = iota
	endpointClose
)

type endpoint struct {
	t    float64
	kind endpointKind
	name string
}

// Normalize sweeps the valid events left to right and returns the
// chronological, non-overlapping segments of their union, each labelled with
// the sorted set of event names active during it. Gaps with no active event
// are omitted and adjacent segments with the same name set are coalesced.
// At equal timestamps opens sort before closes.
func Normalize(events []trace.Event) []NamedSegment {
	points := make([]endpoint, 0, 2*len(events))
	for _, e := range events {
		if !e.Valid() {
			continue
		}
		points = append(points,
			endpoint{t: e.Start, kind: endpointOpen, name: e.Name},
			endpoint{t: e.End(), kind: endpointClose, name: e.Name},
		)
	}

	segments := make([]NamedSegment, 0)
	if len(points) == 0 {
		return segments
	}

	sort.SliceStable(points, func(i, j int) bool {
		if points[i].t != points[j].t {
			return points[i].t < points[j].t
		}
		return points[i].kind < points[j].kind
	})

	active := make(map[string]int)
	prevT := points[0].t
	for i := 0; i < len(points); {
		t := points[i].t
		if t > prevT && len(active) > 0 {
			segments = appendSegment(segments, activeNames(active), Interval{Start: prevT, End: t})
		}

		for ; i < len(points) && points[i].t == t; i++ {
			p := points[i]
			if p.kind == endpointOpen {
				active[p.name]++
				continue
			}
			active[p.name]--
			if active[p.name] <= 0 {
				delete(active, p.name)
			}
		}
		prevT = t
	}

	return segments
}

// appendSegment extends the last segment when it ends where iv starts and
// carries the same names.
func appendSegment(segments []NamedSegment, names []string, iv Interval) []NamedSegment {
	if n := len(segments); n > 0 {
		last := &segments[n-1]
		if last.Interval.End == iv.Start && slices.Equal(last.Names, names) {
			last.Interval.End = iv.End
			return segments
		}
	}
	return append(segments, NamedSegment{Names: names, Interval: iv})
}

func activeNames(active map[string]int) []string {
	names := make([]string, 0, len(active))
	for name := range active {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Label joins segment names for display.
func (s NamedSegment) Label() string {
	return strings.Join(s.Names, ", ")
}
