package interval

import "github.com/banshee-data/overlap.report/internal/trace"

// OverlapResult describes how two event groups overlap within a trace.
type OverlapResult struct {
	UnionA           []Interval     `json:"union_a"`
	UnionB           []Interval     `json:"union_b"`
	SegmentsA        []NamedSegment `json:"segments_a"`
	SegmentsB        []NamedSegment `json:"segments_b"`
	OverlapIntervals []Interval     `json:"overlap_intervals"`
	OverlapTotal     float64        `json:"overlap_total"`
	TotalSpan        float64        `json:"total_span"`
	Rate             float64        `json:"rate"`
	MinTs            float64        `json:"min_ts"`
	MaxTe            float64        `json:"max_te"`
}

// ComputeOverlap measures how much of the trace's wall-clock window groups A
// and B are simultaneously active. The window is taken from every valid
// event in all, not only those in the two groups, so Rate is a fraction of
// the whole observation. An empty group or an empty window yields a zero
// rate with no overlap intervals.
func ComputeOverlap(all, groupA, groupB []trace.Event) OverlapResult {
	minTs, maxTe, ok := trace.Span(all)
	if !ok {
		minTs, maxTe = 0, 0
	}
	span := maxTe - minTs

	segA := Normalize(groupA)
	segB := Normalize(groupB)
	res := OverlapResult{
		UnionA:           SegmentUnion(segA),
		UnionB:           SegmentUnion(segB),
		SegmentsA:        segA,
		SegmentsB:        segB,
		OverlapIntervals: make([]Interval, 0),
		TotalSpan:        max(0, span),
		MinTs:            minTs,
		MaxTe:            maxTe,
	}

	if !(span > 0) || len(res.UnionA) == 0 || len(res.UnionB) == 0 {
		return res
	}

	res.OverlapIntervals, res.OverlapTotal = Intersect(res.UnionA, res.UnionB)
	res.Rate = res.OverlapTotal / span
	return res
}

// CoverageA is the fraction of the window covered by group A.
func (r OverlapResult) CoverageA() float64 {
	return coverage(r.UnionA, r.TotalSpan)
}

// CoverageB is the fraction of the window covered by group B.
func (r OverlapResult) CoverageB() float64 {
	return coverage(r.UnionB, r.TotalSpan)
}

func coverage(union []Interval, span float64) float64 {
	if !(span > 0) {
		return 0
	}
	return TotalLength(union) / span
}
