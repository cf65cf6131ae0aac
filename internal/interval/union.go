package interval

import "sort"

// MergeToUnion returns the minimal start-sorted set of disjoint intervals
// covering the same points as ivs. Empty intervals are dropped and touching
// intervals ([0,5) and [5,10)) merge.
func MergeToUnion(ivs []Interval) []Interval {
	sorted := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if !iv.Empty() {
			sorted = append(sorted, iv)
		}
	}

	merged := make([]Interval, 0)
	if len(sorted) == 0 {
		return merged
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	cur := sorted[0]
	for _, iv := range sorted[1:] {
		if iv.Start <= cur.End {
			if iv.End > cur.End {
				cur.End = iv.End
			}
			continue
		}
		merged = append(merged, cur)
		cur = iv
	}
	return append(merged, cur)
}

// SegmentUnion merges the intervals of segs.
func SegmentUnion(segs []NamedSegment) []Interval {
	return MergeToUnion(Intervals(segs))
}
