package interval

import "fmt"

// Intersect returns the pairwise intersection of two unions and its total
// length. Both inputs must be start-sorted and disjoint, as produced by
// MergeToUnion; anything else is a programming error and panics.
// Intervals that only touch do not intersect.
func Intersect(a, b []Interval) ([]Interval, float64) {
	mustBeUnion("a", a)
	mustBeUnion("b", b)

	inters := make([]Interval, 0)
	total := 0.0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		s := max(a[i].Start, b[j].Start)
		e := min(a[i].End, b[j].End)
		if s < e {
			inters = append(inters, Interval{Start: s, End: e})
			total += e - s
		}
		if a[i].End <= b[j].End {
			i++
		} else {
			j++
		}
	}
	return inters, total
}

func mustBeUnion(label string, ivs []Interval) {
	for k, iv := range ivs {
		if iv.Empty() {
			panic(fmt.Sprintf("interval: %s[%d] %v is empty", label, k, iv))
		}
		if k > 0 && iv.Start < ivs[k-1].End {
			panic(fmt.Sprintf("interval: %s[%d] %v overlaps or precedes %v", label, k, iv, ivs[k-1]))
		}
	}
}
