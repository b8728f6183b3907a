package panel

import (
	"fmt"
	"time"
)

// AlignReport describes what an alignment kept and dropped.
type AlignReport struct {
	Common  int       // rows in the shared date axis
	Dropped []int     // rows dropped from each input, in input order
	Start   time.Time // first common date, zero when empty
	End     time.Time // last common date, zero when empty
}

// Empty reports whether the inputs share no dates.
func (r AlignReport) Empty() bool { return r.Common == 0 }

// String renders a one-line summary for logs.
func (r AlignReport) String() string {
	if r.Empty() {
		return fmt.Sprintf("no common dates (dropped %v)", r.Dropped)
	}
	return fmt.Sprintf("%d common dates %s..%s (dropped %v)",
		r.Common, r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly), r.Dropped)
}

// Intersect returns the ordered dates present in every index. The order of
// the first index is kept.
func Intersect(indexes ...[]time.Time) []time.Time {
	if len(indexes) == 0 {
		return nil
	}
	counts := make(map[int64]int, len(indexes[0]))
	for _, idx := range indexes {
		seen := make(map[int64]struct{}, len(idx))
		for _, d := range idx {
			k := dateKey(d)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			counts[k]++
		}
	}
	var out []time.Time
	for _, d := range indexes[0] {
		if counts[dateKey(d)] == len(indexes) {
			out = append(out, d)
		}
	}
	return out
}

// Align restricts every panel to the intersection of their date indexes.
// An empty intersection is not an error: every returned panel has zero rows
// and the report says so.
func Align(panels ...*Panel) ([]*Panel, AlignReport) {
	indexes := make([][]time.Time, len(panels))
	for i, p := range panels {
		indexes[i] = p.dates
	}
	common := Intersect(indexes...)

	report := AlignReport{Common: len(common), Dropped: make([]int, len(panels))}
	if len(common) > 0 {
		report.Start = common[0]
		report.End = common[len(common)-1]
	}

	out := make([]*Panel, len(panels))
	for i, p := range panels {
		aligned, err := p.Reindex(common)
		if err != nil {
			// common is an ordered subset of every index
			panic(err)
		}
		out[i] = aligned
		report.Dropped[i] = p.Len() - len(common)
	}
	return out, report
}
