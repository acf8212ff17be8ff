// Package interval implements the gap-detection arithmetic used by the
// cache coordinator: coalescing stored temporal points into covered
// ranges and subtracting them from a requested range. It is a pure
// function layer with no storage dependency.
package interval

import (
	"sort"
	"time"
)

// Range is an inclusive [Start, End] interval on the time axis.
type Range struct {
	Start time.Time
	End   time.Time
}

// Coalesce merges sorted-or-unsorted points into maximal covered
// ranges. Two consecutive points belong to the same range when they are
// at most step apart; a larger spacing bounds a gap between them.
func Coalesce(points []time.Time, step time.Duration) []Range {
	if len(points) == 0 {
		return nil
	}
	sorted := make([]time.Time, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	out := []Range{{Start: sorted[0], End: sorted[0]}}
	for _, p := range sorted[1:] {
		last := &out[len(out)-1]
		if !p.After(last.End.Add(step)) {
			if p.After(last.End) {
				last.End = p
			}
			continue
		}
		out = append(out, Range{Start: p, End: p})
	}
	return out
}

// Subtract returns the maximal sub-ranges of req not covered by any of
// the covered ranges. covered must be sorted ascending and
// non-overlapping (Coalesce output qualifies). step is the granularity
// of the axis: a covered range ending at t also accounts for everything
// up to but excluding t+step.
func Subtract(req Range, covered []Range, step time.Duration) []Range {
	if req.Start.After(req.End) {
		return nil
	}
	var gaps []Range
	cursor := req.Start
	for _, c := range covered {
		if c.End.Before(cursor) {
			continue
		}
		if c.Start.After(req.End) {
			break
		}
		if c.Start.After(cursor) {
			gapEnd := c.Start.Add(-step)
			if !gapEnd.Before(cursor) {
				gaps = append(gaps, Range{Start: cursor, End: minTime(gapEnd, req.End)})
			}
		}
		next := c.End.Add(step)
		if next.After(cursor) {
			cursor = next
		}
		if cursor.After(req.End) {
			return gaps
		}
	}
	if !cursor.After(req.End) {
		gaps = append(gaps, Range{Start: cursor, End: req.End})
	}
	return gaps
}

// Merge normalizes arbitrary ranges into sorted, non-overlapping
// coverage. Ranges closer than step apart fuse into one.
func Merge(rs []Range, step time.Duration) []Range {
	if len(rs) == 0 {
		return nil
	}
	sorted := make([]Range, len(rs))
	copy(sorted, rs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	out := []Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if !r.Start.After(last.End.Add(step)) {
			if r.End.After(last.End) {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// Uncovered combines Coalesce and Subtract: the sub-ranges of req with
// no stored point within step of coverage.
func Uncovered(req Range, points []time.Time, step time.Duration) []Range {
	return Subtract(req, Coalesce(points, step), step)
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
