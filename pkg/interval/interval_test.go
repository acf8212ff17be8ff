package interval

import (
	"testing"
	"time"
)

const day = 24 * time.Hour

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func days(ss ...string) []time.Time {
	out := make([]time.Time, 0, len(ss))
	for _, s := range ss {
		out = append(out, d(s))
	}
	return out
}

func TestCoalesceContiguous(t *testing.T) {
	got := Coalesce(days("2023-01-01", "2023-01-02", "2023-01-03"), day)
	if len(got) != 1 {
		t.Fatalf("expected one range, got %d", len(got))
	}
	if !got[0].Start.Equal(d("2023-01-01")) || !got[0].End.Equal(d("2023-01-03")) {
		t.Fatalf("unexpected range %+v", got[0])
	}
}

func TestCoalesceSplitsOnGap(t *testing.T) {
	got := Coalesce(days("2023-01-01", "2023-01-02", "2023-01-05"), day)
	if len(got) != 2 {
		t.Fatalf("expected two ranges, got %d", len(got))
	}
	if !got[1].Start.Equal(d("2023-01-05")) {
		t.Fatalf("unexpected second range %+v", got[1])
	}
}

func TestCoalesceUnsortedInput(t *testing.T) {
	got := Coalesce(days("2023-01-03", "2023-01-01", "2023-01-02"), day)
	if len(got) != 1 {
		t.Fatalf("expected one range, got %d", len(got))
	}
}

func TestSubtractFullyCovered(t *testing.T) {
	req := Range{Start: d("2023-01-01"), End: d("2023-01-05")}
	covered := Coalesce(days("2023-01-01", "2023-01-02", "2023-01-03", "2023-01-04", "2023-01-05"), day)
	if gaps := Subtract(req, covered, day); len(gaps) != 0 {
		t.Fatalf("expected no gaps, got %+v", gaps)
	}
}

func TestSubtractTrailingGap(t *testing.T) {
	// Stored 01-01..01-05, requested 01-03..01-10: only 01-06..01-10 is missing.
	req := Range{Start: d("2023-01-03"), End: d("2023-01-10")}
	covered := Coalesce(days("2023-01-01", "2023-01-02", "2023-01-03", "2023-01-04", "2023-01-05"), day)
	gaps := Subtract(req, covered, day)
	if len(gaps) != 1 {
		t.Fatalf("expected one gap, got %+v", gaps)
	}
	if !gaps[0].Start.Equal(d("2023-01-06")) || !gaps[0].End.Equal(d("2023-01-10")) {
		t.Fatalf("unexpected gap %+v", gaps[0])
	}
}

func TestSubtractLeadingAndInnerGaps(t *testing.T) {
	req := Range{Start: d("2023-01-01"), End: d("2023-01-08")}
	gaps := Uncovered(req, days("2023-01-03", "2023-01-04", "2023-01-07"), day)
	if len(gaps) != 3 {
		t.Fatalf("expected three gaps, got %+v", gaps)
	}
	want := []Range{
		{Start: d("2023-01-01"), End: d("2023-01-02")},
		{Start: d("2023-01-05"), End: d("2023-01-06")},
		{Start: d("2023-01-08"), End: d("2023-01-08")},
	}
	for i, w := range want {
		if !gaps[i].Start.Equal(w.Start) || !gaps[i].End.Equal(w.End) {
			t.Fatalf("gap %d: got %+v want %+v", i, gaps[i], w)
		}
	}
}

func TestMergeFusesOverlapAndAdjacency(t *testing.T) {
	got := Merge([]Range{
		{Start: d("2023-01-06"), End: d("2023-01-06")},
		{Start: d("2023-01-01"), End: d("2023-01-03")},
		{Start: d("2023-01-02"), End: d("2023-01-04")},
		{Start: d("2023-01-10"), End: d("2023-01-12")},
	}, day)
	want := []Range{
		{Start: d("2023-01-01"), End: d("2023-01-06")},
		{Start: d("2023-01-10"), End: d("2023-01-12")},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d ranges, got %+v", len(want), got)
	}
	for i, w := range want {
		if !got[i].Start.Equal(w.Start) || !got[i].End.Equal(w.End) {
			t.Fatalf("range %d: got %+v want %+v", i, got[i], w)
		}
	}
}

func TestSubtractWithMergedPointAndSpanCoverage(t *testing.T) {
	// Fri and Mon bars plus a recorded fetch over the weekend: the
	// request is fully covered even though no bars exist Sat/Sun.
	req := Range{Start: d("2023-01-06"), End: d("2023-01-09")}
	covered := Merge(append(
		Coalesce(days("2023-01-06", "2023-01-09"), day),
		Range{Start: d("2023-01-06"), End: d("2023-01-09")},
	), day)
	if gaps := Subtract(req, covered, day); len(gaps) != 0 {
		t.Fatalf("expected no gaps, got %+v", gaps)
	}
}

func TestSubtractNoPoints(t *testing.T) {
	req := Range{Start: d("2023-01-01"), End: d("2023-01-03")}
	gaps := Uncovered(req, nil, day)
	if len(gaps) != 1 || !gaps[0].Start.Equal(req.Start) || !gaps[0].End.Equal(req.End) {
		t.Fatalf("expected the whole range, got %+v", gaps)
	}
}

func TestSubtractWiderStep(t *testing.T) {
	// Quarterly periods ~91 days apart count as contiguous under a 100d step.
	step := 100 * day
	req := Range{Start: d("2022-01-01"), End: d("2022-12-31")}
	points := days("2022-03-31", "2022-06-30", "2022-09-30", "2022-12-31")
	gaps := Uncovered(req, points, step)
	if len(gaps) != 0 {
		t.Fatalf("expected no gaps, got %+v", gaps)
	}
}
