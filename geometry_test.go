package main

import (
	"math"
	"testing"

	"github.com/helioview/helioview/backend"
)

func column(values ...float64) backend.Column {
	return backend.Column{ID: "test", Name: "Test", Values: values}
}

func TestValueRange(t *testing.T) {
	lo, hi, ok := valueRange([]backend.Column{
		column(10, backend.Gap(), 30),
		column(-5, 2),
	})
	if !ok {
		t.Fatalf("expected a usable range")
	}
	if lo != -5 || hi != 30 {
		t.Errorf("expected range [-5, 30], got [%f, %f]", lo, hi)
	}
	// No finite data yields the placeholder range and ok=false.
	lo, hi, ok = valueRange([]backend.Column{column(backend.Gap(), backend.Gap())})
	if ok {
		t.Errorf("all-gap columns should not report a usable range")
	}
	if lo != 0 || hi != 1 {
		t.Errorf("expected placeholder range [0, 1], got [%f, %f]", lo, hi)
	}
	lo, hi, ok = valueRange(nil)
	if ok || lo != 0 || hi != 1 {
		t.Errorf("empty input should yield placeholder range, got [%f, %f] %v", lo, hi, ok)
	}
}

func TestValueRangeFlat(t *testing.T) {
	lo, hi, ok := valueRange([]backend.Column{column(5, 5, 5)})
	if !ok {
		t.Fatalf("expected a usable range")
	}
	if !(lo < 5 && 5 < hi) {
		t.Errorf("flat data must widen around the value: got [%f, %f]", lo, hi)
	}
	if hi <= lo {
		t.Errorf("range must never collapse: [%f, %f]", lo, hi)
	}
}

func testGeometry() plotGeometry {
	return plotGeometry{
		originX:  20,
		originY:  0,
		width:    300,
		height:   100,
		rangeMin: 0,
		rangeMax: 10,
	}
}

func TestPathSegmentsGap(t *testing.T) {
	geo := testGeometry()
	segments := pathSegments([]float64{1, 2, backend.Gap(), 4, 5}, geo)
	if len(segments) != 2 {
		t.Fatalf("an interior gap must split the path, got %d segments", len(segments))
	}
	if len(segments[0]) != 2 || len(segments[1]) != 2 {
		t.Errorf("expected segment lengths [2 2], got [%d %d]", len(segments[0]), len(segments[1]))
	}
	// Leading and trailing gaps produce no empty segments.
	segments = pathSegments([]float64{backend.Gap(), 2, 3, backend.Gap()}, geo)
	if len(segments) != 1 || len(segments[0]) != 2 {
		t.Errorf("expected one two-point segment, got %v", segments)
	}
	if got := pathSegments([]float64{backend.Gap()}, geo); len(got) != 0 {
		t.Errorf("all-gap column should produce no segments, got %v", got)
	}
	if got := pathSegments(nil, geo); len(got) != 0 {
		t.Errorf("empty column should produce no segments, got %v", got)
	}
}

func TestPathSegmentCoordinates(t *testing.T) {
	geo := testGeometry()
	segments := pathSegments([]float64{0, 10}, geo)
	if len(segments) != 1 {
		t.Fatalf("expected one segment, got %d", len(segments))
	}
	pts := segments[0]
	if pts[0].X != 20 || pts[0].Y != 100 {
		t.Errorf("expected first point at (20, 100), got %v", pts[0])
	}
	if pts[1].X != 320 || pts[1].Y != 0 {
		t.Errorf("expected second point at (320, 0), got %v", pts[1])
	}
	// A single sample centers horizontally.
	segments = pathSegments([]float64{5}, geo)
	if segments[0][0].X != 170 {
		t.Errorf("single sample should center at 170, got %f", segments[0][0].X)
	}
}

func TestYTicks(t *testing.T) {
	ticks := yTicks(testGeometry(), 4)
	if len(ticks) != 5 {
		t.Fatalf("expected 5 ticks, got %d", len(ticks))
	}
	if ticks[0] != 10 || ticks[4] != 0 {
		t.Errorf("expected ticks from 10 down to 0, got %v", ticks)
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i] >= ticks[i-1] {
			t.Errorf("ticks must descend, got %v", ticks)
		}
	}
}

func TestXTicks(t *testing.T) {
	ticks := xTicks([]int64{1000, 2000, 5000})
	if ticks != [3]int64{1000, 3000, 5000} {
		t.Errorf("expected [1000 3000 5000], got %v", ticks)
	}
	// A single timestamp collapses all three ticks without dividing by zero.
	ticks = xTicks([]int64{1000})
	if ticks != [3]int64{1000, 1000, 1000} {
		t.Errorf("expected collapsed ticks, got %v", ticks)
	}
	ticks = xTicks(nil)
	if ticks != [3]int64{} {
		t.Errorf("expected zero ticks for empty timeline, got %v", ticks)
	}
}

func TestIndexAtX(t *testing.T) {
	geo := testGeometry()
	for _, tc := range []struct {
		x     float32
		count int
		want  int
	}{
		{20, 4, 0},
		{320, 4, 3},
		{170, 4, 2},
		// Far outside the plot clamps to the nearest edge.
		{-480, 4, 0},
		{9000, 4, 3},
		// A single sample always maps to index 0.
		{20, 1, 0},
		{300, 1, 0},
		{-100, 1, 0},
	} {
		if got := indexAtX(tc.x, geo, tc.count); got != tc.want {
			t.Errorf("indexAtX(%f, count=%d): expected %d, got %d", tc.x, tc.count, tc.want, got)
		}
	}
	if got := indexAtX(100, geo, 0); got != -1 {
		t.Errorf("no samples should map to -1, got %d", got)
	}
	// Zero plot width must not divide by zero.
	flat := geo
	flat.width = 0
	if got := indexAtX(100, flat, 4); got != 0 {
		t.Errorf("zero-width plot should map to 0, got %d", got)
	}
}

func TestFormatValue(t *testing.T) {
	if got := formatValue(1.5); got != "1.500" {
		t.Errorf("expected 1.500, got %q", got)
	}
	if got := formatValue(math.NaN()); got != "n/a" {
		t.Errorf("expected n/a for a gap, got %q", got)
	}
}
