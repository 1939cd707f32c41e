package backend

import (
	"errors"
	"math"
	"testing"
)

func sample(ts int64, v float64) Sample {
	return Sample{TimestampMS: ts, Value: v, Valid: true}
}

func missing(ts int64) Sample {
	return Sample{TimestampMS: ts}
}

func TestMergeTimeline(t *testing.T) {
	a := Series{ID: "a", Samples: []Sample{sample(1000, 10), missing(2000), sample(3000, 30)}}
	b := Series{ID: "b", Samples: []Sample{sample(1000, 1), sample(3000, 3), sample(4000, 4)}}
	timeline := MergeTimeline([]Series{a, b})
	expected := []int64{1000, 2000, 3000, 4000}
	if len(timeline) != len(expected) {
		t.Fatalf("expected %d timestamps, got %d", len(expected), len(timeline))
	}
	for i, ts := range expected {
		if timeline[i] != ts {
			t.Errorf("timeline[%d]: expected %d, got %d", i, ts, timeline[i])
		}
	}
	longest := len(a.Samples)
	if len(b.Samples) > longest {
		longest = len(b.Samples)
	}
	if len(timeline) < longest {
		t.Errorf("merged timeline shorter than largest input: %d < %d", len(timeline), longest)
	}
	if got := MergeTimeline(nil); len(got) != 0 {
		t.Errorf("expected empty timeline for no input, got %v", got)
	}
}

func TestResample(t *testing.T) {
	b := Series{ID: "b", Samples: []Sample{sample(1000, 1), sample(3000, 3)}}
	timeline := []int64{1000, 2000, 3000}
	values := Resample(b, timeline)
	if values[0] != 1 {
		t.Errorf("expected exact sample at t0, got %f", values[0])
	}
	if !IsGap(values[1]) {
		t.Errorf("expected gap at t1, got %f", values[1])
	}
	if values[2] != 3 {
		t.Errorf("expected exact sample at t2, got %f", values[2])
	}
	// A null sample resamples to a gap, not to zero.
	withNull := Series{ID: "n", Samples: []Sample{sample(1000, 10), missing(2000)}}
	values = Resample(withNull, []int64{1000, 2000})
	if !IsGap(values[1]) {
		t.Errorf("null sample should resample as a gap, got %f", values[1])
	}
}

func TestForwardFill(t *testing.T) {
	values := []float64{Gap(), 1, Gap(), Gap(), 3, Gap()}
	filled := ForwardFill(values)
	expected := []float64{Gap(), 1, 1, 1, 3, 3}
	for i := range expected {
		if IsGap(expected[i]) != IsGap(filled[i]) || (!IsGap(expected[i]) && expected[i] != filled[i]) {
			t.Errorf("filled[%d]: expected %f, got %f", i, expected[i], filled[i])
		}
	}
	if !IsGap(filled[0]) {
		t.Errorf("leading gap must stay a gap")
	}
	// Idempotence: filling twice changes nothing.
	twice := ForwardFill(filled)
	for i := range filled {
		if IsGap(filled[i]) != IsGap(twice[i]) || (!IsGap(filled[i]) && filled[i] != twice[i]) {
			t.Errorf("forward fill not idempotent at %d: %f vs %f", i, filled[i], twice[i])
		}
	}
	// The input is not mutated.
	if !IsGap(values[2]) {
		t.Errorf("ForwardFill mutated its input")
	}
}

func TestScale(t *testing.T) {
	values := []float64{2, Gap(), -3}
	scaled := Scale(values, 2.5)
	if scaled[0] != 5 || scaled[2] != -7.5 {
		t.Errorf("expected [5 gap -7.5], got %v", scaled)
	}
	if !IsGap(scaled[1]) {
		t.Errorf("scaling must preserve gaps, got %f", scaled[1])
	}
	for _, factor := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		scaled = Scale(values, factor)
		if scaled[0] != 2 || scaled[2] != -3 {
			t.Errorf("non-finite factor %f should act as 1, got %v", factor, scaled)
		}
	}
}

func TestSumColumns(t *testing.T) {
	cols := [][]float64{
		{10, Gap(), 30},
		{1, Gap(), 3},
		{100, 200, 300},
	}
	// Only the first two columns are included.
	sums := SumColumns(cols, []bool{true, true, false})
	if sums[0] != 11 {
		t.Errorf("expected 11 at index 0, got %f", sums[0])
	}
	if !IsGap(sums[1]) {
		t.Errorf("all included columns are gaps at index 1; sum must be a gap, got %f", sums[1])
	}
	if sums[2] != 33 {
		t.Errorf("expected 33 at index 2, got %f", sums[2])
	}
	// Partial data: a missing component is skipped, not poisoning.
	sums = SumColumns([][]float64{{5, Gap()}, {Gap(), 7}}, []bool{true, true})
	if sums[0] != 5 || sums[1] != 7 {
		t.Errorf("expected partial sums [5 7], got %v", sums)
	}
}

func TestAggregateScenario(t *testing.T) {
	// Two series on different timestamps; B has no sample at t1 and A's t1
	// sample is null. After forward fill, the sum at t1 is A(t1->10)+B(t1->1).
	a := Series{ID: "solar", Name: "Solar Power", Samples: []Sample{
		sample(1000, 10), missing(2000), sample(3000, 30),
	}}
	b := Series{ID: "grid", Name: "Grid Power", Samples: []Sample{
		sample(1000, 1), sample(3000, 3),
	}}
	frame, err := Aggregate([]Series{a, b}, []SeriesSpec{
		{IncludeInSum: true},
		{IncludeInSum: true},
	}, "Total")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frame.TimestampsMS) != 3 {
		t.Fatalf("expected 3 timestamps, got %d", len(frame.TimestampsMS))
	}
	for _, col := range frame.Columns {
		if len(col.Values) != len(frame.TimestampsMS) {
			t.Errorf("column %q length %d does not match timeline %d", col.ID, len(col.Values), len(frame.TimestampsMS))
		}
	}
	if len(frame.Columns) != 3 {
		t.Fatalf("expected 2 columns plus sum, got %d", len(frame.Columns))
	}
	sum := frame.Columns[2]
	if sum.Name != "Total" {
		t.Errorf("expected sum column name Total, got %q", sum.Name)
	}
	if sum.Values[1] != 11 {
		t.Errorf("expected sum 11 at t1, got %f", sum.Values[1])
	}
	if sum.Values[0] != 11 || sum.Values[2] != 33 {
		t.Errorf("expected sums [11 11 33], got %v", sum.Values)
	}
}

func TestAggregateFillNone(t *testing.T) {
	a := Series{ID: "events", Name: "Events", Samples: []Sample{
		sample(1000, 2), sample(3000, 5),
	}}
	frame, err := Aggregate([]Series{a}, []SeriesSpec{{Fill: FillNone}}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frame.TimestampsMS) != 2 {
		t.Fatalf("expected 2 timestamps, got %d", len(frame.TimestampsMS))
	}
	for i, v := range frame.Columns[0].Values {
		if IsGap(v) {
			t.Errorf("unexpected gap at %d with exact samples", i)
		}
	}
}

func TestAggregateDefensiveSort(t *testing.T) {
	unsorted := Series{ID: "x", Name: "X", Samples: []Sample{
		sample(3000, 3), sample(1000, 1), sample(2000, 2),
	}}
	frame, err := Aggregate([]Series{unsorted}, []SeriesSpec{{}}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []int64{1000, 2000, 3000}
	for i, ts := range expected {
		if frame.TimestampsMS[i] != ts {
			t.Errorf("timeline[%d]: expected %d, got %d", i, ts, frame.TimestampsMS[i])
		}
	}
	for i, v := range frame.Columns[0].Values {
		if v != float64(i+1) {
			t.Errorf("values[%d]: expected %d, got %f", i, i+1, v)
		}
	}
	// The caller's slice stays untouched.
	if unsorted.Samples[0].TimestampMS != 3000 {
		t.Errorf("Aggregate mutated its input")
	}
}

func TestAggregateNonFiniteValues(t *testing.T) {
	s := Series{ID: "x", Name: "X", Samples: []Sample{
		sample(1000, math.Inf(1)), sample(2000, 2),
	}}
	frame, err := Aggregate([]Series{s}, []SeriesSpec{{Fill: FillNone}}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsGap(frame.Columns[0].Values[0]) {
		t.Errorf("non-finite input value should become a gap, got %f", frame.Columns[0].Values[0])
	}
}

func TestAggregateStructuralErrors(t *testing.T) {
	valid := Series{ID: "a", Samples: []Sample{sample(1000, 1)}}
	for _, tc := range []struct {
		name   string
		series []Series
		specs  []SeriesSpec
	}{
		{"spec mismatch", []Series{valid}, nil},
		{"empty id", []Series{{Samples: []Sample{sample(1000, 1)}}}, []SeriesSpec{{}}},
		{"duplicate id", []Series{valid, valid}, []SeriesSpec{{}, {}}},
	} {
		_, err := Aggregate(tc.series, tc.specs, "")
		var aggErr *AggregationError
		if !errors.As(err, &aggErr) {
			t.Errorf("%s: expected AggregationError, got %v", tc.name, err)
		}
	}
}

func TestAggregateEmpty(t *testing.T) {
	frame, err := Aggregate(nil, nil, "Total")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !frame.Empty() {
		t.Errorf("expected empty frame for no input")
	}
	frame, err = Aggregate([]Series{{ID: "a"}}, []SeriesSpec{{IncludeInSum: true}}, "Total")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !frame.Empty() {
		t.Errorf("expected empty frame for series without samples")
	}
}
