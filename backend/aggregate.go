package backend

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// FillStrategy selects how gaps inside a resampled column are treated.
type FillStrategy uint8

const (
	// FillForward substitutes interior gaps with the most recent earlier
	// value in the same series. Appropriate for slowly-changing telemetry
	// such as power readings.
	FillForward FillStrategy = iota
	// FillNone leaves every gap in place. Appropriate for discrete event
	// counters where carrying a stale value forward would lie.
	FillNone
)

// SeriesSpec describes how one input series participates in a frame.
type SeriesSpec struct {
	// Scale multiplies every value in the series. Zero and non-finite
	// scales are treated as 1 so that a bad config can never propagate NaN
	// into the chart.
	Scale float64
	// IncludeInSum marks the series as a component of the derived sum
	// column.
	IncludeInSum bool
	Fill         FillStrategy
}

// DefaultSpec chooses how a metric participates in the dashboard frame.
// Power flows chart in watts and contribute to the total; state of charge
// is overlaid without summing; event counters keep their gaps honest.
func DefaultSpec(m Metric) SeriesSpec {
	spec := SeriesSpec{Scale: 1, Fill: FillForward, IncludeInSum: true}
	switch {
	case m.Unit == "kW":
		spec.Scale = 1000
	case m.Unit == "%":
		spec.IncludeInSum = false
	case strings.Contains(strings.ToLower(m.Name), "count"):
		spec.IncludeInSum = false
		spec.Fill = FillNone
	}
	return spec
}

// AggregationError reports structurally invalid aggregation input. Numeric
// edge cases (NaN, Inf, empty series) never produce one; only contract
// violations do.
type AggregationError struct {
	Reason string
}

func (e *AggregationError) Error() string {
	return "aggregation: " + e.Reason
}

// Column is one aligned value column of a Frame. Values has exactly one
// entry per frame timestamp; gaps are NaN.
type Column struct {
	ID     string
	Name   string
	Values []float64
	InSum  bool
}

// Frame is a set of series merged onto a shared timeline. Every column has
// the same length as TimestampsMS.
type Frame struct {
	TimestampsMS []int64
	Columns      []Column
}

// Empty reports whether the frame has nothing chartable in it.
func (f *Frame) Empty() bool {
	return f == nil || len(f.TimestampsMS) == 0 || len(f.Columns) == 0
}

// MergeTimeline returns the sorted union of all distinct timestamps across
// the input series.
func MergeTimeline(series []Series) []int64 {
	seen := make(map[int64]struct{})
	for _, s := range series {
		for _, sample := range s.Samples {
			seen[sample.TimestampMS] = struct{}{}
		}
	}
	timeline := make([]int64, 0, len(seen))
	for ts := range seen {
		timeline = append(timeline, ts)
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i] < timeline[j] })
	return timeline
}

// Resample projects a series onto a timeline. Timestamps with an exact
// sample take its value; everything else is a gap. Resample never
// interpolates: distinguishing "no data point" from "reported zero" has to
// survive until the caller explicitly chooses to fill.
func Resample(s Series, timeline []int64) []float64 {
	values := make([]float64, len(timeline))
	for i := range values {
		values[i] = Gap()
	}
	samples := s.Samples
	cursor := 0
	for i, ts := range timeline {
		for cursor < len(samples) && samples[cursor].TimestampMS < ts {
			cursor++
		}
		if cursor < len(samples) && samples[cursor].TimestampMS == ts && samples[cursor].Valid {
			values[i] = samples[cursor].Value
		}
	}
	return values
}

// ForwardFill returns a copy of values with every interior gap replaced by
// the most recent earlier non-gap value. Leading gaps stay gaps: there is
// no earlier reading to carry.
func ForwardFill(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	last := Gap()
	for i, v := range out {
		if IsGap(v) {
			out[i] = last
		} else {
			last = v
		}
	}
	return out
}

// Scale returns a copy of values with every non-gap value multiplied by
// factor. Non-finite factors are treated as 1.
func Scale(values []float64, factor float64) []float64 {
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		factor = 1
	}
	out := make([]float64, len(values))
	for i, v := range values {
		if IsGap(v) {
			out[i] = v
			continue
		}
		out[i] = v * factor
	}
	return out
}

// SumColumns sums the included columns index by index, skipping gaps. An
// index where every included column is a gap stays a gap; absence of all
// inputs must not be misreported as a measured zero.
func SumColumns(columns [][]float64, include []bool) []float64 {
	length := 0
	for _, col := range columns {
		if len(col) > length {
			length = len(col)
		}
	}
	out := make([]float64, length)
	for i := range out {
		total := 0.0
		any := false
		for c, col := range columns {
			if c >= len(include) || !include[c] || i >= len(col) {
				continue
			}
			if IsGap(col[i]) {
				continue
			}
			total += col[i]
			any = true
		}
		if any {
			out[i] = total
		} else {
			out[i] = Gap()
		}
	}
	return out
}

// Aggregate merges the input series onto a shared timeline and applies each
// series' transforms in a fixed order: resample, fill, scale. When sumName
// is non-empty and at least one spec is marked IncludeInSum, a derived sum
// column is appended. The inputs are read-only; every column is freshly
// allocated.
func Aggregate(series []Series, specs []SeriesSpec, sumName string) (*Frame, error) {
	if len(specs) != len(series) {
		return nil, &AggregationError{Reason: fmt.Sprintf("%d series but %d specs", len(series), len(specs))}
	}
	ids := make(map[string]struct{}, len(series))
	for _, s := range series {
		if s.ID == "" {
			return nil, &AggregationError{Reason: "series with empty ID"}
		}
		if _, dup := ids[s.ID]; dup {
			return nil, &AggregationError{Reason: fmt.Sprintf("duplicate series ID %q", s.ID)}
		}
		ids[s.ID] = struct{}{}
	}

	clean := make([]Series, len(series))
	for i, s := range series {
		clean[i] = s.normalized()
	}
	timeline := MergeTimeline(clean)
	frame := &Frame{TimestampsMS: timeline}

	raw := make([][]float64, len(clean))
	include := make([]bool, len(clean))
	anyInSum := false
	for i, s := range clean {
		values := Resample(s, timeline)
		if specs[i].Fill == FillForward {
			values = ForwardFill(values)
		}
		scale := specs[i].Scale
		if scale == 0 {
			scale = 1
		}
		values = Scale(values, scale)
		raw[i] = values
		include[i] = specs[i].IncludeInSum
		anyInSum = anyInSum || specs[i].IncludeInSum
		frame.Columns = append(frame.Columns, Column{
			ID:     s.ID,
			Name:   s.Name,
			Values: values,
			InSum:  specs[i].IncludeInSum,
		})
	}
	if anyInSum && sumName != "" {
		frame.Columns = append(frame.Columns, Column{
			ID:     "sum",
			Name:   sumName,
			Values: SumColumns(raw, include),
		})
	}
	return frame, nil
}
