package backend

import (
	"math"
	"sort"
)

// Sample is one observation of a metric. Valid is false when the service
// reported null (or an unparsable value) at this timestamp; a missing
// reading is never the same thing as a reading of zero.
type Sample struct {
	TimestampMS int64
	Value       float64
	Valid       bool
}

// Series is one named metric's observations, ascending by timestamp.
type Series struct {
	ID      string
	Name    string
	Samples []Sample
}

// Gap is the in-column representation of a missing value. Columns produced
// by the aggregator use NaN for gaps so that arithmetic can never silently
// treat absence as zero.
func Gap() float64 {
	return math.NaN()
}

// IsGap reports whether v is the missing-value marker.
func IsGap(v float64) bool {
	return math.IsNaN(v)
}

// sorted reports whether the samples are ascending by timestamp.
func (s Series) sorted() bool {
	for i := 1; i < len(s.Samples); i++ {
		if s.Samples[i].TimestampMS < s.Samples[i-1].TimestampMS {
			return false
		}
	}
	return true
}

// normalized returns a copy of the series safe for aggregation: samples
// sorted by timestamp and non-finite values demoted to missing. Callers are
// expected to hand us sorted data, but a corrupt chart is a worse failure
// mode than a redundant sort, so disorder is repaired rather than trusted.
func (s Series) normalized() Series {
	out := Series{ID: s.ID, Name: s.Name, Samples: make([]Sample, len(s.Samples))}
	copy(out.Samples, s.Samples)
	if !s.sorted() {
		sort.SliceStable(out.Samples, func(i, j int) bool {
			return out.Samples[i].TimestampMS < out.Samples[j].TimestampMS
		})
	}
	for i, sample := range out.Samples {
		if sample.Valid && (math.IsNaN(sample.Value) || math.IsInf(sample.Value, 0)) {
			out.Samples[i].Valid = false
			out.Samples[i].Value = 0
		}
	}
	return out
}

// NewSeries builds a series from parallel timestamp/value slices, marking
// entries missing where valid is false. Extra entries in either slice are
// ignored.
func NewSeries(id, name string, timestamps []int64, values []float64, valid []bool) Series {
	n := min(len(timestamps), len(values))
	s := Series{ID: id, Name: name, Samples: make([]Sample, 0, n)}
	for i := 0; i < n; i++ {
		ok := i < len(valid) && valid[i]
		s.Samples = append(s.Samples, Sample{
			TimestampMS: timestamps[i],
			Value:       values[i],
			Valid:       ok,
		})
	}
	return s
}
