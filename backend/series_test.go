package backend

import (
	"math"
	"testing"
)

func TestNewSeries(t *testing.T) {
	s := NewSeries("solar", "Solar Power",
		[]int64{1000, 2000, 3000},
		[]float64{1.5, 0, 3.5},
		[]bool{true, false, true},
	)
	if len(s.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(s.Samples))
	}
	if s.Samples[1].Valid {
		t.Errorf("sample 1 should be missing")
	}
	if !s.Samples[0].Valid || s.Samples[0].Value != 1.5 {
		t.Errorf("sample 0 mangled: %+v", s.Samples[0])
	}
	// Mismatched slice lengths truncate instead of panicking.
	s = NewSeries("x", "X", []int64{1000, 2000}, []float64{1}, []bool{true})
	if len(s.Samples) != 1 {
		t.Errorf("expected truncation to 1 sample, got %d", len(s.Samples))
	}
}

func TestNormalized(t *testing.T) {
	s := Series{ID: "x", Samples: []Sample{
		{TimestampMS: 2000, Value: math.NaN(), Valid: true},
		{TimestampMS: 1000, Value: 1, Valid: true},
	}}
	n := s.normalized()
	if n.Samples[0].TimestampMS != 1000 {
		t.Errorf("expected sorted samples, got %+v", n.Samples)
	}
	if n.Samples[1].Valid {
		t.Errorf("NaN value should be demoted to missing")
	}
	// Original untouched.
	if s.Samples[0].TimestampMS != 2000 {
		t.Errorf("normalized mutated the receiver")
	}
}
