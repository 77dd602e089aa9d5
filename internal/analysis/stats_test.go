// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"
)

func TestAggregateEmpty(t *testing.T) {
	for _, layout := range []Layout{LayoutMeanDeltaDelta, LayoutMeanStdDelta} {
		a := NewAggregator(layout, 13)
		for _, m := range []Matrix{nil, {}} {
			got := a.Aggregate(m)
			if len(got) != 39 {
				t.Fatalf("%v: len(Aggregate(empty)) = %d, want 39", layout, len(got))
			}
			for i, v := range got {
				if v != 0 {
					t.Fatalf("%v: Aggregate(empty)[%d] = %v, want 0", layout, i, v)
				}
			}
		}
	}
}

func TestAggregateMeanDeltaDelta(t *testing.T) {
	// Column 0 is linear, column 1 is quadratic.
	m := Matrix{
		{0, 0},
		{2, 1},
		{4, 4},
		{6, 9},
	}
	a := NewAggregator(LayoutMeanDeltaDelta, 2)
	got := a.Aggregate(m)

	// Differences: col0 [2 2 2], col1 [1 3 5].
	// Difference series with d[0]=0: col0 [0 2 2 2], col1 [0 1 3 5].
	want := []float64{
		3, 3.5, // mean
		2, 3, // delta
		2.0 / 3, 5.0 / 3, // delta-delta
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Aggregate()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAggregateMeanStdDelta(t *testing.T) {
	m := Matrix{
		{2, 5},
		{4, 5},
		{4, 5},
		{4, 5},
		{5, 5},
		{5, 5},
		{7, 5},
		{9, 5},
	}
	a := NewAggregator(LayoutMeanStdDelta, 2)
	got := a.Aggregate(m)
	want := []float64{
		5, 5, // mean
		2, 0, // population std
		7.0 / 8, 0, // (last-first)/numFrames
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Aggregate()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAggregateSingleFrame(t *testing.T) {
	m := Matrix{{1, -2, 3}}
	for _, layout := range []Layout{LayoutMeanDeltaDelta, LayoutMeanStdDelta} {
		got := NewAggregator(layout, 3).Aggregate(m)
		want := []float64{1, -2, 3, 0, 0, 0, 0, 0, 0}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%v: Aggregate()[%d] = %v, want %v", layout, i, got[i], want[i])
			}
		}
	}
}

func TestAggregateNarrowRows(t *testing.T) {
	got := NewAggregator(LayoutMeanDeltaDelta, 3).Aggregate(Matrix{{2}, {4}})
	if len(got) != 9 || got[0] != 3 || got[1] != 0 || got[3] != 2 {
		t.Errorf("Aggregate(narrow) = %v", got)
	}
}

func TestAggregateFixedLength(t *testing.T) {
	a := NewAggregator(LayoutMeanDeltaDelta, 13)
	for _, frames := range []int{1, 2, 10, 300} {
		m := make(Matrix, frames)
		for f := range m {
			m[f] = make([]float64, 13)
			for c := range m[f] {
				m[f][c] = float64(f*c) * 0.01
			}
		}
		if got := len(a.Aggregate(m)); got != a.Size() {
			t.Errorf("%d frames: len(Aggregate()) = %d, want %d", frames, got, a.Size())
		}
	}
}

func TestParseLayout(t *testing.T) {
	tests := []struct {
		in      string
		want    Layout
		wantErr bool
	}{
		{"mean-delta-delta", LayoutMeanDeltaDelta, false},
		{"", LayoutMeanDeltaDelta, false},
		{"Mean-Std-Delta", LayoutMeanStdDelta, false},
		{"median", LayoutMeanDeltaDelta, true},
	}
	for _, tt := range tests {
		got, err := ParseLayout(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseLayout(%q) = (%v, %v), want (%v, err=%v)", tt.in, got, err, tt.want, tt.wantErr)
		}
		if err == nil && got.String() == "unknown" {
			t.Errorf("Layout(%d).String() = unknown", got)
		}
	}
}

func BenchmarkAggregate(b *testing.B) {
	a := NewAggregator(LayoutMeanDeltaDelta, 13)
	m := make(Matrix, 100)
	for f := range m {
		m[f] = make([]float64, 13)
	}
	for b.Loop() {
		a.Aggregate(m)
	}
}
