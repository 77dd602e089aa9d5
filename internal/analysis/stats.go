// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Layout selects which three statistic blocks an aggregator emits, in
// order. The oracle must be fit against the same layout.
type Layout int

const (
	// LayoutMeanDeltaDelta emits {mean, delta, delta-delta}. Delta is the
	// mean of consecutive frame differences; delta-delta applies the same
	// reduction to the per-frame difference series (first frame 0).
	LayoutMeanDeltaDelta Layout = iota
	// LayoutMeanStdDelta emits {mean, population std, endpoint delta}, the
	// endpoint delta being (last-first)/numFrames.
	LayoutMeanStdDelta
)

func (l Layout) String() string {
	switch l {
	case LayoutMeanDeltaDelta:
		return "mean-delta-delta"
	case LayoutMeanStdDelta:
		return "mean-std-delta"
	default:
		return "unknown"
	}
}

// ParseLayout converts a layout name to a Layout.
func ParseLayout(name string) (Layout, error) {
	switch strings.ToLower(name) {
	case "mean-delta-delta", "":
		return LayoutMeanDeltaDelta, nil
	case "mean-std-delta":
		return LayoutMeanStdDelta, nil
	default:
		return LayoutMeanDeltaDelta, fmt.Errorf("unknown stats layout: '%s'", name)
	}
}

// StatsAggregator reduces a cepstral matrix to 3*width statistics.
type StatsAggregator struct {
	layout Layout
	width  int
	column []float64
}

var _ Aggregator = (*StatsAggregator)(nil)

// NewAggregator returns an aggregator for width-coefficient frames.
func NewAggregator(layout Layout, width int) *StatsAggregator {
	return &StatsAggregator{layout: layout, width: width}
}

// Size returns 3*width.
func (a *StatsAggregator) Size() int { return 3 * a.width }

// Layout returns the block layout.
func (a *StatsAggregator) Layout() Layout { return a.layout }

// Aggregate returns the statistics vector; an empty matrix yields zeros.
// Rows narrower than the configured width contribute zeros for the missing
// coefficients.
func (a *StatsAggregator) Aggregate(m Matrix) []float64 {
	out := make([]float64, a.Size())
	if m.Empty() {
		return out
	}
	mean, second, third := out[:a.width], out[a.width:2*a.width], out[2*a.width:]
	n := len(m)
	if cap(a.column) < n {
		a.column = make([]float64, n)
	}
	col := a.column[:n]

	for c := range a.width {
		for f, row := range m {
			col[f] = 0
			if c < len(row) {
				col[f] = row[c]
			}
		}
		switch a.layout {
		case LayoutMeanStdDelta:
			mean[c], second[c] = stat.PopMeanStdDev(col, nil)
			if math.IsNaN(second[c]) {
				second[c] = 0
			}
			third[c] = (col[n-1] - col[0]) / float64(n)
		default:
			mean[c] = stat.Mean(col, nil)
			second[c] = meanDifference(col)
			third[c] = meanSecondDifference(col)
		}
	}
	return out
}

// meanDifference is the mean of x[f]-x[f-1], or 0 for fewer than two
// values.
func meanDifference(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	var sum float64
	for f := 1; f < len(x); f++ {
		sum += x[f] - x[f-1]
	}
	return sum / float64(len(x)-1)
}

// meanSecondDifference applies meanDifference to the per-frame difference
// series d, where d[0]=0 and d[f]=x[f]-x[f-1].
func meanSecondDifference(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	var sum float64
	prev := 0.0
	for f := 1; f < len(x); f++ {
		d := x[f] - x[f-1]
		sum += d - prev
		prev = d
	}
	return sum / float64(len(x)-1)
}
