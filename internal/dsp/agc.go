// SPDX-License-Identifier: MIT
package dsp

import (
	"math"

	"readcheck/pkg/pcm"
)

// AGC defaults.
const (
	DefaultAGCTarget  = 0.7
	DefaultAGCMaxGain = 4.0
	DefaultAGCMinPeak = 0.01
)

// AGC is a peak-based gain normalizer.
type AGC struct {
	Target  float64 // peak level after gain
	MaxGain float64 // upper bound on applied gain
	MinPeak float64 // below this peak the buffer is left at unity gain

	work []float64
}

// NewAGC returns an AGC with the default target and limits. Zero arguments
// fall back to the defaults.
func NewAGC(target, maxGain float64) *AGC {
	if target <= 0 {
		target = DefaultAGCTarget
	}
	if maxGain <= 0 {
		maxGain = DefaultAGCMaxGain
	}
	return &AGC{Target: target, MaxGain: maxGain, MinPeak: DefaultAGCMinPeak}
}

// Gain returns the gain that would be applied to a buffer with the given
// normalized peak.
func (a *AGC) Gain(peak float64) float64 {
	if peak <= a.MinPeak {
		return 1
	}
	return math.Min(a.Target/peak, a.MaxGain)
}

// Apply scales samples so their peak approaches Target. The result has the
// same length; empty input is returned as is.
func (a *AGC) Apply(samples []int16) []int16 {
	if len(samples) == 0 {
		return samples
	}
	a.work = pcm.ToFloat(a.work, samples)
	g := a.Gain(Peak(a.work))
	for i := range a.work {
		a.work[i] *= g
	}
	return pcm.FromFloat(nil, a.work)
}

// Peak returns the largest absolute value in x.
func Peak(x []float64) float64 {
	var p float64
	for _, v := range x {
		if a := math.Abs(v); a > p {
			p = a
		}
	}
	return p
}
