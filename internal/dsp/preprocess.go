// SPDX-License-Identifier: MIT
package dsp

import (
	"math"

	"readcheck/internal/log"
	"readcheck/pkg/pcm"
)

// Streaming pre-processor defaults.
const (
	DefaultGateRMS       = 0.02
	DefaultGateHold      = 3
	DefaultBandLowHz     = 80.0
	DefaultBandHighHz    = 3400.0
	preprocessOutputGain = pcm.FullScale
)

// PreProcessor conditions live capture buffers before they reach the
// denoiser: an RMS gate with hold, then an 80-3400 Hz band-pass built from
// a cascaded single-pole high-pass and low-pass. Filter state carries over
// between buffers; call Reset when a recording starts or stops.
type PreProcessor struct {
	GateThreshold float64
	GateHold      int

	hpAlpha float64
	lpAlpha float64
	hpPrev  float64
	lpPrev  float64
	quiet   int

	work []float64
}

// NewPreProcessor builds a pre-processor for the given sample rate.
func NewPreProcessor(sampleRate float64) *PreProcessor {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	p := &PreProcessor{
		GateThreshold: DefaultGateRMS,
		GateHold:      DefaultGateHold,
		hpAlpha:       HighPassAlpha(DefaultBandLowHz, sampleRate),
		lpAlpha:       LowPassAlpha(DefaultBandHighHz, sampleRate),
	}
	log.Debugf("dsp: preprocessor sr=%.0f hpAlpha=%.4f lpAlpha=%.4f", sampleRate, p.hpAlpha, p.lpAlpha)
	return p
}

// Gated reports whether the last buffer was silenced by the gate.
func (p *PreProcessor) Gated() bool {
	return p.quiet >= p.GateHold
}

// Process filters one buffer in place and returns it. Once GateHold
// consecutive buffers fall under GateThreshold the buffer is zeroed instead.
func (p *PreProcessor) Process(samples []int16) []int16 {
	if len(samples) == 0 {
		return samples
	}
	p.work = pcm.ToFloat(p.work, samples)
	x := p.work

	if RMS(x) < p.GateThreshold {
		p.quiet++
		if p.quiet >= p.GateHold {
			clear(samples)
			return samples
		}
	} else {
		p.quiet = 0
	}

	var prevIn float64 // x[-1] is zero for every buffer
	for i, in := range x {
		hp := p.hpAlpha * (p.hpPrev + in - prevIn)
		p.hpPrev = hp
		prevIn = in
		p.lpPrev += p.lpAlpha * (hp - p.lpPrev)
		samples[i] = scaleFullRange(p.lpPrev)
	}
	return samples
}

// ProcessBytes is Process over little-endian 16-bit PCM.
func (p *PreProcessor) ProcessBytes(raw []byte) []byte {
	if len(raw) < 2 {
		return raw
	}
	return pcm.Encode(p.Process(pcm.Decode(raw)))
}

// Reset clears the filter state and gate counter.
func (p *PreProcessor) Reset() {
	p.hpPrev = 0
	p.lpPrev = 0
	p.quiet = 0
}

// scaleFullRange maps [-1,1] onto the full signed 16-bit range.
func scaleFullRange(v float64) int16 {
	s := v * preprocessOutputGain
	return int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, s)))
}
