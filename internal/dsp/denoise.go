// SPDX-License-Identifier: MIT

// Package dsp holds the time-domain conditioning stages that run before
// feature extraction: the denoiser with its learned noise profile, peak
// AGC, RMS measures and the streaming pre-processor and segmenter used on
// live capture.
//
// Every type here owns mutable state and scratch buffers and belongs to
// exactly one audio stream. None of them is safe for concurrent use.
package dsp

import (
	"fmt"
	"math"
	"strings"

	"readcheck/internal/log"
	"readcheck/pkg/pcm"
)

// Default denoiser parameters for 16 kHz speech.
const (
	DefaultSampleRate        = 16000
	DefaultHighPassHz        = 100.0
	DefaultGateThreshold     = 0.015
	DefaultSubtraction       = 0.8
	DefaultFloorRatio        = 0.1
	DefaultCalibrationFrames = 10
)

// Mode selects a denoiser entry point.
type Mode int

const (
	// ModeFull runs high-pass, gate and subtraction.
	ModeFull Mode = iota
	// ModeLightweight adds 3-point smoothing after subtraction.
	ModeLightweight
)

func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeLightweight:
		return "lightweight"
	default:
		return "unknown"
	}
}

// ParseMode converts a name (case-insensitive) to a Mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(name) {
	case "full", "":
		return ModeFull, nil
	case "lightweight", "light":
		return ModeLightweight, nil
	default:
		return ModeFull, fmt.Errorf("unknown denoise mode: '%s'", name)
	}
}

// DenoiseConfig tunes a [Denoiser].
type DenoiseConfig struct {
	SampleRate        float64
	HighPassHz        float64
	GateThreshold     float64
	Subtraction       float64
	FloorRatio        float64
	CalibrationFrames int
	// SpeechRMS is the RMS above which a buffer counts as speech.
	SpeechRMS float64
}

// DefaultDenoiseConfig returns the 16 kHz speech defaults.
func DefaultDenoiseConfig() DenoiseConfig {
	return DenoiseConfig{
		SampleRate:        DefaultSampleRate,
		HighPassHz:        DefaultHighPassHz,
		GateThreshold:     DefaultGateThreshold,
		Subtraction:       DefaultSubtraction,
		FloorRatio:        DefaultFloorRatio,
		CalibrationFrames: DefaultCalibrationFrames,
		SpeechRMS:         DefaultSpeechRMS,
	}
}

// HighPassAlpha returns the single-pole RC high-pass coefficient for a
// cutoff at the given sample rate.
func HighPassAlpha(cutoffHz, sampleRate float64) float64 {
	rc := 1 / (2 * math.Pi * cutoffHz)
	dt := 1 / sampleRate
	return rc / (rc + dt)
}

// LowPassAlpha returns the single-pole RC low-pass coefficient.
func LowPassAlpha(cutoffHz, sampleRate float64) float64 {
	rc := 1 / (2 * math.Pi * cutoffHz)
	dt := 1 / sampleRate
	return dt / (rc + dt)
}

// Denoiser removes rumble, gates low-level hiss and subtracts a learned
// noise estimate. It owns its [NoiseProfile]; call Reset at the start of
// every recording.
type Denoiser struct {
	cfg     DenoiseConfig
	alpha   float64
	profile *NoiseProfile

	// Scratch reused across calls.
	work   []float64
	smooth []float64
}

// NewDenoiser builds a denoiser with an empty noise profile.
func NewDenoiser(cfg DenoiseConfig) *Denoiser {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.HighPassHz <= 0 {
		cfg.HighPassHz = DefaultHighPassHz
	}
	if cfg.CalibrationFrames <= 0 {
		cfg.CalibrationFrames = DefaultCalibrationFrames
	}
	return &Denoiser{
		cfg:     cfg,
		alpha:   HighPassAlpha(cfg.HighPassHz, cfg.SampleRate),
		profile: NewNoiseProfile(cfg.CalibrationFrames),
	}
}

// Profile exposes the noise profile for inspection.
func (d *Denoiser) Profile() *NoiseProfile {
	return d.profile
}

// Process runs the entry point selected by mode.
func (d *Denoiser) Process(mode Mode, samples []int16) []int16 {
	if mode == ModeLightweight {
		return d.LightweightDenoise(samples)
	}
	return d.Denoise(samples)
}

// Denoise runs high-pass, gate and, once a profile exists, subtraction. A
// nil or empty input is returned as is. The result has the input length.
func (d *Denoiser) Denoise(samples []int16) []int16 {
	if len(samples) == 0 {
		return samples
	}
	x := d.condition(samples)
	return pcm.FromFloat(nil, x)
}

// LightweightDenoise is Denoise followed by 3-point smoothing.
func (d *Denoiser) LightweightDenoise(samples []int16) []int16 {
	if len(samples) == 0 {
		return samples
	}
	x := d.condition(samples)
	x = d.smoothInto(x)
	return pcm.FromFloat(nil, x)
}

func (d *Denoiser) condition(samples []int16) []float64 {
	d.work = pcm.ToFloat(d.work, samples)
	x := d.work
	highPass(x, d.alpha)
	gate(x, d.cfg.GateThreshold)
	if d.profile.Ready() {
		d.subtract(x)
	}
	return x
}

// highPass filters x in place: y[0]=x[0], y[i]=a(y[i-1]+x[i]-x[i-1]).
func highPass(x []float64, alpha float64) {
	prevIn := x[0]
	for i := 1; i < len(x); i++ {
		in := x[i]
		x[i] = alpha * (x[i-1] + in - prevIn)
		prevIn = in
	}
}

// gate zeroes every sample whose magnitude is below threshold.
func gate(x []float64, threshold float64) {
	for i, v := range x {
		if math.Abs(v) < threshold {
			x[i] = 0
		}
	}
}

// subtract shrinks each sample's magnitude by the scaled noise estimate for
// its index, keeping the sign. The profile holds magnitudes, so this is
// |x| − k·n with the sign restored, not the signed x − k·n: a negative
// sample moves toward zero instead of away from it. The magnitude never
// drops below FloorRatio of the original; gated samples stay at zero.
func (d *Denoiser) subtract(x []float64) {
	for i, v := range x {
		if v == 0 {
			continue
		}
		mag := math.Abs(v)
		clean := mag - d.cfg.Subtraction*d.profile.At(i)
		if clean < d.cfg.FloorRatio*mag {
			clean = d.cfg.FloorRatio * mag
		}
		x[i] = math.Copysign(clean, v)
	}
}

// smoothInto applies a centered 3-point moving average with untouched
// endpoints. Inputs shorter than three samples are returned unchanged.
func (d *Denoiser) smoothInto(x []float64) []float64 {
	n := len(x)
	if n < 3 {
		return x
	}
	if cap(d.smooth) < n {
		d.smooth = make([]float64, n)
	}
	out := d.smooth[:n]
	out[0] = x[0]
	for i := 1; i < n-1; i++ {
		out[i] = (x[i-1] + x[i] + x[i+1]) / 3
	}
	out[n-1] = x[n-1]
	return out
}

// UpdateNoiseProfile folds one calibration buffer into the profile. It is
// a no-op once the calibration budget is spent.
func (d *Denoiser) UpdateNoiseProfile(samples []int16) {
	if len(samples) == 0 {
		return
	}
	if d.profile.Frozen() {
		return
	}
	d.work = pcm.ToFloat(d.work, samples)
	d.profile.Update(d.work)
	if d.profile.Frozen() {
		log.Debugf("dsp: noise profile frozen after %d frames (%d cells)", d.profile.Frames(), d.profile.Len())
	}
}

// ContainsSpeech reports whether samples exceed the configured speech RMS.
func (d *Denoiser) ContainsSpeech(samples []int16) bool {
	return SpeechPresent(samples, d.cfg.SpeechRMS)
}

// Reset clears the noise profile and its counter.
func (d *Denoiser) Reset() {
	d.profile.Reset()
}

// NoiseProfile is a per-index running average of noise magnitude, learned
// from a bounded number of calibration frames and then frozen.
type NoiseProfile struct {
	values []float64
	frames int
	limit  int
}

// NewNoiseProfile returns an empty profile accepting up to limit updates.
func NewNoiseProfile(limit int) *NoiseProfile {
	return &NoiseProfile{limit: limit}
}

// Update folds frame into the running average. The first frame sets the
// profile length; later frames update min(len) cells as
// avg = (avg*count + |x|) / (count+1). It reports whether the frame was used.
func (p *NoiseProfile) Update(frame []float64) bool {
	if p.Frozen() || len(frame) == 0 {
		return false
	}
	if p.values == nil {
		p.values = make([]float64, len(frame))
		for i, v := range frame {
			p.values[i] = math.Abs(v)
		}
	} else {
		n := float64(p.frames)
		for i := range min(len(p.values), len(frame)) {
			p.values[i] = (p.values[i]*n + math.Abs(frame[i])) / (n + 1)
		}
	}
	p.frames++
	return true
}

// Ready reports whether at least one frame has been folded in.
func (p *NoiseProfile) Ready() bool {
	return p.values != nil
}

// Frozen reports whether the calibration budget is spent.
func (p *NoiseProfile) Frozen() bool {
	return p.frames >= p.limit
}

// Frames returns the number of updates applied.
func (p *NoiseProfile) Frames() int {
	return p.frames
}

// Len returns the number of cells.
func (p *NoiseProfile) Len() int {
	return len(p.values)
}

// At returns the estimate for sample index i, wrapping around the profile.
func (p *NoiseProfile) At(i int) float64 {
	if len(p.values) == 0 {
		return 0
	}
	return p.values[i%len(p.values)]
}

// Reset discards the profile.
func (p *NoiseProfile) Reset() {
	p.values = nil
	p.frames = 0
}
