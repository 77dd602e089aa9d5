// SPDX-License-Identifier: MIT
package dsp

import (
	"math"

	"readcheck/pkg/pcm"
)

// DefaultSpeechRMS is the RMS above which a buffer is treated as speech.
const DefaultSpeechRMS = 0.02

// DefaultTargetRMS is the level RMSNormalize scales to.
const DefaultTargetRMS = 0.1

// Level buckets a buffer's RMS for display.
type Level uint8

// Upper RMS bounds of the quieter levels.
const (
	LevelSilentRMS = 0.01
	LevelQuietRMS  = 0.05
	LevelSpeechRMS = 0.3
)

const (
	LevelSilent Level = iota
	LevelQuiet
	LevelSpeech
	LevelLoud
)

func (l Level) String() string {
	switch l {
	case LevelSilent:
		return "SILENT"
	case LevelQuiet:
		return "QUIET"
	case LevelSpeech:
		return "SPEECH"
	case LevelLoud:
		return "LOUD"
	default:
		return "UNKNOWN"
	}
}

// Classify maps a normalized RMS onto a Level.
func Classify(rms float64) Level {
	switch {
	case rms < LevelSilentRMS:
		return LevelSilent
	case rms < LevelQuietRMS:
		return LevelQuiet
	case rms < LevelSpeechRMS:
		return LevelSpeech
	default:
		return LevelLoud
	}
}

// RMS returns the root mean square of x, or 0 for an empty slice.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

// RMS16 is RMS over 16-bit samples normalized by full scale.
func RMS16(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / pcm.FullScale
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// ContainsSpeech reports whether the buffer's RMS exceeds DefaultSpeechRMS.
func ContainsSpeech(samples []int16) bool {
	return SpeechPresent(samples, DefaultSpeechRMS)
}

// SpeechPresent reports whether the buffer's RMS exceeds threshold. A
// non-positive threshold means DefaultSpeechRMS.
func SpeechPresent(samples []int16, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultSpeechRMS
	}
	return RMS16(samples) > threshold
}

// RMSNormalize scales samples to the target RMS with clamping. Silent
// buffers are returned unchanged.
func RMSNormalize(samples []int16, target float64) []int16 {
	if len(samples) == 0 {
		return samples
	}
	if target <= 0 {
		target = DefaultTargetRMS
	}
	x := pcm.ToFloat(nil, samples)
	rms := RMS(x)
	if rms < 1e-10 {
		return samples
	}
	g := target / rms
	for i := range x {
		x[i] *= g
	}
	return pcm.FromFloat(nil, x)
}
