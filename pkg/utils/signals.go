// SPDX-License-Identifier: MIT

// Package utils provides deterministic 16-bit test signals and a recording
// transport for tests across the module.
package utils

import (
	"math"
	"math/rand/v2"
)

// GenerateSineWave returns size samples of a sine at frequency, scaled to
// amplitude (0..1) of full scale.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = int16(math.Sin(2*math.Pi*frequency*t) * math.MaxInt16 * amplitude)
	}
	return buffer
}

// GenerateComplexWave returns a voiced-speech-like tone: a 220 Hz
// fundamental with two harmonics at roughly 0.9 of full scale.
func GenerateComplexWave(size int, sampleRate float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*220*tm)*0.5 +
			math.Sin(2*math.Pi*440*tm)*0.3 +
			math.Sin(2*math.Pi*660*tm)*0.2
		buffer[i] = int16(signal * math.MaxInt16 * 0.9)
	}
	return buffer
}

// GenerateNoise returns uniform white noise in [-amplitude, amplitude] of
// full scale. The same seed always yields the same samples.
func GenerateNoise(size int, amplitude float64, seed uint64) []int16 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	buffer := make([]int16, size)
	for i := range buffer {
		buffer[i] = int16((rng.Float64()*2 - 1) * math.MaxInt16 * amplitude)
	}
	return buffer
}

// GenerateConstant returns size samples all equal to v.
func GenerateConstant(size int, v int16) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		buffer[i] = v
	}
	return buffer
}

// Concat joins signals end to end.
func Concat(parts ...[]int16) []int16 {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]int16, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Chunk splits samples into consecutive buffers of size n. The final
// buffer may be shorter.
func Chunk(samples []int16, n int) [][]int16 {
	if n <= 0 {
		return nil
	}
	var out [][]int16
	for len(samples) > 0 {
		k := min(n, len(samples))
		out = append(out, samples[:k])
		samples = samples[k:]
	}
	return out
}

// FindPeakBin returns the index of the largest value in
// magnitudes[startBin:endBin+1], with the bounds clamped to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
