// SPDX-License-Identifier: MIT
package analysis

import "math"

// HzToMel converts a frequency to the mel scale.
func HzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

// MelToHz converts a mel value back to Hz.
func MelToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melBinPoints returns the numFilters+2 FFT bin indices of the filter
// edges, evenly spaced in mel between 0 Hz and Nyquist.
func melBinPoints(numFilters, fftSize int, sampleRate float64) []int {
	low := HzToMel(0)
	high := HzToMel(sampleRate / 2)
	points := make([]int, numFilters+2)
	for i := range points {
		mel := low + (high-low)*float64(i)/float64(numFilters+1)
		points[i] = int(float64(fftSize+1) * MelToHz(mel) / sampleRate)
	}
	return points
}

// melFilter is one triangular filter stored sparsely from its first
// non-zero bin.
type melFilter struct {
	start   int
	weights []float64
}

// newMelFilterbank builds numFilters triangular filters over the
// fftSize/2+1 power bins. Filters whose edges collapse onto one bin are
// empty and always yield zero energy.
func newMelFilterbank(numFilters, fftSize int, sampleRate float64) []melFilter {
	points := melBinPoints(numFilters, fftSize, sampleRate)
	bins := fftSize/2 + 1
	bank := make([]melFilter, numFilters)
	for i := range bank {
		left, center, right := points[i], points[i+1], min(points[i+2], bins)
		f := melFilter{start: left}
		for k := left; k < center && k < bins; k++ {
			f.weights = append(f.weights, float64(k-left)/float64(center-left))
		}
		for k := center; k < right; k++ {
			f.weights = append(f.weights, float64(points[i+2]-k)/float64(points[i+2]-center))
		}
		bank[i] = f
	}
	return bank
}

// apply returns the filter's weighted sum over power.
func (f melFilter) apply(power []float64) float64 {
	var sum float64
	for j, w := range f.weights {
		sum += w * power[f.start+j]
	}
	return sum
}

// dctTable returns the type-II DCT basis cos(pi*i*(j+0.5)/numFilters) for
// numCoeffs output rows.
func dctTable(numCoeffs, numFilters int) [][]float64 {
	table := make([][]float64, numCoeffs)
	for i := range table {
		row := make([]float64, numFilters)
		for j := range row {
			row[j] = math.Cos(math.Pi * float64(i) * (float64(j) + 0.5) / float64(numFilters))
		}
		table[i] = row
	}
	return table
}
