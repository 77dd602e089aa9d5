// SPDX-License-Identifier: MIT
package analysis

// Matrix is a cepstral matrix: one row of coefficients per analysis frame.
type Matrix [][]float64

// NumFrames returns the number of rows.
func (m Matrix) NumFrames() int { return len(m) }

// Width returns the number of coefficients per frame, or 0 when empty.
func (m Matrix) Width() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Empty reports whether the matrix has no frames.
func (m Matrix) Empty() bool { return len(m) == 0 }

// FeatureExtractor turns 16-bit mono samples into a cepstral matrix.
// Implementations own scratch state and must not be called concurrently.
type FeatureExtractor interface {
	// Extract never fails; too-short or unusable input yields an empty matrix.
	Extract(samples []int16) Matrix
}

// Aggregator reduces a cepstral matrix of any length to a fixed-size
// feature vector.
type Aggregator interface {
	Aggregate(m Matrix) []float64
	// Size is the length of every vector Aggregate returns.
	Size() int
}

// SpectrumProvider describes the frequency layout of a spectral analyser.
type SpectrumProvider interface {
	BinFrequency(bin int) float64 // centre frequency (Hz) of a power-spectrum bin
	FFTSize() int                 // number of points per frame
	SampleRate() float64          // input sample rate (Hz)
}
