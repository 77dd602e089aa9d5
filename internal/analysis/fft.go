// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"strings"

	"readcheck/internal/log"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the analysis window applied to each frame.
type WindowFunc int

// Available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

func (w WindowFunc) String() string {
	switch w {
	case BartlettHann:
		return "bartletthann"
	case Blackman:
		return "blackman"
	case BlackmanNuttall:
		return "blackmannuttall"
	case Hann:
		return "hann"
	case Hamming:
		return "hamming"
	case Lanczos:
		return "lanczos"
	case Nuttall:
		return "nuttall"
	default:
		return fmt.Sprintf("window(%d)", int(w))
	}
}

// ParseWindowFunc converts a name (case-insensitive) to a WindowFunc.
// Unknown names return Hamming and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming", "":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hamming, fmt.Errorf("unknown window function name: '%s'", name)
	}
}

// windowCoefficients returns n coefficients of the selected window.
func windowCoefficients(n int, windowType WindowFunc) []float64 {
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		log.Warnf("analysis: unknown window function %d, using hamming", windowType)
		window.Hamming(coeffs)
	}
	return coeffs
}

// spectrum holds the per-stream FFT state for power spectra of one frame
// size.
type spectrum struct {
	fft    *fourier.FFT
	coeffs []complex128 // fftSize/2+1 complex bins
}

func newSpectrum(fftSize int) spectrum {
	return spectrum{
		fft:    fourier.NewFFT(fftSize),
		coeffs: make([]complex128, fftSize/2+1),
	}
}

// power writes |X[k]|^2 for k in [0, N/2] of the windowed frame into dst.
func (s *spectrum) power(dst, frame []float64) {
	s.coeffs = s.fft.Coefficients(s.coeffs, frame)
	for k, c := range s.coeffs {
		re, im := real(c), imag(c)
		dst[k] = re*re + im*im
	}
}
