// SPDX-License-Identifier: MIT

/*
Package analysis implements MFCC feature extraction and the statistics
that reduce a variable-length cepstral matrix to the fixed-size vector
handed to the scoring oracle.

Frames are windowed (Hamming by default), transformed to a power spectrum
over bins [0, N/2], projected through a triangular mel filterbank,
log-compressed with log(e+1e-10) and decorrelated with a type-II DCT.

Thread Safety:
  - A Bank is immutable after construction and may be shared.
  - A Context owns every scratch buffer and belongs to one stream.
  - An Extractor pairs the two and must not be called concurrently.
*/
package analysis

import (
	"errors"
	"fmt"
	"math"

	"readcheck/internal/log"
	"readcheck/pkg/bitint"
	"readcheck/pkg/pcm"

	"gonum.org/v1/gonum/floats"
)

// logFloor keeps log() finite on silent filters.
const logFloor = 1e-10

// ErrInvalidConfig is wrapped by every extractor configuration error.
var ErrInvalidConfig = errors.New("invalid extractor config")

// Config describes one extractor geometry.
type Config struct {
	SampleRate   float64
	FrameSize    int // samples per frame, power of two
	Hop          int // samples between frame starts
	Filters      int // mel filters
	Coefficients int // cepstral coefficients kept per frame
	Window       WindowFunc
}

// StandardConfig is the 16 kHz, 512/160 geometry with 26 filters and 13
// coefficients.
func StandardConfig() Config {
	return Config{
		SampleRate:   16000,
		FrameSize:    512,
		Hop:          160,
		Filters:      26,
		Coefficients: 13,
		Window:       Hamming,
	}
}

// HalfOverlapConfig is the 50%-overlap geometry with 40 filters.
func HalfOverlapConfig() Config {
	return Config{
		SampleRate:   16000,
		FrameSize:    512,
		Hop:          256,
		Filters:      40,
		Coefficients: 13,
		Window:       Hamming,
	}
}

// Validate reports the first problem with c.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be positive, got %f", ErrInvalidConfig, c.SampleRate)
	case !bitint.IsPowerOfTwo(c.FrameSize):
		return fmt.Errorf("%w: frame size must be a power of 2, got %d", ErrInvalidConfig, c.FrameSize)
	case c.Hop <= 0:
		return fmt.Errorf("%w: hop must be positive, got %d", ErrInvalidConfig, c.Hop)
	case c.Filters <= 0:
		return fmt.Errorf("%w: filter count must be positive, got %d", ErrInvalidConfig, c.Filters)
	case c.Coefficients <= 0 || c.Coefficients > c.Filters:
		return fmt.Errorf("%w: coefficients must be in [1, %d], got %d", ErrInvalidConfig, c.Filters, c.Coefficients)
	}
	return nil
}

// NumFrames returns floor((n-FrameSize)/Hop)+1, or 0 when n < FrameSize.
func (c Config) NumFrames(n int) int {
	if n < c.FrameSize || c.Hop <= 0 {
		return 0
	}
	return (n-c.FrameSize)/c.Hop + 1
}

// Bank holds the precomputed, read-only tables for one Config.
type Bank struct {
	cfg     Config
	window  []float64
	filters []melFilter
	dct     [][]float64
}

// NewBank validates cfg and precomputes the window, filterbank and DCT.
func NewBank(cfg Config) (*Bank, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Bank{
		cfg:     cfg,
		window:  windowCoefficients(cfg.FrameSize, cfg.Window),
		filters: newMelFilterbank(cfg.Filters, cfg.FrameSize, cfg.SampleRate),
		dct:     dctTable(cfg.Coefficients, cfg.Filters),
	}, nil
}

// Config returns the geometry the bank was built for.
func (b *Bank) Config() Config { return b.cfg }

// BinFrequency returns the centre frequency of power bin k.
func (b *Bank) BinFrequency(k int) float64 {
	if k < 0 || k > b.cfg.FrameSize/2 {
		return 0
	}
	return float64(k) * b.cfg.SampleRate / float64(b.cfg.FrameSize)
}

// FFTSize returns the frame size.
func (b *Bank) FFTSize() int { return b.cfg.FrameSize }

// SampleRate returns the configured sample rate.
func (b *Bank) SampleRate() float64 { return b.cfg.SampleRate }

// Context is the per-stream analysis workspace: every buffer one frame
// needs, sized once for a Bank's geometry.
type Context struct {
	psd    spectrum
	signal []float64 // normalized input, grown as needed
	frame  []float64 // windowed frame
	power  []float64 // FrameSize/2+1 power bins
	mel    []float64 // log mel energies
}

// NewContext allocates a workspace matching b.
func NewContext(b *Bank) *Context {
	n := b.cfg.FrameSize
	return &Context{
		psd:   newSpectrum(n),
		frame: make([]float64, n),
		power: make([]float64, n/2+1),
		mel:   make([]float64, b.cfg.Filters),
	}
}

// Frame computes the cepstral coefficients of x (at most FrameSize
// samples, zero padded) into dst, which must hold Coefficients values.
func (b *Bank) Frame(ctx *Context, x, dst []float64) {
	for i := range ctx.frame {
		if i < len(x) {
			ctx.frame[i] = x[i] * b.window[i]
		} else {
			ctx.frame[i] = 0
		}
	}
	ctx.psd.power(ctx.power, ctx.frame)
	for m, f := range b.filters {
		ctx.mel[m] = math.Log(f.apply(ctx.power) + logFloor)
	}
	for i, basis := range b.dct {
		dst[i] = floats.Dot(basis, ctx.mel)
	}
}

// Extractor is a FeatureExtractor over one Bank and one Context.
type Extractor struct {
	bank *Bank
	ctx  *Context
}

// Compile-time checks for interface implementations.
var _ FeatureExtractor = (*Extractor)(nil)
var _ SpectrumProvider = (*Bank)(nil)

// NewExtractor builds an extractor with its own workspace.
func NewExtractor(cfg Config) (*Extractor, error) {
	bank, err := NewBank(cfg)
	if err != nil {
		return nil, err
	}
	log.Debugf("analysis: extractor frame=%d hop=%d filters=%d coeffs=%d window=%v",
		cfg.FrameSize, cfg.Hop, cfg.Filters, cfg.Coefficients, cfg.Window)
	return &Extractor{bank: bank, ctx: NewContext(bank)}, nil
}

// NewExtractorWithBank shares an existing bank with a fresh workspace.
func NewExtractorWithBank(bank *Bank) *Extractor {
	return &Extractor{bank: bank, ctx: NewContext(bank)}
}

// Bank returns the extractor's tables.
func (e *Extractor) Bank() *Bank { return e.bank }

// Extract returns one row of coefficients per frame. Input shorter than one
// frame, or any numeric failure, yields an empty matrix.
func (e *Extractor) Extract(samples []int16) (m Matrix) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("analysis: extraction failed: %v", r)
			m = Matrix{}
		}
	}()

	cfg := e.bank.cfg
	n := cfg.NumFrames(len(samples))
	if n == 0 {
		return Matrix{}
	}
	e.ctx.signal = pcm.ToFloat(e.ctx.signal, samples)

	m = make(Matrix, n)
	backing := make([]float64, n*cfg.Coefficients)
	for f := range n {
		start := f * cfg.Hop
		row := backing[f*cfg.Coefficients : (f+1)*cfg.Coefficients : (f+1)*cfg.Coefficients]
		e.bank.Frame(e.ctx, e.ctx.signal[start:start+cfg.FrameSize], row)
		m[f] = row
	}
	return m
}
