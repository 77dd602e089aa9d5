// SPDX-License-Identifier: MIT
package dsp

import "readcheck/internal/log"

// Segmenter defaults at 16 kHz: 0.2 s minimum, 5 s maximum.
const (
	DefaultSegmentRMS  = 0.02
	DefaultSegmentHold = 3
	DefaultMinSamples  = 3200
	DefaultMaxSamples  = 80000
)

// SegmenterConfig tunes a [Segmenter].
type SegmenterConfig struct {
	RMSThreshold float64
	HoldFrames   int
	MinSamples   int
	MaxSamples   int
}

// DefaultSegmenterConfig returns the 16 kHz defaults.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		RMSThreshold: DefaultSegmentRMS,
		HoldFrames:   DefaultSegmentHold,
		MinSamples:   DefaultMinSamples,
		MaxSamples:   DefaultMaxSamples,
	}
}

// Segmenter cuts a stream of capture buffers into utterances. An utterance
// opens on the first buffer above RMSThreshold, keeps trailing quiet
// buffers, and closes after HoldFrames consecutive quiet buffers or once it
// reaches MaxSamples. Utterances shorter than MinSamples are dropped.
type Segmenter struct {
	cfg   SegmenterConfig
	buf   []int16
	open  bool
	quiet int
}

// NewSegmenter builds a segmenter; zero fields take the defaults.
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	def := DefaultSegmenterConfig()
	if cfg.RMSThreshold <= 0 {
		cfg.RMSThreshold = def.RMSThreshold
	}
	if cfg.HoldFrames <= 0 {
		cfg.HoldFrames = def.HoldFrames
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = def.MaxSamples
	}
	return &Segmenter{cfg: cfg}
}

// Active reports whether an utterance is being accumulated.
func (s *Segmenter) Active() bool {
	return s.open
}

// Push feeds one buffer. When it completes an utterance long enough to keep,
// the utterance is returned with ok set. The returned slice is owned by the
// caller.
func (s *Segmenter) Push(samples []int16) (utterance []int16, ok bool) {
	if len(samples) == 0 {
		return nil, false
	}
	speech := RMS16(samples) > s.cfg.RMSThreshold
	if !s.open {
		if !speech {
			return nil, false
		}
		s.open = true
		s.quiet = 0
	}

	s.buf = append(s.buf, samples...)
	if speech {
		s.quiet = 0
	} else {
		s.quiet++
	}

	if s.quiet >= s.cfg.HoldFrames || len(s.buf) >= s.cfg.MaxSamples {
		return s.Flush()
	}
	return nil, false
}

// Flush closes any open utterance and returns it if it meets MinSamples.
func (s *Segmenter) Flush() ([]int16, bool) {
	if !s.open {
		return nil, false
	}
	out := s.buf
	s.buf = nil
	s.open = false
	s.quiet = 0
	if len(out) < s.cfg.MinSamples {
		log.Debugf("dsp: dropped %d-sample utterance (min %d)", len(out), s.cfg.MinSamples)
		return nil, false
	}
	return out, true
}

// Reset discards any partial utterance.
func (s *Segmenter) Reset() {
	s.buf = nil
	s.open = false
	s.quiet = 0
}
