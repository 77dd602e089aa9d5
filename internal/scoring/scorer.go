// SPDX-License-Identifier: MIT

// Package scoring turns an utterance into a correctness verdict: it
// conditions the audio, extracts and aggregates MFCC statistics, and asks
// an external oracle for class probabilities. Every failure along the way
// degrades to a fixed verdict instead of an error.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"readcheck/internal/analysis"
	"readcheck/internal/dsp"
	"readcheck/internal/log"
	"readcheck/internal/observe"
)

// Report is the outcome of scoring one utterance.
type Report struct {
	Verdict Verdict
	// Frames is the number of analysis frames; zero means the audio was
	// not scoreable.
	Frames int
	// Features is the vector handed to the oracle, after normalization.
	Features []float64
	// Degraded is set when the verdict is neutral because the oracle was
	// missing, failed, panicked or was bypassed by the breaker.
	Degraded bool
}

// Scoreable reports whether the utterance produced at least one frame.
func (r Report) Scoreable() bool { return r.Frames > 0 }

// Scorer runs denoise, AGC, extract, aggregate and the oracle for one
// stream. It owns mutable DSP state and is not safe for concurrent use.
type Scorer struct {
	denoiser   *dsp.Denoiser
	mode       dsp.Mode
	agc        *dsp.AGC
	extractor  analysis.FeatureExtractor
	aggregator analysis.Aggregator
	oracle     Oracle
	normalizer *MinMax
	breaker    *Breaker
	featureLog *FeatureLog
	logLabel   Classification
	metrics    *observe.Metrics
	// raw skips denoise and AGC for audio a Conditioner already cleaned.
	raw bool
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithOracle sets the oracle. Without one every scoreable utterance gets
// the neutral verdict.
func WithOracle(o Oracle) Option {
	return func(s *Scorer) { s.oracle = o }
}

// WithDenoiseMode selects the full or lightweight denoiser entry point.
func WithDenoiseMode(m dsp.Mode) Option {
	return func(s *Scorer) { s.mode = m }
}

// WithDenoiser replaces the default denoiser.
func WithDenoiser(d *dsp.Denoiser) Option {
	return func(s *Scorer) { s.denoiser = d }
}

// WithAGC replaces the default AGC.
func WithAGC(a *dsp.AGC) Option {
	return func(s *Scorer) { s.agc = a }
}

// WithoutConditioning scores samples as given, skipping denoise and AGC.
func WithoutConditioning() Option {
	return func(s *Scorer) { s.raw = true }
}

// WithNormalizer min-max normalizes features before the oracle.
func WithNormalizer(n *MinMax) Option {
	return func(s *Scorer) { s.normalizer = n }
}

// WithBreaker guards oracle calls with b.
func WithBreaker(b *Breaker) Option {
	return func(s *Scorer) { s.breaker = b }
}

// WithFeatureLog appends every scored vector to l with the given label.
func WithFeatureLog(l *FeatureLog, label Classification) Option {
	return func(s *Scorer) {
		s.featureLog = l
		s.logLabel = label
	}
}

// WithMetrics records stage latency and oracle failures.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Scorer) { s.metrics = m }
}

// NewScorer builds a scorer around an extractor and aggregator.
func NewScorer(extractor analysis.FeatureExtractor, aggregator analysis.Aggregator, opts ...Option) *Scorer {
	s := &Scorer{
		extractor:  extractor,
		aggregator: aggregator,
		mode:       dsp.ModeFull,
	}
	for _, o := range opts {
		o(s)
	}
	if s.denoiser == nil {
		s.denoiser = dsp.NewDenoiser(dsp.DefaultDenoiseConfig())
	}
	if s.agc == nil {
		s.agc = dsp.NewAGC(dsp.DefaultAGCTarget, dsp.DefaultAGCMaxGain)
	}
	return s
}

// Denoiser exposes the scorer's denoiser so capture code can calibrate
// its noise profile.
func (s *Scorer) Denoiser() *dsp.Denoiser { return s.denoiser }

// Score conditions samples and classifies them. word is used for logging
// only. Empty audio and audio shorter than one frame yield EmptyVerdict.
func (s *Scorer) Score(ctx context.Context, word string, samples []int16) Report {
	if len(samples) == 0 {
		log.Debugf("scoring: %q has no audio", word)
		return Report{Verdict: EmptyVerdict()}
	}

	clean := samples
	start := time.Now()
	if !s.raw {
		clean = s.denoiser.Process(s.mode, samples)
		s.metrics.RecordStage(ctx, observe.StageDenoise, start)

		start = time.Now()
		clean = s.agc.Apply(clean)
		s.metrics.RecordStage(ctx, observe.StageAGC, start)
		start = time.Now()
	}

	m := s.extractor.Extract(clean)
	s.metrics.RecordStage(ctx, observe.StageExtract, start)
	if m.Empty() {
		log.Debugf("scoring: %q produced no frames from %d samples", word, len(samples))
		return Report{Verdict: EmptyVerdict()}
	}

	start = time.Now()
	features := s.aggregator.Aggregate(m)
	s.metrics.RecordStage(ctx, observe.StageAggregate, start)
	if s.normalizer != nil {
		features = s.normalizer.Normalize(features)
	}

	if s.featureLog != nil {
		if err := s.featureLog.Append(word, features, s.logLabel); err != nil {
			log.Warnf("scoring: feature log: %v", err)
		}
	}

	rep := Report{Frames: m.NumFrames(), Features: features}
	start = time.Now()
	out, err := s.predict(ctx, features)
	s.metrics.RecordStage(ctx, observe.StageOracle, start)
	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, ErrBreakerOpen):
			reason = "breaker"
			log.Debugf("scoring: %q oracle bypassed: %v", word, err)
		case errors.Is(err, ErrOracleUnavailable):
			reason = "unavailable"
			log.Debugf("scoring: %q has no oracle", word)
		default:
			var pe *PanicError
			if errors.As(err, &pe) {
				reason = "panic"
			}
			log.Warnf("scoring: %q oracle failed, using neutral verdict: %v", word, err)
		}
		s.metrics.RecordOracleFailure(ctx, reason)
		rep.Verdict = NeutralVerdict()
		rep.Degraded = true
		return rep
	}

	rep.Verdict = out.Verdict()
	log.Debugf("scoring: %q %d frames -> %v (%v)", word, rep.Frames, rep.Verdict, out.Kind())
	return rep
}

// PanicError carries a recovered oracle panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("oracle panicked: %v", e.Value)
}

// predict calls the oracle through the breaker and recovers panics.
func (s *Scorer) predict(ctx context.Context, features []float64) (Output, error) {
	if s.oracle == nil {
		return Output{}, ErrOracleUnavailable
	}
	var out Output
	call := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r}
			}
		}()
		out, err = s.oracle.Predict(ctx, features)
		return err
	}
	if s.breaker == nil {
		return out, call()
	}
	return out, s.breaker.Execute(call)
}
