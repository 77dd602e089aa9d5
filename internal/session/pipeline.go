// SPDX-License-Identifier: MIT

// Package session drives a reading passage word by word: every attempt
// runs through the audio-to-verdict Pipeline, and a watchdog forces the
// session forward when no verdict arrives in time.
package session

import (
	"context"
	"time"

	"readcheck/internal/log"
	"readcheck/internal/observe"
	"readcheck/internal/override"
	"readcheck/internal/phonetic"
	"readcheck/internal/scoring"
)

// Source names what produced a word's decision.
type Source string

const (
	SourceOracle   Source = "oracle"
	SourcePhonetic Source = "phonetic"
	SourceOverride Source = "override"
	SourceTimeout  Source = "timeout"
	SourceNone     Source = "none"
)

// Decision is the pipeline's answer for one attempt.
type Decision struct {
	Verdict scoring.Verdict `json:"verdict"`
	Source  Source          `json:"source"`
	// Match is set whenever heard text was compared with the expected word.
	Match *phonetic.Result `json:"match,omitempty"`
	// Frames is the number of analysis frames scored; zero without audio.
	Frames int `json:"frames"`
	// Degraded marks a neutral verdict caused by an oracle problem.
	Degraded bool `json:"degraded"`
}

// Correct reports the final classification.
func (d Decision) Correct() bool { return d.Verdict.IsCorrect() }

// Pipeline turns an attempt into a Decision. It owns a Scorer, so it is
// not safe for concurrent use; build one per stream.
type Pipeline struct {
	scorer    *scoring.Scorer
	overrides *override.Table
	matcher   *phonetic.Matcher
	metrics   *observe.Metrics
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithOverrides sets the override table. The default is the built-in seed.
func WithOverrides(t *override.Table) PipelineOption {
	return func(p *Pipeline) { p.overrides = t }
}

// WithMatcher sets the phonetic fallback matcher.
func WithMatcher(m *phonetic.Matcher) PipelineOption {
	return func(p *Pipeline) { p.matcher = m }
}

// WithPipelineMetrics records override and resolve-stage metrics.
func WithPipelineMetrics(m *observe.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline wraps scorer. A nil scorer sends every attempt down the
// text-only path.
func NewPipeline(scorer *scoring.Scorer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{scorer: scorer}
	for _, o := range opts {
		o(p)
	}
	if p.overrides == nil {
		p.overrides = override.NewDefault()
	}
	if p.matcher == nil {
		p.matcher = phonetic.New()
	}
	return p
}

// Overrides returns the pipeline's override table.
func (p *Pipeline) Overrides() *override.Table { return p.overrides }

// Decide scores samples for expected. heard is the recognized text, or
// empty when unknown. Scoreable audio is judged by the oracle; otherwise a
// known heard word is compared phonetically. When both are present the
// oracle's verdict must also pass the matcher's accept rule: an exact
// heard word is correct, and an oracle "correct" needs close enough
// similarity. The result then passes through the override table. With
// neither, the word is incorrect with zero confidence.
func (p *Pipeline) Decide(ctx context.Context, expected, heard string, samples []int16) Decision {
	var d Decision
	if p.scorer != nil && len(samples) > 0 {
		rep := p.scorer.Score(ctx, expected, samples)
		d.Frames = rep.Frames
		d.Degraded = rep.Degraded
		if rep.Scoreable() {
			d.Verdict = rep.Verdict
			d.Source = SourceOracle
		}
	}

	if d.Source == "" {
		if phonetic.Normalize(heard) == "" {
			log.Debugf("session: %q has neither audio nor text", expected)
			return Decision{Verdict: scoring.EmptyVerdict(), Source: SourceNone}
		}
		m := p.matcher.Match(heard, expected)
		d.Match = &m
		d.Source = SourcePhonetic
		d.Verdict = phoneticVerdict(m)
		d.Degraded = false
	} else if phonetic.Normalize(heard) != "" {
		p.accept(&d, heard, expected)
	}

	if heard == "" {
		return d
	}
	start := time.Now()
	final := p.overrides.Resolve(heard, expected, d.Verdict.IsCorrect())
	p.metrics.RecordStage(ctx, observe.StageResolve, start)
	if final != d.Verdict.IsCorrect() {
		d.Verdict = d.Verdict.WithClassification(scoring.Incorrect)
		d.Source = SourceOverride
		p.metrics.RecordOverride(ctx)
		log.Infof("session: override forced %q heard as %q incorrect", expected, heard)
	}
	return d
}

// accept checks an oracle verdict against the heard text. A changed
// classification is attributed to the phonetic check.
func (p *Pipeline) accept(d *Decision, heard, expected string) {
	m := p.matcher.Match(heard, expected)
	d.Match = &m
	oracleCorrect := d.Verdict.IsCorrect()
	if p.matcher.Accept(m, oracleCorrect) == oracleCorrect {
		return
	}
	d.Source = SourcePhonetic
	if oracleCorrect {
		log.Infof("session: rejected oracle match of %q heard as %q (similarity %.2f)", expected, heard, m.Similarity)
		d.Verdict = d.Verdict.WithClassification(scoring.Incorrect)
		return
	}
	d.Verdict = phoneticVerdict(m).WithClassification(scoring.Correct)
}

// phoneticVerdict maps a match onto a verdict built from the similarity,
// with the larger confidence on the match's classification.
func phoneticVerdict(m phonetic.Result) scoring.Verdict {
	v := scoring.Verdict{Correct: m.Similarity, Incorrect: 1 - m.Similarity}
	if m.CloseEnough {
		return v.WithClassification(scoring.Correct)
	}
	return v.WithClassification(scoring.Incorrect)
}
