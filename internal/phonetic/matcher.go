// SPDX-License-Identifier: MIT

// Package phonetic implements the text-only fallback used when a word
// attempt has no usable audio verdict. It combines a Soundex-style code with
// Levenshtein edit distance and always produces a close / not-close answer.
package phonetic

import (
	"fmt"

	"github.com/antzucaro/matchr"
)

const (
	defaultCloseThreshold  = 0.6
	defaultAcceptThreshold = 0.75
)

// Result describes how a spoken word compares to the expected one.
type Result struct {
	Spoken       string  `json:"spoken"`
	Expected     string  `json:"expected"`
	SpokenCode   string  `json:"spoken_code"`
	ExpectedCode string  `json:"expected_code"`
	EditDistance int     `json:"edit_distance"`
	CodesEqual   bool    `json:"codes_equal"`
	Similarity   float64 `json:"similarity"`
	CloseEnough  bool    `json:"close_enough"`
}

// Exact reports whether the normalized words are identical.
func (r Result) Exact() bool {
	return r.EditDistance == 0 && r.Spoken != ""
}

func (r Result) String() string {
	return fmt.Sprintf("match(%q vs %q: codes=%s/%s equal=%t edit=%d sim=%.2f close=%t)",
		r.Spoken, r.Expected, r.SpokenCode, r.ExpectedCode,
		r.CodesEqual, r.EditDistance, r.Similarity, r.CloseEnough)
}

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithCloseThreshold sets the similarity at or above which two words are
// close enough even when their codes differ. Default: 0.6.
func WithCloseThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.closeThreshold = threshold
	}
}

// WithAcceptThreshold sets the similarity a recognizer-accepted word must
// reach before [Matcher.Accept] trusts it. Default: 0.75.
func WithAcceptThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.acceptThreshold = threshold
	}
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	closeThreshold  float64
	acceptThreshold float64
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		closeThreshold:  defaultCloseThreshold,
		acceptThreshold: defaultAcceptThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match compares spoken against expected after normalizing both. It
// always returns a result.
func (m *Matcher) Match(spoken, expected string) Result {
	spoken = Normalize(spoken)
	expected = Normalize(expected)

	sc, ec := Soundex(spoken), Soundex(expected)
	dist := Levenshtein(spoken, expected)
	sim := Similarity(dist, len(spoken), len(expected))
	equal := sc == ec && sc != NoCode

	return Result{
		Spoken:       spoken,
		Expected:     expected,
		SpokenCode:   sc,
		ExpectedCode: ec,
		EditDistance: dist,
		CodesEqual:   equal,
		Similarity:   sim,
		CloseEnough:  equal || sim >= m.closeThreshold,
	}
}

// Accept applies the stricter rule used when a recognizer already claims
// the word was read correctly: an exact match is accepted, otherwise the
// claim stands only if similarity reaches the accept threshold.
func (m *Matcher) Accept(r Result, recognizerCorrect bool) bool {
	if r.Exact() {
		return true
	}
	return recognizerCorrect && r.Similarity >= m.acceptThreshold
}

// Levenshtein returns the unit-cost edit distance between a and b.
func Levenshtein(a, b string) int {
	return matchr.Levenshtein(a, b)
}

// Similarity turns an edit distance into a score in [0, 1].
func Similarity(dist, lenA, lenB int) float64 {
	maxLen := max(lenA, lenB, 1)
	return 1 - float64(dist)/float64(maxLen)
}
