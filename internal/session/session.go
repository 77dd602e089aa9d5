// SPDX-License-Identifier: MIT
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"readcheck/internal/log"
	"readcheck/internal/observe"
	"readcheck/internal/phonetic"
	"readcheck/internal/scoring"
	"readcheck/internal/transport"
	"readcheck/internal/watchdog"
)

var (
	// ErrSessionComplete is returned for attempts after the last word or
	// after Stop.
	ErrSessionComplete = errors.New("session complete")
	// ErrStaleAttempt is returned when an attempt is not for the current
	// word, including when the word timed out while it was being scored.
	ErrStaleAttempt = errors.New("stale attempt")
	// ErrNotStarted is returned by Submit before Start.
	ErrNotStarted = errors.New("session not started")
)

// Outcome is the recorded result for one word.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeSkipped   Outcome = "skipped"
)

// Attempt is one try at the current word. Samples are 16 kHz mono PCM;
// Heard is recognized text when a recognizer is available.
type Attempt struct {
	Index   int
	Heard   string
	Samples []int16
}

// WordResult is published for every word exactly once.
type WordResult struct {
	SessionID string          `json:"session_id"`
	Index     int             `json:"index"`
	Word      string          `json:"word"`
	Heard     string          `json:"heard,omitempty"`
	Outcome   Outcome         `json:"outcome"`
	Source    Source          `json:"source"`
	Verdict   scoring.Verdict `json:"verdict"`
	Degraded  bool            `json:"degraded,omitempty"`
	Elapsed   time.Duration   `json:"elapsed_ns"`
	At        time.Time       `json:"at"`
}

// Summary counts outcomes across the passage.
type Summary struct {
	Words     int     `json:"words"`
	Decided   int     `json:"decided"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Skipped   int     `json:"skipped"`
	Accuracy  float64 `json:"accuracy"`
}

// Option configures a Session.
type Option func(*Session)

// WithWatchdog passes options to the session's watchdog.
func WithWatchdog(opts ...watchdog.Option) Option {
	return func(s *Session) { s.wdOpts = append(s.wdOpts, opts...) }
}

// WithTransport publishes every WordResult through t.
func WithTransport(t transport.Transport) Option {
	return func(s *Session) { s.transport = t }
}

// WithMetrics records word outcomes, timeouts and session counts.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// Session reads one passage. Submit calls are serialized; the watchdog
// fires on its own goroutine and races Submit for each word. Whichever
// reaches the watchdog first decides the word and the other is discarded.
type Session struct {
	id        string
	words     []string
	pipeline  *Pipeline
	wd        *watchdog.Watchdog
	wdOpts    []watchdog.Option
	transport transport.Transport
	metrics   *observe.Metrics

	submitMu sync.Mutex

	mu        sync.Mutex
	started   bool
	finished  bool
	current   int
	wordStart time.Time
	results   []WordResult
	updates   chan WordResult
	done      chan struct{}
}

// NewSession prepares a session over words. Each word is normalized and
// empty words are dropped.
func NewSession(words []string, pipeline *Pipeline, opts ...Option) *Session {
	norm := make([]string, 0, len(words))
	for _, w := range words {
		norm = append(norm, phonetic.Words(w)...)
	}
	s := &Session{
		words:    norm,
		pipeline: pipeline,
		updates:  make(chan WordResult, len(norm)),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.wd = watchdog.New(s.onTimeout, s.wdOpts...)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Words returns the normalized passage.
func (s *Session) Words() []string { return append([]string(nil), s.words...) }

// Start expects the first word. A passage with no words completes
// immediately. Later calls are no-ops.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.metrics.SessionStarted(ctx)
	log.Logger().Info("session started", "id", s.id, "words", len(s.words))
	if len(s.words) == 0 {
		s.finishLocked(ctx)
		return
	}
	s.expectLocked(0)
}

// Current returns the index and text of the word being read. ok is false
// once the session is complete.
func (s *Session) Current() (index int, word string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || s.current >= len(s.words) {
		return -1, "", false
	}
	return s.current, s.words[s.current], true
}

// Submit decides one attempt. Only the current word is accepted; if its
// deadline passes while the pipeline runs, the timeout stands and
// ErrStaleAttempt is returned.
func (s *Session) Submit(ctx context.Context, a Attempt) (WordResult, error) {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	s.mu.Lock()
	switch {
	case !s.started:
		s.mu.Unlock()
		return WordResult{}, ErrNotStarted
	case s.finished:
		s.mu.Unlock()
		return WordResult{}, ErrSessionComplete
	case a.Index != s.current:
		cur := s.current
		s.mu.Unlock()
		log.Debugf("session: attempt for word %d while expecting %d", a.Index, cur)
		return WordResult{}, ErrStaleAttempt
	}
	word := s.words[a.Index]
	s.mu.Unlock()

	d := s.pipeline.Decide(ctx, word, a.Heard, a.Samples)

	if !s.wd.Confirm(a.Index) {
		log.Debugf("session: word %d %q timed out before its verdict", a.Index, word)
		return WordResult{}, ErrStaleAttempt
	}

	outcome := OutcomeIncorrect
	if d.Correct() {
		outcome = OutcomeCorrect
	}
	r := WordResult{
		Index:    a.Index,
		Word:     word,
		Heard:    phonetic.Normalize(a.Heard),
		Outcome:  outcome,
		Source:   d.Source,
		Verdict:  d.Verdict,
		Degraded: d.Degraded,
	}
	s.record(ctx, r)
	return r, nil
}

// onTimeout runs on the watchdog goroutine.
func (s *Session) onTimeout(index int, word string) {
	ctx := context.Background()
	s.metrics.RecordTimeout(ctx)
	s.record(ctx, WordResult{
		Index:   index,
		Word:    word,
		Outcome: OutcomeSkipped,
		Source:  SourceTimeout,
		Verdict: scoring.EmptyVerdict(),
	})
}

// record stores r, advances to the next word and publishes r.
func (s *Session) record(ctx context.Context, r WordResult) {
	s.mu.Lock()
	if s.finished || r.Index != s.current {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	r.SessionID = s.id
	r.At = now
	r.Elapsed = now.Sub(s.wordStart)
	s.results = append(s.results, r)
	s.updates <- r

	if next := s.current + 1; next < len(s.words) {
		s.expectLocked(next)
	} else {
		s.finishLocked(ctx)
	}
	s.mu.Unlock()

	s.metrics.RecordWord(ctx, string(r.Outcome), string(r.Source))
	log.Logger().Debug("word decided", "index", r.Index, "word", r.Word, "outcome", r.Outcome, "source", r.Source)
	if s.transport != nil {
		if err := s.transport.Send(r); err != nil {
			log.Warnf("session: publish word %d: %v", r.Index, err)
		}
	}
}

func (s *Session) expectLocked(i int) {
	s.current = i
	s.wordStart = time.Now()
	s.wd.ExpectWord(i, s.words[i])
}

func (s *Session) finishLocked(ctx context.Context) {
	if s.finished {
		return
	}
	s.finished = true
	s.current = len(s.words)
	s.wd.Stop()
	close(s.updates)
	close(s.done)
	s.metrics.SessionEnded(ctx)
	log.Logger().Info("session complete", "id", s.id, "decided", len(s.results), "words", len(s.words))
}

// Stop abandons the session. Words not yet decided stay undecided.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.started = true
		s.metrics.SessionStarted(context.Background())
	}
	s.finishLocked(context.Background())
}

// Done is closed when the session completes or is stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Updates delivers each WordResult as it is decided and is closed when
// the session ends. It is buffered for the whole passage, so readers may
// fall behind without blocking the session.
func (s *Session) Updates() <-chan WordResult { return s.updates }

// Results returns the decided words so far.
func (s *Session) Results() []WordResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]WordResult(nil), s.results...)
}

// Summary counts outcomes so far. Accuracy is correct over decided words.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := Summary{Words: len(s.words), Decided: len(s.results)}
	for _, r := range s.results {
		switch r.Outcome {
		case OutcomeCorrect:
			sum.Correct++
		case OutcomeIncorrect:
			sum.Incorrect++
		case OutcomeSkipped:
			sum.Skipped++
		}
	}
	if sum.Decided > 0 {
		sum.Accuracy = float64(sum.Correct) / float64(sum.Decided)
	}
	return sum
}
