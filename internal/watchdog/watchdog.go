// SPDX-License-Identifier: MIT

// Package watchdog bounds how long a reading session waits on one word.
//
// A Watchdog holds at most one pending deadline. Expecting a new word
// silently replaces the previous deadline; confirming the word cancels it.
// When a deadline passes without confirmation the timeout callback runs
// exactly once for that word. Confirmation and expiry race on the same
// mutex, so exactly one of them wins for any word and the other is a no-op.
package watchdog

import (
	"sync"
	"time"

	"readcheck/internal/log"
)

// Default timing. Words longer than DefaultComplexLength get the longer
// budget.
const (
	DefaultNormalTimeout  = 3000 * time.Millisecond
	DefaultComplexTimeout = 5000 * time.Millisecond
	DefaultComplexLength  = 8
)

// State is the lifecycle position of the current word.
type State int

const (
	StateIdle State = iota
	StateWaiting
	StateConfirmed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateConfirmed:
		return "confirmed"
	case StateTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Callback receives the word whose deadline passed.
type Callback func(index int, word string)

// Entry is a snapshot of the live deadline.
type Entry struct {
	Index    int
	Word     string
	Deadline time.Time
	Active   bool
}

// Option is a functional option for configuring a [Watchdog].
type Option func(*Watchdog)

// WithTimeouts overrides the normal and complex word budgets.
func WithTimeouts(normal, complex time.Duration) Option {
	return func(w *Watchdog) {
		w.normal = normal
		w.complex = complex
	}
}

// WithComplexLength sets the word length above which the complex budget
// applies.
func WithComplexLength(n int) Option {
	return func(w *Watchdog) {
		w.complexLen = n
	}
}

// Watchdog is safe for concurrent use.
type Watchdog struct {
	normal     time.Duration
	complex    time.Duration
	complexLen int
	onTimeout  Callback

	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	state    State
	index    int
	word     string
	deadline time.Time
}

// New returns an idle watchdog. onTimeout may be nil.
func New(onTimeout Callback, opts ...Option) *Watchdog {
	w := &Watchdog{
		normal:     DefaultNormalTimeout,
		complex:    DefaultComplexTimeout,
		complexLen: DefaultComplexLength,
		onTimeout:  onTimeout,
		index:      -1,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// TimeoutFor returns the budget granted to word.
func (w *Watchdog) TimeoutFor(word string) time.Duration {
	if len(word) > w.complexLen {
		return w.complex
	}
	return w.normal
}

// ExpectWord cancels any pending deadline and starts a new one for word.
func (w *Watchdog) ExpectWord(index int, word string) {
	d := w.TimeoutFor(word)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.cancelLocked()
	w.gen++
	gen := w.gen
	w.state = StateWaiting
	w.index = index
	w.word = word
	w.deadline = time.Now().Add(d)
	w.timer = time.AfterFunc(d, func() { w.expire(gen) })

	log.Debugf("watchdog: expecting word %d %q within %s", index, word, d)
}

// WordConfirmed cancels the pending deadline, whatever word it belongs to.
// It reports whether a pending word was confirmed.
func (w *Watchdog) WordConfirmed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateWaiting {
		return false
	}
	w.confirmLocked()
	return true
}

// Confirm cancels the pending deadline only when it belongs to index. A
// false result means the word already timed out or was replaced.
func (w *Watchdog) Confirm(index int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateWaiting || w.index != index {
		return false
	}
	w.confirmLocked()
	return true
}

func (w *Watchdog) confirmLocked() {
	w.cancelLocked()
	w.gen++
	w.state = StateConfirmed
	log.Debugf("watchdog: word %d %q confirmed", w.index, w.word)
	w.state = StateIdle
}

// Stop cancels any pending deadline and forgets the current word.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.cancelLocked()
	w.gen++
	w.state = StateIdle
	w.index = -1
	w.word = ""
	w.deadline = time.Time{}
}

// State returns the current state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Current returns the live entry, if any.
func (w *Watchdog) Current() Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Entry{
		Index:    w.index,
		Word:     w.word,
		Deadline: w.deadline,
		Active:   w.state == StateWaiting,
	}
}

func (w *Watchdog) cancelLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// expire runs on the timer goroutine. A stale generation means the deadline
// was cancelled or replaced after the timer had already fired.
func (w *Watchdog) expire(gen uint64) {
	w.mu.Lock()
	if gen != w.gen || w.state != StateWaiting {
		w.mu.Unlock()
		return
	}
	w.state = StateTimedOut
	w.timer = nil
	index, word := w.index, w.word
	w.mu.Unlock()

	log.Infof("watchdog: word %d %q timed out", index, word)
	if w.onTimeout != nil {
		w.onTimeout(index, word)
	}

	w.mu.Lock()
	if gen == w.gen && w.state == StateTimedOut {
		w.state = StateIdle
	}
	w.mu.Unlock()
}
