// SPDX-License-Identifier: MIT
package scoring

import (
	"errors"
	"sync"
	"time"

	"readcheck/internal/log"
)

// ErrBreakerOpen is returned by Breaker.Execute while the oracle is being
// bypassed.
var ErrBreakerOpen = errors.New("oracle circuit breaker is open")

// BreakerState is the breaker's operating mode.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a Breaker. Zero fields take the defaults.
type BreakerConfig struct {
	Name         string
	MaxFailures  int           // consecutive failures before opening, default 5
	ResetTimeout time.Duration // time spent open before probing, default 30s
	HalfOpenMax  int           // successful probes needed to close, default 3
}

// Breaker stops calling a failing oracle for a while so each word gets the
// neutral verdict immediately instead of waiting on a dead collaborator. It
// is safe for concurrent use.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	now          func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	probes      int
	probeOK     int
}

// NewBreaker returns a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		now:          time.Now,
	}
}

// Execute runs fn unless the breaker is open. While half-open at most
// HalfOpenMax probes are in flight; any probe failure re-opens it.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.lastFailure) < b.resetTimeout {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.state = BreakerHalfOpen
		b.probes, b.probeOK = 0, 0
		log.Logger().Info("oracle breaker half-open", "name", b.name)
	case BreakerHalfOpen:
		if b.probes >= b.halfOpenMax {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
	}
	probing := b.state == BreakerHalfOpen
	if probing {
		b.probes++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(probing)
	} else {
		b.onSuccess(probing)
	}
	return err
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure(probing bool) {
	b.lastFailure = b.now()
	if probing {
		b.state = BreakerOpen
		log.Logger().Warn("oracle breaker re-opened", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.maxFailures && b.state == BreakerClosed {
		b.state = BreakerOpen
		log.Logger().Warn("oracle breaker opened", "name", b.name, "consecutive_failures", b.failures)
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess(probing bool) {
	if !probing {
		b.failures = 0
		return
	}
	if b.state != BreakerHalfOpen {
		return
	}
	b.probeOK++
	if b.probeOK >= b.halfOpenMax {
		b.state = BreakerClosed
		b.failures, b.probes, b.probeOK = 0, 0, 0
		log.Logger().Info("oracle breaker closed", "name", b.name)
	}
}

// State reports the current state. An open breaker whose timeout has
// elapsed reports half-open; the transition happens on the next Execute.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.lastFailure) >= b.resetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures, b.probes, b.probeOK = 0, 0, 0
}
