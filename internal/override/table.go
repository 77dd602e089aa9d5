// SPDX-License-Identifier: MIT

// Package override holds the deterministic table of known mispronunciations
// that must never be scored as correct, whatever the acoustic model says.
package override

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"readcheck/internal/log"
	"readcheck/internal/phonetic"
)

// Table maps a normalized spoken form onto the word it is a known
// mispronunciation of. Reads and writes are safe from multiple goroutines.
type Table struct {
	mu      sync.RWMutex
	entries map[string]string
}

// New builds a table from pairs. Keys and values are normalized before
// they are stored.
func New(pairs map[string]string) *Table {
	t := &Table{entries: make(map[string]string, len(pairs))}
	for spoken, expected := range pairs {
		t.put(spoken, expected)
	}
	return t
}

// NewDefault builds a table holding the built-in [Seed] pairs.
func NewDefault() *Table {
	return New(Seed())
}

func (t *Table) put(spoken, expected string) bool {
	s, e := phonetic.Normalize(spoken), phonetic.Normalize(expected)
	if s == "" || e == "" {
		return false
	}
	t.entries[s] = e
	return true
}

// Add inserts or replaces one pair. Pairs that normalize to an empty word
// on either side are ignored and reported as false.
func (t *Table) Add(spoken, expected string) bool {
	t.mu.Lock()
	ok := t.put(spoken, expected)
	t.mu.Unlock()
	if ok {
		log.Debugf("override: added %q -> %q", phonetic.Normalize(spoken), phonetic.Normalize(expected))
	}
	return ok
}

// AddAll inserts every pair of extra.
func (t *Table) AddAll(extra map[string]string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for spoken, expected := range extra {
		if t.put(spoken, expected) {
			n++
		}
	}
	return n
}

// Lookup returns the correction stored for spoken, if any.
func (t *Table) Lookup(spoken string) (string, bool) {
	t.mu.RLock()
	e, ok := t.entries[phonetic.Normalize(spoken)]
	t.mu.RUnlock()
	return e, ok
}

// Matches reports whether spoken is a recorded mispronunciation of
// expected.
func (t *Table) Matches(spoken, expected string) bool {
	correction, ok := t.Lookup(spoken)
	return ok && correction == phonetic.Normalize(expected)
}

// Resolve returns the final correctness decision. A matching entry forces
// INCORRECT; otherwise oracleCorrect passes through unchanged.
func (t *Table) Resolve(spoken, expected string, oracleCorrect bool) bool {
	if t.Matches(spoken, expected) {
		log.Debugf("override: %q for %q forced incorrect (oracle said %t)", spoken, expected, oracleCorrect)
		return false
	}
	return oracleCorrect
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// LoadFile reads a YAML mapping of spoken form to expected word and adds
// every pair to the table.
func (t *Table) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("override: read %s: %w", path, err)
	}
	var pairs map[string]string
	if err := yaml.Unmarshal(data, &pairs); err != nil {
		return 0, fmt.Errorf("override: parse %s: %w", path, err)
	}
	return t.AddAll(pairs), nil
}
