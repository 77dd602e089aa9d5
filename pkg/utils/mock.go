// SPDX-License-Identifier: MIT
package utils

import (
	"errors"
	"sync"
)

// ErrClosed is returned by MockTransport.Send after Close.
var ErrClosed = errors.New("mock transport closed")

// MockTransport records every message sent through it instead of
// transmitting. It is safe for concurrent use.
type MockTransport struct {
	mu       sync.Mutex
	messages []any
	closed   bool

	// Err, when set, is returned from Send and the message is dropped.
	Err error
}

// Send stores v for later inspection.
func (m *MockTransport) Send(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, v)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Messages returns a copy of everything sent so far.
func (m *MockTransport) Messages() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.messages...)
}

// Last returns the most recent message, or nil.
func (m *MockTransport) Last() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return nil
	}
	return m.messages[len(m.messages)-1]
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
