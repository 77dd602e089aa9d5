// SPDX-License-Identifier: MIT
package dsp

import (
	"math"
	"sync/atomic"
)

// Meter holds the latest capture level and current word for readers on
// other goroutines. The zero value is ready to use.
type Meter struct {
	rms  atomic.Uint64
	word atomic.Int32
}

// Observe records the RMS of samples and returns it.
func (m *Meter) Observe(samples []int16) float64 {
	r := RMS16(samples)
	m.rms.Store(math.Float64bits(r))
	return r
}

// SetWord records the index of the word being read; -1 means none.
func (m *Meter) SetWord(i int) {
	m.word.Store(int32(i))
}

// Level returns the last RMS and word index.
func (m *Meter) Level() (rms float64, word int) {
	return math.Float64frombits(m.rms.Load()), int(m.word.Load())
}
