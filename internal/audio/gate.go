// SPDX-License-Identifier: MIT
package audio

// EnableGate turns on the capture gate and speech band filter.
func (e *Engine) EnableGate() {
	e.gateEnabled.Store(true)
}

// DisableGate passes capture buffers through untouched.
func (e *Engine) DisableGate() {
	e.gateEnabled.Store(false)
}

// GateEnabled reports whether the gate is on.
func (e *Engine) GateEnabled() bool {
	return e.gateEnabled.Load()
}

// SetGateThreshold sets the RMS below which the gate starts counting quiet
// buffers, clamped to [0, 1]. Call it before Start.
func (e *Engine) SetGateThreshold(threshold float64) {
	e.pre.GateThreshold = min(max(threshold, 0), 1)
}

// GateThreshold returns the gate's RMS threshold.
func (e *Engine) GateThreshold() float64 {
	return e.pre.GateThreshold
}
