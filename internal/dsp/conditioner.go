// SPDX-License-Identifier: MIT
package dsp

import "readcheck/internal/log"

// Conditioner prepares live capture buffers for segmentation. The first
// buffers of a recording calibrate the denoiser's noise profile and are
// swallowed; buffers the denoiser hears speech in are swallowed without
// being learned. Every later buffer is lightweight-denoised and gain
// normalized.
type Conditioner struct {
	denoiser *Denoiser
	agc      *AGC
}

// NewConditioner wraps d and a. Nil arguments get defaults.
func NewConditioner(d *Denoiser, a *AGC) *Conditioner {
	if d == nil {
		d = NewDenoiser(DefaultDenoiseConfig())
	}
	if a == nil {
		a = NewAGC(DefaultAGCTarget, DefaultAGCMaxGain)
	}
	return &Conditioner{denoiser: d, agc: a}
}

// Calibrating reports whether buffers still feed the noise profile.
func (c *Conditioner) Calibrating() bool {
	return !c.denoiser.Profile().Frozen()
}

// Process consumes one capture buffer. While calibrating it returns
// (nil, false); afterwards it returns the cleaned buffer and true.
func (c *Conditioner) Process(samples []int16) ([]int16, bool) {
	if len(samples) == 0 {
		return samples, false
	}
	if c.Calibrating() {
		if c.denoiser.ContainsSpeech(samples) {
			log.Debugf("dsp: speech during calibration, buffer not learned")
			return nil, false
		}
		c.denoiser.UpdateNoiseProfile(samples)
		if !c.Calibrating() {
			log.Infof("dsp: noise profile calibrated over %d buffers", c.denoiser.Profile().Frames())
		}
		return nil, false
	}
	return c.agc.Apply(c.denoiser.LightweightDenoise(samples)), true
}

// Reset discards the noise profile so the next buffers recalibrate.
func (c *Conditioner) Reset() {
	c.denoiser.Reset()
}
