// SPDX-License-Identifier: MIT
package dsp

import (
	"slices"
	"testing"

	"readcheck/pkg/utils"
)

func TestPreProcessorGateHold(t *testing.T) {
	p := NewPreProcessor(DefaultSampleRate)
	quiet := utils.GenerateNoise(1024, 0.01, 10)

	for i := range DefaultGateHold - 1 {
		out := p.Process(slices.Clone(quiet))
		if p.Gated() {
			t.Fatalf("buffer %d: Gated() = true before hold elapsed", i)
		}
		if !slices.ContainsFunc(out, func(v int16) bool { return v != 0 }) {
			t.Errorf("buffer %d: filtered output is all zero", i)
		}
	}

	out := p.Process(slices.Clone(quiet))
	if !p.Gated() {
		t.Fatalf("Gated() = false after %d quiet buffers", DefaultGateHold)
	}
	if slices.ContainsFunc(out, func(v int16) bool { return v != 0 }) {
		t.Errorf("gated buffer is not silent")
	}

	p.Process(utils.GenerateSineWave(1024, DefaultSampleRate, 500, 0.5))
	if p.Gated() {
		t.Errorf("Gated() = true after a speech buffer")
	}
}

func TestPreProcessorPassesSpeechBand(t *testing.T) {
	p := NewPreProcessor(DefaultSampleRate)
	in := utils.GenerateSineWave(4096, DefaultSampleRate, 1000, 0.5)
	inRMS := RMS16(in)

	out := p.Process(slices.Clone(in))
	if len(out) != len(in) {
		t.Fatalf("len(Process()) = %d, want %d", len(out), len(in))
	}
	if outRMS := RMS16(out[2048:]); outRMS < 0.8*inRMS || outRMS > 1.05*inRMS {
		t.Errorf("1 kHz RMS after Process() = %v, want near %v", outRMS, inRMS)
	}

	hiss := utils.GenerateSineWave(4096, DefaultSampleRate, 7000, 0.5)
	p.Reset()
	if outRMS := RMS16(p.Process(hiss)[2048:]); outRMS > 0.7*inRMS {
		t.Errorf("7 kHz RMS after Process() = %v, want well below %v", outRMS, inRMS)
	}
}

func TestPreProcessorReset(t *testing.T) {
	p := NewPreProcessor(DefaultSampleRate)
	for range DefaultGateHold {
		p.Process(make([]int16, 256))
	}
	if !p.Gated() {
		t.Fatalf("Gated() = false after silent buffers")
	}
	p.Reset()
	if p.Gated() || p.hpPrev != 0 || p.lpPrev != 0 {
		t.Errorf("Reset() left state gated=%v hp=%v lp=%v", p.Gated(), p.hpPrev, p.lpPrev)
	}
}

func TestPreProcessorBytes(t *testing.T) {
	p := NewPreProcessor(DefaultSampleRate)
	if got := p.ProcessBytes([]byte{1}); len(got) != 1 {
		t.Errorf("ProcessBytes(1 byte) len = %d, want 1", len(got))
	}
	raw := make([]byte, 640)
	if got := p.ProcessBytes(raw); len(got) != len(raw) {
		t.Errorf("ProcessBytes() len = %d, want %d", len(got), len(raw))
	}
}
