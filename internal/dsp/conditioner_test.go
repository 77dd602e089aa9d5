// SPDX-License-Identifier: MIT
package dsp

import (
	"testing"

	"readcheck/pkg/utils"
)

func TestConditionerCalibratesFirst(t *testing.T) {
	cfg := DefaultDenoiseConfig()
	cfg.CalibrationFrames = 3
	c := NewConditioner(NewDenoiser(cfg), nil)
	noise := utils.GenerateNoise(1024, 0.01, 7)

	for i := range 3 {
		out, ok := c.Process(noise)
		if ok || out != nil {
			t.Fatalf("buffer %d: Process() = (%d samples, %v), want calibration", i, len(out), ok)
		}
	}
	if c.Calibrating() {
		t.Fatal("Calibrating() = true after 3 buffers")
	}

	tone := utils.GenerateSineWave(1024, 16000, 500, 0.1)
	out, ok := c.Process(tone)
	if !ok || len(out) != len(tone) {
		t.Fatalf("Process() = (%d samples, %v), want (%d, true)", len(out), ok, len(tone))
	}
	if RMS16(out) <= RMS16(tone) {
		t.Errorf("RMS16() = %v, want gain above input %v", RMS16(out), RMS16(tone))
	}

	c.Reset()
	if !c.Calibrating() {
		t.Error("Calibrating() = false after Reset")
	}
}

func TestConditionerSkipsSpeechDuringCalibration(t *testing.T) {
	tone := utils.GenerateSineWave(1024, 16000, 500, 0.1)
	tests := []struct {
		name      string
		speechRMS float64
		wantFrame int
	}{
		{"default threshold", 0, 0},
		{"configured threshold above tone", 0.5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDenoiseConfig()
			cfg.SpeechRMS = tt.speechRMS
			c := NewConditioner(NewDenoiser(cfg), nil)
			if out, ok := c.Process(tone); ok || out != nil {
				t.Fatalf("Process() = (%d samples, %v), want swallowed", len(out), ok)
			}
			if got := c.denoiser.Profile().Frames(); got != tt.wantFrame {
				t.Errorf("Profile().Frames() = %d, want %d", got, tt.wantFrame)
			}
		})
	}
}

func TestConditionerEmptyBuffer(t *testing.T) {
	c := NewConditioner(nil, nil)
	if out, ok := c.Process(nil); ok || out != nil {
		t.Errorf("Process(nil) = (%v, %v), want (nil, false)", out, ok)
	}
	if c.denoiser.Profile().Frames() != 0 {
		t.Error("empty buffer counted toward calibration")
	}
}

func TestMeter(t *testing.T) {
	var m Meter
	if rms, word := m.Level(); rms != 0 || word != 0 {
		t.Errorf("zero Level() = (%v, %d), want (0, 0)", rms, word)
	}
	r := m.Observe(utils.GenerateConstant(100, 3277))
	m.SetWord(4)
	rms, word := m.Level()
	if rms != r || word != 4 {
		t.Errorf("Level() = (%v, %d), want (%v, 4)", rms, word, r)
	}
	if Classify(rms) != LevelSpeech {
		t.Errorf("Classify(%v) = %v, want SPEECH", rms, Classify(rms))
	}
}
