// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"readcheck/internal/audio"
	"readcheck/internal/session"
)

type fakeReading struct {
	words   []string
	updates chan session.WordResult
	summary session.Summary
}

func (f *fakeReading) Words() []string                    { return f.words }
func (f *fakeReading) Updates() <-chan session.WordResult { return f.updates }
func (f *fakeReading) Summary() session.Summary           { return f.summary }

type fixedLevel float64

func (l fixedLevel) Level() (float64, int) { return float64(l), 0 }

func update(t *testing.T, m tea.Model, msg tea.Msg) (tea.Model, tea.Cmd) {
	t.Helper()
	return m.Update(msg)
}

func TestReadingModelTracksResults(t *testing.T) {
	r := &fakeReading{
		words:   []string{"the", "ship", "sails"},
		updates: make(chan session.WordResult, 3),
		summary: session.Summary{Words: 3, Correct: 1, Accuracy: 1.0 / 3},
	}
	var m tea.Model = NewReadingModel(r, fixedLevel(0.1))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 20})

	if got := m.(ReadingModel).renderProgress(); !strings.Contains(got, "Word 1/3") {
		t.Errorf("progress = %q, want Word 1/3", got)
	}

	r.updates <- session.WordResult{Index: 0, Word: "the", Outcome: session.OutcomeCorrect}
	msg := waitForResult(r)()
	m, cmd := update(t, m, msg)
	if cmd == nil {
		t.Error("Update(result) returned no command, want next wait")
	}
	rm := m.(ReadingModel)
	if rm.current != 1 || rm.outcomes[0] != session.OutcomeCorrect {
		t.Errorf("after result: current = %d, outcomes[0] = %q", rm.current, rm.outcomes[0])
	}

	m, _ = update(t, m, resultMsg{Index: 1, Word: "ship", Outcome: session.OutcomeSkipped})
	m, _ = update(t, m, resultMsg{Index: 7, Outcome: session.OutcomeCorrect})
	rm = m.(ReadingModel)
	got := rm.renderProgress()
	if !strings.Contains(got, "Word 3/3") || !strings.Contains(got, "skipped 1") {
		t.Errorf("progress = %q, want Word 3/3 and skipped 1", got)
	}

	close(r.updates)
	m, _ = update(t, m, waitForResult(r)())
	rm = m.(ReadingModel)
	if rm.summary == nil || rm.summary.Correct != 1 {
		t.Fatalf("summary = %+v, want Correct 1", rm.summary)
	}
	if got := rm.renderProgress(); !strings.Contains(got, "accuracy 33%") {
		t.Errorf("progress = %q, want accuracy 33%%", got)
	}
	if view := rm.View(); !strings.Contains(view, "sails") {
		t.Errorf("View() missing passage words: %q", view)
	}
}

func TestReadingModelLevelAndQuit(t *testing.T) {
	r := &fakeReading{words: []string{"a"}, updates: make(chan session.WordResult)}
	var m tea.Model = NewReadingModel(r, fixedLevel(0.1))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 40, Height: 10})

	m, cmd := update(t, m, levelMsg(0.1))
	if cmd == nil {
		t.Error("Update(level) returned no command, want next tick")
	}
	if got := m.(ReadingModel).renderMeter(); !strings.Contains(got, "SPEECH") {
		t.Errorf("meter = %q, want SPEECH", got)
	}

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !m.(ReadingModel).quitting || cmd == nil {
		t.Error("q did not quit")
	}
}

func TestWrap(t *testing.T) {
	words := []string{"one", "two", "three", "four"}
	tests := []struct {
		width int
		want  string
	}{
		{0, "one two three four"},
		{80, "one two three four"},
		{9, "one two\nthree\nfour"},
	}
	for _, tt := range tests {
		if got := wrap(words, words, tt.width); got != tt.want {
			t.Errorf("wrap(width=%d) = %q, want %q", tt.width, got, tt.want)
		}
	}
}

func TestDevicePicker(t *testing.T) {
	m := NewDevicePickerModel()
	m.fetch = func() ([]audio.Device, error) {
		return []audio.Device{
			{ID: 0, Name: "Speakers", MaxOutputChannels: 2},
			{ID: 1, Name: "Mic", MaxInputChannels: 1, DefaultSampleRate: 48000},
			{ID: 2, Name: "Headset", MaxInputChannels: 1, MaxOutputChannels: 2, DefaultSampleRate: 16000},
		}, nil
	}

	var model tea.Model = m
	model, _ = update(t, model, tea.WindowSizeMsg{Width: 80, Height: 20})
	model, _ = update(t, model, m.Init()())

	if got := len(model.(DevicePickerModel).devices); got != 2 {
		t.Fatalf("devices = %d, want 2 input devices", got)
	}
	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyDown})
	model, cmd := update(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Error("Enter did not quit")
	}
	d, ok := model.(DevicePickerModel).Chosen()
	if !ok || d.ID != 2 {
		t.Errorf("Chosen() = (%+v, %v), want device 2", d, ok)
	}
}

func TestDevicePickerError(t *testing.T) {
	m := NewDevicePickerModel()
	m.fetch = func() ([]audio.Device, error) { return nil, errors.New("boom") }

	var model tea.Model = m
	model, _ = update(t, model, tea.WindowSizeMsg{Width: 80, Height: 20})
	model, _ = update(t, model, m.Init()())
	if view := model.View(); !strings.Contains(view, "boom") {
		t.Errorf("View() = %q, want error", view)
	}
	if _, ok := model.(DevicePickerModel).Chosen(); ok {
		t.Error("Chosen() ok after error")
	}
}
