// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"readcheck/internal/dsp"
	"readcheck/internal/session"
)

// levelInterval is how often the input meter is redrawn.
const levelInterval = 100 * time.Millisecond

// meterWidth is the number of cells in the input level bar.
const meterWidth = 30

// Reading is the part of a session the view needs.
type Reading interface {
	Words() []string
	Updates() <-chan session.WordResult
	Summary() session.Summary
}

// LevelSource reports the current input RMS.
type LevelSource interface {
	Level() (rms float64, word int)
}

type resultMsg session.WordResult

type finishedMsg session.Summary

type levelMsg float64

// ReadingModel shows the passage with the current word highlighted and
// each decided word coloured by outcome.
type ReadingModel struct {
	reading  Reading
	meter    LevelSource
	words    []string
	outcomes []session.Outcome
	current  int
	rms      float64
	summary  *session.Summary
	viewport viewport.Model
	ready    bool
	quitting bool
}

// NewReadingModel builds the view for r. meter may be nil.
func NewReadingModel(r Reading, meter LevelSource) ReadingModel {
	words := r.Words()
	return ReadingModel{
		reading:  r,
		meter:    meter,
		words:    words,
		outcomes: make([]session.Outcome, len(words)),
	}
}

// Init starts listening for results and meter ticks.
func (m ReadingModel) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForResult(m.reading)}
	if m.meter != nil {
		cmds = append(cmds, tickLevel(m.meter))
	}
	return tea.Batch(cmds...)
}

// waitForResult blocks on the next session update.
func waitForResult(r Reading) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-r.Updates()
		if !ok {
			return finishedMsg(r.Summary())
		}
		return resultMsg(res)
	}
}

func tickLevel(src LevelSource) tea.Cmd {
	return tea.Tick(levelInterval, func(time.Time) tea.Msg {
		rms, _ := src.Level()
		return levelMsg(rms)
	})
}

// Update applies results, meter ticks and key presses.
func (m ReadingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-6)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 6
		}
		m.viewport.SetContent(m.renderPassage())

	case resultMsg:
		if msg.Index >= 0 && msg.Index < len(m.outcomes) {
			m.outcomes[msg.Index] = msg.Outcome
			m.current = msg.Index + 1
		}
		if m.ready {
			m.viewport.SetContent(m.renderPassage())
		}
		cmds = append(cmds, waitForResult(m.reading))

	case finishedMsg:
		s := session.Summary(msg)
		m.summary = &s
		m.current = len(m.words)
		if m.ready {
			m.viewport.SetContent(m.renderPassage())
		}

	case levelMsg:
		m.rms = float64(msg)
		if m.summary == nil && m.meter != nil {
			cmds = append(cmds, tickLevel(m.meter))
		}

	case tea.KeyMsg:
		if key.Matches(msg, quitKey) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// View renders the title, passage, meter and progress line.
func (m ReadingModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	title := titleStyle.Render("Reading Check")
	help := infoStyle.Render("q: Quit")
	return fmt.Sprintf("%s\n\n%s\n\n%s\n%s\n%s", title, m.viewport.View(), m.renderMeter(), m.renderProgress(), help)
}

// renderPassage styles every word by its outcome.
func (m ReadingModel) renderPassage() string {
	parts := make([]string, len(m.words))
	for i, w := range m.words {
		switch {
		case m.outcomes[i] == session.OutcomeCorrect:
			parts[i] = correctStyle.Render(w)
		case m.outcomes[i] != "":
			parts[i] = incorrectStyle.Render(w)
		case i == m.current:
			parts[i] = currentStyle.Render(w)
		default:
			parts[i] = pendingStyle.Render(w)
		}
	}
	return wrap(parts, m.words, m.viewport.Width)
}

// wrap joins styled words into lines no wider than width, measured on the
// plain words.
func wrap(styled, plain []string, width int) string {
	var sb strings.Builder
	col := 0
	for i, w := range styled {
		n := len([]rune(plain[i]))
		if col > 0 && width > 0 && col+1+n > width {
			sb.WriteString("\n")
			col = 0
		} else if col > 0 {
			sb.WriteString(" ")
			col++
		}
		sb.WriteString(w)
		col += n
	}
	return sb.String()
}

func (m ReadingModel) renderMeter() string {
	filled := int(min(m.rms/dsp.LevelSpeechRMS, 1) * meterWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", meterWidth-filled)
	return fmt.Sprintf("Input %s %-6s", highlightStyle.Render(bar), dsp.Classify(m.rms))
}

func (m ReadingModel) renderProgress() string {
	var correct, incorrect, skipped int
	for _, o := range m.outcomes {
		switch o {
		case session.OutcomeCorrect:
			correct++
		case session.OutcomeIncorrect:
			incorrect++
		case session.OutcomeSkipped:
			skipped++
		}
	}
	line := fmt.Sprintf("Word %d/%d • correct %d • incorrect %d • skipped %d",
		min(m.current+1, len(m.words)), len(m.words), correct, incorrect, skipped)
	if m.summary != nil {
		line = fmt.Sprintf("Done • %d/%d correct • accuracy %.0f%%",
			m.summary.Correct, m.summary.Words, m.summary.Accuracy*100)
	}
	return infoStyle.Render(line)
}

// RunReading runs the passage view until the user quits.
func RunReading(r Reading, meter LevelSource) error {
	p := tea.NewProgram(NewReadingModel(r, meter), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
