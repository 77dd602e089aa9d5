// SPDX-License-Identifier: MIT

// Package tui holds the bubbletea views: the live passage view for a
// reading session and the input device picker.
package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	currentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(lipgloss.Color("#F2C94C")).
			Bold(true)

	correctStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	incorrectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5484D")).
			Underline(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8A8A8A"))
)

var (
	quitKey  = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	upKey    = key.NewBinding(key.WithKeys("up", "k"))
	downKey  = key.NewBinding(key.WithKeys("down", "j"))
	enterKey = key.NewBinding(key.WithKeys("enter"))
)
