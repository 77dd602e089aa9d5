// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"readcheck/internal/audio"
)

// ErrNoSelection is returned when the picker closes without a choice.
var ErrNoSelection = errors.New("no input device selected")

type devicesMsg []audio.Device

type errMsg struct{ err error }

// DevicePickerModel lists input-capable devices and lets the user choose
// one for capture.
type DevicePickerModel struct {
	fetch         func() ([]audio.Device, error)
	devices       []audio.Device
	selectedIndex int
	chosen        *audio.Device
	viewport      viewport.Model
	ready         bool
	err           error
}

// NewDevicePickerModel builds a picker over the host devices.
func NewDevicePickerModel() DevicePickerModel {
	return DevicePickerModel{fetch: audio.HostDevices}
}

// Init fetches the device list.
func (m DevicePickerModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		inputs := devices[:0:0]
		for _, d := range devices {
			if d.MaxInputChannels > 0 {
				inputs = append(inputs, d)
			}
		}
		return devicesMsg(inputs)
	}
}

// Chosen returns the selected device, if any.
func (m DevicePickerModel) Chosen() (audio.Device, bool) {
	if m.chosen == nil {
		return audio.Device{}, false
	}
	return *m.chosen, true
}

// Update handles navigation and selection.
func (m DevicePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderDevices())

	case devicesMsg:
		m.devices = msg
		m.viewport.SetContent(m.renderDevices())

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, quitKey):
			return m, tea.Quit
		case key.Matches(msg, upKey):
			if m.selectedIndex > 0 {
				m.selectedIndex--
				m.viewport.SetContent(m.renderDevices())
			}
		case key.Matches(msg, downKey):
			if m.selectedIndex < len(m.devices)-1 {
				m.selectedIndex++
				m.viewport.SetContent(m.renderDevices())
			}
		case key.Matches(msg, enterKey):
			if len(m.devices) > 0 {
				d := m.devices[m.selectedIndex]
				m.chosen = &d
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the picker.
func (m DevicePickerModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	title := titleStyle.Render("Select Input Device")
	help := infoStyle.Render("↑/↓: Navigate • Enter: Select • q: Quit")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DevicePickerModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}
	var sb strings.Builder
	for i, d := range m.devices {
		line := fmt.Sprintf("[%d] %s\n    %d input channels, %.0f Hz default\n", d.ID, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
		if i == m.selectedIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// PickDevice runs the picker and returns the chosen device ID. PortAudio
// must be initialized.
func PickDevice() (int, error) {
	final, err := tea.NewProgram(NewDevicePickerModel(), tea.WithAltScreen()).Run()
	if err != nil {
		return audio.DefaultDeviceID, err
	}
	m := final.(DevicePickerModel)
	if m.err != nil {
		return audio.DefaultDeviceID, m.err
	}
	d, ok := m.Chosen()
	if !ok {
		return audio.DefaultDeviceID, ErrNoSelection
	}
	return d.ID, nil
}
