// ABOUTME: Bubbletea model for the noise player TUI
// ABOUTME: Defines player state, key handling and rendering
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Resonate-Protocol/resonate-noise/pkg/event"
	"github.com/Resonate-Protocol/resonate-noise/pkg/noise"
	"github.com/Resonate-Protocol/resonate-noise/pkg/noisevoice"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Voice is the part of a noise voice the player drives
type Voice interface {
	Type() noise.Type
	Length() int
	SetType(t noise.Type) error
	SetLength(v int) error
	NoteOn(note float64, opts ...noisevoice.TriggerOption) error
	NoteOff(opts ...noisevoice.TriggerOption) error
}

// VolumeControl adjusts the speaker output
type VolumeControl interface {
	SetVolume(volume int)
	SetMuted(muted bool)
}

// DefaultNote is the identifier sent with note on
const DefaultNote = 60

// Model represents the TUI state
type Model struct {
	voice   Voice
	output  VolumeControl
	clients func() int

	// Voice
	noiseType noise.Type
	length    int
	rate      int
	sounding  bool

	// Output
	volume int
	muted  bool

	// Status
	serving   string
	connected int
	lastEvent string
	lastErr   string
	startTime time.Time
	quitting  bool

	// Dimensions
	width  int
	height int
}

type tickMsg time.Time

// EventMsg carries a noise voice notification into the TUI
type EventMsg event.Event

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		if m.clients != nil {
			m.connected = m.clients()
		}
		return m, tickEvery()
	case EventMsg:
		m.applyEvent(event.Event(msg))
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.sounding {
			if err := m.voice.NoteOff(); err != nil {
				m.lastErr = err.Error()
			}
			m.sounding = false
		}
		return m, tea.Quit
	case "w":
		m.setType(noise.White)
	case "p":
		m.setType(noise.Pink)
	case "b":
		m.setType(noise.Brown)
	case "t", "tab":
		m.setType(nextType(m.noiseType))
	case "+", "=":
		next := m.length * 2
		if next == 0 {
			next = 1
		}
		m.setLength(next)
	case "-", "_":
		m.setLength(m.length / 2)
	case " ", "enter":
		m.toggleNote()
	case "up":
		m.volume = min(m.volume+5, 100)
		m.applyVolume()
	case "down":
		m.volume = max(m.volume-5, 0)
		m.applyVolume()
	case "m":
		m.muted = !m.muted
		if m.output != nil {
			m.output.SetMuted(m.muted)
		}
	}

	return m, nil
}

func (m *Model) setType(t noise.Type) {
	if err := m.voice.SetType(t); err != nil {
		m.lastErr = err.Error()
		return
	}
	m.lastErr = ""
	m.noiseType = m.voice.Type()
}

func (m *Model) setLength(v int) {
	if err := m.voice.SetLength(v); err != nil {
		m.lastErr = err.Error()
		return
	}
	m.lastErr = ""
	m.length = m.voice.Length()
}

func (m *Model) toggleNote() {
	var err error
	if m.sounding {
		err = m.voice.NoteOff()
	} else {
		err = m.voice.NoteOn(DefaultNote)
	}
	if err != nil {
		m.lastErr = err.Error()
		return
	}
	m.lastErr = ""
	m.sounding = !m.sounding
}

func (m *Model) applyVolume() {
	if m.output != nil {
		m.output.SetVolume(m.volume)
	}
}

// applyEvent records a voice change, which may come from a remote client
func (m *Model) applyEvent(e event.Event) {
	m.lastEvent = fmt.Sprintf("%s: %v", e.Type, e.Value)

	switch e.Type {
	case noisevoice.TypeChanged:
		if t, ok := e.Value.(noise.Type); ok {
			m.noiseType = t
		}
	case noisevoice.LengthChanged:
		if v, ok := e.Value.(int); ok {
			m.length = v
		}
	}
}

// nextType cycles white, pink, brown
func nextType(t noise.Type) noise.Type {
	types := noise.Types()
	for i, candidate := range types {
		if candidate == t {
			return types[(i+1)%len(types)]
		}
	}
	return types[0]
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	activeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().Faint(true)
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Stopping noise...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Noise Voice"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Type:   "))
	b.WriteString(m.renderTypes())
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Length: "))
	b.WriteString(valueStyle.Render(formatLength(m.length, m.rate)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Note:   "))
	if m.sounding {
		b.WriteString(activeStyle.Render("on"))
	} else {
		b.WriteString(valueStyle.Render("off"))
	}
	b.WriteString("\n")

	if m.output != nil {
		b.WriteString(headerStyle.Render("Volume: "))
		muteIcon := ""
		if m.muted {
			muteIcon = " (muted)"
		}
		b.WriteString(valueStyle.Render(fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteIcon)))
		b.WriteString("\n")
	}

	if m.serving != "" {
		b.WriteString(headerStyle.Render("Stream: "))
		if m.clients != nil {
			b.WriteString(valueStyle.Render(fmt.Sprintf("%s (%d clients)", m.serving, m.connected)))
		} else {
			b.WriteString(valueStyle.Render(m.serving))
		}
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Uptime: "))
		b.WriteString(valueStyle.Render(time.Since(m.startTime).Round(time.Second).String()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.lastEvent != "" {
		b.WriteString(valueStyle.Render("Last event: " + m.lastEvent))
		b.WriteString("\n")
	}
	if m.lastErr != "" {
		b.WriteString(errorStyle.Render("Error: " + m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	help := "w/p/b/t:Type  +/-:Length  space:Note"
	if m.output != nil {
		help += "  ↑/↓:Volume  m:Mute"
	}
	help += "  q:Quit"
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func (m Model) renderTypes() string {
	parts := make([]string, 0, len(noise.Types()))
	for _, t := range noise.Types() {
		if t == m.noiseType {
			parts = append(parts, activeStyle.Render("["+t.String()+"]"))
		} else {
			parts = append(parts, valueStyle.Render(" "+t.String()+" "))
		}
	}
	if !m.noiseType.Known() {
		parts = append(parts, activeStyle.Render("["+m.noiseType.String()+" → white]"))
	}
	return strings.Join(parts, " ")
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func formatLength(length, rate int) string {
	if rate <= 0 {
		return fmt.Sprintf("%d samples", length)
	}
	ms := float64(length) * 1000 / float64(rate)
	return fmt.Sprintf("%d samples (%.0fms)", length, ms)
}
