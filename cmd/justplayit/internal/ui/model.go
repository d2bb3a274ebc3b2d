// Package ui renders the listening coordinator in a terminal.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	listening "github.com/koscakluka/justplayit/core"
	"github.com/koscakluka/justplayit/core/events"
	"github.com/muesli/reflow/wordwrap"
)

const (
	maxLogLines    = 12
	controlTimeout = 10 * time.Second
)

// Controller is the part of the coordinator the view drives.
type Controller interface {
	State() listening.State
	EnableAutomaticListening(ctx context.Context) error
	DisableAutomaticListening(ctx context.Context) error
	StartManualRecognition(ctx context.Context) error
	StartTimedRecognition(ctx context.Context, d time.Duration) error
	StopContinuousRecognition(ctx context.Context) error
	CancelRecognition(ctx context.Context, skipResume bool) error
}

// EventMsg delivers one coordinator event to the model.
type EventMsg struct{ Event events.Event }

type eventsClosedMsg struct{}

type controlResultMsg struct {
	action string
	err    error
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle  = lipgloss.NewStyle().Faint(true)
)

type Model struct {
	controller Controller
	events     <-chan events.Event
	timed      time.Duration

	state   listening.State
	spinner spinner.Model
	log     []string
	lastErr error

	width int
}

func NewModel(controller Controller, stream <-chan events.Event, timed time.Duration) Model {
	return Model{
		controller: controller,
		events:     stream,
		timed:      timed,
		state:      controller.State(),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case EventMsg:
		m.state = m.controller.State()
		if line := describe(msg.Event); line != "" {
			m.appendLog(msg.Event.Timestamp(), line)
		}
		return m, waitForEvent(m.events)
	case eventsClosedMsg:
		return m, tea.Quit
	case controlResultMsg:
		m.lastErr = nil
		if msg.err != nil {
			m.lastErr = fmt.Errorf("%s: %w", msg.action, msg.err)
		}
		m.state = m.controller.State()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("justplayit"))
	b.WriteString("\n\n")
	b.WriteString(m.renderState())
	b.WriteString("\n")
	if m.lastErr != nil {
		b.WriteString(errorStyle.Render(m.wrap(m.lastErr.Error())))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	for _, line := range m.log {
		b.WriteString(valueStyle.Render(m.wrap(line)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("a:auto listening  r:recognize  t:timed  s:stop  c:cancel  q:quit"))
	return b.String()
}

func (m Model) renderState() string {
	indicator := " "
	if m.state.IsStreaming {
		indicator = m.spinner.View()
	}

	auto := "off"
	if m.state.AutomaticListeningEnabled {
		auto = "on"
	}
	if m.state.PermissionDenied {
		auto += " (microphone denied)"
	}

	lines := []string{
		fmt.Sprintf("%s %s %s", indicator, labelStyle.Render("State:"), valueStyle.Render(m.state.String())),
		fmt.Sprintf("  %s %s", labelStyle.Render("Automatic listening:"), valueStyle.Render(auto)),
	}
	if !m.state.CooldownUntil.IsZero() {
		lines = append(lines, fmt.Sprintf("  %s %s",
			labelStyle.Render("Cooldown until:"), valueStyle.Render(m.state.CooldownUntil.Format(time.TimeOnly))))
	}
	return strings.Join(lines, "\n")
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "a":
		if m.state.AutomaticListeningEnabled {
			return m, m.control("disable automatic listening", m.controller.DisableAutomaticListening)
		}
		return m, m.control("enable automatic listening", m.controller.EnableAutomaticListening)
	case "r":
		return m, m.control("recognize", m.controller.StartManualRecognition)
	case "t":
		timed := m.timed
		return m, m.control("timed recognition", func(ctx context.Context) error {
			return m.controller.StartTimedRecognition(ctx, timed)
		})
	case "s":
		return m, m.control("stop recognition", m.controller.StopContinuousRecognition)
	case "c":
		return m, m.control("cancel recognition", func(ctx context.Context) error {
			return m.controller.CancelRecognition(ctx, false)
		})
	}
	return m, nil
}

func (m Model) control(action string, call func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
		defer cancel()
		return controlResultMsg{action: action, err: call(ctx)}
	}
}

func (m *Model) appendLog(at time.Time, line string) {
	m.log = append(m.log, at.Format(time.TimeOnly)+" "+line)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

func (m Model) wrap(text string) string {
	if m.width <= 0 {
		return text
	}
	return wordwrap.String(text, m.width)
}

func waitForEvent(stream <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-stream
		if !ok {
			return eventsClosedMsg{}
		}
		return EventMsg{Event: event}
	}
}
