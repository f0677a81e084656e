package main

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	engine "github.com/voxboard/voxboard-core/core"
	"github.com/voxboard/voxboard-core/core/events"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#2D7D9A")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	modelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7FD4F5"))

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFCC00"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4444"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

type stateMsg engine.State
type statusMsg string
type userTranscriptMsg struct {
	text  string
	final bool
}
type turnDoneMsg engine.Turn
type toolSummaryMsg string
type engineErrMsg struct{ err error }

type model struct {
	engine *engine.Engine
	events chan tea.Msg

	spinner  spinner.Model
	viewport viewport.Model

	state      engine.State
	status     string
	transcript string
	history    []string
	err        string

	width  int
	height int
}

func newModel(e *engine.Engine) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#2D7D9A"))

	return model{
		engine:   e,
		events:   make(chan tea.Msg, 64),
		spinner:  s,
		viewport: viewport.New(80, 20),
		status:   "starting",
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startListening(), m.nextEvent())
}

// startListening wires the engine callbacks into the event channel and opens
// the session.
func (m model) startListening() tea.Cmd {
	send := func(msg tea.Msg) {
		select {
		case m.events <- msg:
		default:
		}
	}

	return func() tea.Msg {
		err := m.engine.Listen(context.Background(),
			engine.WithStateCallback(func(state engine.State) {
				send(stateMsg(state))
			}),
			engine.WithStatusCallback(func(message string) {
				send(statusMsg(message))
			}),
			engine.WithUserTranscriptCallback(func(_, text string, isFinal bool) {
				send(userTranscriptMsg{text: text, final: isFinal})
			}),
			engine.WithAiTurnCompleteCallback(func(turn engine.Turn) {
				send(turnDoneMsg(turn))
			}),
			engine.WithErrorCallback(func(err error) {
				send(engineErrMsg{err: err})
			}),
			engine.WithEventCallback(func(event events.Event) {
				switch typedEvent := event.(type) {
				case events.ToolCallCompleted:
					if typedEvent.Summary != "" {
						send(toolSummaryMsg(typedEvent.Summary))
					}
				case events.ToolCallFailed:
					send(toolSummaryMsg(typedEvent.Name + " failed: " + typedEvent.Error))
				}
			}),
		)
		if err != nil {
			return engineErrMsg{err: err}
		}
		return statusMsg("listening")
	}
}

func (m model) nextEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.engine.Stop()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-6, 3)
		m.refreshViewport()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case stateMsg:
		m.state = engine.State(msg)
		cmds = append(cmds, m.nextEvent())

	case statusMsg:
		m.status = string(msg)
		cmds = append(cmds, m.nextEvent())

	case userTranscriptMsg:
		m.transcript = msg.text
		if msg.final {
			m.history = append(m.history, userStyle.Render("you  "+msg.text))
			m.transcript = ""
			m.refreshViewport()
		}
		cmds = append(cmds, m.nextEvent())

	case turnDoneMsg:
		turn := engine.Turn(msg)
		if m.transcript != "" || turn.UserTranscript != "" {
			text := turn.UserTranscript
			if text == "" {
				text = m.transcript
			}
			m.history = append(m.history, userStyle.Render("you  "+text))
			m.transcript = ""
		}
		if turn.Text != "" {
			m.history = append(m.history, modelStyle.Render("ai   "+turn.Text))
		}
		m.refreshViewport()
		cmds = append(cmds, m.nextEvent())

	case toolSummaryMsg:
		m.history = append(m.history, toolStyle.Render("tool "+string(msg)))
		m.refreshViewport()
		cmds = append(cmds, m.nextEvent())

	case engineErrMsg:
		m.err = msg.err.Error()
		m.status = "stopped"
		cmds = append(cmds, m.nextEvent())

	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *model) refreshViewport() {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}

	content := wordwrap.String(strings.Join(m.history, "\n"), width)
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("voxboard"))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.transcript != "" {
		b.WriteString(statusStyle.Render("hearing: ") + m.transcript)
		b.WriteString("\n")
	}
	if m.err != "" {
		b.WriteString(errorStyle.Render("session error: " + m.err))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("press 'q' to quit"))
	return b.String()
}

func (m model) renderStatus() string {
	parts := []string{m.spinner.View() + " " + statusStyle.Render(m.status)}

	if m.state.Capturing {
		parts = append(parts, activeStyle.Render("capturing"))
	}
	if m.state.Speaking {
		parts = append(parts, activeStyle.Render("speaking"))
	}
	parts = append(parts, statusStyle.Render(time.Now().Format("15:04:05")))

	return strings.Join(parts, "  |  ")
}

func runUI(e *engine.Engine) error {
	p := tea.NewProgram(newModel(e), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
