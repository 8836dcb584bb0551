package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/editor-bridge/config"
	"github.com/wippyai/editor-bridge/listener"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	paramStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectCommand modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	err      error
	cfg      *config.Config
	initial  string
	session  *session
	commands []command
	result   string
	events   []string
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState

	// send delivers control notifications to the running program.
	send func(tea.Msg)
}

type loadedMsg struct {
	err     error
	session *session
}

type resultMsg struct {
	err    error
	result string
}

// eventMsg reports a control notification to the view.
type eventMsg string

func newInteractiveModel(cfg *config.Config, initial string) *interactiveModel {
	return &interactiveModel{cfg: cfg, initial: initial, state: stateSelectCommand}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.open
}

func (m *interactiveModel) open() tea.Msg {
	log, err := m.cfg.Logger()
	if err != nil {
		return loadedMsg{err: err}
	}
	installLogger(log)

	s, err := openSession(context.Background(), m.cfg, log)
	if err != nil {
		return loadedMsg{err: err}
	}
	if m.send != nil {
		// Send blocks until the program reads; the control's queue must not.
		s.ctrl.OnPropertyChanged(func(name string) { go m.send(eventMsg(name)) })
		s.ctrl.OnKeyDown(func(e *listener.KeyEvent) { go m.send(eventMsg(fmt.Sprintf("key %d", e.KeyCode))) })
	}
	if m.initial != "" {
		s.ctrl.SetText(m.initial)
	}
	return loadedMsg{session: s}
}

func (m *interactiveModel) shutdown() {
	if m.session != nil {
		m.session.close(context.Background())
		m.session = nil
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.shutdown()
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				m.shutdown()
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectCommand && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectCommand && m.selected < len(m.commands)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectCommand:
				if len(m.commands) == 0 {
					break
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.execute
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.execute

			case stateShowResult:
				m.state = stateSelectCommand
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectCommand
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectCommand
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.commands = msg.session.available()

	case resultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult

	case eventMsg:
		m.events = append(m.events, string(msg))
		if len(m.events) > 5 {
			m.events = m.events[len(m.events)-5:]
		}
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	c := m.commands[m.selected]
	m.inputs = make([]textinput.Model, len(c.params))
	for i, p := range c.params {
		ti := textinput.New()
		ti.Placeholder = p
		ti.Prompt = p + ": "
		ti.Width = 60
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) execute() tea.Msg {
	if m.session == nil {
		return resultMsg{err: fmt.Errorf("editor not loaded")}
	}
	c := m.commands[m.selected]
	args := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		args[i] = input.Value()
	}
	out, err := c.exec(context.Background(), m.session, args)
	if err != nil {
		return resultMsg{err: err}
	}
	if out == "" {
		out = "(no value)"
	}
	return resultMsg{result: out}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.session == nil {
		return "Loading editor engine..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Editor Bridge"))
	b.WriteString(" ")
	b.WriteString(m.cfg.Host.Kind)
	b.WriteString(fmt.Sprintf(" handle=%d theme=%s\n\n", m.session.ctrl.Handle(), m.session.ctrl.RequestedTheme()))

	switch m.state {
	case stateSelectCommand:
		b.WriteString("Select a command:\n\n")
		for i, c := range m.commands {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + m.formatCommand(c)))
			} else {
				b.WriteString(cursor + m.formatCommand(c))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter run • q quit"))

	case stateInputArgs:
		c := m.commands[m.selected]
		b.WriteString(fmt.Sprintf("%s  %s\n\n", commandStyle.Render(c.name), helpStyle.Render(c.help)))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter run • esc back"))

	case stateShowResult:
		c := m.commands[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", commandStyle.Render(c.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	if len(m.events) > 0 {
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("events: " + strings.Join(m.events, ", ")))
	}
	return b.String()
}

func (m *interactiveModel) formatCommand(c command) string {
	var params []string
	for _, p := range c.params {
		params = append(params, paramStyle.Render(p))
	}
	return commandStyle.Render(c.name) + "(" + strings.Join(params, ", ") + ")  " + helpStyle.Render(c.help)
}

func runInteractive(cfg *config.Config, initial string) error {
	m := newInteractiveModel(cfg, initial)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.send = p.Send

	_, err := p.Run()
	m.shutdown()
	return err
}
