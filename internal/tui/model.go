package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dwizi/intent-arbiter/internal/clarify"
	"github.com/dwizi/intent-arbiter/internal/session"
)

// Turner runs one chat turn. *session.Manager satisfies it.
type Turner interface {
	Handle(ctx context.Context, req session.Request) (session.Reply, error)
}

// scopes cycles the explicit scope override; "" lets cues and the focus
// latch decide.
var scopes = []string{"", "chat", "widget", "dashboard", "workspace"}

const turnTimeout = 30 * time.Second

type lineKind int

const (
	lineUser lineKind = iota
	lineAssistant
	lineAction
	lineError
)

type chatLine struct {
	kind lineKind
	text string
}

type turnDoneMsg struct {
	reply session.Reply
	err   error
}

type model struct {
	turner    Turner
	logger    *slog.Logger
	sessionID string

	keys     keyMap
	theme    theme
	help     help.Model
	input    textinput.Model
	viewport viewport.Model

	width    int
	height   int
	ready    bool
	pending  bool
	quitting bool

	lines      []chatLine
	clarifier  *clarify.ClarifierView
	cursor     int
	scopeIndex int
	latch      string
	lastScope  string
}

func Run(turner Turner, sessionID string, logger *slog.Logger) error {
	program := tea.NewProgram(newModel(turner, sessionID, logger), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func newModel(turner Turner, sessionID string, logger *slog.Logger) model {
	if logger == nil {
		logger = slog.Default()
	}
	input := textinput.New()
	input.Placeholder = "open links panel, the second one, from chat..."
	input.Prompt = "> "
	input.CharLimit = 512
	input.Focus()

	return model{
		turner:    turner,
		logger:    logger.With("component", "tui"),
		sessionID: strings.TrimSpace(sessionID),
		keys:      newKeyMap(),
		theme:     newTheme(),
		help:      help.New(),
		input:     input,
		viewport:  viewport.New(80, 20),
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.ready = true
		m.resize()
		return m, nil
	case turnDoneMsg:
		m.pending = false
		m.applyReply(typed.reply, typed.err)
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(typed, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(typed, m.keys.ToggleHelp):
			m.help.ShowAll = !m.help.ShowAll
			m.resize()
			return m, nil
		case key.Matches(typed, m.keys.CycleScope):
			m.scopeIndex = (m.scopeIndex + 1) % len(scopes)
			return m, nil
		case key.Matches(typed, m.keys.Up):
			if m.clarifier != nil && m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case key.Matches(typed, m.keys.Down):
			if m.clarifier != nil && m.cursor < len(m.clarifier.Options)-1 {
				m.cursor++
			}
			return m, nil
		case key.Matches(typed, m.keys.Pick):
			if m.clarifier == nil || len(m.clarifier.Options) == 0 {
				return m, nil
			}
			return m.submit(fmt.Sprintf("option %d", m.cursor+1))
		case key.Matches(typed, m.keys.Submit):
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.SetValue("")
			return m.submit(text)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) submit(text string) (tea.Model, tea.Cmd) {
	if m.pending || m.turner == nil {
		return m, nil
	}
	m.pending = true
	m.appendLine(lineUser, text)
	request := session.Request{
		SessionID: m.sessionID,
		Input:     text,
		Scope:     scopes[m.scopeIndex],
	}
	turner := m.turner
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
		defer cancel()
		reply, err := turner.Handle(ctx, request)
		return turnDoneMsg{reply: reply, err: err}
	}
}

func (m *model) applyReply(reply session.Reply, err error) {
	if err != nil {
		m.logger.Warn("turn failed", "error", err)
		m.appendLine(lineError, err.Error())
		return
	}
	if m.sessionID == "" {
		m.sessionID = reply.SessionID
	}
	m.latch = reply.FocusLatch
	m.lastScope = string(reply.Scope)
	if reply.Action != nil {
		m.appendLine(lineAction, reply.Message)
	} else if strings.TrimSpace(reply.Message) != "" {
		m.appendLine(lineAssistant, reply.Message)
	}
	switch {
	case reply.Clarifier != nil:
		m.clarifier = reply.Clarifier
		m.cursor = 0
	case reply.Kind == clarify.OutcomeExecuted || reply.Kind == clarify.OutcomeAcknowledged:
		m.clarifier = nil
		m.cursor = 0
	}
	m.resize()
}

func (m *model) appendLine(kind lineKind, text string) {
	m.lines = append(m.lines, chatLine{kind: kind, text: text})
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *model) resize() {
	if !m.ready {
		return
	}
	m.help.Width = m.width
	m.input.Width = max(10, m.width-6)
	height := m.height - lineCount(m.renderHeader()) - lineCount(m.renderOptions()) - lineCount(m.renderFooter())
	m.viewport.Width = max(10, m.width)
	m.viewport.Height = max(3, height)
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func lineCount(block string) int {
	if block == "" {
		return 0
	}
	return strings.Count(block, "\n") + 1
}
