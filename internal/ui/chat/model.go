// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ollama-relay/internal/markdown"
	"github.com/jeranaias/ollama-relay/internal/relay"
	"github.com/jeranaias/ollama-relay/internal/ui/styles"
)

// =============================================================================
// CONNECTION STATUS
// =============================================================================

// Status is the relay connection state shown in the header.
type Status int

const (
	StatusChecking Status = iota
	StatusConnected
	StatusError
)

// String returns the header label for the status.
func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "checking"
	}
}

// =============================================================================
// PROGRAM SENDER
// =============================================================================

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// senderRef is shared by every copy of the Model so the program can be
// attached after it is created from the model.
type senderRef struct {
	mu     sync.Mutex
	target Sender
}

func (r *senderRef) set(s Sender) {
	r.mu.Lock()
	r.target = s
	r.mu.Unlock()
}

func (r *senderRef) send(msg tea.Msg) {
	r.mu.Lock()
	target := r.target
	r.mu.Unlock()
	if target != nil {
		target.Send(msg)
	}
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the chat screen.
type Model struct {
	session  *relay.Session
	theme    *styles.Theme
	renderer *markdown.Renderer
	keys     KeyMap

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	status    Status
	statusErr error
	modelName string
	streaming bool

	turns  *turnCanceller
	sender *senderRef

	width  int
	height int
}

// New creates the chat screen for a loaded session.
func New(session *relay.Session, theme *styles.Theme) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 4096

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	return Model{
		session:  session,
		theme:    theme,
		renderer: markdown.NewRenderer(theme.ContentWidth()),
		keys:     DefaultKeyMap(),
		viewport: vp,
		input:    ti,
		spinner:  sp,
		status:   StatusChecking,
		turns:    newTurnCanceller(),
		sender:   &senderRef{},
	}
}

// Attach connects the model to the program that runs it. Streaming updates
// are delivered through s.
func (m Model) Attach(s Sender) {
	m.sender.set(s)
}

// Status returns the relay connection state.
func (m Model) Status() Status {
	return m.status
}

// Streaming reports whether a turn is in flight.
func (m Model) Streaming() bool {
	return m.streaming
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the health check.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, checkHealth(m.session.Client()))
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case HealthMsg:
		return m.handleHealth(msg)

	case FragmentMsg:
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil

	case TurnDoneMsg:
		return m.handleTurnDone(msg)

	case ClearedMsg:
		if msg.Err != nil {
			log.Printf("HISTORY_CLEAR_FAILED | error=%v", msg.Err)
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.streaming && m.status != StatusChecking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.streaming {
			m.refresh()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// =============================================================================
// HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	// Header is a title line plus its bottom border; the footer is the
	// bordered input line plus the help line.
	const (
		headerHeight = 2
		footerHeight = 3
	)

	vpHeight := m.height - headerHeight - footerHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = vpHeight

	const promptLen = 2
	inputWidth := m.width - 4 - promptLen
	if inputWidth < 10 {
		inputWidth = 10
	}
	m.input.Width = inputWidth

	m.theme.SetSize(m.width, m.height)
	m.renderer.SetWidth(m.theme.ContentWidth())

	m.refresh()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Ctrl+Q always quits.
	if msg.String() == "ctrl+q" {
		m.turns.fire()
		return m, tea.Quit
	}

	if m.streaming {
		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.turns.fire()
			return m, nil
		case key.Matches(msg, m.keys.PageUp):
			m.viewport.HalfViewUp()
		case key.Matches(msg, m.keys.PageDown):
			m.viewport.HalfViewDown()
		}
		return m, nil
	}

	if m.status != StatusConnected {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case m.status == StatusError && key.Matches(msg, m.keys.Retry):
			m.status = StatusChecking
			m.statusErr = nil
			return m, tea.Batch(m.spinner.Tick, checkHealth(m.session.Client()))
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Clear):
		return m, clearSession(m.session)

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}

	m.input.Reset()
	m.input.Blur()
	m.streaming = true

	ctx, cancel := context.WithCancel(context.Background())
	m.turns.set(cancel)

	return m, tea.Batch(m.spinner.Tick, runTurn(ctx, m.session, m.sender, text))
}

func (m Model) handleHealth(msg HealthMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		log.Printf("RELAY_UNREACHABLE | url=%s error=%v", m.session.Client().BaseURL(), msg.Err)
		m.status = StatusError
		m.statusErr = msg.Err
		m.input.Blur()
		return m, nil
	}

	m.status = StatusConnected
	m.statusErr = nil
	m.modelName = msg.Model
	m.refresh()
	m.viewport.GotoBottom()
	return m, m.input.Focus()
}

func (m Model) handleTurnDone(msg TurnDoneMsg) (tea.Model, tea.Cmd) {
	m.streaming = false
	m.turns.fire()

	if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
		log.Printf("TURN_FAILED | error=%v", msg.Err)
	}

	m.refresh()
	m.viewport.GotoBottom()
	return m, m.input.Focus()
}

// refresh re-renders the conversation into the viewport.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderMessages())
}

// =============================================================================
// COMMANDS
// =============================================================================

func checkHealth(client *relay.Client) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if err := client.Health(ctx); err != nil {
			return HealthMsg{Err: err}
		}
		// The model name is decoration; an older relay without /healthz
		// is still usable.
		name, _ := client.Model(ctx)
		return HealthMsg{Model: name}
	}
}

// runTurn submits text and reports each conversation change to the program.
// Bubble Tea runs it on its own goroutine.
func runTurn(ctx context.Context, session *relay.Session, sender *senderRef, text string) tea.Cmd {
	return func() tea.Msg {
		err := session.Submit(ctx, text, func() {
			sender.send(FragmentMsg{})
		})
		return TurnDoneMsg{Err: err}
	}
}

func clearSession(session *relay.Session) tea.Cmd {
	return func() tea.Msg {
		return ClearedMsg{Err: session.Clear(context.Background())}
	}
}
