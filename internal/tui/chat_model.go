package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ainotes-cli/internal/app"
)

// SignalMsg delivers a dependent-data-changed notification into the Update
// loop. The command layer subscribes to the bus and forwards with
// Program.Send.
type SignalMsg struct {
	Signal app.Signal
}

type sessionReadyMsg struct {
	session app.ChatSession
	history []app.Message
	err     error
}

type hydratedMsg struct {
	sessionID int
	history   []app.Message
	err       error
}

// ChatModel is the multi-turn chat flow: transcript viewport on top, input
// below, one in-flight turn at a time with streaming render and
// regenerate-from-point.
type ChatModel struct {
	app   *app.Application
	theme Theme
	md    *MarkdownRenderer

	session app.ChatSession
	flow    *app.ChatFlow

	input textarea.Model
	vp    viewport.Model
	ready bool

	width  int
	height int

	gen    uint64
	cancel context.CancelFunc
	events chan tea.Msg

	running    bool
	spinnerPos int
	notice     string
	quitting   bool
}

func NewChatModel(a *app.Application) *ChatModel {
	input := textarea.New()
	input.Placeholder = "Ask about your notes…  (enter to send)"
	input.SetHeight(2)
	input.CharLimit = 4000
	input.ShowLineNumbers = false
	input.Focus()

	return &ChatModel{
		app:   a,
		theme: NewTheme(),
		md:    NewMarkdownRenderer(),
		input: input,
	}
}

func (m *ChatModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.loadSession())
}

// loadSession picks the newest session, creating one on first use, and pulls
// its confirmed history. The local cache bridges the gap so the transcript
// paints before the fetch lands.
func (m *ChatModel) loadSession() tea.Cmd {
	client := m.app.Client
	cache := m.app.Cache
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		sessions, err := client.ListSessions(ctx)
		if err != nil {
			return sessionReadyMsg{err: err}
		}
		var session app.ChatSession
		if len(sessions) > 0 {
			session = sessions[0]
		} else {
			session, err = client.CreateSession(ctx, "New chat")
			if err != nil {
				return sessionReadyMsg{err: err}
			}
		}
		history, _ := cache.Load(session.ID)
		if _, confirmed, err := client.GetSession(ctx, session.ID); err == nil {
			history = confirmed
		}
		return sessionReadyMsg{session: session, history: history}
	}
}

func (m *ChatModel) hydrate() tea.Cmd {
	client := m.app.Client
	sessionID := m.session.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_, history, err := client.GetSession(ctx, sessionID)
		return hydratedMsg{sessionID: sessionID, history: history, err: err}
	}
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshViewport()
		return m, nil

	case sessionReadyMsg:
		if msg.err != nil {
			m.notice = "could not open a session: " + msg.err.Error()
			return m, nil
		}
		m.session = msg.session
		m.flow = app.NewChatFlow(m.app.Logger, m.app.Signals, msg.session.ID, msg.history)
		m.refreshViewport()
		return m, nil

	case hydratedMsg:
		if msg.err == nil && m.flow != nil && msg.sessionID == m.session.ID && !m.running {
			m.flow.Hydrate(msg.history)
			_ = m.app.Cache.Save(msg.sessionID, msg.history)
			m.refreshViewport()
		}
		return m, nil

	case SignalMsg:
		if msg.Signal == app.SignalChatSessionDetail && m.flow != nil {
			return m, m.hydrate()
		}
		return m, nil

	case tea.KeyMsg:
		model, cmd, handled := m.updateKeys(msg)
		if handled {
			return model, cmd
		}

	case streamEventMsg:
		if m.flow == nil {
			return m, nil
		}
		outcome := m.flow.Apply(msg.gen, msg.ev)
		return m.afterChatOutcome(outcome)

	case streamErrMsg:
		if m.flow == nil {
			return m, nil
		}
		outcome := m.flow.Fail(msg.gen, msg.err)
		return m.afterChatOutcome(outcome)

	case streamEndMsg:
		return m, nil

	case spinMsg:
		m.spinnerPos = (m.spinnerPos + 1) % len(spinnerFrames)
		if m.running {
			m.refreshViewport()
			return m, m.spinTick()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.vp, cmd = m.vp.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *ChatModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "esc":
		if m.running {
			// Discard the turn: detach; late events are dropped.
			if m.cancel != nil {
				m.cancel()
			}
			m.flow.Discard()
			m.running = false
			m.notice = "turn cancelled"
			m.refreshViewport()
			return m, nil, true
		}
		m.quitting = true
		return m, tea.Quit, true

	case "enter":
		return m.onSend()

	case "ctrl+r":
		return m.onRegenerate()

	case "pgup":
		m.vp.ViewUp()
		return m, nil, true
	case "pgdown":
		m.vp.ViewDown()
		return m, nil, true
	}
	return m, nil, false
}

func (m *ChatModel) onSend() (tea.Model, tea.Cmd, bool) {
	if m.flow == nil {
		return m, nil, true
	}
	val := strings.TrimSpace(m.input.Value())
	if val == "" {
		return m, nil, true
	}
	if m.running {
		m.notice = "still answering (esc to cancel)"
		return m, nil, true
	}

	op, gen, err := m.flow.BeginTurn(val)
	if err != nil {
		m.notice = err.Error()
		return m, nil, true
	}
	m.input.Reset()
	m.notice = ""
	m.refreshViewport()
	m.vp.GotoBottom()

	return m, m.openStream(gen, func(ctx context.Context) (*app.StreamEventParser, error) {
		return m.app.Client.SendMessage(ctx, m.session.ID, op.Input)
	}), true
}

// onRegenerate re-runs the conversation from the last assistant message.
// The transcript prefix is already visible when the replacement stream opens.
func (m *ChatModel) onRegenerate() (tea.Model, tea.Cmd, bool) {
	if m.flow == nil || m.running {
		return m, nil, true
	}
	target := 0
	for _, msg := range m.flow.Transcript() {
		if msg.Role == app.RoleAssistant && msg.Confirmed() {
			target = msg.ID
		}
	}
	if target == 0 {
		m.notice = "nothing to regenerate yet"
		return m, nil, true
	}

	op, gen, err := m.flow.BeginRegenerate(target)
	if err != nil {
		m.notice = err.Error()
		return m, nil, true
	}
	m.notice = ""
	m.refreshViewport()
	m.vp.GotoBottom()

	messageID := op.TargetMessageID
	return m, m.openStream(gen, func(ctx context.Context) (*app.StreamEventParser, error) {
		return m.app.Client.RegenerateFrom(ctx, m.session.ID, messageID)
	}), true
}

func (m *ChatModel) openStream(gen uint64, open func(context.Context) (*app.StreamEventParser, error)) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.gen = gen
	m.running = true
	events := make(chan tea.Msg, 64)
	m.events = events

	go func() {
		defer close(events)
		parser, err := open(ctx)
		if err != nil {
			events <- streamErrMsg{gen: gen, err: err}
			return
		}
		defer parser.Close()
		for {
			ev, err := parser.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					events <- streamEndMsg{gen: gen}
				} else {
					events <- streamErrMsg{gen: gen, err: err}
				}
				return
			}
			events <- streamEventMsg{gen: gen, ev: ev}
		}
	}()
	return tea.Batch(m.waitEvent(), m.spinTick())
}

func (m *ChatModel) waitEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		if events == nil {
			return nil
		}
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *ChatModel) spinTick() tea.Cmd {
	d := 90 * time.Millisecond
	if m.app.Config.ReduceMotion {
		d = 250 * time.Millisecond
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return spinMsg{} })
}

func (m *ChatModel) afterChatOutcome(outcome app.ChatOutcome) (tea.Model, tea.Cmd) {
	if !outcome.Applied {
		return m, m.waitEvent()
	}
	if outcome.ContentChanged {
		m.refreshViewport()
		m.vp.GotoBottom()
	}
	if outcome.Terminal {
		m.running = false
		m.cancel = nil
		if outcome.Failure != app.FailureNone {
			// Inline annotation is already in the transcript; this is the
			// transient global notice.
			m.notice = outcome.Message
		}
		_ = m.app.Cache.Save(m.session.ID, m.flow.Transcript())
		return m, nil
	}
	return m, m.waitEvent()
}

func (m *ChatModel) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	inputHeight := 4
	footerHeight := 1
	headerHeight := 1
	vpHeight := m.height - inputHeight - footerHeight - headerHeight
	if vpHeight < 3 {
		vpHeight = 3
	}
	if !m.ready {
		m.vp = viewport.New(m.width, vpHeight)
		m.ready = true
	} else {
		m.vp.Width = m.width
		m.vp.Height = vpHeight
	}
	m.input.SetWidth(m.width - 4)
}

func (m *ChatModel) refreshViewport() {
	if !m.ready || m.flow == nil {
		return
	}
	m.vp.SetContent(m.renderTranscript())
}

func (m *ChatModel) renderTranscript() string {
	width := m.vp.Width - 2
	if width < 20 {
		width = 20
	}
	var b strings.Builder

	for _, msg := range m.flow.Transcript() {
		switch msg.Role {
		case app.RoleUser:
			b.WriteString(m.theme.RoleYou.Render("you"))
			if !msg.Confirmed() {
				b.WriteString(m.theme.Faint.Render(" (sending…)"))
			}
			b.WriteString("\n")
			b.WriteString(m.theme.Text.Render(msg.Content))
		default:
			b.WriteString(m.theme.RoleAI.Render("assistant"))
			b.WriteString("\n")
			b.WriteString(m.md.Render(msg.Content, width))
			for _, tc := range msg.ToolCalls {
				b.WriteString("\n")
				b.WriteString(m.theme.Faint.Render("  ⚙ " + tc.Name))
			}
		}
		b.WriteString("\n\n")
	}

	if m.running {
		content, tool, results := m.flow.Streaming()
		b.WriteString(m.theme.RoleAI.Render("assistant"))
		b.WriteString(m.theme.Faint.Render(" " + spinnerFrames[m.spinnerPos]))
		b.WriteString("\n")
		if content != "" {
			b.WriteString(m.theme.Text.Render(content))
			b.WriteString("\n")
		}
		if tool != nil {
			b.WriteString(m.theme.Accent.Render("  ⚙ running " + tool.Name + "…"))
			b.WriteString("\n")
		}
		for _, res := range results {
			b.WriteString(m.theme.Faint.Render(fmt.Sprintf("  ↳ %s: %d result(s)", res.ID, len(res.Results))))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m *ChatModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready || m.flow == nil {
		return "\n  " + m.theme.Muted.Render("connecting…")
	}

	title := m.session.Title
	if title == "" {
		title = fmt.Sprintf("session %d", m.session.ID)
	}
	header := m.theme.Title.Render("nai chat") + m.theme.Faint.Render("  "+title)

	footerText := "enter send • ctrl+r regenerate • esc quit"
	if m.notice != "" {
		footerText = m.notice
	}
	footer := m.theme.Footer.Render(footerText)

	input := m.theme.InputBox.Width(m.width - 2).Render(m.input.View())

	return lipgloss.JoinVertical(lipgloss.Left, header, m.vp.View(), input, footer)
}
