package tui

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ainotes-cli/internal/app"
)

// Messages bridged from the stream goroutine into the Update loop. Every one
// carries the generation it was read under so late events from a discarded
// operation fall on the floor.
type streamEventMsg struct {
	gen uint64
	ev  app.StreamEvent
}

type streamErrMsg struct {
	gen uint64
	err error
}

type streamEndMsg struct{ gen uint64 }

type dismissMsg struct{ gen uint64 }

type spinMsg struct{}

// ProgressModel drives the one-shot add flow: a step board while the agent
// works, a candidate picker when it cannot choose a target, and a short
// dismiss delay so the final board state is readable before exit.
type ProgressModel struct {
	app   *app.Application
	theme Theme
	orch    *app.Orchestrator
	input   string
	boundID int

	gen    uint64
	cancel context.CancelFunc
	events chan tea.Msg

	picker   *CandidatePicker
	outcome  *app.Outcome
	selected int
	width    int

	spinnerPos int
	quitting   bool
}

func NewProgressModel(a *app.Application, input string, boundTargetID int) *ProgressModel {
	return &ProgressModel{
		app:     a,
		theme:   NewTheme(),
		orch:    app.NewOrchestrator(a.Logger, a.Signals),
		input:   input,
		boundID: boundTargetID,
		width:   72,
	}
}

func (m *ProgressModel) Init() tea.Cmd {
	return m.begin(func() (*app.Operation, uint64, error) {
		return m.orch.Begin(m.input, m.boundID)
	})
}

// Failed reports whether the operation ended in a failure classification,
// for the process exit code.
func (m *ProgressModel) Failed() bool {
	return m.outcome != nil && m.outcome.Class == app.ClassFailure
}

// SelectedNoteID is the note focused after a successful add, 0 if none.
func (m *ProgressModel) SelectedNoteID() int { return m.selected }

func (m *ProgressModel) begin(start func() (*app.Operation, uint64, error)) tea.Cmd {
	op, gen, err := start()
	if err != nil {
		m.app.Logger.Sugar().Warnw("submit rejected", "error", err)
		return tea.Quit
	}
	m.gen = gen
	m.picker = nil
	m.outcome = nil

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	events := make(chan tea.Msg, 64)
	m.events = events

	go m.pump(ctx, op, gen, events)
	return tea.Batch(m.waitEvent(), m.spinTick())
}

// pump opens the stream and forwards events until the terminal one. Runs off
// the Update goroutine; everything it learns travels through the channel.
func (m *ProgressModel) pump(ctx context.Context, op *app.Operation, gen uint64, events chan<- tea.Msg) {
	defer close(events)
	parser, err := m.app.Client.ProcessStream(ctx, op.Input, op.BoundTargetID)
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
}

func (m *ProgressModel) waitEvent() tea.Cmd {
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

func (m *ProgressModel) spinTick() tea.Cmd {
	d := 90 * time.Millisecond
	if m.app.Config.ReduceMotion || os.Getenv("NAI_REDUCE_MOTION") == "1" {
		d = 250 * time.Millisecond
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return spinMsg{} })
}

func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)

	case streamEventMsg:
		outcome := m.orch.Apply(msg.gen, msg.ev)
		return m.afterOutcome(msg.gen, outcome)

	case streamErrMsg:
		outcome := m.orch.Fail(msg.gen, msg.err)
		return m.afterOutcome(msg.gen, outcome)

	case streamEndMsg:
		// Clean close after the terminal event; nothing left to do.
		return m, nil

	case dismissMsg:
		if msg.gen == m.gen {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case spinMsg:
		m.spinnerPos = (m.spinnerPos + 1) % len(spinnerFrames)
		if m.running() {
			return m, m.spinTick()
		}
		return m, nil
	}
	return m, nil
}

func (m *ProgressModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.picker != nil {
		switch msg.String() {
		case "up", "k":
			m.picker.Move(-1)
		case "down", "j":
			m.picker.Move(1)
		case "enter":
			c := m.picker.Selected()
			m.picker = nil
			return m, m.begin(func() (*app.Operation, uint64, error) {
				return m.orch.Resolve(c)
			})
		case "esc", "ctrl+c":
			m.orch.CancelChoice()
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}
	switch msg.String() {
	case "ctrl+c", "esc", "q":
		// Discard: detach from the stream; the server may finish on its own.
		if m.cancel != nil {
			m.cancel()
		}
		m.orch.Discard()
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *ProgressModel) afterOutcome(gen uint64, outcome app.Outcome) (tea.Model, tea.Cmd) {
	if !outcome.Applied {
		return m, m.waitEvent()
	}
	switch outcome.Class {
	case app.ClassAwaitingChoice:
		// Progress board comes down, picker goes up.
		if m.cancel != nil {
			m.cancel()
		}
		op := m.orch.Operation()
		prompt := ""
		if op != nil {
			prompt = op.Input
		}
		m.picker = NewCandidatePicker(m.theme, prompt, outcome.Candidates)
		return m, nil

	case app.ClassSuccess, app.ClassFailure:
		m.outcome = &outcome
		m.selected = outcome.SelectedNoteID
		delay := outcome.DismissAfter
		return m, tea.Tick(delay, func(time.Time) tea.Msg { return dismissMsg{gen: gen} })
	}
	return m, m.waitEvent()
}

func (m *ProgressModel) running() bool {
	op := m.orch.Operation()
	return op != nil && op.Status == app.StatusInFlight
}

func (m *ProgressModel) View() string {
	if m.quitting {
		return ""
	}
	if m.picker != nil {
		return m.picker.View(min(m.width-2, 64)) + "\n"
	}

	op := m.orch.Operation()
	if op == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.theme.Title.Render("nai"))
	b.WriteString(m.theme.Faint.Render("  " + op.Kind.String()))
	b.WriteString("\n\n")
	for _, step := range op.Phases.Steps() {
		switch step.State {
		case app.StepComplete:
			b.WriteString(m.theme.StepDone.Render("  ✓ " + step.Title))
		case app.StepActive:
			spin := spinnerFrames[m.spinnerPos]
			b.WriteString(m.theme.StepActive.Render("  " + spin + " " + step.Title))
		default:
			b.WriteString(m.theme.StepPending.Render("  ○ " + step.Title))
		}
		b.WriteString("\n")
	}

	if m.outcome != nil {
		b.WriteString("\n")
		switch {
		case m.outcome.Class == app.ClassSuccess && m.selected != 0:
			b.WriteString(m.theme.Success.Render("  Saved. Opening note #" + strconv.Itoa(m.selected)))
		case m.outcome.Class == app.ClassSuccess:
			b.WriteString(m.theme.Success.Render("  Saved."))
		default:
			b.WriteString(m.theme.Error.Render("  ✗ " + m.outcome.Message))
		}
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}
