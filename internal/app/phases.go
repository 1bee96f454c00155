package app

// ProgressPhase is the client-visible progress stage of an operation. The
// declaration order is the total order used for the step board: everything
// before the current phase renders complete, everything after renders pending.
type ProgressPhase int

const (
	PhaseReceived ProgressPhase = iota
	PhaseClassifying
	PhaseLoadingContext
	PhaseAnalyzing
	PhaseCreating
	PhaseSaving
	PhaseDone
	PhaseError
)

func (p ProgressPhase) String() string {
	switch p {
	case PhaseReceived:
		return "received"
	case PhaseClassifying:
		return "classifying"
	case PhaseLoadingContext:
		return "loadingContext"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseCreating:
		return "creating"
	case PhaseSaving:
		return "saving"
	case PhaseDone:
		return "done"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

// Terminal reports whether the phase ends the machine. done and error are
// mutually exclusive.
func (p ProgressPhase) Terminal() bool { return p == PhaseDone || p == PhaseError }

// Default captions for the step board; a status event's message overrides the
// caption of the phase it lands on.
var phaseTitles = map[ProgressPhase]string{
	PhaseReceived:       "Request received",
	PhaseClassifying:    "Understanding the request",
	PhaseLoadingContext: "Loading your notes",
	PhaseAnalyzing:      "Thinking",
	PhaseCreating:       "Applying changes",
	PhaseSaving:         "Saving",
}

// phaseForTag maps the server's phase vocabulary onto visible phases.
// intent_detected shares the classifying slot; only its caption differs.
func phaseForTag(tag string) (ProgressPhase, bool) {
	switch tag {
	case "classifying_intent", "intent_detected":
		return PhaseClassifying, true
	case "building_context":
		return PhaseLoadingContext, true
	case "calling_llm":
		return PhaseAnalyzing, true
	case "executing_tool":
		return PhaseCreating, true
	case "saving":
		return PhaseSaving, true
	}
	return 0, false
}

// StepState is the rendered state of one row on the step board.
type StepState int

const (
	StepPending StepState = iota
	StepActive
	StepComplete
)

// Step is one row of the progress board.
type Step struct {
	Phase ProgressPhase
	Title string
	State StepState
}

// PhaseMachine tracks the progress of one operation. It enters PhaseReceived
// the instant the operation is submitted, advances monotonically on status
// events, and ends on done or error. Duplicate or restated phases are
// idempotent because the board is computed from position in the total order,
// never from event count.
type PhaseMachine struct {
	current ProgressPhase
	// furthest non-terminal phase reached, used to keep completed checkmarks
	// after the jump to error.
	reached ProgressPhase
	labels  map[ProgressPhase]string
	errMsg  string
}

func NewPhaseMachine() *PhaseMachine {
	return &PhaseMachine{
		current: PhaseReceived,
		reached: PhaseReceived,
		labels:  map[ProgressPhase]string{},
	}
}

// ApplyStatus advances the machine for one status event. Unknown phase tags
// are reported as false and otherwise ignored; a stale or duplicate tag never
// regresses the board.
func (m *PhaseMachine) ApplyStatus(ev StatusEvent) bool {
	if m.current.Terminal() {
		return false
	}
	phase, ok := phaseForTag(ev.Phase)
	if !ok {
		return false
	}
	label := ev.Message
	if ev.Phase == "intent_detected" {
		if ev.IntentLabel != "" {
			label = ev.IntentLabel
		} else if ev.Intent != "" {
			label = ev.Intent
		}
	}
	if label != "" {
		m.labels[phase] = label
	}
	if phase > m.current {
		m.current = phase
		m.reached = phase
	}
	return true
}

// Finish moves to the done phase. No-op after error.
func (m *PhaseMachine) Finish() {
	if m.current == PhaseError {
		return
	}
	m.current = PhaseDone
}

// Fail jumps to the error phase from anywhere, capturing the message shown to
// the user. The checkmarks earned so far are kept.
func (m *PhaseMachine) Fail(msg string) {
	m.current = PhaseError
	m.errMsg = msg
}

func (m *PhaseMachine) Current() ProgressPhase { return m.current }

// ErrorMessage returns the captured failure text, empty unless failed.
func (m *PhaseMachine) ErrorMessage() string { return m.errMsg }

// Label returns the caption for a phase row.
func (m *PhaseMachine) Label(p ProgressPhase) string {
	if l, ok := m.labels[p]; ok {
		return l
	}
	return phaseTitles[p]
}

// Steps renders the board. States derive purely from each phase's position
// relative to the furthest phase reached, so replaying the same status event
// any number of times yields the same board.
func (m *PhaseMachine) Steps() []Step {
	visible := []ProgressPhase{
		PhaseReceived, PhaseClassifying, PhaseLoadingContext,
		PhaseAnalyzing, PhaseCreating, PhaseSaving,
	}
	steps := make([]Step, 0, len(visible))
	for _, p := range visible {
		st := StepPending
		switch {
		case m.current == PhaseDone:
			st = StepComplete
		case p < m.reached:
			st = StepComplete
		case p == m.reached && m.current != PhaseError:
			st = StepActive
		case p == m.reached && m.current == PhaseError:
			// The phase that was in flight when the error hit stays un-ticked.
			st = StepPending
		}
		steps = append(steps, Step{Phase: p, Title: m.Label(p), State: st})
	}
	return steps
}
