package app

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// FailureKind classifies how an operation ended badly. Ambiguity is not in
// this list; needing a choice is a branch, not a failure.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureTransport covers connection-level errors before any terminal event.
	FailureTransport
	// FailureProtocol covers malformed framing or truncated streams.
	FailureProtocol
	// FailureAgent is an explicit error event; its message is shown verbatim.
	FailureAgent
	// FailureAmbiguousNoTargets is a protocol violation: selection required but
	// no candidates offered.
	FailureAmbiguousNoTargets
	// FailureSoftNoOp means the server explicitly skipped with a reason. Shown
	// error-styled but logged apart from true failures.
	FailureSoftNoOp
	// FailureUnknownIntent means the server could not classify the request.
	FailureUnknownIntent
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTransport:
		return "transport"
	case FailureProtocol:
		return "protocol"
	case FailureAgent:
		return "agent"
	case FailureAmbiguousNoTargets:
		return "ambiguousNoTargets"
	case FailureSoftNoOp:
		return "softNoOp"
	case FailureUnknownIntent:
		return "unknownIntent"
	}
	return "unknown"
}

// ErrAmbiguousNoTargets is surfaced when the server claims ambiguity without
// offering a single candidate.
var ErrAmbiguousNoTargets = errors.New("selection required but no candidates offered")

// TerminalClass is what an event application concluded for the operation.
type TerminalClass int

const (
	ClassNone TerminalClass = iota
	ClassSuccess
	ClassAwaitingChoice
	ClassFailure
)

// Dismiss delays keep the final board readable before the progress UI goes
// away. These are legibility knobs, not protocol timeouts.
const (
	DismissAfterSuccess = 600 * time.Millisecond
	DismissAfterFailure = 3 * time.Second
)

// Outcome tells the call site what to do after one event was applied.
// A zero Outcome means the event was stale or changed nothing visible.
type Outcome struct {
	Applied      bool
	StepsChanged bool
	Class        TerminalClass
	Failure      FailureKind
	// Message is the user-facing line for failures and soft no-ops.
	Message string
	// Candidates, in server order, when Class is ClassAwaitingChoice.
	Candidates []Candidate
	// SelectedNoteID is the note the view should focus after a successful add
	// (first created note), 0 if none was created.
	SelectedNoteID int
	CreatedNoteIDs []int
	AffectedIDs    []int
	DismissAfter   time.Duration
}

// Orchestrator runs the one-shot add flow for a single call site: it owns at
// most one in-flight operation, reduces that operation's events into phase
// transitions and a terminal classification, and fires invalidation signals on
// success. It performs no I/O; the caller opens the stream and feeds events in
// arrival order, which keeps every scenario replayable in tests.
type Orchestrator struct {
	log     *zap.Logger
	signals *Signals
	site    callSite
}

func NewOrchestrator(log *zap.Logger, signals *Signals) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if signals == nil {
		signals = NewSignals()
	}
	return &Orchestrator{log: log, signals: signals}
}

// Begin starts a new add operation and returns it with its generation tag.
// Fails with ErrOperationInFlight if one is still running. boundTargetID binds
// the request to a specific note (0 = unbound), as after ambiguity resolution.
func (o *Orchestrator) Begin(input string, boundTargetID int) (*Operation, uint64, error) {
	op := newOperation(KindAdd, input)
	op.BoundTargetID = boundTargetID
	gen, err := o.site.begin(op)
	if err != nil {
		return nil, 0, err
	}
	o.log.Info("operation started",
		zap.String("op_id", op.ID),
		zap.String("kind", op.Kind.String()),
		zap.Int("bound_target", boundTargetID))
	return op, gen, nil
}

// Operation returns the currently owned operation, nil after a discard.
func (o *Orchestrator) Operation() *Operation { return o.site.op }

// Discard detaches from the current operation without side effects. Late
// events for it will be dropped.
func (o *Orchestrator) Discard() {
	if o.site.op != nil {
		o.log.Info("operation discarded", zap.String("op_id", o.site.op.ID))
	}
	o.site.discard()
}

// Apply reduces one stream event into the operation tagged with gen. Events
// for a discarded or finished operation return a zero Outcome.
func (o *Orchestrator) Apply(gen uint64, ev StreamEvent) Outcome {
	if !o.site.accepts(gen) {
		return Outcome{}
	}
	op := o.site.op

	switch e := ev.(type) {
	case StatusEvent:
		changed := op.Phases.ApplyStatus(e)
		if !changed {
			o.log.Debug("status tag ignored", zap.String("op_id", op.ID), zap.String("tag", e.Phase))
		}
		return Outcome{Applied: true, StepsChanged: changed}

	case DoneEvent:
		return o.applyDone(op, e)

	case ErrorEvent:
		return o.failOp(op, FailureAgent, e.Message)

	default:
		// The add stream does not carry chat events; tolerate and drop.
		o.log.Debug("unexpected event on add stream", zap.String("op_id", op.ID))
		return Outcome{Applied: true}
	}
}

// Fail ends the operation for a transport- or decode-level error that arrived
// outside the event vocabulary.
func (o *Orchestrator) Fail(gen uint64, err error) Outcome {
	if !o.site.accepts(gen) {
		return Outcome{}
	}
	kind := FailureTransport
	var pe *ProtocolDecodeError
	if errors.As(err, &pe) {
		kind = FailureProtocol
	}
	return o.failOp(o.site.op, kind, err.Error())
}

func (o *Orchestrator) applyDone(op *Operation, ev DoneEvent) Outcome {
	if ev.RequiresSelection {
		if len(ev.Candidates) == 0 {
			return o.failOp(op, FailureAmbiguousNoTargets, ErrAmbiguousNoTargets.Error())
		}
		op.Status = StatusAwaitingChoice
		op.Candidates = ev.Candidates
		o.log.Info("operation awaiting choice",
			zap.String("op_id", op.ID),
			zap.Int("candidates", len(ev.Candidates)))
		return Outcome{
			Applied:    true,
			Class:      ClassAwaitingChoice,
			Candidates: ev.Candidates,
		}
	}

	if ev.UnknownIntent {
		msg := ev.Reason
		if msg == "" {
			msg = "I couldn't work out what to do with that. Try rephrasing."
		}
		return o.failOp(op, FailureUnknownIntent, msg)
	}

	if len(ev.AffectedIDs) == 0 && len(ev.CreatedIDs) == 0 {
		msg := ev.Reason
		if msg == "" {
			msg = "Nothing to save."
		}
		// Explicit skip, not a transport failure; logged apart from real errors.
		o.log.Info("operation skipped", zap.String("op_id", op.ID), zap.String("reason", msg))
		op.Status = StatusFailed
		op.Phases.Fail(msg)
		return Outcome{
			Applied:      true,
			StepsChanged: true,
			Class:        ClassFailure,
			Failure:      FailureSoftNoOp,
			Message:      msg,
			DismissAfter: DismissAfterFailure,
		}
	}

	op.Status = StatusCompleted
	op.Phases.Finish()
	o.publishSuccess(ev)
	selected := 0
	if len(ev.CreatedNoteIDs) > 0 {
		selected = ev.CreatedNoteIDs[0]
	}
	o.log.Info("operation completed",
		zap.String("op_id", op.ID),
		zap.Ints("created_ids", ev.CreatedIDs),
		zap.Ints("affected_ids", ev.AffectedIDs))
	return Outcome{
		Applied:        true,
		StepsChanged:   true,
		Class:          ClassSuccess,
		SelectedNoteID: selected,
		CreatedNoteIDs: ev.CreatedNoteIDs,
		AffectedIDs:    ev.AffectedIDs,
		DismissAfter:   DismissAfterSuccess,
	}
}

// publishSuccess fires the invalidation set for a successful add. The notes
// agent may touch notes, tasks, calendar entries and profile facts in one
// turn, so their views all refresh; the single-note view refreshes only when
// no note was newly created (a new note replaces the selection instead).
func (o *Orchestrator) publishSuccess(ev DoneEvent) {
	o.signals.Fire(SignalNoteTree)
	o.signals.Fire(SignalTaskList)
	o.signals.Fire(SignalTaskCategories)
	o.signals.Fire(SignalCalendarEvents)
	o.signals.Fire(SignalProfileFacts)
	if len(ev.CreatedNoteIDs) == 0 {
		o.signals.Fire(SignalSingleNote)
	}
}

func (o *Orchestrator) failOp(op *Operation, kind FailureKind, msg string) Outcome {
	op.Status = StatusFailed
	op.Phases.Fail(msg)
	o.log.Warn("operation failed",
		zap.String("op_id", op.ID),
		zap.String("failure", kind.String()),
		zap.String("message", msg))
	return Outcome{
		Applied:      true,
		StepsChanged: true,
		Class:        ClassFailure,
		Failure:      kind,
		Message:      msg,
		DismissAfter: DismissAfterFailure,
	}
}

// Resolve answers a pending ambiguity: the suspended operation is discarded
// and a brand-new one is submitted with the original input, verbatim, bound to
// the chosen candidate. The new operation starts over from the received phase.
func (o *Orchestrator) Resolve(c Candidate) (*Operation, uint64, error) {
	op := o.site.op
	if op == nil || op.Status != StatusAwaitingChoice {
		return nil, 0, errors.New("no operation awaiting choice")
	}
	input := op.Input
	o.site.discard()
	return o.Begin(input, c.TargetID)
}

// CancelChoice abandons a pending ambiguity with no side effects and no
// request sent.
func (o *Orchestrator) CancelChoice() {
	op := o.site.op
	if op == nil || op.Status != StatusAwaitingChoice {
		return
	}
	o.log.Info("choice cancelled", zap.String("op_id", op.ID))
	o.site.discard()
}
