package app

import (
	"errors"

	"github.com/google/uuid"
)

// OperationKind distinguishes the three request shapes the backend accepts.
type OperationKind int

const (
	KindAdd OperationKind = iota
	KindChatTurn
	KindRegenerate
)

func (k OperationKind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindChatTurn:
		return "chatTurn"
	case KindRegenerate:
		return "regenerate"
	}
	return "unknown"
}

// OperationStatus is the lifecycle state of one logical agent request.
type OperationStatus int

const (
	StatusIdle OperationStatus = iota
	StatusInFlight
	StatusAwaitingChoice
	StatusCompleted
	StatusFailed
)

func (s OperationStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusInFlight:
		return "inFlight"
	case StatusAwaitingChoice:
		return "awaitingChoice"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Operation is one logical request to the agent and its client-side state. A
// call site owns at most one Operation at a time; starting a new one discards
// the previous terminal state, never an in-flight one.
type Operation struct {
	ID     string
	Kind   OperationKind
	Status OperationStatus

	// Input is held verbatim while suspended so an ambiguity resolution can
	// replay it unchanged.
	Input         string
	BoundTargetID int
	SessionID     int
	// TargetMessageID is the regenerate anchor (KindRegenerate only).
	TargetMessageID int

	// Candidates is populated only in StatusAwaitingChoice, in server order.
	Candidates []Candidate

	Phases *PhaseMachine
}

func newOperation(kind OperationKind, input string) *Operation {
	return &Operation{
		ID:     uuid.NewString(),
		Kind:   kind,
		Status: StatusInFlight,
		Input:  input,
		Phases: NewPhaseMachine(),
	}
}

// ErrOperationInFlight is returned when a call site tries to start a new
// operation while one is still running. The old one must be discarded first.
var ErrOperationInFlight = errors.New("an operation is already in flight")

// callSite enforces the one-in-flight rule and tags every operation with a
// generation number. Events delivered under a stale generation belong to a
// discarded operation and must not be applied; that is the at-most-once
// client-side effect guarantee.
type callSite struct {
	op  *Operation
	gen uint64
}

func (s *callSite) begin(op *Operation) (uint64, error) {
	if s.op != nil && s.op.Status == StatusInFlight {
		return 0, ErrOperationInFlight
	}
	s.op = op
	s.gen++
	return s.gen, nil
}

// accepts reports whether events tagged with gen may still mutate state.
func (s *callSite) accepts(gen uint64) bool {
	return gen == s.gen && s.op != nil && s.op.Status == StatusInFlight
}

// discard detaches from the current operation. The server may keep running;
// any events that still trickle in carry a stale generation and are dropped.
func (s *callSite) discard() {
	s.op = nil
	s.gen++
}
