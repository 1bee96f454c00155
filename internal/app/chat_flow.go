package app

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// ChatOutcome tells the chat call site what changed after one event.
type ChatOutcome struct {
	Applied bool
	// ContentChanged means the streaming view (partial text, active tool call,
	// result log) needs re-rendering.
	ContentChanged bool
	Terminal       bool
	Failure        FailureKind
	// Message is the user-facing failure line; empty on clean completion.
	Message string
	// Committed is the message appended to the transcript on a terminal event.
	Committed *Message
}

// ChatFlow is the per-session chat call site: it owns at most one in-flight
// turn (or regenerate) at a time, feeds that turn's events through a
// ChatStreamReducer, and keeps the session transcript. Like the add
// orchestrator it does no I/O of its own, so whole conversations replay from
// literal event slices.
type ChatFlow struct {
	log       *zap.Logger
	signals   *Signals
	SessionID int

	transcript *Transcript
	regen      *RegenerateController
	reducer    *ChatStreamReducer
	site       callSite
}

func NewChatFlow(log *zap.Logger, signals *Signals, sessionID int, history []Message) *ChatFlow {
	if log == nil {
		log = zap.NewNop()
	}
	if signals == nil {
		signals = NewSignals()
	}
	t := NewTranscript(history)
	return &ChatFlow{
		log:        log,
		signals:    signals,
		SessionID:  sessionID,
		transcript: t,
		regen:      NewRegenerateController(t),
		reducer:    NewChatStreamReducer(),
	}
}

// Transcript returns the visible message history, in order.
func (f *ChatFlow) Transcript() []Message { return f.transcript.Messages() }

// Hydrate replaces the local history with server-confirmed messages, dropping
// any optimistic entries wholesale.
func (f *ChatFlow) Hydrate(msgs []Message) { f.transcript.Replace(msgs) }

// Operation returns the current operation, nil when idle.
func (f *ChatFlow) Operation() *Operation { return f.site.op }

// Streaming exposes the in-flight accumulation for rendering.
func (f *ChatFlow) Streaming() (content string, tool *ActiveToolCall, results []ToolResultLogEntry) {
	return f.reducer.ContentSoFar(), f.reducer.ActiveToolCall(), f.reducer.ToolResults()
}

// BeginTurn starts a chat turn: the user's input is echoed into the
// transcript immediately under the local id and the turn goes in flight.
// The echo is replaced by the server-confirmed message on the next hydration.
func (f *ChatFlow) BeginTurn(input string) (*Operation, uint64, error) {
	op := newOperation(KindChatTurn, input)
	op.SessionID = f.SessionID
	gen, err := f.site.begin(op)
	if err != nil {
		return nil, 0, err
	}
	f.transcript.Append(Message{
		ID:        LocalMessageID,
		Role:      RoleUser,
		Content:   input,
		CreatedAt: time.Now().UTC(),
	})
	f.log.Info("chat turn started",
		zap.String("op_id", op.ID),
		zap.Int("session_id", f.SessionID))
	return op, gen, nil
}

// BeginRegenerate truncates the transcript at messageID and starts the
// replacement turn. The truncation is complete (and observable through
// Transcript) before this function returns, ahead of any stream byte. An
// unknown messageID still regenerates but cuts nothing.
func (f *ChatFlow) BeginRegenerate(messageID int) (*Operation, uint64, error) {
	if f.site.op != nil && f.site.op.Status == StatusInFlight {
		return nil, 0, ErrOperationInFlight
	}
	truncated := f.regen.Truncate(messageID)
	op := newOperation(KindRegenerate, "")
	op.SessionID = f.SessionID
	op.TargetMessageID = messageID
	gen, err := f.site.begin(op)
	if err != nil {
		return nil, 0, err
	}
	f.log.Info("regenerate started",
		zap.String("op_id", op.ID),
		zap.Int("session_id", f.SessionID),
		zap.Int("message_id", messageID),
		zap.Bool("truncated", truncated))
	return op, gen, nil
}

// Apply reduces one stream event into the turn tagged with gen. Stale events
// are dropped without touching visible state.
func (f *ChatFlow) Apply(gen uint64, ev StreamEvent) ChatOutcome {
	if !f.site.accepts(gen) {
		return ChatOutcome{}
	}
	op := f.site.op

	switch e := ev.(type) {
	case ContentDeltaEvent:
		f.reducer.ApplyDelta(e)
		return ChatOutcome{Applied: true, ContentChanged: true}

	case ToolCallEvent:
		f.reducer.ApplyToolCall(e)
		return ChatOutcome{Applied: true, ContentChanged: true}

	case ToolResultEvent:
		f.reducer.ApplyToolResult(e)
		return ChatOutcome{Applied: true, ContentChanged: true}

	case StatusEvent:
		// Chat streams may narrate; nothing on the board to move.
		return ChatOutcome{Applied: true}

	case DoneEvent:
		msg := f.reducer.CommitDone(e)
		f.transcript.Append(msg)
		op.Status = StatusCompleted
		op.Phases.Finish()
		f.signals.Fire(SignalChatSessionList)
		f.signals.Fire(SignalChatSessionDetail)
		f.log.Info("chat turn completed",
			zap.String("op_id", op.ID),
			zap.Int("message_id", msg.ID))
		return ChatOutcome{Applied: true, ContentChanged: true, Terminal: true, Committed: &msg}

	case ErrorEvent:
		return f.failTurn(op, FailureAgent, e.Message)
	}
	return ChatOutcome{Applied: true}
}

// Fail ends the turn for a transport- or decode-level error. Partial output
// is committed with the failure noted inline, never discarded.
func (f *ChatFlow) Fail(gen uint64, err error) ChatOutcome {
	if !f.site.accepts(gen) {
		return ChatOutcome{}
	}
	kind := FailureTransport
	var pe *ProtocolDecodeError
	if errors.As(err, &pe) {
		kind = FailureProtocol
	}
	return f.failTurn(f.site.op, kind, err.Error())
}

func (f *ChatFlow) failTurn(op *Operation, kind FailureKind, msg string) ChatOutcome {
	committed := f.reducer.CommitError(msg)
	f.transcript.Append(committed)
	op.Status = StatusFailed
	op.Phases.Fail(msg)
	f.log.Warn("chat turn failed",
		zap.String("op_id", op.ID),
		zap.String("failure", kind.String()),
		zap.String("message", msg))
	return ChatOutcome{
		Applied:        true,
		ContentChanged: true,
		Terminal:       true,
		Failure:        kind,
		Message:        msg,
		Committed:      &committed,
	}
}

// Discard detaches from the in-flight turn; its late events are dropped. The
// reducer is cleared so the next turn starts from nothing.
func (f *ChatFlow) Discard() {
	if f.site.op != nil {
		f.log.Info("chat turn discarded", zap.String("op_id", f.site.op.ID))
	}
	f.site.discard()
	f.reducer.reset()
}
