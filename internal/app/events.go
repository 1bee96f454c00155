package app

import (
	"encoding/json"
	"fmt"
)

// The agent stream carries a closed set of event names. Anything outside this
// vocabulary is rejected at the decode boundary instead of leaking half-formed
// values into the state machines.
const (
	eventStatus       = "status"
	eventContentDelta = "content_delta"
	eventToolCall     = "tool_call"
	eventToolResult   = "tool_result"
	eventDone         = "done"
	eventError        = "error"
)

// StreamEvent is one decoded frame of an agent stream. The concrete types below
// are the only implementations.
type StreamEvent interface {
	eventName() string
}

// StatusEvent narrates the server-side execution phase of an operation.
type StatusEvent struct {
	Phase       string
	Message     string
	Intent      string
	IntentLabel string
	Tool        string
}

// ContentDeltaEvent carries one chunk of streamed assistant text (chat only).
type ContentDeltaEvent struct {
	Delta string
}

// ToolCallEvent reports that the agent started a tool invocation.
type ToolCallEvent struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolResultEvent carries the outcome of a tool invocation, correlated by ID.
type ToolResultEvent struct {
	ID      string
	Results []json.RawMessage
}

// Candidate is one disambiguation option offered when the server cannot pick a
// unique target note.
type Candidate struct {
	TargetID int    `json:"note_id"`
	Label    string `json:"title"`
}

// DoneEvent terminates a stream. Depending on its payload it signals success,
// a soft no-op, an unknown intent, or a request to pick a target note.
type DoneEvent struct {
	MessageID         int
	Content           string
	AffectedIDs       []int
	CreatedIDs        []int
	CreatedNoteIDs    []int
	RequiresSelection bool
	Candidates        []Candidate
	UnknownIntent     bool
	Skipped           bool
	Reason            string
}

// ErrorEvent terminates a stream with a server-reported failure.
type ErrorEvent struct {
	Message string
}

func (StatusEvent) eventName() string       { return eventStatus }
func (ContentDeltaEvent) eventName() string { return eventContentDelta }
func (ToolCallEvent) eventName() string     { return eventToolCall }
func (ToolResultEvent) eventName() string   { return eventToolResult }
func (DoneEvent) eventName() string         { return eventDone }
func (ErrorEvent) eventName() string        { return eventError }

// Terminal reports whether the event ends its stream.
func Terminal(ev StreamEvent) bool {
	switch ev.(type) {
	case DoneEvent, ErrorEvent:
		return true
	}
	return false
}

type statusWire struct {
	Phase       *string `json:"phase"`
	Message     string  `json:"message"`
	Intent      string  `json:"intent"`
	IntentLabel string  `json:"intent_label"`
	Tool        string  `json:"tool"`
}

type contentDeltaWire struct {
	Delta *string `json:"delta"`
}

type toolCallWire struct {
	ID        string          `json:"id"`
	Name      *string         `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolResultWire struct {
	ID      *string           `json:"id"`
	Results []json.RawMessage `json:"results"`
}

type doneWire struct {
	MessageID         int         `json:"message_id"`
	Content           string      `json:"content"`
	AffectedIDs       []int       `json:"affected_ids"`
	CreatedIDs        []int       `json:"created_ids"`
	CreatedNoteIDs    []int       `json:"created_note_ids"`
	RequiresSelection bool        `json:"requires_note_selection"`
	Candidates        []Candidate `json:"candidates"`
	UnknownIntent     bool        `json:"unknown_intent"`
	Skipped           bool        `json:"skipped"`
	Reason            string      `json:"reason"`
}

type errorWire struct {
	Message *string `json:"message"`
}

// decodeEvent validates name against the closed vocabulary and unmarshals data
// into the matching typed event. Missing required fields and unknown names are
// protocol violations.
func decodeEvent(name string, data []byte) (StreamEvent, error) {
	switch name {
	case eventStatus:
		var w statusWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("status payload: %w", err)
		}
		if w.Phase == nil {
			return nil, fmt.Errorf("status event missing %q field", "phase")
		}
		return StatusEvent{Phase: *w.Phase, Message: w.Message, Intent: w.Intent, IntentLabel: w.IntentLabel, Tool: w.Tool}, nil

	case eventContentDelta:
		var w contentDeltaWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("content_delta payload: %w", err)
		}
		if w.Delta == nil {
			return nil, fmt.Errorf("content_delta event missing %q field", "delta")
		}
		return ContentDeltaEvent{Delta: *w.Delta}, nil

	case eventToolCall:
		var w toolCallWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tool_call payload: %w", err)
		}
		if w.Name == nil {
			return nil, fmt.Errorf("tool_call event missing %q field", "name")
		}
		return ToolCallEvent{ID: w.ID, Name: *w.Name, Arguments: w.Arguments}, nil

	case eventToolResult:
		var w toolResultWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("tool_result payload: %w", err)
		}
		if w.ID == nil {
			return nil, fmt.Errorf("tool_result event missing %q field", "id")
		}
		return ToolResultEvent{ID: *w.ID, Results: w.Results}, nil

	case eventDone:
		var w doneWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("done payload: %w", err)
		}
		return DoneEvent{
			MessageID:         w.MessageID,
			Content:           w.Content,
			AffectedIDs:       w.AffectedIDs,
			CreatedIDs:        w.CreatedIDs,
			CreatedNoteIDs:    w.CreatedNoteIDs,
			RequiresSelection: w.RequiresSelection,
			Candidates:        w.Candidates,
			UnknownIntent:     w.UnknownIntent,
			Skipped:           w.Skipped,
			Reason:            w.Reason,
		}, nil

	case eventError:
		var w errorWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("error payload: %w", err)
		}
		if w.Message == nil {
			return nil, fmt.Errorf("error event missing %q field", "message")
		}
		return ErrorEvent{Message: *w.Message}, nil
	}
	return nil, fmt.Errorf("unknown event name %q", name)
}
