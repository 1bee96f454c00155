package app

import (
	"fmt"
	"strings"
	"time"
)

// ActiveToolCall is the tool invocation currently shown as running. The
// server is assumed to run one tool at a time; if it ever pipelines, the
// newest call wins this slot while the result log below keeps every outcome
// keyed by correlation id, so nothing is lost.
type ActiveToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolResultLogEntry is one tool_result event, in arrival order.
type ToolResultLogEntry struct {
	ID      string
	Results []string
}

// ChatStreamReducer accumulates one in-flight chat turn: streamed content,
// the active tool call, and the tool result log. It is fed events in arrival
// order and holds no transport state, so a turn can be replayed from a
// literal event slice in tests.
type ChatStreamReducer struct {
	content strings.Builder
	active  *ActiveToolCall
	results []ToolResultLogEntry
}

func NewChatStreamReducer() *ChatStreamReducer { return &ChatStreamReducer{} }

// ApplyDelta appends one streamed chunk. Content only ever grows; deltas are
// concatenated, never replaced.
func (r *ChatStreamReducer) ApplyDelta(ev ContentDeltaEvent) {
	r.content.WriteString(ev.Delta)
}

// ApplyToolCall replaces the active tool call wholesale. Last write wins.
func (r *ChatStreamReducer) ApplyToolCall(ev ToolCallEvent) {
	r.active = &ActiveToolCall{
		ID:        ev.ID,
		Name:      ev.Name,
		Arguments: string(ev.Arguments),
	}
}

// ApplyToolResult appends to the result log; one entry per event.
func (r *ChatStreamReducer) ApplyToolResult(ev ToolResultEvent) {
	entry := ToolResultLogEntry{ID: ev.ID}
	for _, raw := range ev.Results {
		entry.Results = append(entry.Results, string(raw))
	}
	r.results = append(r.results, entry)
}

// ContentSoFar returns the accumulated assistant text.
func (r *ChatStreamReducer) ContentSoFar() string { return r.content.String() }

// ActiveToolCall returns the call currently rendered as running, nil if none.
func (r *ChatStreamReducer) ActiveToolCall() *ActiveToolCall { return r.active }

// ToolResults returns the result log in arrival order.
func (r *ChatStreamReducer) ToolResults() []ToolResultLogEntry {
	out := make([]ToolResultLogEntry, len(r.results))
	copy(out, r.results)
	return out
}

// CommitDone builds the terminal assistant message for this turn and clears
// all transient state. The server-assigned id comes from the done event; its
// content field wins over the accumulated deltas when present (the server may
// have post-processed the text).
func (r *ChatStreamReducer) CommitDone(ev DoneEvent) Message {
	content := ev.Content
	if content == "" {
		content = r.content.String()
	}
	msg := Message{
		ID:        ev.MessageID,
		Role:      RoleAssistant,
		Content:   content,
		ToolCalls: r.toolCallRecords(),
		CreatedAt: time.Now().UTC(),
	}
	r.reset()
	return msg
}

// CommitError folds the failure into the partial output instead of discarding
// it: whatever the assistant managed to stream stays visible, with the error
// noted inline. Clears transient state like CommitDone.
func (r *ChatStreamReducer) CommitError(errMsg string) Message {
	content := r.content.String()
	if content != "" {
		content += "\n\n"
	}
	content += fmt.Sprintf("⚠ %s", errMsg)
	msg := Message{
		ID:        LocalMessageID,
		Role:      RoleAssistant,
		Content:   content,
		ToolCalls: r.toolCallRecords(),
		CreatedAt: time.Now().UTC(),
	}
	r.reset()
	return msg
}

func (r *ChatStreamReducer) toolCallRecords() []ToolCallRecord {
	if r.active == nil && len(r.results) == 0 {
		return nil
	}
	var recs []ToolCallRecord
	if r.active != nil {
		rec := ToolCallRecord{
			ID:        r.active.ID,
			Name:      r.active.Name,
			Arguments: []byte(r.active.Arguments),
		}
		for _, res := range r.results {
			if res.ID == r.active.ID {
				for _, item := range res.Results {
					rec.Results = append(rec.Results, []byte(item))
				}
			}
		}
		recs = append(recs, rec)
	}
	return recs
}

func (r *ChatStreamReducer) reset() {
	r.content.Reset()
	r.active = nil
	r.results = nil
}
