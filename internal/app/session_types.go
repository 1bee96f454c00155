package app

import (
	"encoding/json"
	"time"
)

// Message roles. The stream only ever produces these two; error annotations
// are folded into assistant content rather than getting a role of their own.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LocalMessageID marks a locally synthesized, not-yet-server-confirmed message
// (the optimistic echo of the user's own turn). It is replaced wholesale, never
// merged, once the server-confirmed history arrives.
const LocalMessageID = 0

// ToolCallRecord is a tool invocation attached to an assistant message,
// with the results that came back for it.
type ToolCallRecord struct {
	ID        string            `json:"id,omitempty"`
	Name      string            `json:"name"`
	Arguments json.RawMessage   `json:"arguments,omitempty"`
	Results   []json.RawMessage `json:"results,omitempty"`
}

// Message is one entry of a chat session's transcript.
type Message struct {
	ID        int              `json:"id"`
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Confirmed reports whether the message carries a server-assigned id.
func (m Message) Confirmed() bool { return m.ID != LocalMessageID }

// ChatSession is the server-side identity of a conversation.
type ChatSession struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transcript is the ordered message history of one chat session as this
// client sees it. All mutation happens through methods so the regenerate
// truncation can stay atomic: callers never observe old and new tails at once.
type Transcript struct {
	msgs []Message
}

func NewTranscript(msgs []Message) *Transcript {
	t := &Transcript{}
	t.msgs = append(t.msgs, msgs...)
	return t
}

// Messages returns a copy of the history in order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

func (t *Transcript) Len() int { return len(t.msgs) }

func (t *Transcript) Append(m Message) { t.msgs = append(t.msgs, m) }

// Replace swaps the entire history, used when server-confirmed messages
// arrive from a session fetch. Optimistic local entries are dropped with the
// rest; they are replaced, never merged.
func (t *Transcript) Replace(msgs []Message) {
	t.msgs = t.msgs[:0]
	t.msgs = append(t.msgs, msgs...)
}

// indexOf returns the position of the message with the given id, -1 if absent.
func (t *Transcript) indexOf(messageID int) int {
	for i, m := range t.msgs {
		if m.ID == messageID {
			return i
		}
	}
	return -1
}

// TruncateFrom drops the message with the given id and everything after it in
// one step. Returns false (leaving the transcript unchanged) when the id is
// not present, which callers treat as a no-op rather than an error: the
// message may have scrolled out of local memory.
func (t *Transcript) TruncateFrom(messageID int) bool {
	i := t.indexOf(messageID)
	if i < 0 {
		return false
	}
	t.msgs = t.msgs[:i]
	return true
}
