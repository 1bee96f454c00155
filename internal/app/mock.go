package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// NewMockAgentClient returns a client backed by a scripted in-process
// backend. Used by --mock for demos and by tests that want the full
// HTTP-to-parser path without a server.
func NewMockAgentClient(log *zap.Logger) *AgentClient {
	if log == nil {
		log = zap.NewNop()
	}
	rt := newMockTransport()
	return &AgentClient{
		BaseURL: "http://mock",
		api:     &http.Client{Transport: rt},
		stream:  &http.Client{Transport: rt},
		log:     log,
	}
}

// mockTransport fabricates backend responses. Scripts key off the input text:
// anything mentioning "append" without a bound note triggers the ambiguity
// branch, "skip" triggers a soft no-op, "fail" an agent error; everything
// else succeeds and creates note 42.
type mockTransport struct {
	mu       sync.Mutex
	sessions map[int][]Message
	nextMsg  int
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		sessions: map[int][]Message{1: nil},
		nextMsg:  100,
	}
}

func (t *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	path := req.URL.Path
	switch {
	case path == "/agent/process/stream":
		return t.processStream(req)
	case path == "/chat/sessions" && req.Method == http.MethodGet:
		return jsonResponse(http.StatusOK, []ChatSession{{ID: 1, Title: "Scratch"}})
	case path == "/chat/sessions" && req.Method == http.MethodPost:
		return jsonResponse(http.StatusOK, ChatSession{ID: 2, Title: "New chat"})
	case strings.HasSuffix(path, "/message"):
		return t.chatStream(req)
	case strings.HasSuffix(path, "/regenerate"):
		return t.regenerateStream()
	case strings.HasPrefix(path, "/chat/sessions/"):
		return jsonResponse(http.StatusOK, sessionDetailWire{ID: 1, Title: "Scratch"})
	}
	return jsonResponse(http.StatusNotFound, map[string]string{"detail": "no such endpoint"})
}

func (t *mockTransport) processStream(req *http.Request) (*http.Response, error) {
	var body processRequest
	data, _ := io.ReadAll(req.Body)
	_ = json.Unmarshal(data, &body)
	input := strings.ToLower(body.UserInput)

	var frames []string
	frames = append(frames,
		frame("status", `{"phase":"classifying_intent","message":"Understanding the request"}`),
		frame("status", `{"phase":"intent_detected","message":"","intent":"note","intent_label":"Note"}`),
		frame("status", `{"phase":"building_context","message":"Loading your notes"}`),
		frame("status", `{"phase":"calling_llm","message":"Thinking"}`),
	)
	switch {
	case strings.Contains(input, "append") && body.NoteID == nil:
		frames = append(frames, frame("done",
			`{"requires_note_selection":true,"candidates":[{"note_id":7,"title":"Groceries"},{"note_id":12,"title":"Shopping ideas"}]}`))
	case strings.Contains(input, "skip"):
		frames = append(frames, frame("done",
			`{"affected_ids":[],"created_ids":[],"skipped":true,"reason":"nothing to save"}`))
	case strings.Contains(input, "fail"):
		frames = append(frames, frame("error", `{"message":"the model is unavailable"}`))
	default:
		target := 42
		if body.NoteID != nil {
			target = *body.NoteID
		}
		frames = append(frames,
			frame("status", `{"phase":"executing_tool","message":"Creating a note"}`),
			frame("status", `{"phase":"saving","message":"Saving"}`),
			frame("done", fmt.Sprintf(
				`{"affected_ids":[%d],"created_ids":[%d],"created_note_ids":[%d]}`, target, target, target)),
		)
	}
	return sseResponse(frames)
}

func (t *mockTransport) chatStream(req *http.Request) (*http.Response, error) {
	var body chatMessageRequest
	data, _ := io.ReadAll(req.Body)
	_ = json.Unmarshal(data, &body)

	t.mu.Lock()
	t.nextMsg++
	id := t.nextMsg
	t.mu.Unlock()

	reply := "You said: " + body.Content
	frames := []string{
		frame("content_delta", deltaJSON(reply[:len(reply)/2])),
		frame("tool_call", `{"id":"tc-1","name":"search_notes","arguments":{"query":"notes"}}`),
		frame("tool_result", `{"id":"tc-1","results":[{"note_id":7,"title":"Groceries"}]}`),
		frame("content_delta", deltaJSON(reply[len(reply)/2:])),
		frame("done", fmt.Sprintf(`{"message_id":%d,"content":%q}`, id, reply)),
	}
	return sseResponse(frames)
}

func (t *mockTransport) regenerateStream() (*http.Response, error) {
	t.mu.Lock()
	t.nextMsg++
	id := t.nextMsg
	t.mu.Unlock()

	reply := "Here is a fresh take on that."
	frames := []string{
		frame("content_delta", deltaJSON(reply)),
		frame("done", fmt.Sprintf(`{"message_id":%d,"content":%q}`, id, reply)),
	}
	return sseResponse(frames)
}

func frame(event, data string) string {
	return "event: " + event + "\ndata: " + data + "\n\n"
}

func deltaJSON(s string) string {
	b, _ := json.Marshal(map[string]string{"delta": s})
	return string(b)
}

func sseResponse(frames []string) (*http.Response, error) {
	body := strings.Join(frames, "")
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}, nil
}

func jsonResponse(status int, v any) (*http.Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(data)),
	}, nil
}
