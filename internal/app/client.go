package app

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.uber.org/zap"
)

// AgentClient talks to the notes-agent backend. Streaming endpoints return a
// live StreamEventParser; a fresh call (and therefore a fresh connection) is
// needed per attempt, streams are never restarted.
type AgentClient struct {
	BaseURL string
	Token   string

	// api has a request timeout; stream does not, SSE connections live until
	// their terminal event or context cancellation.
	api    *http.Client
	stream *http.Client
	log    *zap.Logger
}

func NewAgentClient(cfg Config, log *zap.Logger) *AgentClient {
	if log == nil {
		log = zap.NewNop()
	}
	var transport http.RoundTripper
	// Skip TLS verification only when explicitly asked for (container setups).
	if os.Getenv("NAI_SKIP_TLS_VERIFY") == "1" {
		transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	return &AgentClient{
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
		api:     &http.Client{Timeout: cfg.RequestTimeout(), Transport: transport},
		stream:  &http.Client{Transport: transport},
		log:     log,
	}
}

type processRequest struct {
	UserInput string `json:"user_input"`
	NoteID    *int   `json:"note_id,omitempty"`
}

type chatMessageRequest struct {
	Content string `json:"content"`
}

type regenerateRequest struct {
	MessageID int `json:"message_id"`
}

type sessionDetailWire struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

// ProcessStream submits a one-shot add instruction. boundTargetID > 0 pins the
// request to that note, as after an ambiguity resolution.
func (c *AgentClient) ProcessStream(ctx context.Context, input string, boundTargetID int) (*StreamEventParser, error) {
	body := processRequest{UserInput: input}
	if boundTargetID > 0 {
		body.NoteID = &boundTargetID
	}
	return c.openStream(ctx, "/agent/process/stream", body)
}

// SendMessage submits a chat turn against a session.
func (c *AgentClient) SendMessage(ctx context.Context, sessionID int, content string) (*StreamEventParser, error) {
	path := fmt.Sprintf("/chat/sessions/%d/message", sessionID)
	return c.openStream(ctx, path, chatMessageRequest{Content: content})
}

// RegenerateFrom replays a session from the given message.
func (c *AgentClient) RegenerateFrom(ctx context.Context, sessionID, messageID int) (*StreamEventParser, error) {
	path := fmt.Sprintf("/chat/sessions/%d/regenerate", sessionID)
	return c.openStream(ctx, path, regenerateRequest{MessageID: messageID})
}

func (c *AgentClient) openStream(ctx context.Context, path string, body any) (*StreamEventParser, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, c.apiError(resp)
	}
	c.log.Debug("stream opened", zap.String("path", path))
	return NewStreamEventParser(resp.Body), nil
}

// ListSessions returns the chat sessions, newest first (server order).
func (c *AgentClient) ListSessions(ctx context.Context) ([]ChatSession, error) {
	var out []ChatSession
	if err := c.doJSON(ctx, http.MethodGet, "/chat/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSession makes a new chat session.
func (c *AgentClient) CreateSession(ctx context.Context, title string) (ChatSession, error) {
	var out ChatSession
	err := c.doJSON(ctx, http.MethodPost, "/chat/sessions", map[string]string{"title": title}, &out)
	return out, err
}

// GetSession fetches a session with its confirmed message history.
func (c *AgentClient) GetSession(ctx context.Context, sessionID int) (ChatSession, []Message, error) {
	var w sessionDetailWire
	path := fmt.Sprintf("/chat/sessions/%d", sessionID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &w); err != nil {
		return ChatSession{}, nil, err
	}
	return ChatSession{ID: w.ID, Title: w.Title}, w.Messages, nil
}

// RenameSession updates a session title.
func (c *AgentClient) RenameSession(ctx context.Context, sessionID int, title string) error {
	path := fmt.Sprintf("/chat/sessions/%d", sessionID)
	return c.doJSON(ctx, http.MethodPatch, path, map[string]string{"title": title}, nil)
}

// DeleteSession removes a session.
func (c *AgentClient) DeleteSession(ctx context.Context, sessionID int) error {
	path := fmt.Sprintf("/chat/sessions/%d", sessionID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *AgentClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.api.Do(req)
	if err != nil {
		return fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.apiError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *AgentClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

func (c *AgentClient) apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var detail struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(data, &detail)
	switch {
	case detail.Detail != "":
		return fmt.Errorf("backend error: status %d: %s", resp.StatusCode, detail.Detail)
	case detail.Message != "":
		return fmt.Errorf("backend error: status %d: %s", resp.StatusCode, detail.Message)
	}
	return fmt.Errorf("backend error: status %d", resp.StatusCode)
}
