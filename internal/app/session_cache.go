package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SessionCache is a JSON-on-disk mirror of chat transcripts, one file per
// session. It only exists so the chat view opens with history before the
// server fetch lands; the server copy always wins on hydration.
//
// Layout:
//
//	<root>/session/<sessionID>.json
type SessionCache struct {
	Root string
}

type cachedSession struct {
	SessionID int       `json:"session_id"`
	Messages  []Message `json:"messages"`
	SavedAt   time.Time `json:"saved_at"`
}

func DefaultCacheRoot() string {
	if base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); base != "" {
		return filepath.Join(base, "nai", "storage")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".local", "share", "nai", "storage")
	}
	return filepath.Join(os.TempDir(), "nai", "storage")
}

func NewSessionCache(root string) *SessionCache {
	if strings.TrimSpace(root) == "" {
		root = DefaultCacheRoot()
	}
	return &SessionCache{Root: root}
}

func (s *SessionCache) sessionPath(sessionID int) string {
	return filepath.Join(s.Root, "session", fmt.Sprintf("%d.json", sessionID))
}

// Load returns the cached transcript, or nil when none exists.
func (s *SessionCache) Load(sessionID int) ([]Message, error) {
	data, err := os.ReadFile(s.sessionPath(sessionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cached cachedSession
	if err := json.Unmarshal(data, &cached); err != nil {
		// A corrupt cache file is treated as absent; the server copy rebuilds it.
		return nil, nil
	}
	return cached.Messages, nil
}

// Save writes the transcript atomically (temp file + rename) so a crash never
// leaves a half-written cache behind.
func (s *SessionCache) Save(sessionID int, msgs []Message) error {
	path := s.sessionPath(sessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cachedSession{
		SessionID: sessionID,
		Messages:  msgs,
		SavedAt:   time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Delete removes the cached transcript; missing files are fine.
func (s *SessionCache) Delete(sessionID int) error {
	err := os.Remove(s.sessionPath(sessionID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
