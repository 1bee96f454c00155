package app

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventDonePayload(t *testing.T) {
	data := []byte(`{
		"message_id": 9,
		"content": "noted",
		"affected_ids": [1, 2],
		"created_ids": [3],
		"created_note_ids": [3],
		"requires_note_selection": false,
		"unknown_intent": false,
		"skipped": false
	}`)
	ev, err := decodeEvent("done", data)
	require.NoError(t, err)

	want := DoneEvent{
		MessageID:      9,
		Content:        "noted",
		AffectedIDs:    []int{1, 2},
		CreatedIDs:     []int{3},
		CreatedNoteIDs: []int{3},
	}
	if diff := cmp.Diff(want, ev); diff != "" {
		t.Fatalf("done event mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeEventCandidatesKeepServerOrder(t *testing.T) {
	data := []byte(`{
		"requires_note_selection": true,
		"candidates": [
			{"note_id": 12, "title": "Shopping ideas"},
			{"note_id": 7, "title": "Groceries"}
		]
	}`)
	ev, err := decodeEvent("done", data)
	require.NoError(t, err)

	done := ev.(DoneEvent)
	require.True(t, done.RequiresSelection)
	want := []Candidate{
		{TargetID: 12, Label: "Shopping ideas"},
		{TargetID: 7, Label: "Groceries"},
	}
	require.Equal(t, want, done.Candidates)
}

func TestDecodeEventRejections(t *testing.T) {
	tests := []struct {
		name  string
		event string
		data  string
	}{
		{"unknownName", "heartbeat", `{}`},
		{"statusNoPhase", "status", `{"message":"hi"}`},
		{"deltaNoDelta", "content_delta", `{}`},
		{"toolCallNoName", "tool_call", `{"id":"tc-1"}`},
		{"toolResultNoID", "tool_result", `{"results":[]}`},
		{"errorNoMessage", "error", `{}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeEvent(tc.event, []byte(tc.data))
			require.Error(t, err)
		})
	}
}

func TestTerminalEvents(t *testing.T) {
	require.True(t, Terminal(DoneEvent{}))
	require.True(t, Terminal(ErrorEvent{}))
	require.False(t, Terminal(StatusEvent{}))
	require.False(t, Terminal(ContentDeltaEvent{}))
	require.False(t, Terminal(ToolCallEvent{}))
	require.False(t, Terminal(ToolResultEvent{}))
}
