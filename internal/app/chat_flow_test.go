package app

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChatFlowTurnRoundTrip(t *testing.T) {
	signals := NewSignals()
	counter := newSignalCounter(signals)
	f := NewChatFlow(nil, signals, 1, history(10, 11))

	op, gen, err := f.BeginTurn("what did I plan for today?")
	require.NoError(t, err)
	require.Equal(t, KindChatTurn, op.Kind)
	require.Equal(t, 1, op.SessionID)

	// The user's turn is echoed immediately under the local id.
	msgs := f.Transcript()
	require.Len(t, msgs, 3)
	echo := msgs[2]
	require.Equal(t, LocalMessageID, echo.ID)
	require.Equal(t, RoleUser, echo.Role)
	require.Equal(t, "what did I plan for today?", echo.Content)
	require.False(t, echo.Confirmed())

	out := f.Apply(gen, ContentDeltaEvent{Delta: "You planned "})
	require.True(t, out.Applied)
	require.True(t, out.ContentChanged)
	out = f.Apply(gen, ContentDeltaEvent{Delta: "a walk."})
	require.True(t, out.Applied)

	content, _, _ := f.Streaming()
	require.Equal(t, "You planned a walk.", content)

	out = f.Apply(gen, DoneEvent{MessageID: 12, Content: "You planned a walk."})
	require.True(t, out.Terminal)
	require.NotNil(t, out.Committed)
	require.Equal(t, 12, out.Committed.ID)

	msgs = f.Transcript()
	require.Len(t, msgs, 4)
	require.Equal(t, 12, msgs[3].ID)
	require.Equal(t, 1, counter.counts[SignalChatSessionList])
	require.Equal(t, 1, counter.counts[SignalChatSessionDetail])

	// The reducer is clean for the next turn.
	content, tool, results := f.Streaming()
	require.Empty(t, content)
	require.Nil(t, tool)
	require.Empty(t, results)
}

func TestChatFlowToolTraffic(t *testing.T) {
	f := NewChatFlow(nil, nil, 1, nil)
	_, gen, err := f.BeginTurn("find my groceries note")
	require.NoError(t, err)

	f.Apply(gen, ToolCallEvent{ID: "tc-1", Name: "search_notes", Arguments: json.RawMessage(`{"q":"groceries"}`)})
	f.Apply(gen, ToolResultEvent{ID: "tc-1", Results: []json.RawMessage{json.RawMessage(`{"note_id":7}`)}})

	_, tool, results := f.Streaming()
	require.NotNil(t, tool)
	require.Equal(t, "search_notes", tool.Name)
	require.Len(t, results, 1)
}

func TestChatFlowErrorKeepsPartialOutput(t *testing.T) {
	f := NewChatFlow(nil, nil, 1, nil)
	_, gen, err := f.BeginTurn("hello")
	require.NoError(t, err)

	f.Apply(gen, ContentDeltaEvent{Delta: "I think"})
	out := f.Apply(gen, ErrorEvent{Message: "the model is unavailable"})
	require.True(t, out.Terminal)
	require.Equal(t, FailureAgent, out.Failure)

	msgs := f.Transcript()
	last := msgs[len(msgs)-1]
	require.Equal(t, RoleAssistant, last.Role)
	require.Contains(t, last.Content, "I think")
	require.Contains(t, last.Content, "the model is unavailable")
	require.False(t, last.Confirmed())
}

func TestChatFlowTransportFailure(t *testing.T) {
	f := NewChatFlow(nil, nil, 1, nil)
	_, gen, err := f.BeginTurn("hello")
	require.NoError(t, err)

	out := f.Fail(gen, errors.New("connection reset"))
	require.Equal(t, FailureTransport, out.Failure)

	_, gen2, err := f.BeginTurn("hello again")
	require.NoError(t, err)
	out = f.Fail(gen2, &ProtocolDecodeError{Line: 1, Reason: "invalid event payload"})
	require.Equal(t, FailureProtocol, out.Failure)
}

func TestChatFlowOneTurnInFlight(t *testing.T) {
	f := NewChatFlow(nil, nil, 1, nil)
	_, _, err := f.BeginTurn("one")
	require.NoError(t, err)

	_, _, err = f.BeginTurn("two")
	require.ErrorIs(t, err, ErrOperationInFlight)
	_, _, err = f.BeginRegenerate(5)
	require.ErrorIs(t, err, ErrOperationInFlight)
}

func TestChatFlowStaleEventsDropped(t *testing.T) {
	f := NewChatFlow(nil, nil, 1, nil)
	_, gen, err := f.BeginTurn("one")
	require.NoError(t, err)
	f.Discard()

	out := f.Apply(gen, ContentDeltaEvent{Delta: "late"})
	require.False(t, out.Applied)
	out = f.Apply(gen, DoneEvent{MessageID: 9, Content: "late"})
	require.False(t, out.Applied)

	// Nothing landed in the transcript beyond the optimistic echo.
	msgs := f.Transcript()
	require.Len(t, msgs, 1)
	require.Equal(t, RoleUser, msgs[0].Role)
}

func TestChatFlowRegenerateTruncatesBeforeStreaming(t *testing.T) {
	f := NewChatFlow(nil, nil, 1, history(1, 2, 3))

	op, gen, err := f.BeginRegenerate(2)
	require.NoError(t, err)
	require.Equal(t, KindRegenerate, op.Kind)
	require.Equal(t, 2, op.TargetMessageID)

	// The prefix is observable before any replacement byte arrives.
	require.Equal(t, []int{1}, messageIDs(f.Transcript()))

	f.Apply(gen, ContentDeltaEvent{Delta: "A better answer."})
	out := f.Apply(gen, DoneEvent{MessageID: 4, Content: "A better answer."})
	require.True(t, out.Terminal)
	require.Equal(t, []int{1, 4}, messageIDs(f.Transcript()))
}

func TestChatFlowRegenerateUnknownIDStillRuns(t *testing.T) {
	f := NewChatFlow(nil, nil, 1, history(1, 2))

	_, gen, err := f.BeginRegenerate(99)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, messageIDs(f.Transcript()))

	out := f.Apply(gen, DoneEvent{MessageID: 3, Content: "fresh"})
	require.True(t, out.Terminal)
	require.Equal(t, []int{1, 2, 3}, messageIDs(f.Transcript()))
}

func TestChatFlowHydrateReplacesEcho(t *testing.T) {
	f := NewChatFlow(nil, nil, 1, nil)
	_, gen, err := f.BeginTurn("hello")
	require.NoError(t, err)
	f.Apply(gen, DoneEvent{MessageID: 21, Content: "hi there"})

	// Server-confirmed history replaces the optimistic echo wholesale.
	f.Hydrate(history(20, 21))
	require.Equal(t, []int{20, 21}, messageIDs(f.Transcript()))
	for _, m := range f.Transcript() {
		require.True(t, m.Confirmed())
	}
}

func messageIDs(msgs []Message) []int {
	ids := make([]int, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}
