package app

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// pumpStream feeds one stream to its terminal outcome through the
// orchestrator, the way the TUI's pump goroutine does.
func pumpStream(t *testing.T, client *AgentClient, orch *Orchestrator, op *Operation, gen uint64) Outcome {
	t.Helper()
	parser, err := client.ProcessStream(context.Background(), op.Input, op.BoundTargetID)
	require.NoError(t, err)
	defer parser.Close()

	for {
		ev, err := parser.Next()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			t.Fatal("stream ended before a terminal outcome")
		}
		out := orch.Apply(gen, ev)
		if out.Class != ClassNone {
			return out
		}
	}
}

func TestAddFlowEndToEnd(t *testing.T) {
	signals := NewSignals()
	counter := newSignalCounter(signals)
	client := NewMockAgentClient(nil)
	orch := NewOrchestrator(nil, signals)

	op, gen, err := orch.Begin("buy milk tomorrow", 0)
	require.NoError(t, err)

	out := pumpStream(t, client, orch, op, gen)
	require.Equal(t, ClassSuccess, out.Class)
	require.Equal(t, 42, out.SelectedNoteID)
	require.Equal(t, 1, counter.counts[SignalNoteTree])

	// The board walked the full phase order and finished.
	require.Equal(t, PhaseDone, op.Phases.Current())
	for _, step := range op.Phases.Steps() {
		require.Equal(t, StepComplete, step.State, "phase %s", step.Phase)
	}
}

func TestAddFlowAmbiguityResolvedEndToEnd(t *testing.T) {
	client := NewMockAgentClient(nil)
	orch := NewOrchestrator(nil, nil)

	op, gen, err := orch.Begin("append to the list", 0)
	require.NoError(t, err)

	out := pumpStream(t, client, orch, op, gen)
	require.Equal(t, ClassAwaitingChoice, out.Class)
	require.Len(t, out.Candidates, 2)

	// Pick the second candidate; the resubmission binds to it and succeeds
	// without asking again.
	resolved, newGen, err := orch.Resolve(out.Candidates[1])
	require.NoError(t, err)
	require.Equal(t, 12, resolved.BoundTargetID)

	out = pumpStream(t, client, orch, resolved, newGen)
	require.Equal(t, ClassSuccess, out.Class)
	require.Equal(t, []int{12}, out.AffectedIDs)
}

func TestChatFlowEndToEnd(t *testing.T) {
	client := NewMockAgentClient(nil)
	f := NewChatFlow(nil, nil, 1, nil)

	op, gen, err := f.BeginTurn("what did I note about milk?")
	require.NoError(t, err)

	parser, err := client.SendMessage(context.Background(), f.SessionID, op.Input)
	require.NoError(t, err)
	defer parser.Close()

	var final ChatOutcome
	for {
		ev, err := parser.Next()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
		out := f.Apply(gen, ev)
		require.True(t, out.Applied)
		if out.Terminal {
			final = out
		}
	}

	require.NotNil(t, final.Committed)
	require.Equal(t, RoleAssistant, final.Committed.Role)
	require.Contains(t, final.Committed.Content, "what did I note about milk?")
	require.Len(t, final.Committed.ToolCalls, 1)
	require.Equal(t, "search_notes", final.Committed.ToolCalls[0].Name)

	msgs := f.Transcript()
	require.Len(t, msgs, 2)
	require.Equal(t, RoleUser, msgs[0].Role)
	require.True(t, msgs[1].Confirmed())
}
