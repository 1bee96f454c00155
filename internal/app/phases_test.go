package app

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestPhaseMachineStartsAtReceived(t *testing.T) {
	m := NewPhaseMachine()
	require.Equal(t, PhaseReceived, m.Current())

	steps := m.Steps()
	require.Equal(t, StepActive, steps[0].State)
	for _, s := range steps[1:] {
		require.Equal(t, StepPending, s.State, "phase %s", s.Phase)
	}
}

func TestPhaseMachineMonotonicAdvance(t *testing.T) {
	m := NewPhaseMachine()
	require.True(t, m.ApplyStatus(StatusEvent{Phase: "calling_llm"}))
	require.Equal(t, PhaseAnalyzing, m.Current())

	// Out-of-order restatement of an earlier phase never regresses the board.
	require.True(t, m.ApplyStatus(StatusEvent{Phase: "building_context"}))
	require.Equal(t, PhaseAnalyzing, m.Current())
}

func TestPhaseMachineDuplicatesAreIdempotent(t *testing.T) {
	m := NewPhaseMachine()
	m.ApplyStatus(StatusEvent{Phase: "building_context"})
	before := m.Steps()

	for i := 0; i < 5; i++ {
		m.ApplyStatus(StatusEvent{Phase: "building_context"})
	}
	if diff := cmp.Diff(before, m.Steps()); diff != "" {
		t.Fatalf("board changed on duplicate status (-before +after):\n%s", diff)
	}
}

func TestPhaseMachineUnknownTagIgnored(t *testing.T) {
	m := NewPhaseMachine()
	require.False(t, m.ApplyStatus(StatusEvent{Phase: "defragmenting"}))
	require.Equal(t, PhaseReceived, m.Current())
}

func TestPhaseMachineIntentDetectedLabel(t *testing.T) {
	m := NewPhaseMachine()
	m.ApplyStatus(StatusEvent{Phase: "classifying_intent", Message: "Understanding the request"})
	m.ApplyStatus(StatusEvent{Phase: "intent_detected", Intent: "note", IntentLabel: "Creating a note"})

	// intent_detected shares the classifying slot but renames it.
	require.Equal(t, PhaseClassifying, m.Current())
	require.Equal(t, "Creating a note", m.Label(PhaseClassifying))
}

func TestPhaseMachineFinish(t *testing.T) {
	m := NewPhaseMachine()
	m.ApplyStatus(StatusEvent{Phase: "saving"})
	m.Finish()
	require.Equal(t, PhaseDone, m.Current())
	require.True(t, m.Current().Terminal())

	for _, s := range m.Steps() {
		require.Equal(t, StepComplete, s.State, "phase %s", s.Phase)
	}

	// Terminal machines ignore further status events.
	require.False(t, m.ApplyStatus(StatusEvent{Phase: "saving"}))
}

func TestPhaseMachineErrorKeepsEarnedCheckmarks(t *testing.T) {
	m := NewPhaseMachine()
	m.ApplyStatus(StatusEvent{Phase: "building_context"})
	m.ApplyStatus(StatusEvent{Phase: "calling_llm"})
	m.Fail("the model is unavailable")

	require.Equal(t, PhaseError, m.Current())
	require.Equal(t, "the model is unavailable", m.ErrorMessage())

	var byPhase = map[ProgressPhase]StepState{}
	for _, s := range m.Steps() {
		byPhase[s.Phase] = s.State
	}
	require.Equal(t, StepComplete, byPhase[PhaseReceived])
	require.Equal(t, StepComplete, byPhase[PhaseClassifying])
	require.Equal(t, StepComplete, byPhase[PhaseLoadingContext])
	// The phase in flight when the error hit stays un-ticked.
	require.Equal(t, StepPending, byPhase[PhaseAnalyzing])
	require.Equal(t, StepPending, byPhase[PhaseCreating])
	require.Equal(t, StepPending, byPhase[PhaseSaving])
}

func TestPhaseForTagVocabulary(t *testing.T) {
	tests := []struct {
		tag  string
		want ProgressPhase
		ok   bool
	}{
		{"classifying_intent", PhaseClassifying, true},
		{"intent_detected", PhaseClassifying, true},
		{"building_context", PhaseLoadingContext, true},
		{"calling_llm", PhaseAnalyzing, true},
		{"executing_tool", PhaseCreating, true},
		{"saving", PhaseSaving, true},
		{"done", 0, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.tag, func(t *testing.T) {
			got, ok := phaseForTag(tc.tag)
			require.Equal(t, tc.ok, ok)
			if ok {
				require.Equal(t, tc.want, got)
			}
		})
	}
}
