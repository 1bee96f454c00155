package app

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func history(ids ...int) []Message {
	msgs := make([]Message, 0, len(ids))
	for i, id := range ids {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		msgs = append(msgs, Message{ID: id, Role: role, Content: "m"})
	}
	return msgs
}

func transcriptIDs(t *Transcript) []int {
	msgs := t.Messages()
	ids := make([]int, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestTruncateDropsTargetAndEverythingAfter(t *testing.T) {
	tr := NewTranscript(history(1, 2, 3))
	ctrl := NewRegenerateController(tr)

	require.True(t, ctrl.Truncate(2))
	if diff := cmp.Diff([]int{1}, transcriptIDs(tr)); diff != "" {
		t.Fatalf("transcript after truncate (-want +got):\n%s", diff)
	}
}

func TestTruncateFirstMessageEmptiesTranscript(t *testing.T) {
	tr := NewTranscript(history(1, 2, 3))
	ctrl := NewRegenerateController(tr)

	require.True(t, ctrl.Truncate(1))
	require.Empty(t, tr.Messages())
}

func TestTruncateUnknownIDIsNoOp(t *testing.T) {
	tr := NewTranscript(history(1, 2, 3))
	ctrl := NewRegenerateController(tr)

	require.False(t, ctrl.Truncate(99))
	require.Equal(t, []int{1, 2, 3}, transcriptIDs(tr))
}

func TestTruncateIsAtomicToObservers(t *testing.T) {
	tr := NewTranscript(history(1, 2, 3))
	// Snapshots taken before the truncation are copies and never mutate.
	before := tr.Messages()

	NewRegenerateController(tr).Truncate(2)
	require.Len(t, before, 3)
	require.Len(t, tr.Messages(), 1)
}

func TestTranscriptReplaceDropsOptimisticEntries(t *testing.T) {
	tr := NewTranscript(nil)
	tr.Append(Message{ID: LocalMessageID, Role: RoleUser, Content: "hello"})
	require.Equal(t, 1, tr.Len())

	confirmed := history(10, 11)
	tr.Replace(confirmed)
	require.Equal(t, []int{10, 11}, transcriptIDs(tr))
}
