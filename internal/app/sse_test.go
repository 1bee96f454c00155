package app

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func parseAll(t *testing.T, raw string) ([]StreamEvent, error) {
	t.Helper()
	p := NewStreamEventParser(strings.NewReader(raw))
	var events []StreamEvent
	for {
		ev, err := p.Next()
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func TestParserOrderPreserved(t *testing.T) {
	raw := "event: status\ndata: {\"phase\":\"classifying_intent\"}\n\n" +
		"event: status\ndata: {\"phase\":\"building_context\"}\n\n" +
		"event: status\ndata: {\"phase\":\"calling_llm\"}\n\n" +
		"event: done\ndata: {\"created_ids\":[1]}\n\n"

	events, err := parseAll(t, raw)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, events, 4)

	wantPhases := []string{"classifying_intent", "building_context", "calling_llm"}
	for i, phase := range wantPhases {
		st, ok := events[i].(StatusEvent)
		require.True(t, ok, "event %d is %T", i, events[i])
		require.Equal(t, phase, st.Phase)
	}
	_, ok := events[3].(DoneEvent)
	require.True(t, ok)
}

func TestParserEOFAfterTerminal(t *testing.T) {
	raw := "event: done\ndata: {}\n\n" +
		"event: status\ndata: {\"phase\":\"saving\"}\n\n"

	p := NewStreamEventParser(strings.NewReader(raw))
	ev, err := p.Next()
	require.NoError(t, err)
	require.IsType(t, DoneEvent{}, ev)

	// Anything after the terminal event is never surfaced.
	_, err = p.Next()
	require.ErrorIs(t, err, io.EOF)
	_, err = p.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestParserMultiLineData(t *testing.T) {
	raw := "event: content_delta\n" +
		"data: {\"delta\":\n" +
		"data: \"hi\"}\n\n" +
		"event: done\ndata: {}\n\n"

	events, err := parseAll(t, raw)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, events, 2)
	require.Equal(t, ContentDeltaEvent{Delta: "hi"}, events[0])
}

func TestParserToleratesNoise(t *testing.T) {
	raw := ": keep-alive\r\n" +
		"\r\n" +
		"id: 17\r\n" +
		"event: status\r\n" +
		"data: {\"phase\":\"saving\"}\r\n" +
		"\r\n" +
		"event: done\r\ndata: {}\r\n\r\n"

	events, err := parseAll(t, raw)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, events, 2)
	require.Equal(t, "saving", events[0].(StatusEvent).Phase)
}

func TestParserFinalFrameFlushedByClose(t *testing.T) {
	// No trailing blank line; the connection just closes.
	raw := "event: done\ndata: {\"created_ids\":[3]}"

	events, err := parseAll(t, raw)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, events, 1)
	require.Equal(t, []int{3}, events[0].(DoneEvent).CreatedIDs)
}

func TestParserProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"endsWithoutTerminal", "event: status\ndata: {\"phase\":\"saving\"}\n\n"},
		{"unknownEventName", "event: telemetry\ndata: {}\n\n"},
		{"frameMissingName", "data: {}\n\n"},
		{"frameMissingData", "event: status\n\n"},
		{"garbageLine", "this is not sse\n"},
		{"badJSON", "event: done\ndata: {not json\n\n"},
		{"statusMissingPhase", "event: status\ndata: {\"message\":\"hi\"}\n\n"},
		{"errorMissingMessage", "event: error\ndata: {}\n\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseAll(t, tc.raw)
			var pe *ProtocolDecodeError
			require.ErrorAs(t, err, &pe, "got %v", err)

			// The parser is dead after a protocol error.
			p := NewStreamEventParser(strings.NewReader(tc.raw))
			for {
				if _, err := p.Next(); err != nil {
					break
				}
			}
			_, again := p.Next()
			require.ErrorAs(t, again, &pe)
		})
	}
}

func TestParserTruncatedStreamIsUnexpectedEOF(t *testing.T) {
	raw := "event: status\ndata: {\"phase\":\"saving\"}\n\n"
	_, err := parseAll(t, raw)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	var pe *ProtocolDecodeError
	require.True(t, errors.As(err, &pe))
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestParserCloseReleasesTransport(t *testing.T) {
	rec := &closeRecorder{Reader: strings.NewReader("event: done\ndata: {}\n\n")}
	p := NewStreamEventParser(rec)
	require.NoError(t, p.Close())
	require.True(t, rec.closed)

	// Closed means detached, even before any event was read.
	_, err := p.Next()
	require.ErrorIs(t, err, io.EOF)
}
