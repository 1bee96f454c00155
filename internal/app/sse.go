package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ProtocolDecodeError reports a malformed or prematurely terminated stream.
// Callers treat it exactly like a transport-level error event: the operation
// fails and nothing is retried automatically.
type ProtocolDecodeError struct {
	Line   int
	Reason string
	Err    error
}

func (e *ProtocolDecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol decode error at line %d: %s: %v", e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol decode error at line %d: %s", e.Line, e.Reason)
}

func (e *ProtocolDecodeError) Unwrap() error { return e.Err }

// StreamEventParser decodes a server-sent event transport into typed stream
// events, preserving arrival order. It buffers only the frame being assembled
// and is not restartable; retrying an operation means opening a fresh stream.
type StreamEventParser struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
	ended   bool
	failed  error
}

// maxFrameLine bounds a single transport line. Agent payloads are small; a
// multi-megabyte line means the framing is broken.
const maxFrameLine = 1 << 20

// NewStreamEventParser wraps r. If r is also an io.Closer (an HTTP response
// body), Close tears it down.
func NewStreamEventParser(r io.Reader) *StreamEventParser {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxFrameLine)
	p := &StreamEventParser{scanner: sc}
	if c, ok := r.(io.Closer); ok {
		p.closer = c
	}
	return p
}

// Next returns the next event in arrival order. After a terminal event
// (done/error) has been returned, Next reports io.EOF. A transport that ends
// without a terminal event, or any malformed frame, yields a
// *ProtocolDecodeError; the parser is dead from that point on.
func (p *StreamEventParser) Next() (StreamEvent, error) {
	if p.failed != nil {
		return nil, p.failed
	}
	if p.ended {
		return nil, io.EOF
	}

	var name string
	var data strings.Builder
	sawData := false

	for p.scanner.Scan() {
		p.line++
		line := p.scanner.Text()
		line = strings.TrimSuffix(line, "\r")

		switch {
		case line == "":
			// Blank line closes the frame; a blank line before any field is a
			// heartbeat and is skipped.
			if name == "" && !sawData {
				continue
			}
			return p.finishFrame(name, data.String(), sawData)

		case strings.HasPrefix(line, ":"):
			// Comment / keep-alive.

		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))

		case strings.HasPrefix(line, "data:"):
			if sawData {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			sawData = true

		case strings.Contains(line, ":"):
			// Unknown SSE fields (id, retry) are tolerated and dropped.

		default:
			return nil, p.fail("malformed frame line", nil)
		}
	}

	if err := p.scanner.Err(); err != nil {
		return nil, p.fail("transport read failed", err)
	}
	if name != "" || sawData {
		// Final frame flushed by connection close rather than a blank line.
		return p.finishFrame(name, data.String(), sawData)
	}
	return nil, p.fail("stream ended without terminal event", io.ErrUnexpectedEOF)
}

func (p *StreamEventParser) finishFrame(name, data string, sawData bool) (StreamEvent, error) {
	if name == "" {
		return nil, p.fail("frame missing event name", nil)
	}
	if !sawData {
		return nil, p.fail(fmt.Sprintf("event %q missing data", name), nil)
	}
	ev, err := decodeEvent(name, []byte(data))
	if err != nil {
		return nil, p.fail("invalid event payload", err)
	}
	if Terminal(ev) {
		p.ended = true
	}
	return ev, nil
}

func (p *StreamEventParser) fail(reason string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	p.failed = &ProtocolDecodeError{Line: p.line, Reason: reason, Err: err}
	return p.failed
}

// Close releases the underlying transport. Safe to call at any time; a caller
// discarding an operation closes the parser to detach from the stream.
func (p *StreamEventParser) Close() error {
	p.ended = true
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}
