package llm

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrStreamTruncated indicates the event stream ended before the server
// signalled message completion. Partial content must not be treated as a
// finished message.
var ErrStreamTruncated = errors.New("llm: event stream ended before completion")

// sseEvent is the union of streaming event payloads we care about.
// Event kinds other than text deltas, terminal markers, and errors are
// skipped.
type sseEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Stream consumes a Messages API server-sent event stream. It is lazy,
// finite, and non-restartable: Next yields text deltas in arrival order
// and returns io.EOF once the message stops.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
	err     error
}

// maxEventSize bounds a single SSE line; deltas are small but error
// payloads can carry request echoes.
const maxEventSize = 1 << 20

func newStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &Stream{body: body, scanner: scanner}
}

// Next returns the next text delta. It skips non-text events, returns
// io.EOF when the message completes, and fails with ErrStreamTruncated
// if the connection drops mid-message.
func (s *Stream) Next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.done {
		return "", io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()

		// SSE frames: "event: <name>" lines name the following data
		// line; the data payload repeats the type, so only data lines
		// need decoding.
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var event sseEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			s.err = fmt.Errorf("llm: decode stream event: %w", err)
			return "", s.err
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type == "text_delta" {
				return event.Delta.Text, nil
			}
		case "message_stop":
			s.done = true
			return "", io.EOF
		case "error":
			msg := "unknown stream error"
			if event.Error != nil {
				msg = event.Error.Message
			}
			s.err = fmt.Errorf("llm: stream error: %s", msg)
			return "", s.err
		}
		// ping, message_start, message_delta, content_block_start/stop: skip
	}

	if err := s.scanner.Err(); err != nil {
		s.err = fmt.Errorf("llm: reading stream: %w", err)
		return "", s.err
	}

	// Body ended without message_stop.
	s.err = ErrStreamTruncated
	return "", s.err
}

// Close releases the underlying response body.
func (s *Stream) Close() error {
	return s.body.Close()
}
