package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/chansky6/deer-flow/stream"
)

// Frame is one server-sent event read off a chat stream: the event type
// line and the raw JSON data line.
type Frame struct {
	Event string
	Data  string
}

// Chunk decodes the frame's data as a message payload. It works for
// message_chunk and interrupt frames, which share the same shape.
func (f Frame) Chunk() (stream.MessageChunk, error) {
	var mc stream.MessageChunk
	if err := json.Unmarshal([]byte(f.Data), &mc); err != nil {
		return stream.MessageChunk{}, fmt.Errorf("deerflow/client: decode %s frame: %w", f.Event, err)
	}
	return mc, nil
}

// Stream reads server-sent event frames from a chat response. It is not
// safe for concurrent use.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func newStream(body io.ReadCloser) *Stream {
	sc := bufio.NewScanner(body)
	// Report frames carry whole markdown documents on one data line.
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Stream{body: body, scanner: sc}
}

// Next returns the next frame, blocking until the server sends one.
// io.EOF signals the end of a cleanly finished stream. Frames emitted by
// deer-flow carry a single data line each.
func (s *Stream) Next() (Frame, error) {
	var f Frame
	seen := false
	for s.scanner.Scan() {
		line := s.scanner.Text()
		switch {
		case line == "":
			if seen {
				return f, nil
			}
		case strings.HasPrefix(line, "event: "):
			f.Event = strings.TrimPrefix(line, "event: ")
			seen = true
		case strings.HasPrefix(line, "data: "):
			f.Data = strings.TrimPrefix(line, "data: ")
			seen = true
		}
	}
	if err := s.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("deerflow/client: read stream: %w", err)
	}
	if seen {
		return f, nil
	}
	return Frame{}, io.EOF
}

// Close releases the underlying connection. Frames not yet read are
// discarded; the run on the server keeps going.
func (s *Stream) Close() error {
	return s.body.Close()
}
