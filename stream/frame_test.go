package stream_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/chansky6/deer-flow/stream"
)

func TestFrame_Format(t *testing.T) {
	got, err := stream.Frame(stream.EventMessageChunk, stream.MessageChunk{
		ThreadID: "thread-1",
		Agent:    "researcher",
		Role:     "assistant",
		Content:  "hello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `event: message_chunk` + "\n" +
		`data: {"thread_id":"thread-1","agent":"researcher","role":"assistant","content":"hello"}` + "\n\n"
	if got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
}

func TestFrame_UnencodablePayload(t *testing.T) {
	_, err := stream.Frame(stream.EventMessageChunk, func() {})
	if err == nil {
		t.Fatal("expected encoding error")
	}
}

func TestMessageChunkFrame(t *testing.T) {
	frame := stream.MessageChunkFrame("thread-1", "coder", "let me check")

	if !strings.HasPrefix(frame, "event: message_chunk\ndata: ") {
		t.Fatalf("unexpected frame prefix: %q", frame)
	}
	if !strings.HasSuffix(frame, "\n\n") {
		t.Fatalf("frame must end with a blank line: %q", frame)
	}

	var payload stream.MessageChunk
	data := strings.TrimSuffix(strings.TrimPrefix(frame, "event: message_chunk\ndata: "), "\n\n")
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload.ThreadID != "thread-1" || payload.Agent != "coder" || payload.Content != "let me check" {
		t.Errorf("payload = %+v", payload)
	}
	if payload.Role != "assistant" {
		t.Errorf("role = %q, want %q", payload.Role, "assistant")
	}
}

func TestFinishFrame_Stop(t *testing.T) {
	frame := stream.FinishFrame("thread-1", "reporter", "stop")

	if !strings.HasPrefix(frame, "event: message_chunk\n") {
		t.Errorf("stop finish must stay a message_chunk event: %q", frame)
	}
	if !strings.Contains(frame, `"finish_reason":"stop"`) {
		t.Errorf("missing finish_reason: %q", frame)
	}
}

func TestFinishFrame_Interrupt(t *testing.T) {
	frame := stream.FinishFrame("thread-1", "planner", "interrupt")

	if !strings.HasPrefix(frame, "event: interrupt\n") {
		t.Errorf("interrupt finish must switch the event type: %q", frame)
	}
	if !strings.Contains(frame, `"finish_reason":"interrupt"`) {
		t.Errorf("missing finish_reason: %q", frame)
	}
}
