package stream

import (
	"encoding/json"
	"fmt"
)

// Event type constants for the frames deer-flow producers emit.
const (
	EventMessageChunk   = "message_chunk"
	EventToolCallResult = "tool_call_result"
	EventInterrupt      = "interrupt"
)

// MessageChunk is the payload for message_chunk and interrupt frames.
type MessageChunk struct {
	ThreadID     string `json:"thread_id"`
	Agent        string `json:"agent,omitempty"`
	Role         string `json:"role,omitempty"`
	Content      string `json:"content,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// ToolCallResult is the payload for tool_call_result frames.
type ToolCallResult struct {
	ThreadID   string `json:"thread_id"`
	Agent      string `json:"agent,omitempty"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content,omitempty"`
}

// Frame renders one server-sent event frame: an event-type line and a data
// line holding the JSON encoding of payload, terminated by a blank line.
func Frame(event string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("deerflow/stream: encode %s frame: %w", event, err)
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data), nil
}

// MessageChunkFrame builds a message_chunk frame for one piece of agent
// output.
func MessageChunkFrame(threadID, agent, content string) string {
	f, _ := Frame(EventMessageChunk, MessageChunk{
		ThreadID: threadID,
		Agent:    agent,
		Role:     "assistant",
		Content:  content,
	})
	return f
}

// FinishFrame builds the closing message_chunk frame carrying the finish
// reason ("stop" on normal completion, "interrupt" when the workflow needs
// user input before continuing).
func FinishFrame(threadID, agent, finishReason string) string {
	event := EventMessageChunk
	if finishReason == "interrupt" {
		event = EventInterrupt
	}
	f, _ := Frame(event, MessageChunk{
		ThreadID:     threadID,
		Agent:        agent,
		Role:         "assistant",
		FinishReason: finishReason,
	})
	return f
}
