package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	deerflow "github.com/chansky6/deer-flow"
)

// DefaultThreadID in a request asks the server to mint a fresh thread.
const DefaultThreadID = "__default__"

// ChatMessage is one conversation turn submitted by the client.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatStreamRequest is the body of POST /api/chat/stream.
type ChatStreamRequest struct {
	ThreadID string        `json:"thread_id"`
	Messages []ChatMessage `json:"messages"`
}

// HistoryResponse carries a thread's persisted event frames.
type HistoryResponse struct {
	ThreadID string   `json:"thread_id"`
	Events   []string `json:"events"`
}

// startChatStream launches (or re-attaches to) the thread's workflow and
// streams its frames. Re-posting to a running thread does not start a
// second run; the from_index query parameter picks the replay offset, so
// a reconnecting client resumes where it left off.
func (s *Server) startChatStream(w http.ResponseWriter, r *http.Request) {
	var req ChatStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	threadID := req.ThreadID
	if threadID == "" || threadID == DefaultThreadID {
		threadID = uuid.NewString()
	}
	query := lastUserMessage(req.Messages)
	if query == "" {
		writeError(w, http.StatusBadRequest, "No user message in request")
		return
	}

	if _, err := s.manager.StartRun(threadID, s.producerFor(threadID, query)); err != nil {
		s.logger.Error("failed to start workflow",
			slog.String("thread_id", threadID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "Failed to start workflow")
		return
	}

	s.ensureConversation(r.Context(), threadID, query)
	s.streamRun(w, r, threadID, queryInt(r, "from_index", 0))
}

// resumeChatStream re-attaches to a thread without submitting a message.
// A tracked run streams live; otherwise the persisted history is replayed
// and the stream ends.
func (s *Server) resumeChatStream(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	from := queryInt(r, "from_index", 0)

	if _, err := s.manager.GetRun(threadID); err == nil {
		s.streamRun(w, r, threadID, from)
		return
	}

	events := s.log.History(r.Context(), threadID)
	if len(events) == 0 {
		writeError(w, http.StatusNotFound, "Unknown thread")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	setStreamHeaders(w)
	w.WriteHeader(http.StatusOK)
	if from > len(events) {
		from = len(events)
	}
	for _, frame := range events[from:] {
		if _, err := io.WriteString(w, frame); err != nil {
			return
		}
		flusher.Flush()
	}
}

// chatHistory returns the thread's persisted frames as JSON. Unknown
// threads and disabled durability both yield an empty list, never an
// error.
func (s *Server) chatHistory(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	events := s.log.History(r.Context(), threadID)
	if events == nil {
		events = []string{}
	}
	writeJSON(w, HistoryResponse{ThreadID: threadID, Events: events})
}

// streamRun forwards the run's frames from the given offset until the
// run terminates or the client disconnects.
func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, threadID string, from int) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	setStreamHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for frame := range s.manager.Subscribe(r.Context(), threadID, from) {
		if _, err := io.WriteString(w, frame); err != nil {
			// Client gone; the run keeps going in the background.
			return
		}
		flusher.Flush()
	}
}

// ensureConversation keeps metadata in step with chat activity: first
// contact creates the record titled after the query, later turns bump
// updated_at.
func (s *Server) ensureConversation(ctx context.Context, threadID, title string) {
	if !s.conversations.Enabled() {
		return
	}
	if _, ok := s.conversations.Get(ctx, threadID); ok {
		s.conversations.Touch(ctx, threadID)
		return
	}
	userID, _ := deerflow.UserIDFromContext(ctx)
	s.conversations.Create(ctx, userID, threadID, title)
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// lastUserMessage picks the query the workflow should answer: the newest
// user turn, falling back to the final message of any role.
func lastUserMessage(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" && messages[i].Content != "" {
			return messages[i].Content
		}
	}
	if n := len(messages); n > 0 {
		return messages[n-1].Content
	}
	return ""
}
