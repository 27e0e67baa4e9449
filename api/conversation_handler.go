package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	deerflow "github.com/chansky6/deer-flow"
	"github.com/chansky6/deer-flow/conversation"
)

// ConversationResponse is the wire form of a conversation record.
// Timestamps are normalized to RFC 3339 in UTC regardless of how the
// backend stores them.
type ConversationResponse struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ListConversationsResponse is the body of GET /api/conversations.
type ListConversationsResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
}

// UpdateConversationRequest is the body of PATCH /api/conversations/{threadID}.
type UpdateConversationRequest struct {
	Title string `json:"title"`
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	if !s.conversations.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "Conversation store is disabled")
		return
	}
	userID, _ := deerflow.UserIDFromContext(r.Context())
	limit := queryInt(r, "limit", DefaultListLimit)
	if limit == 0 {
		limit = DefaultListLimit
	}
	offset := queryInt(r, "offset", 0)

	convs := s.conversations.List(r.Context(), userID, limit, offset)
	out := ListConversationsResponse{Conversations: make([]ConversationResponse, 0, len(convs))}
	for _, c := range convs {
		out.Conversations = append(out.Conversations, renderConversation(c))
	}
	writeJSON(w, out)
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	if !s.conversations.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "Conversation store is disabled")
		return
	}
	threadID := chi.URLParam(r, "threadID")
	c, ok := s.conversations.Get(r.Context(), threadID)
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeJSON(w, renderConversation(c))
}

func (s *Server) updateConversation(w http.ResponseWriter, r *http.Request) {
	if !s.conversations.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "Conversation store is disabled")
		return
	}
	threadID := chi.URLParam(r, "threadID")
	var req UpdateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	if !s.conversations.UpdateTitle(r.Context(), threadID, req.Title) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	c, ok := s.conversations.Get(r.Context(), threadID)
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeJSON(w, renderConversation(c))
}

// deleteConversation removes the record and, through the store cascade,
// the thread's persisted events.
func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	if !s.conversations.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "Conversation store is disabled")
		return
	}
	threadID := chi.URLParam(r, "threadID")
	if !s.conversations.Delete(r.Context(), threadID) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeNoContent(w)
}

func renderConversation(c *conversation.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:        c.ID,
		ThreadID:  c.ThreadID,
		UserID:    c.UserID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
