package conversation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	deerflow "github.com/chansky6/deer-flow"
)

// Service is the conversation metadata component. Like stream.Log it wraps
// a backend Store with the disabled-mode and swallow-to-result policy:
// when durability is disabled every mutation is a no-op reporting failure,
// and reads come back empty. There is no in-memory-only mode for metadata.
type Service struct {
	store  Store
	logger *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for the Service.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates the metadata service over the given backend. A nil
// store puts the service in disabled mode.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.logger.Warn("conversation store disabled: no backend configured")
	}
	return s
}

// Enabled reports whether a backend is configured.
func (s *Service) Enabled() bool {
	return s.store != nil
}

// Create inserts a new conversation for the thread with a generated ID.
// Returns the record and true on success.
func (s *Service) Create(ctx context.Context, userID, threadID, title string) (*Conversation, bool) {
	if s.store == nil || threadID == "" {
		return nil, false
	}
	c := &Conversation{
		Entity:   deerflow.NewEntity(),
		ID:       uuid.NewString(),
		ThreadID: threadID,
		UserID:   userID,
		Title:    ClampTitle(title),
	}
	if err := s.store.CreateConversation(ctx, c); err != nil {
		s.logger.Error("failed to create conversation",
			slog.String("thread_id", threadID),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return c, true
}

// Get returns the conversation for a thread. The second result is false
// when the thread is unknown, durability is disabled, or the backend call
// fails.
func (s *Service) Get(ctx context.Context, threadID string) (*Conversation, bool) {
	if s.store == nil || threadID == "" {
		return nil, false
	}
	c, err := s.store.GetConversation(ctx, threadID)
	if err != nil {
		if !isNotFound(err) {
			s.logger.Error("failed to get conversation",
				slog.String("thread_id", threadID),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}
	return c, true
}

// List returns a user's conversations, most recently updated first. Empty
// on any failure.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) []*Conversation {
	if s.store == nil || userID == "" {
		return nil
	}
	convs, err := s.store.ListConversations(ctx, userID, ListOpts{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list conversations",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return convs
}

// UpdateTitle sets the thread's title, clamped to MaxTitleLen.
func (s *Service) UpdateTitle(ctx context.Context, threadID, title string) bool {
	if s.store == nil || threadID == "" {
		return false
	}
	if err := s.store.UpdateConversationTitle(ctx, threadID, ClampTitle(title)); err != nil {
		if !isNotFound(err) {
			s.logger.Error("failed to update conversation title",
				slog.String("thread_id", threadID),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	return true
}

// Touch bumps the thread's updated_at so it sorts to the top of List.
func (s *Service) Touch(ctx context.Context, threadID string) bool {
	if s.store == nil || threadID == "" {
		return false
	}
	if err := s.store.TouchConversation(ctx, threadID); err != nil {
		if !isNotFound(err) {
			s.logger.Error("failed to touch conversation",
				slog.String("thread_id", threadID),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	return true
}

// Delete removes the conversation and cascades to the thread's stream
// events.
func (s *Service) Delete(ctx context.Context, threadID string) bool {
	if s.store == nil || threadID == "" {
		return false
	}
	if err := s.store.DeleteConversation(ctx, threadID); err != nil {
		if !isNotFound(err) {
			s.logger.Error("failed to delete conversation",
				slog.String("thread_id", threadID),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	return true
}

func isNotFound(err error) bool {
	return errors.Is(err, deerflow.ErrConversationNotFound)
}
