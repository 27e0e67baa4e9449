package conversation

import (
	"context"

	deerflow "github.com/chansky6/deer-flow"
)

// MaxTitleLen is the upper bound on conversation titles, in runes.
const MaxTitleLen = 500

// Conversation is the metadata record for one conversation thread. The
// thread's events live in the stream log under the same thread ID; the
// two records share lifecycle (deleting a conversation deletes its
// events) but nothing else.
type Conversation struct {
	deerflow.Entity

	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
	Title    string `json:"title"`
}

// ListOpts controls pagination for List queries. Results are always
// ordered most-recently-updated first.
type ListOpts struct {
	Limit  int
	Offset int
}

// Store is the persistence contract for conversation metadata. A backend
// implements it alongside stream.Store; both are selected together by the
// connection URI scheme.
type Store interface {
	// CreateConversation inserts a new record. Returns
	// deerflow.ErrConversationExists when the thread already has one.
	CreateConversation(ctx context.Context, c *Conversation) error

	// GetConversation returns the record for a thread, or
	// deerflow.ErrConversationNotFound.
	GetConversation(ctx context.Context, threadID string) (*Conversation, error)

	// ListConversations returns a user's conversations ordered by
	// updated_at descending.
	ListConversations(ctx context.Context, userID string, opts ListOpts) ([]*Conversation, error)

	// UpdateConversationTitle sets the title and bumps updated_at.
	UpdateConversationTitle(ctx context.Context, threadID, title string) error

	// TouchConversation bumps updated_at without other changes.
	TouchConversation(ctx context.Context, threadID string) error

	// DeleteConversation removes the record and the thread's stream
	// events in the same operation.
	DeleteConversation(ctx context.Context, threadID string) error
}

// ClampTitle truncates a title to MaxTitleLen runes. Both backends store
// the result, so overflow behaves identically regardless of what the
// underlying column type would tolerate.
func ClampTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= MaxTitleLen {
		return title
	}
	return string(runes[:MaxTitleLen])
}
