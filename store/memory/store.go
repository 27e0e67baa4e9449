package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	deerflow "github.com/chansky6/deer-flow"
	"github.com/chansky6/deer-flow/conversation"
	"github.com/chansky6/deer-flow/store"
)

// Ensure Store implements the composite interface at compile time.
var _ store.Store = (*Store)(nil)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	events        map[string][]string                   // key: thread_id
	conversations map[string]*conversation.Conversation // key: thread_id
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		events:        make(map[string][]string),
		conversations: make(map[string]*conversation.Conversation),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Stream Store
// ──────────────────────────────────────────────────

// AppendEvent appends a single event to the thread's stream, creating the
// stream if it does not exist yet.
func (m *Store) AppendEvent(_ context.Context, threadID, event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[threadID] = append(m.events[threadID], event)
	return nil
}

// ReplaceEvents overwrites the thread's stream with the given events.
func (m *Store) ReplaceEvents(_ context.Context, threadID string, events []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]string, len(events))
	copy(cp, events)
	m.events[threadID] = cp
	return nil
}

// Events returns the thread's stream in append order. Unknown threads
// yield an empty slice, not an error.
func (m *Store) Events(_ context.Context, threadID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	evs := m.events[threadID]
	cp := make([]string, len(evs))
	copy(cp, evs)
	return cp, nil
}

// ──────────────────────────────────────────────────
// Conversation Store
// ──────────────────────────────────────────────────

// CreateConversation inserts a new conversation record.
func (m *Store) CreateConversation(_ context.Context, c *conversation.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[c.ThreadID]; exists {
		return deerflow.ErrConversationExists
	}
	cp := *c
	m.conversations[c.ThreadID] = &cp
	return nil
}

// GetConversation retrieves a conversation by thread ID.
func (m *Store) GetConversation(_ context.Context, threadID string) (*conversation.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[threadID]
	if !ok {
		return nil, deerflow.ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

// ListConversations returns a user's conversations, most recently updated
// first.
func (m *Store) ListConversations(_ context.Context, userID string, opts conversation.ListOpts) ([]*conversation.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*conversation.Conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		if c.UserID != userID {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].UpdatedAt.After(result[k].UpdatedAt)
	})

	// Apply offset / limit.
	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// UpdateConversationTitle sets the conversation's title and bumps its
// updated timestamp.
func (m *Store) UpdateConversationTitle(_ context.Context, threadID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[threadID]
	if !ok {
		return deerflow.ErrConversationNotFound
	}
	c.Title = title
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// TouchConversation bumps the conversation's updated timestamp.
func (m *Store) TouchConversation(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[threadID]
	if !ok {
		return deerflow.ErrConversationNotFound
	}
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteConversation removes the conversation and its stream events.
func (m *Store) DeleteConversation(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[threadID]; !ok {
		return deerflow.ErrConversationNotFound
	}
	delete(m.conversations, threadID)
	delete(m.events, threadID) // cascade to the thread's stream
	return nil
}
