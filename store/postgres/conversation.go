package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	deerflow "github.com/chansky6/deer-flow"
	"github.com/chansky6/deer-flow/conversation"
)

// CreateConversation inserts a new conversation record.
func (s *Store) CreateConversation(ctx context.Context, c *conversation.Conversation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (
			id, thread_id, user_id, title, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.ThreadID, c.UserID, c.Title, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return deerflow.ErrConversationExists
		}
		return fmt.Errorf("deerflow/postgres: create conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by thread ID.
func (s *Store) GetConversation(ctx context.Context, threadID string) (*conversation.Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, thread_id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE thread_id = $1`,
		threadID,
	)

	c, err := scanConversation(row)
	if err != nil {
		if isNoRows(err) {
			return nil, deerflow.ErrConversationNotFound
		}
		return nil, fmt.Errorf("deerflow/postgres: get conversation: %w", err)
	}
	return c, nil
}

// ListConversations returns a user's conversations, most recently updated
// first.
func (s *Store) ListConversations(ctx context.Context, userID string, opts conversation.ListOpts) ([]*conversation.Conversation, error) {
	// LIMIT NULL means no limit.
	var limit any
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, thread_id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("deerflow/postgres: list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*conversation.Conversation
	for rows.Next() {
		c, scanErr := scanConversation(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("deerflow/postgres: scan conversation: %w", scanErr)
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("deerflow/postgres: list conversations: %w", err)
	}
	return convs, nil
}

// UpdateConversationTitle sets the conversation's title and bumps its
// updated timestamp.
func (s *Store) UpdateConversationTitle(ctx context.Context, threadID, title string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversations
		SET title = $2, updated_at = NOW()
		WHERE thread_id = $1`,
		threadID, title,
	)
	if err != nil {
		return fmt.Errorf("deerflow/postgres: update conversation title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return deerflow.ErrConversationNotFound
	}
	return nil
}

// TouchConversation bumps the conversation's updated timestamp.
func (s *Store) TouchConversation(ctx context.Context, threadID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversations
		SET updated_at = NOW()
		WHERE thread_id = $1`,
		threadID,
	)
	if err != nil {
		return fmt.Errorf("deerflow/postgres: touch conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return deerflow.ErrConversationNotFound
	}
	return nil
}

// DeleteConversation removes the conversation and its stream events in a
// single transaction.
func (s *Store) DeleteConversation(ctx context.Context, threadID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("deerflow/postgres: begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`DELETE FROM conversations WHERE thread_id = $1`,
		threadID,
	)
	if err != nil {
		return fmt.Errorf("deerflow/postgres: delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return deerflow.ErrConversationNotFound
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM chat_streams WHERE thread_id = $1`,
		threadID,
	)
	if err != nil {
		return fmt.Errorf("deerflow/postgres: delete stream: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("deerflow/postgres: commit delete: %w", err)
	}
	return nil
}

// scanConversation scans a single conversation row. Timestamps are
// normalized to UTC.
func scanConversation(row pgx.Row) (*conversation.Conversation, error) {
	var c conversation.Conversation
	err := row.Scan(
		&c.ID, &c.ThreadID, &c.UserID, &c.Title,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}
