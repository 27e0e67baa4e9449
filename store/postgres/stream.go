package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendEvent appends a single event to the thread's stream. The row is
// created on first append; subsequent appends concatenate onto the JSONB
// messages array in place.
func (s *Store) AppendEvent(ctx context.Context, threadID, event string) error {
	payload, err := json.Marshal([]string{event})
	if err != nil {
		return fmt.Errorf("deerflow/postgres: encode event: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO chat_streams (id, thread_id, messages, ts)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (thread_id) DO UPDATE
		SET messages = chat_streams.messages || EXCLUDED.messages,
		    ts = EXCLUDED.ts`,
		uuid.NewString(), threadID, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("deerflow/postgres: append event: %w", err)
	}
	return nil
}

// ReplaceEvents overwrites the thread's stream with the given events.
// The bulk write is the authoritative copy of the stream, so it replaces
// whatever the incremental appends left behind. Runs in an explicit
// transaction; any failure rolls back.
func (s *Store) ReplaceEvents(ctx context.Context, threadID string, events []string) error {
	payload, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("deerflow/postgres: encode events: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("deerflow/postgres: begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO chat_streams (id, thread_id, messages, ts)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (thread_id) DO UPDATE
		SET messages = EXCLUDED.messages,
		    ts = EXCLUDED.ts`,
		uuid.NewString(), threadID, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("deerflow/postgres: replace events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("deerflow/postgres: commit replace: %w", err)
	}
	return nil
}

// Events returns the thread's stream in append order. Unknown threads
// yield an empty slice, not an error.
func (s *Store) Events(ctx context.Context, threadID string) ([]string, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT messages FROM chat_streams WHERE thread_id = $1`,
		threadID,
	).Scan(&raw)
	if err != nil {
		if isNoRows(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("deerflow/postgres: get events: %w", err)
	}

	var events []string
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("deerflow/postgres: decode events: %w", err)
	}
	return events, nil
}
