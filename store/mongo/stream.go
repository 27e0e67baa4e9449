package mongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// AppendEvent appends a single event to the thread's stream. The document
// is created on first append; subsequent appends push onto the messages
// array in place.
func (s *Store) AppendEvent(ctx context.Context, threadID, event string) error {
	col := s.db.Collection(colChatStreams)

	update := bson.M{
		"$push":        bson.M{"messages": event},
		"$set":         bson.M{"ts": now()},
		"$setOnInsert": bson.M{"_id": uuid.NewString()},
	}

	opts := options.UpdateOne().SetUpsert(true)
	_, err := col.UpdateOne(ctx, bson.M{"thread_id": threadID}, update, opts)
	if err != nil {
		return fmt.Errorf("deerflow/mongo: append event: %w", err)
	}
	return nil
}

// ReplaceEvents overwrites the thread's stream with the given events.
// The bulk write is the authoritative copy of the stream, so it replaces
// whatever the incremental appends left behind.
func (s *Store) ReplaceEvents(ctx context.Context, threadID string, events []string) error {
	col := s.db.Collection(colChatStreams)

	update := bson.M{
		"$set": bson.M{
			"messages": events,
			"ts":       now(),
		},
		"$setOnInsert": bson.M{"_id": uuid.NewString()},
	}

	opts := options.UpdateOne().SetUpsert(true)
	_, err := col.UpdateOne(ctx, bson.M{"thread_id": threadID}, update, opts)
	if err != nil {
		return fmt.Errorf("deerflow/mongo: replace events: %w", err)
	}
	return nil
}

// Events returns the thread's stream in append order. Unknown threads
// yield an empty slice, not an error.
func (s *Store) Events(ctx context.Context, threadID string) ([]string, error) {
	col := s.db.Collection(colChatStreams)

	var m chatStreamModel
	err := col.FindOne(ctx, bson.M{"thread_id": threadID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("deerflow/mongo: get events: %w", err)
	}

	if m.Messages == nil {
		return []string{}, nil
	}
	return m.Messages, nil
}
