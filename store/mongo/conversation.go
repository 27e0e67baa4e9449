package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	deerflow "github.com/chansky6/deer-flow"
	"github.com/chansky6/deer-flow/conversation"
)

// CreateConversation inserts a new conversation document.
func (s *Store) CreateConversation(ctx context.Context, c *conversation.Conversation) error {
	col := s.db.Collection(colConversations)

	_, err := col.InsertOne(ctx, toConversationModel(c))
	if err != nil {
		if isDuplicateKey(err) {
			return deerflow.ErrConversationExists
		}
		return fmt.Errorf("deerflow/mongo: create conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by thread ID.
func (s *Store) GetConversation(ctx context.Context, threadID string) (*conversation.Conversation, error) {
	col := s.db.Collection(colConversations)

	var m conversationModel
	err := col.FindOne(ctx, bson.M{"thread_id": threadID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, deerflow.ErrConversationNotFound
		}
		return nil, fmt.Errorf("deerflow/mongo: get conversation: %w", err)
	}
	return fromConversationModel(&m), nil
}

// ListConversations returns a user's conversations, most recently updated
// first.
func (s *Store) ListConversations(ctx context.Context, userID string, opts conversation.ListOpts) ([]*conversation.Conversation, error) {
	col := s.db.Collection(colConversations)

	findOpts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := col.Find(ctx, bson.M{"user_id": userID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("deerflow/mongo: list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var models []conversationModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("deerflow/mongo: list conversations decode: %w", err)
	}

	convs := make([]*conversation.Conversation, 0, len(models))
	for i := range models {
		convs = append(convs, fromConversationModel(&models[i]))
	}
	return convs, nil
}

// UpdateConversationTitle sets the conversation's title and bumps its
// updated timestamp.
func (s *Store) UpdateConversationTitle(ctx context.Context, threadID, title string) error {
	col := s.db.Collection(colConversations)

	res, err := col.UpdateOne(ctx,
		bson.M{"thread_id": threadID},
		bson.M{"$set": bson.M{"title": title, "updated_at": now()}},
	)
	if err != nil {
		return fmt.Errorf("deerflow/mongo: update conversation title: %w", err)
	}
	if res.MatchedCount == 0 {
		return deerflow.ErrConversationNotFound
	}
	return nil
}

// TouchConversation bumps the conversation's updated timestamp.
func (s *Store) TouchConversation(ctx context.Context, threadID string) error {
	col := s.db.Collection(colConversations)

	res, err := col.UpdateOne(ctx,
		bson.M{"thread_id": threadID},
		bson.M{"$set": bson.M{"updated_at": now()}},
	)
	if err != nil {
		return fmt.Errorf("deerflow/mongo: touch conversation: %w", err)
	}
	if res.MatchedCount == 0 {
		return deerflow.ErrConversationNotFound
	}
	return nil
}

// DeleteConversation removes the conversation and its stream events.
// MongoDB has no cross-collection transaction here; the conversation
// document is deleted first, then the paired stream document.
func (s *Store) DeleteConversation(ctx context.Context, threadID string) error {
	res, err := s.db.Collection(colConversations).DeleteOne(ctx, bson.M{"thread_id": threadID})
	if err != nil {
		return fmt.Errorf("deerflow/mongo: delete conversation: %w", err)
	}
	if res.DeletedCount == 0 {
		return deerflow.ErrConversationNotFound
	}

	_, err = s.db.Collection(colChatStreams).DeleteOne(ctx, bson.M{"thread_id": threadID})
	if err != nil {
		return fmt.Errorf("deerflow/mongo: delete stream: %w", err)
	}
	return nil
}
