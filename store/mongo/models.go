package mongo

import (
	"time"

	deerflow "github.com/chansky6/deer-flow"
	"github.com/chansky6/deer-flow/conversation"
)

// ── Chat stream model ─────────────────────────────────────────────

type chatStreamModel struct {
	ID       string    `bson:"_id"`
	ThreadID string    `bson:"thread_id"`
	Messages []string  `bson:"messages"`
	TS       time.Time `bson:"ts"`
}

// ── Conversation model ────────────────────────────────────────────

type conversationModel struct {
	ID        string    `bson:"_id"`
	ThreadID  string    `bson:"thread_id"`
	UserID    string    `bson:"user_id"`
	Title     string    `bson:"title"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toConversationModel(c *conversation.Conversation) *conversationModel {
	return &conversationModel{
		ID:        c.ID,
		ThreadID:  c.ThreadID,
		UserID:    c.UserID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// fromConversationModel converts a document back to the domain type.
// BSON datetimes decode in the local zone, so timestamps are normalized
// to UTC.
func fromConversationModel(m *conversationModel) *conversation.Conversation {
	return &conversation.Conversation{
		Entity: deerflow.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:       m.ID,
		ThreadID: m.ThreadID,
		UserID:   m.UserID,
		Title:    m.Title,
	}
}
