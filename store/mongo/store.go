package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/chansky6/deer-flow/conversation"
	"github.com/chansky6/deer-flow/stream"
)

// dbName is the database holding all deer-flow collections.
const dbName = "checkpointing_db"

// Collection name constants.
const (
	colChatStreams   = "chat_streams"
	colConversations = "conversations"
)

// Ensure Store implements all subsystem interfaces at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ stream.Store       = (*Store)(nil)
	_ conversation.Store = (*Store)(nil)
)

// Store is a MongoDB implementation of store.Store using driver v2.
// The Store owns the client lifecycle; Close disconnects it.
type Store struct {
	client *mongod.Client
	db     *mongod.Database
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new MongoDB store from a connection URI, e.g.:
// "mongodb://localhost:27017". The connection is verified with a ping
// before the store is returned.
func New(ctx context.Context, uri string, opts ...Option) (*Store, error) {
	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("deerflow/mongo: connect: %w", err)
	}

	s := &Store{
		client: client,
		db:     client.Database(dbName),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("deerflow/mongo: ping: %w", err)
	}

	return s, nil
}

// NewFromClient creates a new MongoDB store from an existing client. The
// caller owns the client lifecycle; Close becomes a no-op.
func NewFromClient(client *mongod.Client, opts ...Option) *Store {
	s := &Store{
		db:     client.Database(dbName),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Migrate creates indexes for all deer-flow collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}

		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("deerflow/mongo: migrate %s indexes: %w", col, err)
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close disconnects the client, unless the store was built from a
// caller-owned client.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

// Database returns the underlying *mongo.Database for advanced usage.
func (s *Store) Database() *mongod.Database {
	return s.db
}

// ── helpers ──────────────────────────────────────────────────────

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// isDuplicateKey checks if a MongoDB error is a duplicate key violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "E11000")
}

// migrationIndexes returns the index definitions for all collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colChatStreams: {
			// One stream document per thread.
			{
				Keys:    bson.D{{Key: "thread_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "ts", Value: 1}}},
		},
		colConversations: {
			// One conversation per thread.
			{
				Keys:    bson.D{{Key: "thread_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			// List index: user's conversations by recency.
			{Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "updated_at", Value: -1},
			}},
		},
	}
}
