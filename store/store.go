// Package store defines the aggregate persistence interface. Each subsystem
// (stream, conversation) defines its own store interface. The composite
// Store composes them. Backends: MongoDB, Postgres, and Memory.
package store

import (
	"context"
	"fmt"
	"strings"

	deerflow "github.com/chansky6/deer-flow"
	"github.com/chansky6/deer-flow/conversation"
	"github.com/chansky6/deer-flow/store/mongo"
	"github.com/chansky6/deer-flow/store/postgres"
	"github.com/chansky6/deer-flow/stream"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface. A single backend
// (mongo, postgres, memory) implements all of them.
type Store interface {
	stream.Store
	conversation.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}

// Open connects to the backend selected by the URI scheme. The scheme is
// inspected exactly once, here; after construction the backend never
// changes. An empty URI returns ErrNoStore so callers can run with
// durability disabled.
func Open(ctx context.Context, uri string) (Store, error) {
	switch {
	case uri == "":
		return nil, deerflow.ErrNoStore
	case strings.HasPrefix(uri, "mongodb://"):
		s, err := mongo.New(ctx, uri)
		if err != nil {
			return nil, err
		}
		return s, nil
	case strings.HasPrefix(uri, "postgresql://"), strings.HasPrefix(uri, "postgres://"):
		s, err := postgres.New(ctx, uri)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s (supported: mongodb://, postgresql://, postgres://)",
		deerflow.ErrUnsupportedScheme, uri)
}
