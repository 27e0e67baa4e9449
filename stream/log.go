package stream

import (
	"context"
	"log/slog"
)

// Store is the persistence contract the durable event log is built on.
// Implementations live in store/mongo, store/postgres, and store/memory;
// all of them key records by thread ID and keep events in append order.
type Store interface {
	// AppendEvent adds one event to the thread's record, creating the
	// record if this is the thread's first event.
	AppendEvent(ctx context.Context, threadID, event string) error

	// ReplaceEvents overwrites the thread's stored event list with the
	// given one, creating the record if absent. This is the bulk
	// reconciliation path: the caller's list is authoritative.
	ReplaceEvents(ctx context.Context, threadID string, events []string) error

	// Events returns the thread's stored events in order. An unknown
	// thread yields an empty slice, not an error.
	Events(ctx context.Context, threadID string) ([]string, error)
}

// Log is the durable event log. It wraps a backend Store with the policy
// the rest of the system relies on: when durability is disabled or a
// backend call fails, operations degrade to logged no-ops instead of
// surfacing errors. A persistence failure must never abort the workflow
// that produced the event.
type Log struct {
	store  Store
	logger *slog.Logger
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithLogger sets the logger for the Log.
func WithLogger(logger *slog.Logger) LogOption {
	return func(l *Log) {
		l.logger = logger
	}
}

// NewLog creates the durable event log over the given backend. A nil
// store puts the log in disabled mode: every operation becomes a no-op
// reporting failure, and History returns empty history.
func NewLog(store Store, opts ...LogOption) *Log {
	l := &Log{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.store == nil {
		l.logger.Warn("durable event log disabled: no backend configured")
	}
	return l
}

// Enabled reports whether a backend is configured.
func (l *Log) Enabled() bool {
	return l.store != nil
}

// Append persists a single event for the thread. Returns false when
// durability is disabled, the thread ID is empty, or the backend call
// fails; failures are logged, never propagated.
func (l *Log) Append(ctx context.Context, threadID, event string) bool {
	if l.store == nil || threadID == "" {
		return false
	}
	if err := l.store.AppendEvent(ctx, threadID, event); err != nil {
		l.logger.Error("failed to append stream event",
			slog.String("thread_id", threadID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// PersistComplete writes the full event list for the thread in one upsert.
// Called on run termination as the forced flush; the given list replaces
// whatever the incremental appends already stored, so replaying the flush
// is harmless.
func (l *Log) PersistComplete(ctx context.Context, threadID string, events []string) bool {
	if l.store == nil || threadID == "" {
		return false
	}
	if err := l.store.ReplaceEvents(ctx, threadID, events); err != nil {
		l.logger.Error("failed to persist complete conversation",
			slog.String("thread_id", threadID),
			slog.Int("events", len(events)),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// History returns the persisted events for the thread in order. Unknown
// threads, disabled durability, and backend failures all yield an empty
// slice: history retrieval has no error path for callers.
func (l *Log) History(ctx context.Context, threadID string) []string {
	if l.store == nil || threadID == "" {
		return nil
	}
	events, err := l.store.Events(ctx, threadID)
	if err != nil {
		l.logger.Error("failed to retrieve conversation history",
			slog.String("thread_id", threadID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return events
}
