package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	deerflow "github.com/chansky6/deer-flow"
	"github.com/chansky6/deer-flow/middleware"
	"github.com/chansky6/deer-flow/stream"
)

// DefaultFlushTimeout bounds the forced persistence attempt that runs
// when a workflow reaches a terminal state.
const DefaultFlushTimeout = 10 * time.Second

// EmitFunc delivers one event into the run's buffer and durable stream.
type EmitFunc func(event string)

// Producer generates the event stream for a single workflow run. It is
// invoked on its own goroutine under a manager-scoped context; emit must
// not be called after the producer returns. A nil return marks the run
// completed. An error return (including ctx.Err() after cancellation)
// marks it errored; the error is recorded on the Run and never
// propagated further.
type Producer func(ctx context.Context, emit EmitFunc) error

// Manager owns the live workflow runs, at most one per conversation
// thread. It launches producers in the background, fans their events out
// to subscribers, and guarantees every terminal run gets a forced flush
// to the durable event log before its final wake-up.
type Manager struct {
	log          *stream.Log
	mw           middleware.Middleware
	logger       *slog.Logger
	flushTimeout time.Duration

	mu   sync.Mutex
	runs map[string]*Run
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMiddleware installs the middleware chain applied around every
// producer execution. The first middleware is the outermost wrapper.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(m *Manager) {
		m.mw = middleware.Chain(mws...)
	}
}

// WithFlushTimeout overrides DefaultFlushTimeout for the terminal flush.
func WithFlushTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.flushTimeout = d
		}
	}
}

// NewManager creates a workflow manager over the given durable event
// log. A nil log is replaced by a disabled one, so runs execute with
// in-memory buffering only.
func NewManager(log *stream.Log, opts ...Option) *Manager {
	m := &Manager{
		log:          log,
		mw:           middleware.Chain(),
		logger:       slog.Default(),
		flushTimeout: DefaultFlushTimeout,
		runs:         make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = stream.NewLog(nil, stream.WithLogger(m.logger))
	}
	return m
}

// StartRun starts a workflow run for the thread, or re-attaches to the
// one already running: if the thread has a run in StatusRunning, that
// run is returned unchanged and no second execution starts. A terminal
// run for the thread is replaced by a fresh one.
//
// The producer executes on its own goroutine under a manager-scoped
// context, so the run outlives whatever request started it.
func (m *Manager) StartRun(threadID string, producer Producer) (*Run, error) {
	if threadID == "" {
		return nil, deerflow.ErrEmptyThreadID
	}
	if producer == nil {
		return nil, fmt.Errorf("deerflow/workflow: nil producer for thread %q", threadID)
	}

	m.mu.Lock()
	if existing, ok := m.runs[threadID]; ok && existing.Status() == StatusRunning {
		m.mu.Unlock()
		m.logger.Info("reusing running workflow",
			slog.String("thread_id", threadID),
		)
		return existing, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := newRun(threadID, cancel)
	m.runs[threadID] = run
	m.mu.Unlock()

	m.logger.Info("starting workflow",
		slog.String("thread_id", threadID),
	)

	go m.execute(ctx, run, producer)

	return run, nil
}

// GetRun returns the thread's run, which may be terminal but not yet
// cleaned up. Unknown threads return ErrRunNotFound.
func (m *Manager) GetRun(threadID string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[threadID]
	if !ok {
		return nil, deerflow.ErrRunNotFound
	}
	return run, nil
}

// Subscribe returns a channel that replays the run's buffered events at
// index >= fromIndex in order, then delivers new events live until the
// run reaches a terminal state, drains whatever is left, and closes.
// An unknown thread yields an already-closed channel. Subscribers are
// independent: each gets every event exactly once, in emit order.
// Cancelling ctx detaches the subscriber without affecting the run.
func (m *Manager) Subscribe(ctx context.Context, threadID string, fromIndex int) <-chan string {
	ch := make(chan string)

	m.mu.Lock()
	run, ok := m.runs[threadID]
	m.mu.Unlock()
	if !ok {
		close(ch)
		return ch
	}

	go func() {
		defer close(ch)

		idx := fromIndex
		if idx < 0 {
			idx = 0
		}
		for {
			batch, status, notify := run.snapshot(idx)
			for _, event := range batch {
				select {
				case ch <- event:
					idx++
				case <-ctx.Done():
					return
				}
			}
			if status != StatusRunning {
				return
			}
			select {
			case <-notify:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// CancelAll cancels every running workflow and waits until each run has
// reached a terminal state and finished its forced flush, or until ctx
// expires.
func (m *Manager) CancelAll(ctx context.Context) error {
	m.mu.Lock()
	runs := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		if run.Status() == StatusRunning {
			m.logger.Info("cancelling workflow",
				slog.String("thread_id", run.threadID),
			)
			run.cancel()
		}
		runs = append(runs, run)
	}
	m.mu.Unlock()

	for _, run := range runs {
		select {
		case <-run.done:
		case <-ctx.Done():
			return fmt.Errorf("deerflow/workflow: cancel all: %w", ctx.Err())
		}
	}
	return nil
}

// CleanupCompleted removes terminal runs older than maxAge, measured
// from when they completed. Running runs are never removed. Returns the
// number of runs removed.
func (m *Manager) CleanupCompleted(maxAge time.Duration) int {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for threadID, run := range m.runs {
		run.mu.Lock()
		status, completedAt := run.status, run.completedAt
		run.mu.Unlock()

		if status == StatusRunning || completedAt.IsZero() {
			continue
		}
		if now.Sub(completedAt) > maxAge {
			delete(m.runs, threadID)
			removed++
			m.logger.Debug("cleaned up workflow run",
				slog.String("thread_id", threadID),
				slog.String("status", string(status)),
			)
		}
	}

	if removed > 0 {
		m.logger.Info("workflow cleanup sweep",
			slog.Int("removed", removed),
			slog.Int("remaining", len(m.runs)),
		)
	}
	return removed
}

// RunCount returns the number of runs the manager currently tracks,
// running and terminal alike.
func (m *Manager) RunCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// execute drives one producer to completion and handles the terminal
// sequence. The order is fixed: record the terminal state, flush the
// full buffer to the durable log, then issue the final wake-up so
// subscribers observe the terminal state only after the flush.
func (m *Manager) execute(ctx context.Context, run *Run, producer Producer) {
	emit := func(event string) {
		run.append(event)
		m.log.Append(ctx, run.threadID, event)
	}

	// The terminal handler that calls the producer.
	terminal := func(ctx context.Context) error {
		return producer(ctx, emit)
	}

	err := m.mw(ctx, run.threadID, terminal)

	switch {
	case err == nil:
		run.setTerminal(StatusCompleted, nil)
		m.logger.Info("workflow completed",
			slog.String("thread_id", run.threadID),
			slog.Int("events", run.EventCount()),
		)
	case errors.Is(err, context.Canceled):
		run.setTerminal(StatusError, err)
		m.logger.Info("workflow cancelled",
			slog.String("thread_id", run.threadID),
		)
	default:
		run.setTerminal(StatusError, err)
		m.logger.Error("workflow run failed",
			slog.String("thread_id", run.threadID),
			slog.String("error", err.Error()),
		)
	}

	m.flush(ctx, run)
	run.wake()
	close(run.done)
}

// flush persists the run's complete buffer in one authoritative write.
// It runs on a context detached from the run's, so a cancelled run still
// gets its events persisted, bounded by the flush timeout.
func (m *Manager) flush(ctx context.Context, run *Run) {
	events := run.Events()
	if len(events) == 0 {
		m.logger.Debug("no events to flush",
			slog.String("thread_id", run.threadID),
		)
		return
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.flushTimeout)
	defer cancel()

	if !m.log.PersistComplete(fctx, run.threadID, events) && m.log.Enabled() {
		m.logger.Warn("terminal flush failed",
			slog.String("thread_id", run.threadID),
			slog.Int("events", len(events)),
		)
	}
}
