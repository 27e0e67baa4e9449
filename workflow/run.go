package workflow

import (
	"context"
	"sync"
	"time"
)

// Status represents the lifecycle state of a workflow run.
type Status string

const (
	// StatusRunning means the workflow is currently executing.
	StatusRunning Status = "running"
	// StatusCompleted means the workflow finished successfully.
	StatusCompleted Status = "completed"
	// StatusError means the workflow failed or was cancelled.
	StatusError Status = "error"
)

// Run is one live execution of a workflow for a conversation thread. It
// owns the ordered event buffer subscribers replay from and the status
// that tells them when to stop waiting.
//
// The zero value is not usable; runs are created by Manager.StartRun.
type Run struct {
	threadID  string
	createdAt time.Time

	// mu guards events, status, err, completedAt, and notify. Appends and
	// status checks happen under the same lock so a subscriber can never
	// miss a wake-up: it captures the current notify channel in the same
	// critical section that told it there was nothing new to read.
	mu          sync.Mutex
	events      []string
	status      Status
	err         error
	completedAt time.Time
	notify      chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func newRun(threadID string, cancel context.CancelFunc) *Run {
	return &Run{
		threadID:  threadID,
		createdAt: time.Now().UTC(),
		status:    StatusRunning,
		notify:    make(chan struct{}),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// ThreadID returns the conversation thread this run belongs to.
func (r *Run) ThreadID() string { return r.threadID }

// CreatedAt returns when the run was started.
func (r *Run) CreatedAt() time.Time { return r.createdAt }

// Status returns the run's current lifecycle state.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Err returns the terminal error for runs in StatusError: the producer's
// failure, or context.Canceled when the run was cancelled. It is nil while
// the run is running and after successful completion.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// CompletedAt returns when the run reached a terminal state, or the zero
// time while it is still running.
func (r *Run) CompletedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completedAt
}

// EventCount returns the number of buffered events.
func (r *Run) EventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Events returns a copy of the buffered events in emit order.
func (r *Run) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// Done returns a channel closed once the run has reached a terminal state
// and its forced durability flush has finished.
func (r *Run) Done() <-chan struct{} { return r.done }

// append adds one event to the buffer and broadcasts to waiting
// subscribers by closing the current notify channel and installing a
// fresh one.
func (r *Run) append(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	old := r.notify
	r.notify = make(chan struct{})
	r.mu.Unlock()
	close(old)
}

// wake broadcasts without appending. Used for the final wake-up after the
// terminal state is set and the durability flush has run.
func (r *Run) wake() {
	r.mu.Lock()
	old := r.notify
	r.notify = make(chan struct{})
	r.mu.Unlock()
	close(old)
}

// setTerminal records the run's single transition out of StatusRunning.
// It does not broadcast: the manager flushes the buffer to durable
// storage first and issues the final wake-up after.
func (r *Run) setTerminal(status Status, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRunning {
		return
	}
	r.status = status
	r.err = err
	r.completedAt = time.Now().UTC()
}

// snapshot returns the buffered events at index >= from, the current
// status, and the current notify channel, all read in one critical
// section. A from beyond the buffer end yields an empty batch. Callers
// deliver the batch, then either stop (terminal status) or wait on the
// notify channel for the next broadcast.
func (r *Run) snapshot(from int) ([]string, Status, <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var batch []string
	if from < len(r.events) {
		batch = append(batch, r.events[from:]...)
	}
	return batch, r.status, r.notify
}
