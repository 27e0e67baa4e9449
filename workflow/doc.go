// Package workflow manages live workflow runs, one per conversation
// thread.
//
// A [Run] buffers every event its producer emits, in order, for as long
// as the run is tracked. Subscribers attach at any point and replay the
// buffer from an index of their choosing before tailing live events, so
// a client that reconnects mid-run picks up exactly where it left off.
//
// The [Manager] owns the runs. [Manager.StartRun] is idempotent per
// thread: starting a thread that already has a running execution
// re-attaches to it instead of launching a second one. Producers execute
// on their own goroutines under manager-scoped contexts, detached from
// whatever request started them.
//
// When a run terminates, in success, failure, or cancellation alike, the
// manager records the terminal state, force-persists the complete event
// buffer to the durable log on a detached context, and only then issues
// the final wake-up to subscribers. Persistence failures are logged and
// swallowed; they never change a run's outcome.
package workflow
