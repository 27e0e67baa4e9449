// Package conversation manages per-thread conversation metadata: which
// user owns a thread, its display title, and when it was last active.
//
// The Store interface is the backend contract; implementations live in
// store/mongo, store/postgres and store/memory. Service wraps a Store
// with the same availability policy as stream.Log: a nil backend puts
// the service in disabled mode, and backend failures are logged and
// reported through return values rather than raised to callers.
package conversation
