// Package stream provides the durable event log for conversation threads
// and helpers for building the server-sent event frames that flow through
// it.
//
// A frame is one transport-ready unit of streamed output: an event-type
// line and a data line followed by a blank line. The core treats frames as
// opaque strings; only producers construct them and only clients parse
// them.
//
// The Log component persists every frame immediately as it is produced,
// independent of workflow completion, so a conversation can be restored
// after a process restart. It wraps a backend Store (see store/mongo,
// store/postgres, store/memory) and owns the failure policy: persistence
// errors are logged and reported as a boolean, never raised. Durability
// is best-effort with respect to live delivery.
package stream
