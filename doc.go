// Package deerflow provides the building blocks for a streaming research
// backend: long-lived workflow runs that emit ordered event frames, a
// durable event log that persists every frame as it is produced, and a
// conversation metadata store, all decoupled from any single client
// connection.
//
// Deer-flow is designed as a library, not a service. Construct a store,
// build a manager, and drive workflows as ordinary Go functions; the HTTP
// layer in package api and the wiring in package engine are thin
// assemblies over the same pieces.
//
// # Quick Start
//
//	st, err := store.Open(ctx, "postgresql://localhost/deerflow")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	eventLog := stream.NewLog(st)
//	mgr := workflow.NewManager(eventLog)
//
//	mgr.StartRun("thread-1", func(ctx context.Context, emit workflow.EmitFunc) error {
//	    emit(stream.MessageChunkFrame("thread-1", "coordinator", "hello"))
//	    return nil
//	})
//
//	for frame := range mgr.Subscribe(ctx, "thread-1", 0) {
//	    // forward frame to the client verbatim
//	}
//
// # Architecture
//
// Each subsystem defines its own store interface (stream.Store for the
// event log, conversation.Store for metadata). A single backend implements
// both; store.Open selects the backend from the connection URI scheme
// (mongodb:// for the document backend, postgresql:// or postgres:// for
// the relational one). Runs live entirely in process: a run's event buffer
// is the source of truth for subscriber replay, and the event log persists
// frames independently so history survives a crash mid-workflow.
package deerflow
