// Package engine wires all deer-flow subsystems together: the backend
// store, the durable event log, the conversation metadata service, the
// workflow manager with its middleware stack, the default research
// producer, and the HTTP API, plus the periodic cleanup sweep.
//
// The engine package exists to keep construction order and degradation
// policy in one place: the root deerflow package defines Config and the
// shared types (imported by stream, conversation, workflow) and therefore
// cannot import those packages back. Engine sits above all subsystem
// packages and below main.
//
// # Building an Engine
//
//	cfg := deerflow.ConfigFromEnv()
//
//	eng, err := engine.Build(ctx, cfg,
//	    engine.WithLogger(logger),
//	    engine.WithMiddleware(middleware.Timeout(logger, 10*time.Minute)),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := eng.Start(ctx); err != nil {
//	    return err
//	}
//	defer eng.Stop(context.Background())
//
// A missing or unreachable backend while durability is enabled does not
// fail Build: persistence degrades to a logged no-op and runs continue
// in-memory only, matching the configuration-error policy of the stream
// and conversation layers.
//
// # Options
//
//   - [WithLogger] — set the logger shared by every subsystem
//   - [WithStore] — inject a pre-built store (tests use store/memory)
//   - [WithMiddleware] — append run middleware after the default stack
//   - [WithProducerFactory] — replace the default research producer
//   - [WithUserFunc] — replace the API's header-based identity lookup
//   - [WithTracerProvider] — set the OpenTelemetry tracer provider
//   - [WithMeterProvider] — set the OpenTelemetry meter provider
package engine
