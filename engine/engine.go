package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	deerflow "github.com/chansky6/deer-flow"
	"github.com/chansky6/deer-flow/api"
	"github.com/chansky6/deer-flow/conversation"
	mw "github.com/chansky6/deer-flow/middleware"
	"github.com/chansky6/deer-flow/research"
	"github.com/chansky6/deer-flow/store"
	"github.com/chansky6/deer-flow/stream"
	"github.com/chansky6/deer-flow/workflow"
)

// Engine owns the assembled deer-flow server: store, event log,
// conversation service, workflow manager, HTTP server, and the cleanup
// scheduler. Use Build() to create one from a Config.
type Engine struct {
	cfg    deerflow.Config
	logger *slog.Logger

	store         store.Store
	log           *stream.Log
	conversations *conversation.Service
	manager       *workflow.Manager

	producerFor api.ProducerFactory
	userFor     api.UserFunc
	mws         []mw.Middleware

	handler http.Handler
	server  *http.Server
	cron    *cron.Cron
	addr    string

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger shared by every subsystem.
func WithLogger(logger *slog.Logger) Option {
	return func(eng *Engine) {
		eng.logger = logger
	}
}

// WithStore injects a pre-built backend store, skipping the URI-based
// Open. A store injected here enables durability regardless of
// Config.CheckpointSaver; tests use store/memory this way.
func WithStore(st store.Store) Option {
	return func(eng *Engine) {
		eng.store = st
	}
}

// WithMiddleware adds middleware to the run execution chain, after the
// default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithProducerFactory replaces the default research pipeline as the
// workload chat requests launch.
func WithProducerFactory(fn api.ProducerFactory) Option {
	return func(eng *Engine) {
		eng.producerFor = fn
	}
}

// WithUserFunc sets the API's caller identity extraction.
func WithUserFunc(fn api.UserFunc) Option {
	return func(eng *Engine) {
		eng.userFor = fn
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// When set, the tracing middleware uses this provider instead of the
// global one. If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, the metrics middleware uses this provider instead of the
// global one. If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build assembles an Engine from the configuration. A backend that is
// enabled but unreachable does not fail the build: durability degrades
// to a logged no-op and the engine runs in-memory only.
func Build(ctx context.Context, cfg deerflow.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	eng := &Engine{
		cfg:    cfg,
		logger: slog.Default(),
		addr:   cfg.Addr,
	}
	for _, opt := range opts {
		opt(eng)
	}

	// Open the checkpoint backend unless one was injected.
	if eng.store == nil && cfg.CheckpointSaver {
		st, err := store.Open(ctx, cfg.DatabaseURL)
		switch {
		case errors.Is(err, deerflow.ErrNoStore):
			eng.logger.Warn("checkpoint saver enabled but no database URL configured, durability disabled")
		case err != nil:
			eng.logger.Warn("checkpoint store unavailable, durability disabled",
				slog.String("error", err.Error()),
			)
		default:
			eng.store = st
		}
	}

	// A nil store puts both layers in disabled mode; they log the
	// degradation themselves.
	eng.log = stream.NewLog(eng.store, stream.WithLogger(eng.logger))
	eng.conversations = conversation.NewService(eng.store, conversation.WithLogger(eng.logger))

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracer := eng.tracerProvider.Tracer("github.com/chansky6/deer-flow")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/chansky6/deer-flow")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Default middleware stack: recover, tracing, metrics, logging.
	// No default deadline: research runs stay up as long as the producer
	// needs; a run timeout is opt-in via WithMiddleware(mw.Timeout(...)).
	defaultMws := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	eng.manager = workflow.NewManager(eng.log,
		workflow.WithLogger(eng.logger),
		workflow.WithMiddleware(allMws...),
		workflow.WithFlushTimeout(cfg.FlushTimeout),
	)

	if eng.producerFor == nil {
		pipeline := research.New(research.WithLogger(eng.logger))
		eng.producerFor = pipeline.Producer
	}

	apiOpts := []api.Option{api.WithLogger(eng.logger)}
	if eng.userFor != nil {
		apiOpts = append(apiOpts, api.WithUserFunc(eng.userFor))
	}
	eng.handler = api.New(eng.manager, eng.log, eng.conversations, eng.producerFor, apiOpts...).Routes()

	// Streaming responses stay open for the run's lifetime, so only the
	// header read gets a deadline.
	eng.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           eng.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eng.cron = cron.New()

	return eng, nil
}

// Start migrates the backend schema, schedules the cleanup sweep, and
// begins serving HTTP. The listener is bound synchronously so address
// errors surface here; the serve loop runs in the background.
func (eng *Engine) Start(ctx context.Context) error {
	// Unlike connection failures, a schema migration failure after a
	// successful connect is a real deployment problem and fails startup.
	if eng.store != nil {
		if err := eng.store.Migrate(ctx); err != nil {
			return fmt.Errorf("deerflow/engine: migrate: %w", err)
		}
	}

	if _, err := eng.cron.AddFunc(eng.cfg.CleanupSpec, func() {
		eng.manager.CleanupCompleted(eng.cfg.RunRetention)
	}); err != nil {
		return fmt.Errorf("deerflow/engine: cleanup schedule %q: %w", eng.cfg.CleanupSpec, err)
	}
	eng.cron.Start()

	ln, err := net.Listen("tcp", eng.cfg.Addr)
	if err != nil {
		return fmt.Errorf("deerflow/engine: listen %s: %w", eng.cfg.Addr, err)
	}
	eng.addr = ln.Addr().String()

	go func() {
		if serveErr := eng.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			eng.logger.Error("http server error",
				slog.String("error", serveErr.Error()),
			)
		}
	}()

	eng.logger.Info("deer-flow server listening",
		slog.String("addr", eng.addr),
		slog.Bool("durable", eng.log.Enabled()),
	)
	return nil
}

// Stop gracefully shuts the engine down within Config.ShutdownTimeout:
// stop the cleanup scheduler, cancel and flush every running workflow,
// drain the HTTP server, close the store.
func (eng *Engine) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, eng.cfg.ShutdownTimeout)
	defer cancel()

	// Stop scheduling sweeps and wait out any in-flight one.
	select {
	case <-eng.cron.Stop().Done():
	case <-ctx.Done():
	}

	var errs []error

	// Cancel runs before draining the server: streaming handlers block
	// until their run's subscriber channel closes, and Shutdown waits
	// for those handlers.
	if err := eng.manager.CancelAll(ctx); err != nil {
		eng.logger.Warn("workflow cancellation incomplete",
			slog.String("error", err.Error()),
		)
		errs = append(errs, err)
	}

	if err := eng.server.Shutdown(ctx); err != nil {
		eng.logger.Warn("http server shutdown error",
			slog.String("error", err.Error()),
		)
		errs = append(errs, err)
	}

	if eng.store != nil {
		if err := eng.store.Close(); err != nil {
			eng.logger.Warn("store close error",
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Manager returns the workflow manager.
func (eng *Engine) Manager() *workflow.Manager { return eng.manager }

// Log returns the durable event log.
func (eng *Engine) Log() *stream.Log { return eng.log }

// Conversations returns the conversation metadata service.
func (eng *Engine) Conversations() *conversation.Service { return eng.conversations }

// Store returns the backend store, or nil when durability is disabled.
func (eng *Engine) Store() store.Store { return eng.store }

// Handler returns the HTTP handler, for tests or mounting under another
// server.
func (eng *Engine) Handler() http.Handler { return eng.handler }

// Addr returns the listen address. After Start it is the bound address,
// which matters when the configured one used port 0.
func (eng *Engine) Addr() string { return eng.addr }
