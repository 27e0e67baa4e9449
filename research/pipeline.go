package research

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chansky6/deer-flow/stream"
	"github.com/chansky6/deer-flow/workflow"
)

// Agent names attached to emitted frames, one per pipeline stage.
const (
	agentPlanner     = "planner"
	agentResearcher  = "researcher"
	agentSynthesizer = "synthesizer"
	agentReporter    = "reporter"
)

const (
	// DefaultMaxQualityRetry is how many extra retrieve-to-report rounds
	// a failed quality gate may trigger.
	DefaultMaxQualityRetry = 1

	// DefaultParallelism caps concurrent topic retrievals.
	DefaultParallelism = 4
)

// Pipeline runs the staged research workflow: plan, retrieve,
// synthesize, report, quality gate.
type Pipeline struct {
	retriever   Retriever
	logger      *slog.Logger
	maxRetry    int
	parallelism int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for the Pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithRetriever replaces the built-in StaticRetriever with a real
// evidence source.
func WithRetriever(r Retriever) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.retriever = r
		}
	}
}

// WithMaxQualityRetry overrides DefaultMaxQualityRetry.
func WithMaxQualityRetry(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.maxRetry = n
		}
	}
}

// WithParallelism overrides DefaultParallelism.
func WithParallelism(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.parallelism = n
		}
	}
}

// New creates a research pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		retriever:   StaticRetriever{},
		logger:      slog.Default(),
		maxRetry:    DefaultMaxQualityRetry,
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Producer adapts one research question into a workflow producer for
// the given thread.
func (p *Pipeline) Producer(threadID, query string) workflow.Producer {
	return func(ctx context.Context, emit workflow.EmitFunc) error {
		return p.run(ctx, threadID, query, emit)
	}
}

// run executes the pipeline stages in order, emitting one frame per
// stage output. A failed quality gate re-enters retrieval with revision
// feedback, at most maxRetry extra rounds; if the gate still fails the
// report is finalized with a Quality Check Note instead of erroring.
func (p *Pipeline) run(ctx context.Context, threadID, query string, emit workflow.EmitFunc) error {
	if query == "" {
		return fmt.Errorf("deerflow/research: empty query for thread %q", threadID)
	}

	pl := buildPlan(query)
	emit(stream.MessageChunkFrame(threadID, agentPlanner, pl.markdown()))
	p.logger.Debug("research plan built",
		slog.String("thread_id", threadID),
		slog.Int("topics", len(pl.Topics)))

	var (
		passed   bool
		feedback string
	)
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		evidence, err := p.retrieveAll(ctx, pl.Topics)
		if err != nil {
			return err
		}
		emit(stream.MessageChunkFrame(threadID, agentResearcher,
			retrievalLog(attempt+1, pl.Topics, evidence, feedback)))

		emit(stream.MessageChunkFrame(threadID, agentSynthesizer, buildSynthesis(evidence)))

		report := buildReport(pl, evidence)
		emit(stream.MessageChunkFrame(threadID, agentReporter, report))

		passed, feedback = qualityCheck(report)
		if passed || attempt >= p.maxRetry {
			break
		}
		p.logger.Warn("quality gate failed, revising",
			slog.String("thread_id", threadID),
			slog.Int("attempt", attempt+1),
			slog.String("feedback", feedback))
	}

	if !passed {
		emit(stream.MessageChunkFrame(threadID, agentReporter, qualityNote(feedback)))
	}
	emit(stream.FinishFrame(threadID, agentReporter, "stop"))
	p.logger.Info("research run finished",
		slog.String("thread_id", threadID),
		slog.Bool("gate_passed", passed))
	return nil
}
