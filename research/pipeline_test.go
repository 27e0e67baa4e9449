package research

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// runProducer executes the producer for query and returns the emitted
// frames in order.
func runProducer(t *testing.T, p *Pipeline, threadID, query string) []string {
	t.Helper()
	var frames []string
	emit := func(event string) { frames = append(frames, event) }
	if err := p.Producer(threadID, query)(context.Background(), emit); err != nil {
		t.Fatalf("producer: %v", err)
	}
	return frames
}

const validReport = `# Research Report: solid-state batteries

## Scope
This report answers "solid-state batteries" across 2 sub-questions.

## Method
Evidence was retrieved per sub-question and cross-checked.

## Findings
- Energy density exceeds lithium-ion cells [citation:Battery Review](https://example.org/review)
- Commercial pilots started in 2025 [citation:Industry Brief](https://example.org/brief)

## Risks and Uncertainties
- Manufacturing yield remains unproven at scale.

## References
- [citation:Battery Review](https://example.org/review) | category: official
- [citation:Industry Brief](https://example.org/brief) | category: media
`

// ── quality gate ──

func TestQualityCheck_PassesValidReport(t *testing.T) {
	passed, feedback := qualityCheck(validReport)
	if !passed {
		t.Fatalf("gate failed: %s", feedback)
	}
	if feedback != "quality gate passed" {
		t.Fatalf("feedback = %q", feedback)
	}
}

func TestQualityCheck_FlagsUncitedClaims(t *testing.T) {
	report := strings.Replace(validReport,
		"- Commercial pilots started in 2025 [citation:Industry Brief](https://example.org/brief)",
		"- Commercial pilots started in 2025", 1)
	passed, feedback := qualityCheck(report)
	if passed {
		t.Fatal("gate passed an uncited claim")
	}
	if !strings.Contains(feedback, "findings contain 1 uncited key claim(s)") {
		t.Fatalf("feedback = %q", feedback)
	}
}

func TestQualityCheck_FlagsNarrowSourceBase(t *testing.T) {
	report := strings.Replace(validReport, "| category: media", "| category: official", 1)
	passed, feedback := qualityCheck(report)
	if passed {
		t.Fatal("gate passed single-category references")
	}
	if !strings.Contains(feedback, "references contain fewer than 2 source categories") {
		t.Fatalf("feedback = %q", feedback)
	}
}

func TestQualityCheck_JoinsMultipleIssues(t *testing.T) {
	report := `## Findings
- First claim without any citation

## References
- [citation:Only Source](https://example.org/one) | category: official
`
	passed, feedback := qualityCheck(report)
	if passed {
		t.Fatal("gate passed a doubly broken report")
	}
	want := "findings contain 1 uncited key claim(s); references contain fewer than 2 source categories"
	if feedback != want {
		t.Fatalf("feedback = %q, want %q", feedback, want)
	}
}

func TestQualityCheck_ProseFindingsNeedCitation(t *testing.T) {
	report := `## Findings
The evidence suggests rapid progress without naming sources.

## References
- [citation:A](https://example.org/a) | category: official
- [citation:B](https://example.org/b) | category: media
`
	passed, feedback := qualityCheck(report)
	if passed {
		t.Fatal("gate passed uncited prose findings")
	}
	if !strings.Contains(feedback, "1 uncited key claim(s)") {
		t.Fatalf("feedback = %q", feedback)
	}
}

func TestExtractSection_StopsAtNextHeading(t *testing.T) {
	got := extractSection(validReport, "## Findings", "## Risks", "## References")
	if !strings.Contains(got, "Energy density") {
		t.Fatalf("section missing findings text: %q", got)
	}
	if strings.Contains(got, "Manufacturing yield") {
		t.Fatalf("section leaked past next heading: %q", got)
	}
	if extractSection(validReport, "## Appendix") != "" {
		t.Fatal("absent heading should yield empty section")
	}
}

// ── report builder ──

func TestBuildReport_PassesOwnGate(t *testing.T) {
	pl := buildPlan("quantum networking")
	evidence, err := StaticRetriever{}.Retrieve(context.Background(), pl.Topics[0])
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	report := buildReport(pl, evidence)
	for _, heading := range []string{"## Scope", "## Method", "## Findings", "## Risks and Uncertainties", "## References"} {
		if !strings.Contains(report, heading) {
			t.Fatalf("report missing %s", heading)
		}
	}
	if passed, feedback := qualityCheck(report); !passed {
		t.Fatalf("built report failed its own gate: %s", feedback)
	}
}

func TestStaticRetriever_CoversTwoCategories(t *testing.T) {
	records, err := StaticRetriever{}.Retrieve(context.Background(), "grid storage economics")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	categories := map[string]bool{}
	for _, ev := range records {
		categories[ev.Category] = true
		if ev.URL == "" {
			t.Fatalf("record %q has no citation URL", ev.Claim)
		}
		if strings.ContainsAny(ev.URL, " \t") {
			t.Fatalf("URL not slugified: %q", ev.URL)
		}
	}
	if !categories["official"] || !categories["academic"] {
		t.Fatalf("categories = %v, want official and academic", categories)
	}
}

// ── retrieval fan-out ──

func TestRetrieveAll_PreservesTopicOrder(t *testing.T) {
	topics := []string{"first topic", "second topic", "third topic"}
	p := New(
		WithLogger(quietLogger()),
		WithRetriever(RetrieverFunc(func(_ context.Context, topic string) ([]Evidence, error) {
			// Finish in reverse submission order to prove results are
			// collected by index, not by completion.
			for i, candidate := range topics {
				if candidate == topic {
					time.Sleep(time.Duration(len(topics)-i) * 10 * time.Millisecond)
				}
			}
			return []Evidence{{Topic: topic, Claim: "claim for " + topic}}, nil
		})),
	)
	evidence, err := p.retrieveAll(context.Background(), topics)
	if err != nil {
		t.Fatalf("retrieveAll: %v", err)
	}
	if len(evidence) != len(topics) {
		t.Fatalf("got %d records, want %d", len(evidence), len(topics))
	}
	for i, topic := range topics {
		if evidence[i].Topic != topic {
			t.Fatalf("evidence[%d].Topic = %q, want %q", i, evidence[i].Topic, topic)
		}
	}
}

func TestRetrieveAll_PropagatesFailure(t *testing.T) {
	p := New(
		WithLogger(quietLogger()),
		WithRetriever(RetrieverFunc(func(_ context.Context, topic string) ([]Evidence, error) {
			if strings.HasPrefix(topic, "current landscape") {
				return nil, errors.New("search backend down")
			}
			return nil, nil
		})),
	)
	_, err := p.retrieveAll(context.Background(), buildPlan("fusion power").Topics)
	if err == nil {
		t.Fatal("expected retrieval error")
	}
	if !strings.Contains(err.Error(), "deerflow/research: retrieve") {
		t.Fatalf("err = %v", err)
	}
}

// ── full pipeline ──

func TestProducer_EmitsStagesInOrder(t *testing.T) {
	p := New(WithLogger(quietLogger()))
	frames := runProducer(t, p, "thread-1", "solid-state batteries")

	// plan, retrieval log, synthesis, report, finish.
	if len(frames) != 5 {
		t.Fatalf("got %d frames, want 5", len(frames))
	}
	for i, agent := range []string{agentPlanner, agentResearcher, agentSynthesizer, agentReporter, agentReporter} {
		if !strings.Contains(frames[i], `"agent":"`+agent+`"`) {
			t.Fatalf("frame %d should come from %s: %q", i, agent, frames[i])
		}
	}
	if !strings.Contains(frames[0], "Research Plan") {
		t.Fatalf("first frame is not the plan: %q", frames[0])
	}
	last := frames[len(frames)-1]
	if !strings.Contains(last, `"finish_reason":"stop"`) {
		t.Fatalf("final frame missing finish reason: %q", last)
	}
	for _, f := range frames {
		if strings.Contains(f, "Quality Check Note") {
			t.Fatalf("passing run should not carry a quality note: %q", f)
		}
	}
}

type uncitedRetriever struct {
	calls atomic.Int32
}

func (r *uncitedRetriever) Retrieve(_ context.Context, topic string) ([]Evidence, error) {
	r.calls.Add(1)
	return []Evidence{{Topic: topic, Claim: "Unverified reports mention " + topic}}, nil
}

func TestProducer_RetriesOnceThenFinalizesWithNote(t *testing.T) {
	retriever := &uncitedRetriever{}
	p := New(WithLogger(quietLogger()), WithRetriever(retriever))
	frames := runProducer(t, p, "thread-1", "deep sea mining")

	topics := len(buildPlan("deep sea mining").Topics)
	if got := int(retriever.calls.Load()); got != 2*topics {
		t.Fatalf("retriever called %d times, want %d (two rounds)", got, 2*topics)
	}

	// plan, two retrieve/synthesize/report rounds, note, finish.
	if len(frames) != 1+2*3+1+1 {
		t.Fatalf("got %d frames, want %d", len(frames), 1+2*3+1+1)
	}
	note := frames[len(frames)-2]
	if !strings.Contains(note, "Quality Check Note") {
		t.Fatalf("missing quality note before finish: %q", note)
	}
	if !strings.Contains(note, "uncited key claim") {
		t.Fatalf("note should carry gate feedback: %q", note)
	}

	var revisionSeen bool
	for _, f := range frames {
		if strings.Contains(f, "Revision focus:") {
			revisionSeen = true
		}
	}
	if !revisionSeen {
		t.Fatal("retry round should surface the revision feedback")
	}
}

func TestProducer_EmptyQuery(t *testing.T) {
	p := New(WithLogger(quietLogger()))
	err := p.Producer("thread-1", "")(context.Background(), func(string) {})
	if err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestProducer_HonorsCancellation(t *testing.T) {
	p := New(WithLogger(quietLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Producer("thread-1", "anything")(ctx, func(string) {})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
