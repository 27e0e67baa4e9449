// Package research implements the deep-research producer: a staged
// pipeline that plans a question, retrieves evidence per sub-question in
// parallel, synthesizes the evidence, and writes a structured report
// gated by a programmatic quality check.
//
// The pipeline is deterministic: stage outputs are derived from the
// question and the retrieved evidence alone. Retrieval is the pluggable
// part; [StaticRetriever] backs tests and offline deployments, and
// callers with a search stack implement [Retriever] themselves.
//
// [Pipeline.Producer] adapts a question into a workflow producer, which
// is how the API layer mounts research as the default workload:
//
//	p := research.New(research.WithLogger(logger))
//	run, err := manager.StartRun(threadID, p.Producer(threadID, query))
package research
