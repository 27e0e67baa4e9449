package research

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Gate patterns. Claim lines are markdown list items in the Findings
// section; each must carry an inline [citation:TITLE](URL) marker, and
// the References section must span at least two source categories.
var (
	claimLinePattern = regexp.MustCompile(`(?m)^\s*(?:[-*]|\d+\.)\s+.+$`)
	citationPattern  = regexp.MustCompile(`\[citation:[^\]]+\]\((https?://[^\s)]+)\)`)
	categoryPattern  = regexp.MustCompile(`(?i)\|\s*category:\s*([a-zA-Z_]+)`)
)

const gatePassedFeedback = "quality gate passed"

// aspects are the angles every research plan decomposes a question
// into, one retrieval topic each.
var aspects = []string{
	"scope and definitions",
	"current landscape",
	"key mechanisms",
	"benefits and adoption drivers",
	"risks and limitations",
	"outlook",
}

type plan struct {
	Query  string
	Topics []string
}

func buildPlan(query string) plan {
	topics := make([]string, len(aspects))
	for i, a := range aspects {
		topics[i] = fmt.Sprintf("%s of %s", a, query)
	}
	return plan{Query: query, Topics: topics}
}

func (p plan) markdown() string {
	var b strings.Builder
	b.WriteString("## Research Plan\n\n")
	fmt.Fprintf(&b, "Objective: %s\n\n", p.Query)
	b.WriteString("### Sub-Questions\n")
	for i, t := range p.Topics {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}
	b.WriteString("\n### Evidence Requirements\n")
	b.WriteString("- Every key finding carries an inline citation.\n")
	b.WriteString("- References span at least two source categories.\n")
	b.WriteString("\n### Source Checklist\n")
	b.WriteString("- official, academic, industry, media, other\n")
	return b.String()
}

// retrievalLog renders one retrieval round. Revision feedback from a
// failed gate is surfaced so retry rounds are distinguishable in the
// event stream.
func retrievalLog(round int, topics []string, evidence []Evidence, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Retrieval Log (round %d)\n\n", round)
	if feedback != "" {
		fmt.Fprintf(&b, "Revision focus: %s\n\n", feedback)
	}
	fmt.Fprintf(&b, "Queried %d sub-questions, collected %d evidence records.\n\n", len(topics), len(evidence))
	b.WriteString("### Evidence Records\n")
	for _, ev := range evidence {
		fmt.Fprintf(&b, "- %s %s\n", ev.Claim, citationOf(ev))
	}
	return b.String()
}

func buildSynthesis(evidence []Evidence) string {
	var b strings.Builder
	b.WriteString("## Evidence Map\n\n")
	var lastTopic string
	for _, ev := range evidence {
		if ev.Topic != lastTopic {
			fmt.Fprintf(&b, "### %s\n", ev.Topic)
			lastTopic = ev.Topic
		}
		fmt.Fprintf(&b, "- %s (%s)\n", ev.Claim, ev.Category)
	}
	b.WriteString("\n## Source Coverage\n")
	counts := map[string]int{}
	for _, ev := range evidence {
		counts[strings.ToLower(ev.Category)]++
	}
	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(&b, "- %s: %d record(s)\n", c, counts[c])
	}
	return b.String()
}

// buildReport writes the fixed report structure the quality gate
// inspects: Scope, Method, Findings, Risks and Uncertainties,
// References.
func buildReport(p plan, evidence []Evidence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research Report: %s\n\n", p.Query)

	b.WriteString("## Scope\n")
	fmt.Fprintf(&b, "This report answers %q across %d sub-questions: %s.\n\n",
		p.Query, len(p.Topics), strings.Join(p.Topics, "; "))

	b.WriteString("## Method\n")
	b.WriteString("Evidence was retrieved per sub-question in parallel, mapped by topic, and cross-checked for source diversity before reporting.\n\n")

	b.WriteString("## Findings\n")
	for _, ev := range evidence {
		if cite := citationOf(ev); cite != "" {
			fmt.Fprintf(&b, "- %s %s\n", ev.Claim, cite)
		} else {
			fmt.Fprintf(&b, "- %s\n", ev.Claim)
		}
	}
	b.WriteString("\n")

	b.WriteString("## Risks and Uncertainties\n")
	b.WriteString("- Retrieved sources may lag current developments.\n")
	b.WriteString("- Sub-question coverage depends on retriever breadth.\n")
	if n := uncitedCount(evidence); n > 0 {
		fmt.Fprintf(&b, "- %d claim(s) lack a supporting citation.\n", n)
	}
	b.WriteString("\n")

	b.WriteString("## References\n")
	seen := map[string]bool{}
	for _, ev := range evidence {
		if ev.URL == "" || seen[ev.URL] {
			continue
		}
		seen[ev.URL] = true
		fmt.Fprintf(&b, "- [citation:%s](%s) | category: %s\n", ev.Title, ev.URL, strings.ToLower(ev.Category))
	}
	return b.String()
}

func citationOf(ev Evidence) string {
	if ev.URL == "" {
		return ""
	}
	return fmt.Sprintf("[citation:%s](%s)", ev.Title, ev.URL)
}

func uncitedCount(evidence []Evidence) int {
	n := 0
	for _, ev := range evidence {
		if ev.URL == "" {
			n++
		}
	}
	return n
}

// qualityCheck verifies that every Findings claim line carries a
// citation and that References span at least two source categories.
// Feedback describes the failures joined by "; ", or reports the gate
// passed.
func qualityCheck(report string) (passed bool, feedback string) {
	findings := extractSection(report, "## Findings", "## Risks", "## References")
	references := extractSection(report, "## References")

	claimLines := claimLinePattern.FindAllString(findings, -1)
	missing := 0
	for _, line := range claimLines {
		if !citationPattern.MatchString(line) {
			missing++
		}
	}
	// Findings written as prose still need at least one citation.
	if len(claimLines) == 0 && findings != "" && !citationPattern.MatchString(findings) {
		missing = 1
	}

	categories := map[string]bool{}
	for _, m := range categoryPattern.FindAllStringSubmatch(references, -1) {
		categories[strings.ToLower(m[1])] = true
	}

	var issues []string
	if missing > 0 {
		issues = append(issues, fmt.Sprintf("findings contain %d uncited key claim(s)", missing))
	}
	if len(categories) < 2 {
		issues = append(issues, "references contain fewer than 2 source categories")
	}
	if len(issues) > 0 {
		return false, strings.Join(issues, "; ")
	}
	return true, gatePassedFeedback
}

// extractSection returns the text between heading and the nearest of
// the next headings, or "" when the heading is absent.
func extractSection(text, heading string, next ...string) string {
	start := strings.Index(text, heading)
	if start < 0 {
		return ""
	}
	start += len(heading)
	end := len(text)
	for _, nh := range next {
		if idx := strings.Index(text[start:], nh); idx >= 0 && start+idx < end {
			end = start + idx
		}
	}
	return strings.TrimSpace(text[start:end])
}

func qualityNote(feedback string) string {
	return "\n\n## Quality Check Note\n- Auto quality gate did not fully pass after retry: " + feedback
}
