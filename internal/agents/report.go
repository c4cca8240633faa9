package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/openresearch/orchestrator/internal/metrics"
	"github.com/openresearch/orchestrator/internal/prompts"
	"github.com/openresearch/orchestrator/internal/state"
)

const fullContentInstruction = "\nIMPORTANT: Write the full prose content for every section. Do not output an outline, a table of contents, or section headers without body text."

// Report synthesizes the final report from the per-question summaries. With
// zero summaries no fallback is possible and the session goes terminal with
// an error; otherwise the agent always stores the best available text.
func (a *Agents) Report(ctx context.Context, st *state.ResearchState) {
	if len(st.Summaries) == 0 {
		st.RecordError("No summaries available for report generation")
		st.Status = state.StatusError
		st.Logf("Report agent: no summaries, cannot generate report")
		return
	}

	st.Logf("Report agent: generating %s", st.Config.OutputFormat)

	summariesBlock := a.formatSummaries(st)
	promptName := prompts.ForFormat(st.Config.OutputFormat)
	minWords := a.wf.MinWordsFor(st.Config.OutputFormat)

	best := a.generateReport(ctx, st, promptName, summariesBlock, "")

	// One explicit "write full content" retry when the first attempt reads
	// like an outline; keep whichever non-outline candidate is longer.
	if best != "" && a.isOutline(best) {
		metrics.OutlineRetries.Inc()
		st.Logf("Report agent: outline-only report detected, regenerating with full-content instruction")
		retry := a.generateReport(ctx, st, promptName, summariesBlock, fullContentInstruction)
		best = pickReport(best, retry, a.isOutline)
		if a.isOutline(best) {
			st.RecordError("Report still outline-only after regeneration; keeping best available text")
		}
	}

	// Generation failed or came back hollow: build the deterministic
	// boilerplate report from the summaries themselves.
	if wordCount(best) < minWords {
		fallback := a.fallbackReport(st, summariesBlock)
		if wordCount(fallback) > wordCount(best) {
			best = fallback
			st.Logf("Report agent: using templated fallback report")
		}
	}

	if strings.TrimSpace(best) == "" || wordCount(best) < minWords {
		st.RecordError("Report too short for %s (wanted at least %d words)", st.Config.OutputFormat, minWords)
		st.FinalReport = best
		st.Status = state.StatusError
		return
	}

	st.FinalReport = best
	st.Status = state.StatusCompleted
	st.AdvanceProgress(progressCompleted)
	st.Logf("Report agent: generated final report (%d words)", wordCount(best))
	metrics.ReportsGenerated.WithLabelValues(st.Config.OutputFormat).Inc()
}

func (a *Agents) generateReport(ctx context.Context, st *state.ResearchState, promptName, summariesBlock, extra string) string {
	report, err := a.gen.Generate(ctx, promptName, map[string]string{
		"query":             st.EffectiveQuery(),
		"summaries":         summariesBlock,
		"extra_instruction": extra,
	})
	if err != nil {
		st.RecordError("Error generating final report: %v", err)
		return ""
	}
	return strings.TrimSpace(report)
}

func (a *Agents) formatSummaries(st *state.ResearchState) string {
	var b strings.Builder
	i := 0
	for _, question := range st.SubQuestions {
		summary, ok := st.Summaries[question]
		if !ok {
			continue
		}
		i++
		mark := "⚠"
		if st.FactChecked[question] {
			mark = "✓"
		}
		fmt.Fprintf(&b, "\n\nQuestion %d: %s %s\n%s", i, question, mark, summary)
	}
	return b.String()
}

// fallbackReport assembles a plain sectioned report directly from the
// summaries. Deterministic, local, and always long enough when the
// summaries themselves carry content.
func (a *Agents) fallbackReport(st *state.ResearchState, summariesBlock string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research Report: %s\n\n", st.EffectiveQuery())
	b.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&b, "This report presents research findings for the query \"%s\". ", st.EffectiveQuery())
	b.WriteString("It was assembled directly from per-question research summaries after automated report generation was unavailable. ")
	fmt.Fprintf(&b, "The research covered %d sub-questions; findings for each are reproduced below.\n", len(st.Summaries))
	b.WriteString("\n## Findings\n")
	b.WriteString(summariesBlock)
	b.WriteString("\n\n## Conclusion\n\n")
	fmt.Fprintf(&b, "The findings above summarize the available evidence for \"%s\". ", st.EffectiveQuery())
	b.WriteString("Sections flagged with ⚠ could not be verified against their sources and should be read with care.")
	return b.String()
}

func pickReport(first, second string, isOutline func(string) bool) string {
	firstOutline := isOutline(first)
	secondOutline := second != "" && isOutline(second)

	switch {
	case firstOutline && second != "" && !secondOutline:
		return second
	case !firstOutline && (second == "" || secondOutline):
		return first
	default:
		// Both outlines or both prose: keep the longer text.
		if wordCount(second) > wordCount(first) {
			return second
		}
		return first
	}
}
