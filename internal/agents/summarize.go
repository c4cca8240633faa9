package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/openresearch/orchestrator/internal/prompts"
	"github.com/openresearch/orchestrator/internal/state"
)

// Summarize condenses the search results per sub-question and, in deep
// speed mode, fact-checks each summary against its sources. Summarization
// failures degrade to templated text so the report stage always has input.
func (a *Agents) Summarize(ctx context.Context, st *state.ResearchState) {
	if len(st.SearchResults) == 0 {
		st.RecordError("No search results available for summarization")
		st.Status = state.StatusError
		st.Logf("Summarization agent: no search results, cannot proceed")
		return
	}

	if st.Summaries == nil {
		st.Summaries = make(map[string]string)
	}
	if st.FactChecked == nil {
		st.FactChecked = make(map[string]bool)
	}

	questions := a.questionsWithResults(st)
	st.Logf("Summarization agent: summarizing %d questions", len(questions))

	for i, question := range questions {
		if _, done := st.Summaries[question]; done {
			continue
		}

		results := st.SearchResults[question]
		if allUnusable(results) {
			st.Summaries[question] = "No reliable information found for this question."
			st.FactChecked[question] = false
			continue
		}

		combined := strings.Join(results, "\n\n")
		summary, err := a.gen.Generate(ctx, prompts.Summarization, map[string]string{
			"question": question,
			"results":  combined,
		})
		if err != nil || strings.TrimSpace(summary) == "" {
			if err != nil {
				st.RecordError("Error summarizing '%s': %v", question, err)
			}
			summary = fmt.Sprintf(
				"Based on limited information, %s involves various concepts and applications. Due to processing limitations, a detailed summary could not be generated.",
				st.OriginalQuery)
			st.Summaries[question] = summary
			st.FactChecked[question] = false
			st.Logf("Summarization agent: fallback summary for '%s'", question)
		} else {
			st.Summaries[question] = strings.TrimSpace(summary)
			st.FactChecked[question] = a.factCheck(ctx, st, question, combined, summary)
			st.Logf("Summarization agent: generated summary for '%s'", question)
		}

		per := (progressSummaries - progressSearchDone) / float64(len(questions))
		st.AdvanceProgress(progressSearchDone + per*float64(i+1))
	}

	st.Status = state.StatusSummariesCompleted
	st.AdvanceProgress(progressSummaries)
	st.Logf("Summarization agent: completed summarization and fact checking")
}

// questionsWithResults returns sub-questions that have evidence, in
// decomposition order, bounded by the summary cap. Map iteration order is
// deliberately avoided so repeated runs behave identically.
func (a *Agents) questionsWithResults(st *state.ResearchState) []string {
	max := a.wf.MaxSummaryQuestions
	if max <= 0 {
		max = 5
	}
	var questions []string
	for _, q := range st.SubQuestions {
		if _, ok := st.SearchResults[q]; ok {
			questions = append(questions, q)
			if len(questions) >= max {
				break
			}
		}
	}
	// Evidence keyed by questions no longer in the decomposition (possible
	// after a resume with regenerated sub-questions) is left alone.
	return questions
}

// factCheck verifies a summary against its sources in deep mode. Fast mode
// skips verification entirely; a failed verification call is treated the
// same as skipping, only an explicit negative verdict clears the flag.
func (a *Agents) factCheck(ctx context.Context, st *state.ResearchState, question, results, summary string) bool {
	if st.Config.ResearchSpeed == state.SpeedFast {
		return true
	}

	verdict, err := a.gen.Generate(ctx, prompts.FactCheck, map[string]string{
		"question": question,
		"results":  results,
		"summary":  summary,
	})
	if err != nil {
		st.RecordError("Error fact-checking '%s': %v", question, err)
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(verdict), "VERIFIED")
}

func allUnusable(results []string) bool {
	if len(results) == 0 {
		return true
	}
	for _, r := range results {
		if !strings.HasPrefix(r, "Error") && !strings.HasPrefix(r, "No search results") {
			return false
		}
	}
	return true
}
