package agents

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openresearch/orchestrator/internal/search"
	"github.com/openresearch/orchestrator/internal/state"
)

// Gather performs web searches for each sub-question under a wall-clock
// budget. It never fails outright: every sub-question ends up with either
// real evidence, fallback content, or an explicit no-evidence marker.
func (a *Agents) Gather(ctx context.Context, st *state.ResearchState) {
	if len(st.SubQuestions) == 0 {
		st.Logf("Search agent: no sub-questions available, creating default questions")
		st.SubQuestions = DefaultSubQuestions(st.EffectiveQuery())
	}

	if st.SearchResults == nil {
		st.SearchResults = make(map[string][]string)
	}

	maxQuestions := a.wf.MaxSearchQuestions
	if maxQuestions <= 0 || maxQuestions > len(st.SubQuestions) {
		maxQuestions = len(st.SubQuestions)
	}
	questions := st.SubQuestions[:maxQuestions]

	numResults := 3
	if st.Config.ResearchSpeed == state.SpeedFast {
		numResults = 2
	}

	budget := time.Duration(st.Config.DepthAndBreadth) * a.wf.SearchBudgetPerDepth
	if budget <= 0 {
		budget = 15 * time.Second
	}
	minToProcess := a.wf.MinSearchQuestions
	if minToProcess > len(questions) {
		minToProcess = len(questions)
	}

	st.Logf("Search agent: beginning search for %d sub-questions", len(questions))

	// All search calls share one deadline so a slow backend cannot hold the
	// pipeline past its budget.
	searchCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := time.Now()
	var failed []string
	processed := 0

	for i, question := range questions {
		if _, done := st.SearchResults[question]; done {
			processed++
			continue
		}

		if time.Since(start) > budget && processed >= minToProcess {
			st.Logf("Search agent: time limit reached, using fallback for remaining questions")
			a.logger.Warn("Search budget exhausted",
				zap.String("session_id", st.SessionID),
				zap.Int("processed", processed),
				zap.Int("remaining", len(questions)-i),
			)
			failed = append(failed, questions[i:]...)
			break
		}

		st.Logf("Search agent: searching for '%s'", question)
		results, err := a.searcher.Search(searchCtx, question, numResults)
		processed++

		switch {
		case err != nil:
			failed = append(failed, question)
			st.Logf("Search agent: error searching for '%s' - %v", question, err)
		case len(results) == 0:
			failed = append(failed, question)
			st.SearchResults[question] = []string{"No search results found for: " + question}
			st.Logf("Search agent: no results found for '%s'", question)
		default:
			snippets := make([]string, 0, len(results))
			for _, r := range results {
				snippets = append(snippets, r.Snippet())
			}
			st.SearchResults[question] = snippets
			st.Logf("Search agent: found %d results for '%s'", len(snippets), question)
		}

		per := (progressSearchDone - progressSearchFrom) / float64(len(questions))
		st.AdvanceProgress(progressSearchFrom + per*float64(i+1))
	}

	if len(failed) > 0 {
		st.Logf("Search agent: providing fallback content for %d failed searches", len(failed))
		for _, question := range failed {
			st.SearchResults[question] = fallbackSnippets(a.searcher.Fallback(question))
		}
	}

	// Belt and braces: never leave the search stage without any evidence.
	if len(st.SearchResults) == 0 {
		st.Logf("Search agent: no search results at all, using generic fallback content")
		limit := minToProcess
		if limit < 1 {
			limit = 1
		}
		for _, question := range questions[:limit] {
			st.SearchResults[question] = fallbackSnippets(a.searcher.Fallback(question))
		}
	}

	st.Status = state.StatusSearchCompleted
	st.AdvanceProgress(progressSearchDone)
	st.Logf("Search agent: completed searches for all questions")
}

// GatherFallbackOnly is the forced-progression variant used after repeated
// decomposition stalls: a bounded evidence pass over the first two
// sub-questions using only local fallback content, bypassing search.
func (a *Agents) GatherFallbackOnly(ctx context.Context, st *state.ResearchState) {
	if len(st.SubQuestions) == 0 {
		st.SubQuestions = DefaultSubQuestions(st.EffectiveQuery())
	}
	if st.SearchResults == nil {
		st.SearchResults = make(map[string][]string)
	}

	limit := 2
	if limit > len(st.SubQuestions) {
		limit = len(st.SubQuestions)
	}
	for _, question := range st.SubQuestions[:limit] {
		if _, done := st.SearchResults[question]; done {
			continue
		}
		st.SearchResults[question] = fallbackSnippets(a.searcher.Fallback(question))
	}

	st.Status = state.StatusSearchCompleted
	st.AdvanceProgress(progressSearchDone)
	st.Logf("Search agent: forced evidence pass with fallback content for %d questions", limit)
}

func fallbackSnippets(results []search.Result) []string {
	snippets := make([]string, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, r.Snippet())
	}
	return snippets
}
