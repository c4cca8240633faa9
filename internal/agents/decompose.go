package agents

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/openresearch/orchestrator/internal/prompts"
	"github.com/openresearch/orchestrator/internal/state"
)

// Decompose breaks the research query into sub-questions. An existing valid
// list is reused without a generation call; this is the idempotence contract
// that makes retries cheap.
func (a *Agents) Decompose(ctx context.Context, st *state.ResearchState) {
	if st.HasSubQuestions() {
		st.Logf("Decomposition agent: using existing %d sub-questions", len(st.SubQuestions))
		st.Status = state.StatusQueryDecomposed
		st.AdvanceProgress(progressDecomposed)
		return
	}

	// If no clarified query exists and clarification was never attempted,
	// route back instead of decomposing a raw query.
	if st.ClarifiedQuery == "" && st.ClarificationAttempts < a.wf.MaxClarificationAttempts &&
		len(st.ClarificationQuestions) == 0 {
		st.Logf("Decomposition agent: clarified query missing, requesting clarification")
		st.Status = state.StatusClarificationNeeded
		return
	}

	query := st.EffectiveQuery()
	st.Logf("Decomposition agent: breaking down research query into sub-questions")

	// 4-8 sub-questions depending on configured depth.
	numQuestions := 3 + st.Config.DepthAndBreadth
	if numQuestions > 8 {
		numQuestions = 8
	}

	subQuestions := a.generateSubQuestions(ctx, st, query, numQuestions)
	if len(subQuestions) == 0 {
		a.logger.Warn("No sub-questions parsed, using defaults",
			zap.String("session_id", st.SessionID),
		)
		subQuestions = DefaultSubQuestions(query)
	}
	if len(subQuestions) > numQuestions {
		subQuestions = subQuestions[:numQuestions]
	}

	st.SubQuestions = subQuestions
	st.Status = state.StatusQueryDecomposed
	st.AdvanceProgress(progressDecomposed)
	st.Logf("Decomposition agent: created %d sub-questions", len(st.SubQuestions))
}

func (a *Agents) generateSubQuestions(ctx context.Context, st *state.ResearchState, query string, numQuestions int) []string {
	raw, err := a.gen.Generate(ctx, prompts.Decomposition, map[string]string{
		"query":         query,
		"num_questions": strconv.Itoa(numQuestions),
	})
	if err != nil {
		st.RecordError("Error decomposing query: %v", err)
		st.Logf("Decomposition agent: generation failed, falling back to default sub-questions")
		return nil
	}

	subQuestions := parseListItems(raw, minQuestionLength, true)
	if len(subQuestions) < numQuestions/2 {
		// Marker parsing came up short; take any question-shaped lines.
		if loose := parseLooseQuestions(raw, 10, numQuestions); len(loose) > len(subQuestions) {
			subQuestions = loose
		}
	}
	return subQuestions
}
