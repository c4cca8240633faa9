package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/openresearch/orchestrator/internal/prompts"
	"github.com/openresearch/orchestrator/internal/state"
)

const minQuestionLength = 6

// Clarify generates clarification questions for the original query. If a
// valid question list already exists it is reused without a generation call.
func (a *Agents) Clarify(ctx context.Context, st *state.ResearchState) {
	st.Logf("Clarification agent: analyzing query '%s'", st.OriginalQuery)

	if st.HasQuestions() {
		st.Logf("Clarification agent: using existing %d questions", len(st.ClarificationQuestions))
		st.Status = state.StatusClarificationNeeded
		st.AdvanceProgress(progressClarified)
		return
	}

	questions := a.generateQuestions(ctx, st)
	if len(questions) < 2 {
		a.logger.Warn("Not enough clarification questions parsed, using defaults",
			zap.String("session_id", st.SessionID),
		)
		questions = DefaultClarificationQuestions(st.OriginalQuery)
	}

	st.ClarificationQuestions = questions
	st.Status = state.StatusClarificationNeeded
	st.AdvanceProgress(progressClarified)
	st.Logf("Clarification agent: generated %d questions for user", len(questions))
}

func (a *Agents) generateQuestions(ctx context.Context, st *state.ResearchState) []string {
	raw, err := a.gen.Generate(ctx, prompts.Clarification, map[string]string{
		"query": st.OriginalQuery,
	})
	if err != nil {
		st.RecordError("Error generating clarification questions: %v", err)
		st.Logf("Clarification agent: generation failed, falling back to default questions")
		return nil
	}

	questions := parseListItems(raw, minQuestionLength, false)
	if len(questions) == 0 {
		// Marker parsing failed; take any question-shaped lines.
		questions = parseLooseQuestions(raw, 10, 3)
	}
	return questions
}
