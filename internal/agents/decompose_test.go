package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openresearch/orchestrator/internal/prompts"
	"github.com/openresearch/orchestrator/internal/state"
)

func TestDecompose_ParsesSubQuestions(t *testing.T) {
	gen := newStubGenerator(map[string]string{
		prompts.Decomposition: "1. What is renewable energy?\n" +
			"2. Which technologies dominate the market?\n" +
			"3. What are the main cost trends?\n" +
			"4. What policy incentives exist?",
	})
	ag := newTestAgents(gen, &stubSearcher{})
	st := newTestState("renewable energy")
	st.ClarifiedQuery = "state of renewable energy adoption"

	ag.Decompose(context.Background(), st)

	assert.Equal(t, state.StatusQueryDecomposed, st.Status)
	assert.Len(t, st.SubQuestions, 4)
	assert.Equal(t, 0.3, st.Progress)
}

func TestDecompose_ReusesExistingSubQuestions(t *testing.T) {
	gen := newStubGenerator(nil)
	ag := newTestAgents(gen, &stubSearcher{})
	st := newTestState("q")
	st.SubQuestions = []string{"a?", "b?", "c?"}

	ag.Decompose(context.Background(), st)

	assert.Equal(t, state.StatusQueryDecomposed, st.Status)
	assert.Equal(t, []string{"a?", "b?", "c?"}, st.SubQuestions)
	assert.Zero(t, gen.callCount(prompts.Decomposition))
}

func TestDecompose_RoutesBackToClarification(t *testing.T) {
	gen := newStubGenerator(nil)
	ag := newTestAgents(gen, &stubSearcher{})
	st := newTestState("ambiguous query")
	// No clarified query, no prior clarification work.

	ag.Decompose(context.Background(), st)

	assert.Equal(t, state.StatusClarificationNeeded, st.Status)
	assert.Empty(t, st.SubQuestions)
	assert.Zero(t, gen.callCount(prompts.Decomposition))
}

func TestDecompose_ProceedsAfterClarificationExhausted(t *testing.T) {
	gen := newStubGenerator(nil)
	gen.err = errors.New("llm down")
	ag := newTestAgents(gen, &stubSearcher{})
	st := newTestState("ambiguous query")
	st.ClarificationAttempts = 3

	ag.Decompose(context.Background(), st)

	assert.Equal(t, state.StatusQueryDecomposed, st.Status)
	assert.Len(t, st.SubQuestions, 5, "defaults stand in when generation fails")
	assert.Contains(t, st.SubQuestions[0], "ambiguous query")
}

func TestDecompose_TruncatesToDepthBound(t *testing.T) {
	long := ""
	for i := 0; i < 12; i++ {
		long += "1. What is some long generated sub-question number thing?\n"
	}
	gen := newStubGenerator(map[string]string{prompts.Decomposition: long})
	ag := newTestAgents(gen, &stubSearcher{})
	st := newTestState("q")
	st.ClarifiedQuery = "q refined"
	st.Config.DepthAndBreadth = 2

	ag.Decompose(context.Background(), st)

	assert.Len(t, st.SubQuestions, 5, "3+depth bounds the decomposition")
}
