package agents

import (
	"context"
	"strconv"
	"strings"

	"github.com/openresearch/orchestrator/internal/prompts"
	"github.com/openresearch/orchestrator/internal/state"
)

// Refine turns the clarification answers into a refined research query. On
// generation failure the original query stands in so the pipeline advances.
func (a *Agents) Refine(ctx context.Context, st *state.ResearchState) {
	st.Logf("Refinement agent: processing %d clarification answers", len(st.ClarificationAnswers))

	refined, err := a.gen.Generate(ctx, prompts.Refinement, map[string]string{
		"original_query":   st.OriginalQuery,
		"clarification_qa": formatQA(st),
		"output_format":    st.Config.OutputFormat,
		"research_speed":   st.Config.ResearchSpeed,
		"depth_breadth":    strconv.Itoa(st.Config.DepthAndBreadth),
	})
	if err != nil {
		st.RecordError("Error processing clarifications: %v", err)
		st.Logf("Refinement agent: generation failed, keeping original query")
		refined = st.OriginalQuery
	}

	refined = strings.TrimSpace(refined)
	if refined == "" {
		refined = st.OriginalQuery
	}

	st.ClarifiedQuery = refined
	st.Status = state.StatusQueryRefined
	st.AdvanceProgress(progressRefined)
	st.Logf("Refinement agent: created refined query based on %d answers", len(st.ClarificationAnswers))
}
