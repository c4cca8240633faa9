package agents

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/openresearch/orchestrator/internal/config"
	"github.com/openresearch/orchestrator/internal/llm"
	"github.com/openresearch/orchestrator/internal/search"
	"github.com/openresearch/orchestrator/internal/state"
)

// Progress values owned by each stage. Forward ranges are non-overlapping;
// all advancement goes through the state's monotonic setter.
const (
	progressClarified  = 0.1
	progressRefined    = 0.2
	progressDecomposed = 0.3
	progressSearchFrom = 0.3
	progressSearchDone = 0.7
	progressSummaries  = 0.9
	progressCompleted  = 1.0
)

// DefaultAnswer is synthesized for unanswered clarification questions when
// the workflow decides not to wait for user input.
const DefaultAnswer = "No specific preference. Please proceed with a general overview."

// Agents bundles the stateless transformation functions of the pipeline.
// Each agent takes the current research state and mutates it in place; none
// lets a collaborator failure escape its own boundary.
type Agents struct {
	gen      llm.Generator
	searcher search.Searcher
	wf       config.WorkflowConfig
	logger   *zap.Logger
}

// New wires the agents to their collaborators.
func New(gen llm.Generator, searcher search.Searcher, wf config.WorkflowConfig, logger *zap.Logger) *Agents {
	return &Agents{gen: gen, searcher: searcher, wf: wf, logger: logger}
}

// DefaultClarificationQuestions is the deterministic fallback when question
// generation or parsing fails.
func DefaultClarificationQuestions(query string) []string {
	return []string{
		fmt.Sprintf("Could you provide more context about what aspects of '%s' you're most interested in?", query),
		fmt.Sprintf("What specific information about '%s' would be most valuable to you?", query),
		fmt.Sprintf("Are you looking for recent developments in '%s' or historical background?", query),
	}
}

// DefaultSubQuestions is the deterministic fallback decomposition.
func DefaultSubQuestions(query string) []string {
	return []string{
		fmt.Sprintf("What is %s?", query),
		fmt.Sprintf("What are the key concepts in %s?", query),
		fmt.Sprintf("What are the latest developments in %s?", query),
		fmt.Sprintf("What are the main challenges in %s?", query),
		fmt.Sprintf("What are practical applications of %s?", query),
	}
}

// SynthesizeDefaultAnswers fills every unanswered clarification question
// with the default answer so the pipeline can proceed without user input.
func SynthesizeDefaultAnswers(st *state.ResearchState) {
	if st.ClarificationAnswers == nil {
		st.ClarificationAnswers = make(map[string]string)
	}
	for _, q := range st.ClarificationQuestions {
		if _, ok := st.ClarificationAnswers[q]; !ok {
			st.ClarificationAnswers[q] = DefaultAnswer
		}
	}
	st.Logf("Synthesized default answers for %d clarification questions", len(st.ClarificationQuestions))
}

func formatQA(st *state.ResearchState) string {
	var b strings.Builder
	for _, q := range st.ClarificationQuestions {
		answer, ok := st.ClarificationAnswers[q]
		if !ok || answer == "" {
			answer = "No answer provided"
		}
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", q, answer)
	}
	return b.String()
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
