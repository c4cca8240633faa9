package workflow

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openresearch/orchestrator/internal/agents"
	"github.com/openresearch/orchestrator/internal/metrics"
	"github.com/openresearch/orchestrator/internal/state"
	"github.com/openresearch/orchestrator/internal/tracing"
)

// runStep executes exactly one workflow step: given the current status,
// exactly one agent runs. A panic from any agent is caught here, recorded,
// and answered with one best-effort recovery transition; it never takes the
// session straight to a terminal error.
func (o *Orchestrator) runStep(ctx context.Context, st *state.ResearchState, mode string) {
	pre := st.Status
	start := time.Now()

	ctx, span := tracing.StartStepSpan(ctx, st.SessionID, string(pre))
	defer span.End()

	defer func() {
		metrics.StepsExecuted.WithLabelValues(string(pre), mode).Inc()
		metrics.StepDuration.WithLabelValues(string(pre)).Observe(time.Since(start).Seconds())
		if st.Status != pre && st.Status.Terminal() {
			o.noteTerminal(st)
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			st.RecordError("Unexpected failure in workflow step (%s): %v", pre, r)
			st.Logf("Orchestrator: recovering from failed %s step", pre)
			o.logger.Error("Workflow step panicked",
				zap.String("session_id", st.SessionID),
				zap.String("status", string(pre)),
				zap.Any("panic", r),
			)
			o.recoverFromFailure(st, pre)
		}
	}()

	switch st.Status {
	case state.StatusInitialized:
		o.agents.Clarify(ctx, st)
	case state.StatusClarificationNeeded:
		if len(st.ClarificationAnswers) > 0 {
			o.agents.Refine(ctx, st)
		}
		// Without answers this status blocks; the driver decides whether to
		// wait for user input or force default answers.
	case state.StatusQueryRefined:
		o.agents.Decompose(ctx, st)
	case state.StatusQueryDecomposed:
		st.DecompositionAttempts++
		o.agents.Gather(ctx, st)
	case state.StatusSearchCompleted:
		o.agents.Summarize(ctx, st)
	case state.StatusSummariesCompleted:
		o.agents.Report(ctx, st)
	case state.StatusCompleted, state.StatusError:
		// Terminal; nothing to dispatch.
	default:
		// Unreachable for states produced by this package; a state loaded
		// from storage could still carry an unknown status.
		o.recoveryDispatch(ctx, st)
	}
}

// noteTerminal records the session metrics for a transition into a terminal
// status. Call it exactly once per session, at the point of transition.
func (o *Orchestrator) noteTerminal(st *state.ResearchState) {
	metrics.SessionsCompleted.WithLabelValues(string(st.Status)).Inc()
	metrics.SessionsActive.Dec()
}

// reportComplete reports whether the stored final report clears the
// per-format minimum length required for completion.
func (o *Orchestrator) reportComplete(st *state.ResearchState) bool {
	return st.FinalReport != "" &&
		len(strings.Fields(st.FinalReport)) >= o.wf.MinWordsFor(st.Config.OutputFormat)
}

// recoveryDispatch restores a stalled or unrecognized session to the most
// advanced stage its artifacts support, then re-runs the stage that follows.
// Forward progress is always attempted with whatever partial data exists
// rather than repeating failed work.
func (o *Orchestrator) recoveryDispatch(ctx context.Context, st *state.ResearchState) {
	switch {
	case o.reportComplete(st):
		metrics.RecoveryDispatches.WithLabelValues("final_report").Inc()
		st.Logf("Orchestrator: recovery found final report, marking completed")
		st.Status = state.StatusCompleted
		st.AdvanceProgress(1.0)

	case len(st.Summaries) > 0:
		metrics.RecoveryDispatches.WithLabelValues("summaries").Inc()
		st.Logf("Orchestrator: recovery resuming from summaries")
		st.Status = state.StatusSummariesCompleted
		o.agents.Report(ctx, st)

	case len(st.SearchResults) > 0:
		metrics.RecoveryDispatches.WithLabelValues("search_results").Inc()
		st.Logf("Orchestrator: recovery resuming from search results")
		st.Status = state.StatusSearchCompleted
		o.agents.Summarize(ctx, st)

	case len(st.SubQuestions) > 0:
		metrics.RecoveryDispatches.WithLabelValues("sub_questions").Inc()
		st.Logf("Orchestrator: recovery resuming from sub-questions")
		st.Status = state.StatusQueryDecomposed
		st.DecompositionAttempts++
		o.agents.Gather(ctx, st)

	case st.ClarifiedQuery != "":
		metrics.RecoveryDispatches.WithLabelValues("clarified_query").Inc()
		st.Logf("Orchestrator: recovery resuming from clarified query")
		st.Status = state.StatusQueryRefined
		o.agents.Decompose(ctx, st)

	case len(st.ClarificationAnswers) > 0:
		metrics.RecoveryDispatches.WithLabelValues("clarification_answers").Inc()
		st.Logf("Orchestrator: recovery resuming from clarification answers")
		st.Status = state.StatusClarificationNeeded
		o.agents.Refine(ctx, st)

	default:
		metrics.RecoveryDispatches.WithLabelValues("none").Inc()
		st.Logf("Orchestrator: recovery found no artifacts, restarting")
		st.Status = state.StatusInitialized
	}
}

// recoverFromFailure advances one stage with a deterministic fallback after
// a step failed unexpectedly. Only the final stage, where no synthetic
// artifact remains possible, exhausts recovery and goes terminal.
func (o *Orchestrator) recoverFromFailure(st *state.ResearchState, failed state.Status) {
	switch failed {
	case state.StatusInitialized:
		if !st.HasQuestions() {
			st.ClarificationQuestions = agents.DefaultClarificationQuestions(st.OriginalQuery)
		}
		st.Status = state.StatusClarificationNeeded
		st.AdvanceProgress(0.1)
		st.Logf("Orchestrator: substituted default clarification questions after failure")

	case state.StatusClarificationNeeded:
		if st.ClarifiedQuery == "" {
			st.ClarifiedQuery = st.OriginalQuery
		}
		st.Status = state.StatusQueryRefined
		st.AdvanceProgress(0.2)
		st.Logf("Orchestrator: defaulted clarified query after failure")

	case state.StatusQueryRefined:
		if !st.HasSubQuestions() {
			st.SubQuestions = agents.DefaultSubQuestions(st.EffectiveQuery())
		}
		st.Status = state.StatusQueryDecomposed
		st.AdvanceProgress(0.3)
		st.Logf("Orchestrator: substituted default sub-questions after failure")

	case state.StatusQueryDecomposed:
		o.agents.GatherFallbackOnly(context.Background(), st)

	case state.StatusSearchCompleted:
		if len(st.Summaries) == 0 && len(st.SearchResults) > 0 {
			st.Summaries = make(map[string]string)
			st.FactChecked = make(map[string]bool)
			for q := range st.SearchResults {
				st.Summaries[q] = "Due to processing limitations, a detailed summary could not be generated for this question."
				st.FactChecked[q] = false
			}
			st.Status = state.StatusSummariesCompleted
			st.AdvanceProgress(0.9)
			st.Logf("Orchestrator: substituted placeholder summaries after failure")
			return
		}
		st.Status = state.StatusError
		st.Logf("Orchestrator: recovery exhausted at summarization stage")

	case state.StatusSummariesCompleted:
		if o.reportComplete(st) {
			st.Status = state.StatusCompleted
			st.AdvanceProgress(1.0)
			return
		}
		st.Status = state.StatusError
		st.Logf("Orchestrator: recovery exhausted at report stage")

	default:
		st.Status = state.StatusError
	}
}
