package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openresearch/orchestrator/internal/agents"
	"github.com/openresearch/orchestrator/internal/config"
	"github.com/openresearch/orchestrator/internal/metrics"
	"github.com/openresearch/orchestrator/internal/prompts"
	"github.com/openresearch/orchestrator/internal/registry"
	"github.com/openresearch/orchestrator/internal/search"
	"github.com/openresearch/orchestrator/internal/state"
)

type fakeGenerator struct {
	mu        sync.Mutex
	responses map[string]string
	err       error
	calls     map[string]int
}

func (g *fakeGenerator) Generate(_ context.Context, promptName string, _ map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = make(map[string]int)
	}
	g.calls[promptName]++
	if g.err != nil {
		return "", g.err
	}
	if r, ok := g.responses[promptName]; ok {
		return r, nil
	}
	return "", fmt.Errorf("no canned response for prompt %q", promptName)
}

type fakeSearcher struct {
	err error
}

func (s *fakeSearcher) Search(_ context.Context, query string, _ int) ([]search.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []search.Result{{
		Title:   "Result for " + query,
		URL:     "https://example.com/result",
		Content: "Relevant evidence about " + query,
	}}, nil
}

func (s *fakeSearcher) Fallback(query string) []search.Result {
	return []search.Result{{
		Title:   "Background: " + query,
		URL:     "https://example.org/fallback",
		Content: "Curated background content covering " + query,
	}}
}

func prose(n int) string {
	sentence := "The gathered evidence describes steady progress across the field along with practical concerns about data quality and deployment that remain active areas of work for researchers and practitioners alike. "
	var b strings.Builder
	for len(strings.Fields(b.String())) < n {
		b.WriteString(sentence)
	}
	return b.String()
}

// happyResponses covers every prompt the pipeline can issue.
func happyResponses() map[string]string {
	return map[string]string{
		prompts.Clarification: "1. What aspects interest you most?\n2. Do you want a technical or general treatment?\n3. Any particular time frame?",
		prompts.Refinement:    "A comprehensive overview of artificial intelligence fundamentals and applications",
		prompts.Decomposition: "1. What is artificial intelligence?\n2. How do AI systems learn?\n3. What are the main applications of AI?\n4. What are the risks of AI?",
		prompts.Summarization: prose(60),
		prompts.FactCheck:     "VERIFIED - consistent with sources",
		prompts.ReportFull:    prose(300),
		prompts.ReportSummary: prose(120),
		prompts.ReportBullets: prose(60),
	}
}

func testWorkflowConfig() config.WorkflowConfig {
	return config.WorkflowConfig{
		MaxClarificationAttempts: 3,
		MaxDecompositionAttempts: 2,
		MaxSearchQuestions:       5,
		MinSearchQuestions:       2,
		SearchBudgetPerDepth:     5 * time.Second,
		MaxSummaryQuestions:      5,
		OutlineMarkerThreshold:   5,
		OutlineLongLineMax:       10,
		OutlineLongLineLength:    100,
		MinReportWords:           150,
		MinSummaryWords:          80,
		MinBulletWords:           40,
	}
}

func newTestOrchestrator(gen *fakeGenerator, searcher *fakeSearcher) (*Orchestrator, registry.Registry) {
	reg := registry.NewMemory(zap.NewNop())
	wf := testWorkflowConfig()
	ag := agents.New(gen, searcher, wf, zap.NewNop())
	return New(reg, ag, wf, zap.NewNop()), reg
}

func TestRunFull_WhatIsAICompletesWithReport(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	_, err := orch.CreateSession(ctx, "s1", "What is AI?", state.DefaultConfig())
	require.NoError(t, err)

	st, err := orch.RunFull(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, state.StatusCompleted, st.Status)
	assert.Equal(t, 1.0, st.Progress)
	assert.NotEmpty(t, st.FinalReport)
	assert.NotEmpty(t, st.SubQuestions)
	assert.NotEmpty(t, st.Summaries)
	assert.Equal(t, "What is AI?", st.OriginalQuery)
}

func TestRunFull_PreservesExistingClarifiedQuery(t *testing.T) {
	orch, reg := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	st, err := orch.CreateSession(ctx, "s1", "AI", state.DefaultConfig())
	require.NoError(t, err)
	st.ClarifiedQuery = "narrow AI in medical imaging"
	require.NoError(t, reg.Update(ctx, st))

	got, err := orch.RunFull(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "narrow AI in medical imaging", got.ClarifiedQuery,
		"full-auto must not clobber a clarified query from an earlier interactive run")
}

func TestRunFull_SearchBackendDownStillCompletes(t *testing.T) {
	orch, _ := newTestOrchestrator(
		&fakeGenerator{responses: happyResponses()},
		&fakeSearcher{err: errors.New("search backend down")},
	)
	ctx := context.Background()

	_, err := orch.CreateSession(ctx, "s1", "What is AI?", state.DefaultConfig())
	require.NoError(t, err)

	st, err := orch.RunFull(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, state.StatusCompleted, st.Status,
		"fallback evidence must carry the pipeline to completion")
	for q, snippets := range st.SearchResults {
		require.NotEmpty(t, snippets, "question %q has no evidence", q)
	}
}

func TestRunFull_EverythingDownReachesReportViaFallbacks(t *testing.T) {
	orch, _ := newTestOrchestrator(
		&fakeGenerator{err: errors.New("llm down")},
		&fakeSearcher{err: errors.New("search down")},
	)
	ctx := context.Background()

	_, err := orch.CreateSession(ctx, "s1", "What is AI?", state.DefaultConfig())
	require.NoError(t, err)

	st, err := orch.RunFull(ctx, "s1")
	require.NoError(t, err)

	// Default sub-questions, fallback evidence, templated summaries, and the
	// assembled fallback report: nothing external worked, yet the state is
	// terminal and carries text.
	assert.True(t, st.Status.Terminal())
	assert.NotEmpty(t, st.SubQuestions)
	assert.NotEmpty(t, st.SearchResults)
	assert.NotEmpty(t, st.Summaries)
	assert.NotEmpty(t, st.Errors)
}

func TestStart_DeepModeBlocksAtClarification(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	_, err := orch.CreateSession(ctx, "s1", "What is AI?", state.DefaultConfig())
	require.NoError(t, err)

	st, err := orch.Start(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, state.StatusClarificationNeeded, st.Status)
	assert.Len(t, st.ClarificationQuestions, 3)
	assert.Equal(t, 0.1, st.Progress)
}

func TestStart_FastModeSynthesizesAnswers(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	cfg := state.DefaultConfig()
	cfg.ResearchSpeed = state.SpeedFast
	_, err := orch.CreateSession(ctx, "s1", "What is AI?", cfg)
	require.NoError(t, err)

	st, err := orch.Start(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, state.StatusQueryRefined, st.Status, "fast mode never waits for answers")
	assert.NotEmpty(t, st.ClarifiedQuery)
	for _, answer := range st.ClarificationAnswers {
		assert.Equal(t, agents.DefaultAnswer, answer)
	}
}

func TestStart_SkipClarification(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	cfg := state.DefaultConfig()
	cfg.SkipClarification = true
	_, err := orch.CreateSession(ctx, "s1", "What is AI?", cfg)
	require.NoError(t, err)

	st, err := orch.Start(ctx, "s1")
	require.NoError(t, err)

	assert.Empty(t, st.ClarificationQuestions)
	assert.Equal(t, state.StatusQueryDecomposed, st.Status,
		"skipping clarification goes straight to decomposition")
	assert.Equal(t, "What is AI?", st.ClarifiedQuery)
}

func TestContinue_ThirdCallSynthesizesDefaultAnswers(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	_, err := orch.CreateSession(ctx, "s1", "What is AI?", state.DefaultConfig())
	require.NoError(t, err)
	_, err = orch.Start(ctx, "s1")
	require.NoError(t, err)

	// Two continues with no answers: still waiting.
	for i := 0; i < 2; i++ {
		st, err := orch.Continue(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, state.StatusClarificationNeeded, st.Status)
	}

	// Third continue exhausts patience: defaults are synthesized and the
	// pipeline moves on.
	st, err := orch.Continue(ctx, "s1")
	require.NoError(t, err)
	assert.NotEqual(t, state.StatusClarificationNeeded, st.Status)
	assert.NotEmpty(t, st.ClarificationAnswers)
	for _, answer := range st.ClarificationAnswers {
		assert.Equal(t, agents.DefaultAnswer, answer)
	}
}

func TestContinue_StepwiseDrivesToCompletion(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	_, err := orch.CreateSession(ctx, "s1", "What is AI?", state.DefaultConfig())
	require.NoError(t, err)
	_, err = orch.Start(ctx, "s1")
	require.NoError(t, err)

	_, err = orch.AddClarificationAnswers(ctx, "s1", map[string]string{
		"What aspects interest you most?": "Foundations",
	})
	require.NoError(t, err)

	var st *state.ResearchState
	for i := 0; i < 10; i++ {
		st, err = orch.Continue(ctx, "s1")
		require.NoError(t, err)
		if st.Status.Terminal() {
			break
		}
	}
	assert.Equal(t, state.StatusCompleted, st.Status)
	assert.NotEmpty(t, st.FinalReport)
}

func TestContinue_TerminalIsNoOp(t *testing.T) {
	orch, reg := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	st, err := orch.CreateSession(ctx, "s1", "q", state.DefaultConfig())
	require.NoError(t, err)
	st.Status = state.StatusCompleted
	st.FinalReport = "done"
	require.NoError(t, reg.Update(ctx, st))

	got, err := orch.Continue(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusCompleted, got.Status)
	assert.Equal(t, "done", got.FinalReport)
}

func TestContinue_UnknownSession(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeGenerator{}, &fakeSearcher{})

	_, err := orch.Continue(context.Background(), "missing")
	assert.ErrorIs(t, err, registry.ErrSessionNotFound)
}

func TestAddClarificationAnswers_RejectedOutsideClarification(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	_, err := orch.CreateSession(ctx, "s1", "q", state.DefaultConfig())
	require.NoError(t, err)

	_, err = orch.AddClarificationAnswers(ctx, "s1", map[string]string{"q?": "a"})
	assert.ErrorIs(t, err, ErrNotAwaitingClarification)
}

func TestCancel_DiscardsSession(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	_, err := orch.CreateSession(ctx, "s1", "q", state.DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, orch.Cancel(ctx, "s1"))

	_, err = orch.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, registry.ErrSessionNotFound)

	err = orch.Cancel(ctx, "s1")
	assert.ErrorIs(t, err, registry.ErrSessionNotFound)
}

func TestRecoveryDispatch_ResumesFromStrongestArtifact(t *testing.T) {
	orch, reg := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	st, err := orch.CreateSession(ctx, "s1", "What is AI?", state.DefaultConfig())
	require.NoError(t, err)

	// A state restored from an old snapshot: unknown status but summaries
	// already present. Recovery must jump straight to report synthesis.
	st.Status = state.Status("legacy_status")
	st.SubQuestions = []string{"what?", "how?", "why?"}
	st.Summaries = map[string]string{
		"what?": prose(90),
		"how?":  prose(90),
	}
	st.FactChecked = map[string]bool{"what?": true, "how?": true}
	require.NoError(t, reg.Update(ctx, st))

	got, err := orch.Continue(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusCompleted, got.Status)
	assert.NotEmpty(t, got.FinalReport)
}

func TestRecoveryDispatch_FinalReportMeansCompleted(t *testing.T) {
	orch, reg := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	st, err := orch.CreateSession(ctx, "s1", "q", state.DefaultConfig())
	require.NoError(t, err)
	st.Status = state.Status("mystery")
	st.FinalReport = prose(200)
	require.NoError(t, reg.Update(ctx, st))

	got, err := orch.Continue(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusCompleted, got.Status)
	assert.Equal(t, 1.0, got.Progress)
}

func TestDrive_StopsAtClarification(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	_, err := orch.CreateSession(ctx, "s1", "What is AI?", state.DefaultConfig())
	require.NoError(t, err)
	_, err = orch.Start(ctx, "s1")
	require.NoError(t, err)

	orch.Drive(ctx, "s1")

	st, err := orch.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusClarificationNeeded, st.Status,
		"the background drive waits for the user instead of forcing answers")
	assert.Zero(t, st.ClarificationAttempts)
}

func TestDrive_RunsToCompletionAfterAnswers(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	_, err := orch.CreateSession(ctx, "s1", "What is AI?", state.DefaultConfig())
	require.NoError(t, err)
	_, err = orch.Start(ctx, "s1")
	require.NoError(t, err)
	_, err = orch.AddClarificationAnswers(ctx, "s1", map[string]string{"scope?": "broad"})
	require.NoError(t, err)

	orch.Drive(ctx, "s1")

	st, err := orch.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusCompleted, st.Status)
	assert.NotEmpty(t, st.FinalReport)
}

func TestRunFull_EmptyStageHaltsWithError(t *testing.T) {
	orch, reg := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	// A resumed session whose evidence is keyed by a question that is no
	// longer part of the decomposition: summarization has nothing to work
	// with, so the full-auto run must halt in a terminal error.
	st, err := orch.CreateSession(ctx, "s1", "What is AI?", state.DefaultConfig())
	require.NoError(t, err)
	st.SubQuestions = []string{"what is it?", "how does it work?", "why now?"}
	st.SearchResults = map[string][]string{
		"an abandoned question?": {"Title: Stale\nURL: https://example.com\nContent: stale"},
	}
	require.NoError(t, reg.Update(ctx, st))

	got, err := orch.RunFull(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, state.StatusError, got.Status)
	assert.NotEmpty(t, got.Errors)
	assert.Empty(t, got.Summaries)
	assert.Empty(t, got.FinalReport, "no later stage runs after the halt")

	persisted, err := orch.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusError, persisted.Status)
}

func TestRecoveryDispatch_ShortReportIsNotCompleted(t *testing.T) {
	orch, reg := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	st, err := orch.CreateSession(ctx, "s1", "What is AI?", state.DefaultConfig())
	require.NoError(t, err)
	st.Status = state.Status("legacy_status")
	st.SubQuestions = []string{"what?", "how?", "why?"}
	st.Summaries = map[string]string{"what?": prose(90), "how?": prose(90)}
	st.FactChecked = map[string]bool{"what?": true, "how?": true}
	st.FinalReport = prose(50) // under the full-report minimum
	require.NoError(t, reg.Update(ctx, st))

	got, err := orch.Continue(ctx, "s1")
	require.NoError(t, err)

	// Recovery must not promote the short text; it resumes from the
	// summaries and regenerates a report that clears the minimum.
	assert.Equal(t, state.StatusCompleted, got.Status)
	assert.NotEqual(t, prose(50), got.FinalReport)
	assert.GreaterOrEqual(t, len(strings.Fields(got.FinalReport)), 150)
}

func TestSessionMetrics_CountOncePerLifecycleEvent(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeGenerator{responses: happyResponses()}, &fakeSearcher{})
	ctx := context.Background()

	created := testutil.ToFloat64(metrics.SessionsCreated)
	cancelled := testutil.ToFloat64(metrics.SessionsCancelled)

	_, err := orch.CreateSession(ctx, "s1", "q", state.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, orch.Cancel(ctx, "s1"))

	assert.Equal(t, created+1, testutil.ToFloat64(metrics.SessionsCreated))
	assert.Equal(t, cancelled+1, testutil.ToFloat64(metrics.SessionsCancelled))
}
