package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openresearch/orchestrator/internal/config"
	"github.com/openresearch/orchestrator/internal/search"
	"github.com/openresearch/orchestrator/internal/state"
)

// stubGenerator serves canned responses keyed by prompt name.
type stubGenerator struct {
	mu        sync.Mutex
	responses map[string]string
	sequences map[string][]string
	err       error
	calls     map[string]int
}

func newStubGenerator(responses map[string]string) *stubGenerator {
	return &stubGenerator{responses: responses, calls: make(map[string]int)}
}

// respondInOrder makes consecutive calls for a prompt return successive
// values, falling through to the last one when exhausted.
func (g *stubGenerator) respondInOrder(promptName string, values ...string) {
	if g.sequences == nil {
		g.sequences = make(map[string][]string)
	}
	g.sequences[promptName] = values
}

func (g *stubGenerator) Generate(_ context.Context, promptName string, _ map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[promptName]++
	if g.err != nil {
		return "", g.err
	}
	if seq, ok := g.sequences[promptName]; ok {
		idx := g.calls[promptName] - 1
		if idx >= len(seq) {
			idx = len(seq) - 1
		}
		return seq[idx], nil
	}
	if r, ok := g.responses[promptName]; ok {
		return r, nil
	}
	return "", fmt.Errorf("no canned response for prompt %q", promptName)
}

func (g *stubGenerator) callCount(promptName string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[promptName]
}

// stubSearcher serves fixed results, or fails every search.
type stubSearcher struct {
	mu            sync.Mutex
	results       []search.Result
	err           error
	delay         time.Duration
	searchCalls   int
	fallbackCalls int
}

func (s *stubSearcher) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	s.mu.Lock()
	s.searchCalls++
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if maxResults > 0 && len(s.results) > maxResults {
		return s.results[:maxResults], nil
	}
	return s.results, nil
}

func (s *stubSearcher) Fallback(query string) []search.Result {
	s.mu.Lock()
	s.fallbackCalls++
	s.mu.Unlock()
	return []search.Result{{
		Title:   "Background: " + query,
		URL:     "https://example.org/fallback",
		Content: "Curated background content covering " + query,
	}}
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

func newTestAgents(gen *stubGenerator, searcher *stubSearcher) *Agents {
	return New(gen, searcher, testWorkflowConfig(), zap.NewNop())
}

func newTestState(query string) *state.ResearchState {
	return state.New("test-session", query, state.DefaultConfig())
}
