package state

import (
	"fmt"
	"time"
)

// Status is the workflow state of a research session. The dispatcher switches
// exhaustively over these values; nothing else is a legal status.
type Status string

const (
	StatusInitialized         Status = "initialized"
	StatusClarificationNeeded Status = "clarification_needed"
	StatusQueryRefined        Status = "query_refined"
	StatusQueryDecomposed     Status = "query_decomposed"
	StatusSearchCompleted     Status = "search_completed"
	StatusSummariesCompleted  Status = "summaries_completed"
	StatusCompleted           Status = "completed"
	StatusError               Status = "error"
)

// Terminal reports whether no further steps will run for this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Known reports whether s is one of the defined statuses.
func (s Status) Known() bool {
	switch s {
	case StatusInitialized, StatusClarificationNeeded, StatusQueryRefined,
		StatusQueryDecomposed, StatusSearchCompleted, StatusSummariesCompleted,
		StatusCompleted, StatusError:
		return true
	}
	return false
}

// Research speed options.
const (
	SpeedFast = "fast"
	SpeedDeep = "deep"
)

// Output format options.
const (
	FormatFullReport       = "full_report"
	FormatExecutiveSummary = "executive_summary"
	FormatBulletList       = "bullet_list"
)

// ResearchConfig holds the immutable per-session knobs supplied at creation.
type ResearchConfig struct {
	ResearchSpeed     string `json:"research_speed"`
	OutputFormat      string `json:"output_format"`
	DepthAndBreadth   int    `json:"depth_and_breadth"`
	SkipClarification bool   `json:"skip_clarification"`
}

// DefaultConfig returns the baseline configuration merged under user input.
func DefaultConfig() ResearchConfig {
	return ResearchConfig{
		ResearchSpeed:   SpeedDeep,
		OutputFormat:    FormatFullReport,
		DepthAndBreadth: 3,
	}
}

// Normalize clamps and defaults fields so downstream code can trust them.
func (c *ResearchConfig) Normalize() {
	switch c.ResearchSpeed {
	case SpeedFast, SpeedDeep:
	default:
		c.ResearchSpeed = SpeedDeep
	}
	switch c.OutputFormat {
	case FormatFullReport, FormatExecutiveSummary, FormatBulletList:
	default:
		c.OutputFormat = FormatFullReport
	}
	if c.DepthAndBreadth < 1 {
		c.DepthAndBreadth = 3
	}
	if c.DepthAndBreadth > 5 {
		c.DepthAndBreadth = 5
	}
}

// ResearchState is the single mutable aggregate passed through every workflow
// step. It is the unit of persistence; exactly one agent mutates it per step.
type ResearchState struct {
	SessionID      string         `json:"session_id"`
	OriginalQuery  string         `json:"original_query"`
	ClarifiedQuery string         `json:"clarified_query,omitempty"`
	Config         ResearchConfig `json:"config"`

	ClarificationQuestions []string          `json:"clarification_questions,omitempty"`
	ClarificationAnswers   map[string]string `json:"clarification_answers,omitempty"`
	SubQuestions           []string          `json:"sub_questions,omitempty"`
	SearchResults          map[string][]string `json:"search_results,omitempty"`
	Summaries              map[string]string   `json:"summaries,omitempty"`
	FactChecked            map[string]bool     `json:"fact_checked,omitempty"`
	FinalReport            string              `json:"final_report,omitempty"`

	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`

	Errors []string `json:"errors"`
	Log    []string `json:"log"`

	ClarificationAttempts int `json:"clarification_attempts"`
	DecompositionAttempts int `json:"decomposition_attempts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New builds the initial state for a session.
func New(sessionID, query string, cfg ResearchConfig) *ResearchState {
	cfg.Normalize()
	now := time.Now()
	return &ResearchState{
		SessionID:     sessionID,
		OriginalQuery: query,
		Config:        cfg,
		Status:        StatusInitialized,
		Progress:      0.0,
		Errors:        []string{},
		Log:           []string{"Session initialized with query: " + query},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Logf appends a human-readable trace entry. The log is append-only and is
// never read by workflow logic, only by observers.
func (s *ResearchState) Logf(format string, args ...interface{}) {
	s.Log = append(s.Log, fmt.Sprintf(format, args...))
	s.UpdatedAt = time.Now()
}

// RecordError appends to the error trail. Recording an error does not by
// itself make the session terminal; only exhausted recovery does.
func (s *ResearchState) RecordError(format string, args ...interface{}) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
	s.UpdatedAt = time.Now()
}

// AdvanceProgress raises progress to p, never lowering it.
func (s *ResearchState) AdvanceProgress(p float64) {
	if p > 1.0 {
		p = 1.0
	}
	if p > s.Progress {
		s.Progress = p
	}
}

// EffectiveQuery is the clarified query when set, else the original.
func (s *ResearchState) EffectiveQuery() string {
	if s.ClarifiedQuery != "" {
		return s.ClarifiedQuery
	}
	return s.OriginalQuery
}

// HasQuestions reports whether the clarification question list is already
// valid, in which case regeneration must be skipped.
func (s *ResearchState) HasQuestions() bool {
	return len(s.ClarificationQuestions) >= 2
}

// HasSubQuestions reports whether decomposition output is already valid.
func (s *ResearchState) HasSubQuestions() bool {
	return len(s.SubQuestions) >= 3
}
