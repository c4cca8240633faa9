package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/openresearch/orchestrator/internal/agents"
	"github.com/openresearch/orchestrator/internal/config"
	"github.com/openresearch/orchestrator/internal/metrics"
	"github.com/openresearch/orchestrator/internal/registry"
	"github.com/openresearch/orchestrator/internal/state"
)

// ErrNotAwaitingClarification is returned when clarification answers are
// submitted to a session that is not waiting for them.
var ErrNotAwaitingClarification = errors.New("session is not awaiting clarification")

// maxDriveSteps bounds the background drive loop. The pipeline has six
// stages; the bound leaves room for stall forcing and recovery without
// letting a pathological state spin forever.
const maxDriveSteps = 16

// Orchestrator coordinates agents over persisted research sessions. It owns
// no per-session state of its own: every entry point loads the session from
// the registry, mutates a private copy, and writes it back, so sessions can
// be driven from any process sharing the registry.
type Orchestrator struct {
	reg    registry.Registry
	agents *agents.Agents
	wf     config.WorkflowConfig
	logger *zap.Logger
}

func New(reg registry.Registry, ag *agents.Agents, wf config.WorkflowConfig, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{reg: reg, agents: ag, wf: wf, logger: logger}
}

// CreateSession registers a new session in the initialized state.
func (o *Orchestrator) CreateSession(ctx context.Context, sessionID, query string, cfg state.ResearchConfig) (*state.ResearchState, error) {
	st, err := o.reg.Create(ctx, sessionID, query, cfg)
	if err != nil {
		return nil, err
	}
	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Inc()
	o.logger.Info("Research session created",
		zap.String("session_id", sessionID),
		zap.String("speed", st.Config.ResearchSpeed),
		zap.Int("depth", st.Config.DepthAndBreadth),
	)
	return st, nil
}

// GetSession returns the current snapshot of a session.
func (o *Orchestrator) GetSession(ctx context.Context, sessionID string) (*state.ResearchState, error) {
	return o.reg.Get(ctx, sessionID)
}

// Cancel removes a session. In-flight steps for the session discard their
// results when they try to persist against the deleted key.
func (o *Orchestrator) Cancel(ctx context.Context, sessionID string) error {
	st, err := o.reg.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	wasActive := !st.Status.Terminal()
	found, err := o.reg.Cancel(ctx, sessionID)
	if err != nil {
		return err
	}
	if !found {
		return registry.ErrSessionNotFound
	}
	metrics.SessionsCancelled.Inc()
	if wasActive {
		metrics.SessionsActive.Dec()
	}
	o.logger.Info("Research session cancelled", zap.String("session_id", sessionID))
	return nil
}

// AddClarificationAnswers records user answers for a session that is waiting
// on them. Submissions in any other state are rejected so that answers cannot
// silently land on a session that already moved past clarification.
func (o *Orchestrator) AddClarificationAnswers(ctx context.Context, sessionID string, answers map[string]string) (*state.ResearchState, error) {
	st, err := o.reg.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if st.Status != state.StatusClarificationNeeded {
		return nil, fmt.Errorf("%w: status is %s", ErrNotAwaitingClarification, st.Status)
	}
	if st.ClarificationAnswers == nil {
		st.ClarificationAnswers = make(map[string]string, len(answers))
	}
	for q, a := range answers {
		st.ClarificationAnswers[q] = a
	}
	st.ClarificationAttempts++
	st.Logf("Received %d clarification answers", len(answers))
	if err := o.persist(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Start runs the first step of a session. With skip_clarification set the
// clarification stage is bypassed entirely; in fast mode the session never
// blocks waiting for answers and moves on with synthesized defaults.
func (o *Orchestrator) Start(ctx context.Context, sessionID string) (*state.ResearchState, error) {
	st, err := o.reg.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if st.Status == state.StatusInitialized && st.Config.SkipClarification {
		if st.ClarifiedQuery == "" {
			st.ClarifiedQuery = st.OriginalQuery
		}
		st.Status = state.StatusQueryRefined
		st.AdvanceProgress(0.2)
		st.Logf("Skipping clarification per session config")
	}

	o.runStep(ctx, st, "stepwise")

	if st.Status == state.StatusClarificationNeeded &&
		len(st.ClarificationAnswers) == 0 &&
		st.Config.ResearchSpeed == state.SpeedFast {
		agents.SynthesizeDefaultAnswers(st)
		o.runStep(ctx, st, "stepwise")
	}

	if err := o.persist(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Continue advances a session by one step. Stalled sessions get unstuck
// here: repeated continues at clarification_needed eventually synthesize
// default answers, exhausted decomposition falls back to a bounded evidence
// pass, and a step that leaves the status unchanged is forced once more
// before recovery dispatch takes over.
func (o *Orchestrator) Continue(ctx context.Context, sessionID string) (*state.ResearchState, error) {
	st, err := o.reg.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if st.Status.Terminal() {
		return st, nil
	}

	if st.Status == state.StatusClarificationNeeded && len(st.ClarificationAnswers) == 0 {
		st.ClarificationAttempts++
		if st.ClarificationAttempts < o.wf.MaxClarificationAttempts {
			st.Logf("Still awaiting clarification answers (attempt %d)", st.ClarificationAttempts)
			if err := o.persist(ctx, st); err != nil {
				return nil, err
			}
			return st, nil
		}
		st.Logf("No clarification answers after %d attempts, proceeding with defaults", st.ClarificationAttempts)
		agents.SynthesizeDefaultAnswers(st)
	}

	if st.Status == state.StatusQueryDecomposed && st.DecompositionAttempts >= o.wf.MaxDecompositionAttempts {
		st.Logf("Decomposition attempts exhausted, forcing bounded evidence pass")
		metrics.StallsForced.Inc()
		o.agents.GatherFallbackOnly(ctx, st)
		if err := o.persist(ctx, st); err != nil {
			return nil, err
		}
		return st, nil
	}

	pre := st.Status
	o.runStep(ctx, st, "stepwise")

	if st.Status == pre && !st.Status.Terminal() {
		metrics.StallsForced.Inc()
		st.Logf("Step left status at %s, forcing one more dispatch", pre)
		o.runStep(ctx, st, "stepwise")
		if st.Status == pre {
			o.recoveryDispatch(ctx, st)
			if st.Status != pre && st.Status.Terminal() {
				o.noteTerminal(st)
			}
		}
	}

	if err := o.persist(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// RunFull executes the whole pipeline in one call, skipping clarification
// and fast-forwarding past stages whose artifacts already exist. Unlike the
// stepwise path, an empty artifact after a stage (and its fallbacks) halts
// the session with an error rather than stalling.
func (o *Orchestrator) RunFull(ctx context.Context, sessionID string) (*state.ResearchState, error) {
	st, err := o.reg.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if st.Status.Terminal() {
		return st, nil
	}
	st.Logf("Running full research workflow")

	if o.reportComplete(st) {
		st.Status = state.StatusCompleted
		st.AdvanceProgress(1.0)
		o.noteTerminal(st)
		if err := o.persist(ctx, st); err != nil {
			return nil, err
		}
		return st, nil
	}

	// Clarification is always bypassed in full-auto mode, but a clarified
	// query produced by an earlier interactive run is kept.
	if st.ClarifiedQuery == "" {
		st.ClarifiedQuery = st.OriginalQuery
	}
	st.Status = state.StatusQueryRefined
	st.AdvanceProgress(0.2)

	stages := []struct {
		name  string
		skip  func() bool
		run   func()
		empty func() bool
	}{
		{
			name: "decomposition",
			skip: func() bool { return st.HasSubQuestions() },
			run:  func() { o.runStep(ctx, st, "auto") },
			empty: func() bool {
				return len(st.SubQuestions) == 0
			},
		},
		{
			name: "search",
			skip: func() bool { return len(st.SearchResults) > 0 },
			run: func() {
				st.Status = state.StatusQueryDecomposed
				o.runStep(ctx, st, "auto")
			},
			empty: func() bool { return len(st.SearchResults) == 0 },
		},
		{
			name: "summarization",
			skip: func() bool { return len(st.Summaries) > 0 },
			run: func() {
				st.Status = state.StatusSearchCompleted
				o.runStep(ctx, st, "auto")
			},
			empty: func() bool { return len(st.Summaries) == 0 },
		},
		{
			name: "report",
			skip: func() bool { return false },
			run: func() {
				st.Status = state.StatusSummariesCompleted
				o.runStep(ctx, st, "auto")
			},
			empty: func() bool { return st.FinalReport == "" },
		},
	}

	for _, stage := range stages {
		if stage.skip() {
			st.Logf("Skipping %s stage, artifacts already present", stage.name)
			continue
		}
		stage.run()
		if st.Status == state.StatusError {
			break
		}
		if stage.empty() {
			st.RecordError("Stage %s produced no output", stage.name)
			st.Status = state.StatusError
			o.noteTerminal(st)
			break
		}
		if err := o.persist(ctx, st); err != nil {
			return nil, err
		}
	}

	if st.Status != state.StatusError && st.Status != state.StatusCompleted && o.reportComplete(st) {
		st.Status = state.StatusCompleted
		st.AdvanceProgress(1.0)
		o.noteTerminal(st)
	}
	if err := o.persist(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Drive advances a session in the background until it reaches a terminal
// state or blocks waiting for clarification answers. The registry read at
// the top of each iteration doubles as a cancellation checkpoint: a
// cancelled session disappears and the loop exits without persisting.
func (o *Orchestrator) Drive(ctx context.Context, sessionID string) {
	for i := 0; i < maxDriveSteps; i++ {
		st, err := o.reg.Get(ctx, sessionID)
		if err != nil {
			if !errors.Is(err, registry.ErrSessionNotFound) {
				o.logger.Warn("Drive loop aborting",
					zap.String("session_id", sessionID), zap.Error(err))
			}
			return
		}
		if st.Status.Terminal() {
			return
		}
		if st.Status == state.StatusClarificationNeeded && len(st.ClarificationAnswers) == 0 {
			return
		}
		if _, err := o.Continue(ctx, sessionID); err != nil {
			if !errors.Is(err, registry.ErrSessionNotFound) {
				o.logger.Warn("Drive step failed",
					zap.String("session_id", sessionID), zap.Error(err))
			}
			return
		}
	}
	o.logger.Warn("Drive loop hit step bound without reaching a terminal state",
		zap.String("session_id", sessionID))
}

// persist writes the session back. A missing key means the session was
// cancelled while the step ran; the result is discarded.
func (o *Orchestrator) persist(ctx context.Context, st *state.ResearchState) error {
	if err := o.reg.Update(ctx, st); err != nil {
		if errors.Is(err, registry.ErrSessionNotFound) {
			o.logger.Info("Discarding step result for cancelled session",
				zap.String("session_id", st.SessionID))
		}
		return err
	}
	return nil
}
