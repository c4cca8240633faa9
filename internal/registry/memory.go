package registry

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/openresearch/orchestrator/internal/state"
)

// Memory is the in-process registry. States are stored as deep copies so a
// step executing against a stale pointer can never leak partial mutations to
// concurrent readers; commits happen only through Update.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*state.ResearchState
	logger   *zap.Logger
}

// NewMemory creates an in-memory registry.
func NewMemory(logger *zap.Logger) *Memory {
	return &Memory{
		sessions: make(map[string]*state.ResearchState),
		logger:   logger,
	}
}

func (m *Memory) Create(ctx context.Context, sessionID, query string, cfg state.ResearchConfig) (*state.ResearchState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; exists {
		return nil, ErrDuplicateSession
	}

	st := state.New(sessionID, query, cfg)
	m.sessions[sessionID] = cloneState(st)

	m.logger.Info("Created research session",
		zap.String("session_id", sessionID),
		zap.String("query", query),
	)
	return st, nil
}

func (m *Memory) Get(ctx context.Context, sessionID string) (*state.ResearchState, error) {
	m.mu.RLock()
	st, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneState(st), nil
}

func (m *Memory) Update(ctx context.Context, st *state.ResearchState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[st.SessionID]; !ok {
		// Session was cancelled while the step ran; discard the result.
		return ErrSessionNotFound
	}
	m.sessions[st.SessionID] = cloneState(st)
	return nil
}

func (m *Memory) Cancel(ctx context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(m.sessions, sessionID)

	m.logger.Info("Cancelled research session", zap.String("session_id", sessionID))
	return true, nil
}

func (m *Memory) Close() error { return nil }

// cloneState deep-copies through JSON; session payloads are small and this
// keeps copy semantics identical to the Redis backend's marshal round trip.
func cloneState(st *state.ResearchState) *state.ResearchState {
	data, err := json.Marshal(st)
	if err != nil {
		// ResearchState contains only marshalable fields.
		panic(err)
	}
	var out state.ResearchState
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}
