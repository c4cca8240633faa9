package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CheckStatus represents the result of a health check
type CheckStatus int

const (
	StatusHealthy CheckStatus = iota
	StatusDegraded
	StatusUnhealthy
	StatusUnknown
)

func (s CheckStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// CheckResult contains the result of a health check
type CheckResult struct {
	Status    CheckStatus            `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Duration  time.Duration          `json:"duration"`
	Timestamp time.Time              `json:"timestamp"`
	Component string                 `json:"component"`
	Critical  bool                   `json:"critical"` // Whether failure affects service availability
}

// Checker defines the interface for health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
	IsCritical() bool
	Timeout() time.Duration
}

// OverallHealth summarizes all registered checks.
type OverallHealth struct {
	Status     CheckStatus            `json:"status"`
	Message    string                 `json:"message"`
	Timestamp  time.Time              `json:"timestamp"`
	Duration   time.Duration          `json:"duration"`
	Ready      bool                   `json:"ready"`
	Components map[string]CheckResult `json:"components"`
}

// Manager runs registered checkers and aggregates their results.
type Manager struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	logger   *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		checkers: make(map[string]Checker),
		logger:   logger,
	}
}

func (m *Manager) RegisterChecker(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[checker.Name()] = checker
	m.logger.Info("Registered health checker", zap.String("name", checker.Name()))
}

// GetOverallHealth runs every checker and aggregates. A critical failure
// makes the service unhealthy; a non-critical failure only degrades it.
func (m *Manager) GetOverallHealth(ctx context.Context) OverallHealth {
	start := time.Now()
	m.mu.RLock()
	checkers := make([]Checker, 0, len(m.checkers))
	for _, c := range m.checkers {
		checkers = append(checkers, c)
	}
	m.mu.RUnlock()

	overall := OverallHealth{
		Status:     StatusHealthy,
		Message:    "all checks passing",
		Timestamp:  start,
		Ready:      true,
		Components: make(map[string]CheckResult, len(checkers)),
	}

	for _, c := range checkers {
		result := m.runSingleCheck(ctx, c)
		overall.Components[c.Name()] = result
		switch result.Status {
		case StatusUnhealthy:
			if c.IsCritical() {
				overall.Status = StatusUnhealthy
				overall.Message = c.Name() + " is unhealthy"
				overall.Ready = false
			} else if overall.Status == StatusHealthy {
				overall.Status = StatusDegraded
				overall.Message = c.Name() + " is unhealthy (non-critical)"
			}
		case StatusDegraded:
			if overall.Status == StatusHealthy {
				overall.Status = StatusDegraded
				overall.Message = c.Name() + " is degraded"
			}
		}
	}

	overall.Duration = time.Since(start)
	return overall
}

func (m *Manager) runSingleCheck(ctx context.Context, checker Checker) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checker.Timeout())
	defer cancel()

	done := make(chan CheckResult, 1)
	go func() {
		done <- checker.Check(ctx)
	}()
	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		return CheckResult{
			Status:    StatusUnhealthy,
			Component: checker.Name(),
			Critical:  checker.IsCritical(),
			Error:     "health check timed out",
			Timestamp: time.Now(),
			Duration:  checker.Timeout(),
		}
	}
}

// IsReady reports whether all critical checks pass.
func (m *Manager) IsReady(ctx context.Context) bool {
	return m.GetOverallHealth(ctx).Ready
}

// IsLive reports process liveness. The process serving the request is alive.
func (m *Manager) IsLive(ctx context.Context) bool {
	return true
}
