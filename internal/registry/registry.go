package registry

import (
	"context"
	"errors"

	"github.com/openresearch/orchestrator/internal/state"
)

var (
	// ErrSessionNotFound is returned when a session doesn't exist. It is a
	// request error; it is never written into any session's state.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateSession is returned when creating an id that already
	// exists. Callers generate unique ids upstream; collisions are not
	// auto-resolved.
	ErrDuplicateSession = errors.New("session already exists")
)

// Registry is the keyed store of research state. It is the only shared
// mutable structure in the system: operations are atomic per session id and
// require no cross-session locking.
type Registry interface {
	// Create builds a fresh state with status "initialized" and progress 0,
	// merging cfg over defaults. Fails with ErrDuplicateSession.
	Create(ctx context.Context, sessionID, query string, cfg state.ResearchConfig) (*state.ResearchState, error)

	// Get returns the latest committed state or ErrSessionNotFound.
	Get(ctx context.Context, sessionID string) (*state.ResearchState, error)

	// Update commits a mutated state. After cancellation it fails with
	// ErrSessionNotFound so in-flight step results are discarded, never
	// written back.
	Update(ctx context.Context, st *state.ResearchState) error

	// Cancel removes the entry and reports whether it existed. It gives no
	// in-flight-step cancellation guarantee.
	Cancel(ctx context.Context, sessionID string) (bool, error)

	// Close releases backend resources.
	Close() error
}
