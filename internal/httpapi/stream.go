package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openresearch/orchestrator/internal/registry"
	"github.com/openresearch/orchestrator/internal/state"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // Dev-friendly, secure via proxy in prod
}

const (
	streamPollInterval = 500 * time.Millisecond
	streamPingInterval = 20 * time.Second
	streamReadDeadline = 60 * time.Second
)

// StreamHandler pushes progress updates for a session over a websocket.
// The registry has no pub/sub, so updates are polled; only changed
// snapshots are sent.
type StreamHandler struct {
	reg    registry.Registry
	logger *zap.Logger
}

func NewStreamHandler(reg registry.Registry, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{reg: reg, logger: logger}
}

// RegisterRoutes registers the /research/{id}/ws endpoint.
func (h *StreamHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /research/{id}/ws", h.handleWS)
}

// streamEvent is one progress update on the wire.
type streamEvent struct {
	SessionID string       `json:"session_id"`
	Status    state.Status `json:"status,omitempty"`
	Event     string       `json:"event,omitempty"`
	Progress  float64      `json:"progress"`
	Log       []string     `json:"log,omitempty"`
	Final     bool         `json:"final"`
}

func (h *StreamHandler) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if _, err := h.reg.Get(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(streamReadDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamReadDeadline))
		return nil
	})

	// Reader pump (discard client messages)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	poll := time.NewTicker(streamPollInterval)
	defer poll.Stop()
	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	var lastStatus state.Status
	var lastProgress float64
	var sentLogLines int

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-poll.C:
			st, err := h.reg.Get(r.Context(), sessionID)
			if err != nil {
				// Cancelled mid-stream; tell the client and stop. The
				// session has no status anymore, so this is an event,
				// not a state.
				_ = conn.WriteJSON(streamEvent{SessionID: sessionID, Event: "cancelled", Final: true})
				return
			}
			if st.Status == lastStatus && st.Progress == lastProgress && len(st.Log) == sentLogLines {
				continue
			}
			ev := streamEvent{
				SessionID: sessionID,
				Status:    st.Status,
				Progress:  st.Progress,
				Final:     st.Status.Terminal(),
			}
			if len(st.Log) > sentLogLines {
				ev.Log = st.Log[sentLogLines:]
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			lastStatus = st.Status
			lastProgress = st.Progress
			sentLogLines = len(st.Log)
			if ev.Final {
				return
			}
		}
	}
}

// detachedContext returns a context for work that must outlive the request.
func detachedContext(_ *http.Request) context.Context {
	return context.Background()
}
