package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openresearch/orchestrator/internal/registry"
	"github.com/openresearch/orchestrator/internal/state"
	"github.com/openresearch/orchestrator/internal/workflow"
)

// ResearchHandler exposes the research workflow over HTTP.
type ResearchHandler struct {
	orch   *workflow.Orchestrator
	logger *zap.Logger
}

// NewResearchHandler creates a new handler.
func NewResearchHandler(orch *workflow.Orchestrator, logger *zap.Logger) *ResearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResearchHandler{orch: orch, logger: logger}
}

// RegisterRoutes registers research routes on the provided mux.
func (h *ResearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /research", h.handleCreate)
	mux.HandleFunc("GET /research/{id}", h.handleGet)
	mux.HandleFunc("POST /research/{id}/clarify", h.handleClarify)
	mux.HandleFunc("POST /research/{id}/continue", h.handleContinue)
	mux.HandleFunc("POST /research/{id}/full", h.handleFull)
	mux.HandleFunc("DELETE /research/{id}", h.handleCancel)
}

// createResearchRequest is the expected payload for starting a session.
type createResearchRequest struct {
	Query  string                `json:"query"`
	Config *state.ResearchConfig `json:"config,omitempty"`
}

// clarifyRequest carries the user's answers keyed by clarification question.
type clarifyRequest struct {
	Answers map[string]string `json:"answers"`
}

// sessionResponse is the session snapshot returned by every endpoint.
type sessionResponse struct {
	SessionID              string            `json:"session_id"`
	Status                 state.Status      `json:"status"`
	OriginalQuery          string            `json:"original_query"`
	ClarifiedQuery         string            `json:"clarified_query,omitempty"`
	ClarificationQuestions []string          `json:"clarification_questions,omitempty"`
	SubQuestions           []string          `json:"sub_questions,omitempty"`
	Summaries              map[string]string `json:"summaries,omitempty"`
	FactChecked            map[string]bool   `json:"fact_checked,omitempty"`
	FinalReport            string            `json:"final_report,omitempty"`
	Progress               float64           `json:"progress"`
	Errors                 []string          `json:"errors,omitempty"`
	Log                    []string          `json:"log,omitempty"`
}

func snapshot(st *state.ResearchState) sessionResponse {
	resp := sessionResponse{
		SessionID:      st.SessionID,
		Status:         st.Status,
		OriginalQuery:  st.OriginalQuery,
		ClarifiedQuery: st.ClarifiedQuery,
		SubQuestions:   st.SubQuestions,
		Summaries:      st.Summaries,
		FactChecked:    st.FactChecked,
		Progress:       st.Progress,
		Errors:         st.Errors,
		Log:            st.Log,
	}
	// Questions are pending input only while clarification is open, and the
	// report is the session's result only once it is complete.
	if st.Status == state.StatusClarificationNeeded {
		resp.ClarificationQuestions = st.ClarificationQuestions
	}
	if st.Status == state.StatusCompleted {
		resp.FinalReport = st.FinalReport
	}
	return resp
}

func (h *ResearchHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createResearchRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.logger.Warn("create decode error", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	cfg := state.DefaultConfig()
	if req.Config != nil {
		cfg = *req.Config
	}
	cfg.Normalize()

	sessionID := uuid.NewString()
	if _, err := h.orch.CreateSession(r.Context(), sessionID, req.Query, cfg); err != nil {
		h.writeOrchestratorError(w, err)
		return
	}

	st, err := h.orch.Start(r.Context(), sessionID)
	if err != nil {
		h.writeOrchestratorError(w, err)
		return
	}

	// Anything still runnable continues in the background; the client polls
	// or opens the websocket stream.
	if !st.Status.Terminal() &&
		!(st.Status == state.StatusClarificationNeeded && len(st.ClarificationAnswers) == 0) {
		go h.orch.Drive(detachedContext(r), sessionID)
	}

	writeJSON(w, http.StatusCreated, snapshot(st))
}

func (h *ResearchHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	st, err := h.orch.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot(st))
}

func (h *ResearchHandler) handleClarify(w http.ResponseWriter, r *http.Request) {
	var req clarifyRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Answers) == 0 {
		writeError(w, http.StatusBadRequest, "answers are required")
		return
	}

	sessionID := r.PathValue("id")
	st, err := h.orch.AddClarificationAnswers(r.Context(), sessionID, req.Answers)
	if err != nil {
		h.writeOrchestratorError(w, err)
		return
	}

	go h.orch.Drive(detachedContext(r), sessionID)
	writeJSON(w, http.StatusOK, snapshot(st))
}

func (h *ResearchHandler) handleContinue(w http.ResponseWriter, r *http.Request) {
	st, err := h.orch.Continue(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot(st))
}

func (h *ResearchHandler) handleFull(w http.ResponseWriter, r *http.Request) {
	st, err := h.orch.RunFull(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot(st))
}

func (h *ResearchHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if err := h.orch.Cancel(r.Context(), sessionID); err != nil {
		h.writeOrchestratorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"status":     "cancelled",
	})
}

func (h *ResearchHandler) writeOrchestratorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, registry.ErrDuplicateSession):
		writeError(w, http.StatusConflict, "session already exists")
	case errors.Is(err, workflow.ErrNotAwaitingClarification):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("research handler error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// StartResearchServer starts the research API server with the standard
// timeouts. The websocket route is exempt from the write timeout via the
// server's long write deadline being applied per-connection instead.
func StartResearchServer(port int, orch *workflow.Orchestrator, reg registry.Registry, logger *zap.Logger) *http.Server {
	handler := NewResearchHandler(orch, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	NewStreamHandler(reg, logger).RegisterRoutes(mux)
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		logger.Info("Starting research API server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Research API server failed", zap.Error(err))
		}
	}()
	return srv
}
