package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hkevin01/poe-archive/internal/model"
	syncengine "github.com/hkevin01/poe-archive/internal/sync"
	"github.com/hkevin01/poe-archive/pkg/logger"
)

// SyncHandler triggers reconciliation runs and reports their progress.
type SyncHandler struct {
	engine *syncengine.Engine
	logger *logger.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(engine *syncengine.Engine, log *logger.Logger) *SyncHandler {
	return &SyncHandler{engine: engine, logger: log}
}

type triggerRequest struct {
	Scope string `json:"scope"`
}

// Trigger handles POST /api/v1/sync. The optional body selects a scope;
// with no body the global scope is synced. A run already in flight for
// the scope is returned as-is instead of starting a second one.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Scope == "" {
		req.Scope = model.ScopeGlobal
	}

	run, already := h.engine.Trigger(r.Context(), req.Scope)
	snap := run.Snapshot()
	snap.AlreadyRunning = already

	status := http.StatusAccepted
	if already {
		status = http.StatusOK
	}
	writeJSON(w, status, snap)
}

// Status handles GET /api/v1/sync/{runID}
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, ok := h.engine.Run(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	writeJSON(w, http.StatusOK, run.Snapshot())
}

// Cancel handles POST /api/v1/sync/{runID}/cancel. Progress already
// merged stays committed; the run finishes as partially failed.
func (h *SyncHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, ok := h.engine.Run(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	if run.Snapshot().State.Terminal() {
		writeError(w, http.StatusConflict, "run already finished")
		return
	}

	run.Cancel()
	writeJSON(w, http.StatusAccepted, run.Snapshot())
}
