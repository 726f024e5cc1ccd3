package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/scrypster/mnemo/internal/engine"
	"github.com/scrypster/mnemo/internal/storage"
	"github.com/scrypster/mnemo/pkg/types"
)

// Handlers contains the HTTP handlers for the memory API.
type Handlers struct {
	engine *engine.Engine
	hub    *WebSocketHub
}

// NewHandlers creates the handler set. hub may be nil.
func NewHandlers(eng *engine.Engine, hub *WebSocketHub) *Handlers {
	return &Handlers{engine: eng, hub: hub}
}

type recallRequest struct {
	AgentID string `json:"agent_id"`
	Query   string `json:"query"`
	Limit   int    `json:"limit,omitempty"`
}

// CreateMemory handles POST /api/memories.
func (h *Handlers) CreateMemory(w http.ResponseWriter, r *http.Request) {
	var req engine.StoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.engine.Store(r.Context(), &req)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("server: store failed id=%s: %v", RequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "store failed")
		return
	}

	if h.hub != nil && result.Action != engine.ActionSkipped {
		h.hub.Broadcast(map[string]interface{}{
			"type":     "memory_stored",
			"entry_id": result.EntryID,
			"agent_id": req.AgentID,
		})
	}

	status := http.StatusCreated
	if result.Action == engine.ActionSkipped {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// GetMemory handles GET /api/memories/{id}.
func (h *Handlers) GetMemory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	entry, err := h.engine.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "memory not found")
			return
		}
		log.Printf("server: get failed id=%s: %v", RequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Recall handles POST /api/recall.
func (h *Handlers) Recall(w http.ResponseWriter, r *http.Request) {
	var req recallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	results, err := h.engine.Recall(r.Context(), req.AgentID, req.Query, req.Limit)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("server: recall failed id=%s: %v", RequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "recall failed")
		return
	}
	if results == nil {
		results = []engine.RecalledEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// Health handles GET /api/health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Health(r.Context())
	if err != nil {
		log.Printf("server: health report failed id=%s: %v", RequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "health report failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListMaintenanceRuns handles GET /api/maintenance.
func (h *Handlers) ListMaintenanceRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 20)
	runs, err := h.engine.MaintenanceHistory(r.Context(), limit)
	if err != nil {
		log.Printf("server: maintenance history failed id=%s: %v", RequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "maintenance history failed")
		return
	}
	if runs == nil {
		runs = []types.MaintenanceRun{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// RunMaintenance handles POST /api/maintenance/run. Websocket delivery of
// the maintenance_complete event happens through the event spool relay,
// same as for a pass run from the CLI, so clients see it exactly once.
func (h *Handlers) RunMaintenance(w http.ResponseWriter, r *http.Request) {
	run := h.engine.RunMaintenance(r.Context())
	writeJSON(w, http.StatusOK, run)
}

// ListConflicts handles GET /api/conflicts.
func (h *Handlers) ListConflicts(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	records, err := h.engine.Conflicts(r.Context(), limit)
	if err != nil {
		log.Printf("server: conflict list failed id=%s: %v", RequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "conflict list failed")
		return
	}
	if records == nil {
		records = []types.ConflictRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conflicts": records})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: response encode failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func isValidationError(err error) bool {
	return errors.Is(err, types.ErrMissingAgent) ||
		errors.Is(err, types.ErrMissingContent) ||
		errors.Is(err, types.ErrContentTooLong) ||
		errors.Is(err, types.ErrInvalidImportance) ||
		errors.Is(err, types.ErrInvalidVisibility) ||
		errors.Is(err, storage.ErrInvalidInput)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
