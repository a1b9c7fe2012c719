package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uroborus2s/campus-sync/internal/logger"
	"github.com/uroborus2s/campus-sync/internal/models"
	syncengine "github.com/uroborus2s/campus-sync/internal/sync"
)

type startSyncRequest struct {
	CourseIDs []string `json:"courseIds,omitempty"`
}

type softDeleteRequest struct {
	OccurrenceIDs []string `json:"occurrenceIds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartSync(w http.ResponseWriter, r *http.Request) {
	term := chi.URLParam(r, "term")

	var req startSyncRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, models.NewValidationError("body", "invalid JSON: %v", err))
			return
		}
	}

	rootID, err := s.engine.StartFullSync(r.Context(), term, syncengine.Options{CourseIDs: req.CourseIDs})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"rootTaskId": rootID})
}

func (s *Server) handleIncrementalSync(w http.ResponseWriter, r *http.Request) {
	term := chi.URLParam(r, "term")
	if err := s.engine.IncrementalSync(r.Context(), term); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"term": term})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.SyncStatus(r.Context(), chi.URLParam(r, "rootTaskID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCancelSync(w http.ResponseWriter, r *http.Request) {
	cancelled, err := s.engine.CancelSync(r.Context(), chi.URLParam(r, "rootTaskID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cancelledTasks": cancelled})
}

func (s *Server) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	var req softDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.NewValidationError("body", "invalid JSON: %v", err))
		return
	}
	if len(req.OccurrenceIDs) == 0 {
		writeError(w, models.NewValidationError("occurrenceIds", "required"))
		return
	}
	if err := s.aggregator.SoftDelete(r.Context(), req.OccurrenceIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"occurrences": len(req.OccurrenceIDs)})
}

func (s *Server) handleSweepSoftDelete(w http.ResponseWriter, r *http.Request) {
	term := chi.URLParam(r, "term")
	if err := s.aggregator.CompleteSoftDelete(r.Context(), term); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"term": term})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error(context.Background(), "Failed to encode response", "error", err)
	}
}

// writeError maps the error taxonomy onto HTTP status codes: validation 400,
// not found 404, everything else 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var verr *models.ValidationError
	switch {
	case models.IsNotFound(err):
		status = http.StatusNotFound
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
