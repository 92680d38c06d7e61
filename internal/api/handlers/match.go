package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/loomlabs/loom/internal/domain"
	"github.com/loomlabs/loom/internal/service"
	"github.com/loomlabs/loom/internal/store"
)

type MatchHandler struct {
	outcomes *service.OutcomeService
	matches  domain.MatchStore
}

func NewMatchHandler(outcomes *service.OutcomeService, matches domain.MatchStore) *MatchHandler {
	return &MatchHandler{outcomes: outcomes, matches: matches}
}

func (h *MatchHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid match id")
		return
	}

	match, err := h.matches.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "match not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get match")
		return
	}
	writeJSON(w, http.StatusOK, match)
}

type transitionRequest struct {
	Status string `json:"status"`
}

// Transition applies an externally driven status change: accept, reject
// or complete.
func (h *MatchHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid match id")
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !domain.ValidMatchStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	if err := h.outcomes.TransitionMatch(r.Context(), id, domain.MatchStatus(req.Status)); err != nil {
		switch {
		case errors.Is(err, service.ErrMatchNotFound):
			writeError(w, http.StatusNotFound, "match not found")
		case errors.Is(err, domain.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to transition match")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reportOutcomeRequest struct {
	Success       bool   `json:"success"`
	ProblemSolved bool   `json:"problem_solved"`
	Notes         string `json:"notes,omitempty"`
}

// ReportOutcome records how an accepted match actually went and feeds
// the learning calibrator.
func (h *MatchHandler) ReportOutcome(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid match id")
		return
	}

	var req reportOutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome := domain.Outcome{
		Success:       req.Success,
		ProblemSolved: req.ProblemSolved,
		Notes:         req.Notes,
		ReportedAt:    time.Now().UTC(),
	}
	if err := h.outcomes.ReportOutcome(r.Context(), id, outcome); err != nil {
		switch {
		case errors.Is(err, service.ErrMatchNotFound):
			writeError(w, http.StatusNotFound, "match not found")
		case errors.Is(err, service.ErrMatchNotOpen):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to report outcome")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
