package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/loomlabs/loom/internal/domain"
	"github.com/loomlabs/loom/internal/index"
	"github.com/loomlabs/loom/internal/service"
	"github.com/loomlabs/loom/internal/store"
)

type CapabilityHandler struct {
	svc   *service.CapabilityService
	store domain.CapabilityStore
}

func NewCapabilityHandler(svc *service.CapabilityService, capStore domain.CapabilityStore) *CapabilityHandler {
	return &CapabilityHandler{svc: svc, store: capStore}
}

type upsertCapabilityRequest struct {
	ID          string    `json:"id,omitempty"`
	OwnerID     string    `json:"owner_id"`
	Kind        string    `json:"kind"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Proficiency float64   `json:"proficiency"`
	Tags        []string  `json:"tags"`
	Domain      string    `json:"domain,omitempty"`
}

func (h *CapabilityHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertCapabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner_id")
		return
	}

	c := &domain.Capability{
		OwnerID:     ownerID,
		Kind:        domain.CapabilityKind(req.Kind),
		Name:        req.Name,
		Description: req.Description,
		Embedding:   req.Embedding,
		Proficiency: req.Proficiency,
		Tags:        req.Tags,
		Domain:      req.Domain,
	}
	if req.ID != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}
		c.ID = id
	}

	if err := h.svc.Upsert(r.Context(), c); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCapability):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, index.ErrDimensionMismatch):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to register capability")
		}
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

func (h *CapabilityHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid capability id")
		return
	}

	c, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "capability not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get capability")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CapabilityHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	ownerID, err := uuid.Parse(r.URL.Query().Get("owner_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner_id")
		return
	}

	caps, err := h.store.ListByOwner(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list capabilities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"capabilities": caps})
}

func (h *CapabilityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid capability id")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "capability not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete capability")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
