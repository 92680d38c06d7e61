package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/loomlabs/loom/internal/domain"
	"github.com/loomlabs/loom/internal/service"
	"github.com/loomlabs/loom/internal/store"
)

type NeedHandler struct {
	matcher      *service.MatchService
	embedder     domain.EmbeddingClient
	needs        domain.NeedStore
	matches      domain.MatchStore
	capabilities domain.CapabilityStore
}

func NewNeedHandler(
	matcher *service.MatchService,
	embedder domain.EmbeddingClient,
	needs domain.NeedStore,
	matches domain.MatchStore,
	capabilities domain.CapabilityStore,
) *NeedHandler {
	return &NeedHandler{
		matcher:      matcher,
		embedder:     embedder,
		needs:        needs,
		matches:      matches,
		capabilities: capabilities,
	}
}

type submitNeedRequest struct {
	RequesterID string    `json:"requester_id"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Tags        []string  `json:"tags"`
	Domain      string    `json:"domain,omitempty"`
	Urgency     float64   `json:"urgency"`
	Importance  float64   `json:"importance"`
	// ProviderSignals carries per-provider feasibility inputs keyed by
	// provider ID. Providers without an entry score neutral.
	ProviderSignals map[string]domain.FeasibilitySignals `json:"provider_signals,omitempty"`
}

type submitNeedResponse struct {
	Need *domain.Need `json:"need"`
	*service.SubmitResult
}

// Submit registers the need and runs the full matching pipeline,
// returning the ranked matches with their provenance trails.
func (h *NeedHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitNeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	requesterID, err := uuid.Parse(req.RequesterID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid requester_id")
		return
	}

	need := &domain.Need{
		ID:          uuid.New(),
		RequesterID: requesterID,
		Kind:        domain.CapabilityKind(req.Kind),
		Description: req.Description,
		Embedding:   req.Embedding,
		Tags:        req.Tags,
		Domain:      req.Domain,
		Urgency:     req.Urgency,
		Importance:  req.Importance,
	}

	if len(need.Embedding) == 0 {
		if need.Description == "" {
			writeError(w, http.StatusBadRequest, "description or embedding is required")
			return
		}
		embedding, err := h.embedder.Embed(r.Context(), need.Description)
		if err != nil {
			writeError(w, http.StatusBadGateway, fmt.Sprintf("embed need: %v", err))
			return
		}
		need.Embedding = embedding
	}

	providerSignals := make(map[uuid.UUID]domain.FeasibilitySignals, len(req.ProviderSignals))
	for raw, signals := range req.ProviderSignals {
		providerID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid provider id %q in provider_signals", raw))
			return
		}
		providerSignals[providerID] = signals
	}

	requesterCaps, err := h.capabilities.ListByOwner(r.Context(), requesterID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load requester capabilities")
		return
	}

	result, err := h.matcher.SubmitNeed(r.Context(), need, requesterCaps, providerSignals)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidNeed):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrMissingEmbedding):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to match need")
		}
		return
	}

	writeJSON(w, http.StatusCreated, submitNeedResponse{Need: need, SubmitResult: result})
}

func (h *NeedHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid need id")
		return
	}

	need, err := h.needs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "need not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get need")
		return
	}
	writeJSON(w, http.StatusOK, need)
}

// ListMatches returns the stored matches for a need, best first.
func (h *NeedHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid need id")
		return
	}

	matches, err := h.matches.ListByNeed(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list matches")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}
