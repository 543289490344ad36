package api

import (
	"net/http"
	"strconv"

	"github.com/Priya8975/entity-sync/internal/bus"
	"github.com/Priya8975/entity-sync/internal/domain"
	"github.com/Priya8975/entity-sync/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

type DeadLetterHandler struct {
	store     *store.PostgresStore
	publisher bus.Publisher
}

func NewDeadLetterHandler(s *store.PostgresStore, publisher bus.Publisher) *DeadLetterHandler {
	return &DeadLetterHandler{store: s, publisher: publisher}
}

func (h *DeadLetterHandler) List(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	resolvedStr := r.URL.Query().Get("resolved")
	limitStr := r.URL.Query().Get("limit")

	resolved := false
	if resolvedStr == "true" {
		resolved = true
	}

	limit := 50
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	letters, err := h.store.ListDeadLetters(r.Context(), entityType, resolved, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}

	respondJSON(w, http.StatusOK, letters)
}

func (h *DeadLetterHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	letter, err := h.store.GetDeadLetter(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get dead letter")
		return
	}
	if letter == nil {
		respondError(w, http.StatusNotFound, "dead letter not found")
		return
	}

	respondJSON(w, http.StatusOK, letter)
}

type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
	Requeue    bool   `json:"requeue"`
}

// Resolve marks a dead letter as handled. With "requeue": true the stored
// envelope is published back onto the sync queue — conflict resolution makes
// a replay of an already-applied envelope harmless.
func (h *DeadLetterHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ResolvedBy == "" {
		req.ResolvedBy = "manual"
	}

	letter, err := h.store.GetDeadLetter(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get dead letter")
		return
	}
	if letter == nil {
		respondError(w, http.StatusNotFound, "dead letter not found")
		return
	}

	if req.Requeue {
		var env domain.Envelope
		if err := json.Unmarshal(letter.Envelope, &env); err != nil {
			respondError(w, http.StatusConflict, "stored envelope is unparseable and cannot be requeued")
			return
		}
		if err := h.publisher.Publish(r.Context(), &env); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to requeue envelope")
			return
		}
	}

	if err := h.store.ResolveDeadLetter(r.Context(), id, req.ResolvedBy); err != nil {
		respondError(w, http.StatusNotFound, "dead letter not found or already resolved")
		return
	}

	status := "resolved"
	if req.Requeue {
		status = "requeued"
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": status})
}
