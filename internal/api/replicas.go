package api

import (
	"net/http"
	"strconv"

	"github.com/Priya8975/entity-sync/internal/store"
	"github.com/go-chi/chi/v5"
)

type ReplicaHandler struct {
	store *store.PostgresStore
}

func NewReplicaHandler(s *store.PostgresStore) *ReplicaHandler {
	return &ReplicaHandler{store: s}
}

func (h *ReplicaHandler) List(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	limitStr := r.URL.Query().Get("limit")

	limit := 50
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	replicas, err := h.store.ListReplicas(r.Context(), entityType, includeDeleted, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list replicas")
		return
	}

	respondJSON(w, http.StatusOK, replicas)
}

func (h *ReplicaHandler) Get(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	entityID := chi.URLParam(r, "entityId")

	rec, err := h.store.GetReplica(r.Context(), entityType, entityID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get replica")
		return
	}
	if rec == nil {
		respondError(w, http.StatusNotFound, "replica not found")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}
