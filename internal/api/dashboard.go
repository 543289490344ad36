package api

import (
	"net/http"

	"github.com/Priya8975/entity-sync/internal/bus"
	"github.com/Priya8975/entity-sync/internal/engine"
	"github.com/Priya8975/entity-sync/internal/store"
	ws "github.com/Priya8975/entity-sync/internal/websocket"
)

type DashboardHandler struct {
	store *store.PostgresStore
	queue bus.Queue
	guard *engine.StoreGuard
	hub   *ws.Hub
}

func NewDashboardHandler(s *store.PostgresStore, queue bus.Queue, guard *engine.StoreGuard, hub *ws.Hub) *DashboardHandler {
	return &DashboardHandler{store: s, queue: queue, guard: guard, hub: hub}
}

// Stats returns aggregated sync state for the dashboard.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	live, tombstoned, err := h.store.ReplicaCounts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count replicas")
		return
	}

	queueDepth, err := h.queue.QueueDepth(r.Context())
	if err != nil {
		queueDepth = 0
	}
	dlqDepth, err := h.queue.DeadLetterDepth(r.Context())
	if err != nil {
		dlqDepth = 0
	}

	type statsResponse struct {
		LiveReplicas       map[string]int64 `json:"live_replicas"`
		TombstonedReplicas map[string]int64 `json:"tombstoned_replicas"`
		QueueDepth         int64            `json:"queue_depth"`
		DeadLetterDepth    int64            `json:"dead_letter_depth"`
		WebSocketClients   int              `json:"websocket_clients"`
	}

	respondJSON(w, http.StatusOK, statsResponse{
		LiveReplicas:       live,
		TombstonedReplicas: tombstoned,
		QueueDepth:         queueDepth,
		DeadLetterDepth:    dlqDepth,
		WebSocketClients:   h.hub.ClientCount(),
	})
}

// GuardHealth returns the store guard state for the requested entity types.
func (h *DashboardHandler) GuardHealth(w http.ResponseWriter, r *http.Request) {
	live, tombstoned, err := h.store.ReplicaCounts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list entity types")
		return
	}

	types := map[string]struct{}{}
	for et := range live {
		types[et] = struct{}{}
	}
	for et := range tombstoned {
		types[et] = struct{}{}
	}

	type guardHealth struct {
		EntityType string                 `json:"entity_type"`
		Guard      engine.StoreGuardState `json:"guard"`
	}

	result := make([]guardHealth, 0, len(types))
	for et := range types {
		result = append(result, guardHealth{
			EntityType: et,
			Guard:      h.guard.GetState(r.Context(), et),
		})
	}

	respondJSON(w, http.StatusOK, result)
}
