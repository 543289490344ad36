package api

import (
	"net/http"

	"github.com/Priya8975/entity-sync/internal/bus"
	"github.com/Priya8975/entity-sync/internal/engine"
	"github.com/Priya8975/entity-sync/internal/store"
	ws "github.com/Priya8975/entity-sync/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures the operator-facing HTTP router.
func NewRouter(pgStore *store.PostgresStore, queue *bus.RedisQueue, guard *engine.StoreGuard, hub *ws.Hub) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// Handlers
	replicaHandler := NewReplicaHandler(pgStore)
	dlqHandler := NewDeadLetterHandler(pgStore, queue)
	dashHandler := NewDashboardHandler(pgStore, queue, guard, hub)

	// WebSocket activity feed
	r.Get("/ws", hub.HandleWebSocket)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		r.Route("/replicas", func(r chi.Router) {
			r.Get("/", replicaHandler.List)
			r.Get("/{entityType}/{entityId}", replicaHandler.Get)
		})

		r.Route("/dead-letters", func(r chi.Router) {
			r.Get("/", dlqHandler.List)
			r.Get("/{id}", dlqHandler.Get)
			r.Post("/{id}/resolve", dlqHandler.Resolve)
		})

		r.Get("/stats", dashHandler.Stats)
		r.Get("/guards", dashHandler.GuardHealth)
	})

	return r
}
