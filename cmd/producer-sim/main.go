// producer-sim publishes a scripted stream of entity-change envelopes against
// a running syncd instance. The script includes the awkward deliveries a real
// broker produces: out-of-order updates, a child published before its parent,
// duplicate deliveries of the same envelope, and a delete racing a stale
// update.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/Priya8975/entity-sync/internal/bus"
	"github.com/Priya8975/entity-sync/internal/clock"
	"github.com/Priya8975/entity-sync/internal/domain"
	"github.com/Priya8975/entity-sync/internal/producer"
	"github.com/Priya8975/entity-sync/internal/store"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type company struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

type employee struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	CompanyID string `json:"companyId"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	ctx := context.Background()
	redisStore, err := store.NewRedis(ctx, redisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()

	queue := bus.NewRedisQueue(redisStore.Client(), logger)
	prod := producer.New(queue, clock.NewSystem(), logger)

	companyID := uuid.NewString()
	employeeID := uuid.NewString()

	publish := func(entityType, entityID string, action domain.CrudAction, entity interface{}) {
		if err := prod.Publish(ctx, entityType, entityID, action, entity); err != nil {
			logger.Error("publish failed", "entity_type", entityType, "entity_id", entityID, "error", err)
			os.Exit(1)
		}
	}

	// The child arrives before its parent exists; the consumer's dependency
	// wait holds it until the company create lands.
	publish("employee", employeeID, domain.ActionCreated, employee{
		Name:      "Alice Novak",
		Email:     "alice@acme.example",
		CompanyID: companyID,
	})

	time.Sleep(200 * time.Millisecond)

	publish("company", companyID, domain.ActionCreated, company{
		Name:    "Acme",
		Country: "NL",
	})

	// Two updates published newest-first. The consumer must settle on the
	// second (newer) payload no matter which lands first.
	newer := mustEnvelope("employee", employeeID, domain.ActionUpdated,
		employee{Name: "Alice Novak", Email: "alice.novak@acme.example", CompanyID: companyID},
		time.Now().UTC())
	older := mustEnvelope("employee", employeeID, domain.ActionUpdated,
		employee{Name: "A. Novak", Email: "alice@acme.example", CompanyID: companyID},
		time.Now().UTC().Add(-time.Minute))

	for _, env := range []*domain.Envelope{newer, older} {
		if err := queue.Publish(ctx, env); err != nil {
			logger.Error("publish failed", "message_id", env.MessageID, "error", err)
			os.Exit(1)
		}
	}

	// Duplicate delivery of the same envelope. The second copy must be a
	// no-op on the consumer side.
	if err := queue.Publish(ctx, newer); err != nil {
		logger.Error("duplicate publish failed", "error", err)
		os.Exit(1)
	}

	// A delete followed by an update stamped before it. The tombstone wins;
	// the stale update must not resurrect the row.
	deleteAt := time.Now().UTC()
	del := mustEnvelope("employee", employeeID, domain.ActionDeleted, nil, deleteAt)
	stale := mustEnvelope("employee", employeeID, domain.ActionUpdated,
		employee{Name: "Zombie", Email: "zombie@acme.example", CompanyID: companyID},
		deleteAt.Add(-time.Second))

	for _, env := range []*domain.Envelope{del, stale} {
		if err := queue.Publish(ctx, env); err != nil {
			logger.Error("publish failed", "message_id", env.MessageID, "error", err)
			os.Exit(1)
		}
	}

	logger.Info("scenario published",
		"company_id", companyID,
		"employee_id", employeeID,
	)
}

// mustEnvelope builds an envelope with an explicit CreatedUtcDate so the
// script can stage out-of-order deliveries.
func mustEnvelope(entityType, entityID string, action domain.CrudAction, entity interface{}, at time.Time) *domain.Envelope {
	var data json.RawMessage
	if entity != nil {
		raw, err := json.Marshal(entity)
		if err != nil {
			panic(err)
		}
		data = raw
	}

	return &domain.Envelope{
		MessageID:      uuid.NewString(),
		EntityType:     entityType,
		EntityID:       entityID,
		CrudAction:     action,
		EntityData:     data,
		CreatedUtcDate: at,
		RoutingKey:     producer.RoutingKey(entityType, action),
	}
}
