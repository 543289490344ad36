// Package producer publishes entity-change envelopes after source-side
// mutations have been durably committed. Call Publish only once the local
// transaction is closed — an envelope for a change that can still roll back
// would poison every consumer's replica.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Priya8975/entity-sync/internal/bus"
	"github.com/Priya8975/entity-sync/internal/clock"
	"github.com/Priya8975/entity-sync/internal/domain"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type Producer struct {
	publisher bus.Publisher
	clock     clock.Clock
	logger    *slog.Logger
}

func New(publisher bus.Publisher, clk clock.Clock, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		clock:     clk,
		logger:    logger,
	}
}

// Publish builds and publishes one envelope for an entity mutation. The
// entity argument is the projection of fields the producer chooses to expose;
// it may be nil for deletes. A publish failure is returned to the caller —
// consumers treat the bus as the sole source of truth, so the caller must
// retry rather than drop it.
func (p *Producer) Publish(ctx context.Context, entityType, entityID string, action domain.CrudAction, entity interface{}) error {
	if !action.Valid() {
		return fmt.Errorf("invalid crud action %q", action)
	}

	var data json.RawMessage
	if entity != nil {
		var err error
		data, err = json.Marshal(entity)
		if err != nil {
			return fmt.Errorf("marshaling entity data: %w", err)
		}
	}

	env := &domain.Envelope{
		MessageID:      uuid.NewString(),
		EntityType:     entityType,
		EntityID:       entityID,
		CrudAction:     action,
		EntityData:     data,
		CreatedUtcDate: p.clock.Now(),
		RoutingKey:     RoutingKey(entityType, action),
	}

	if err := p.publisher.Publish(ctx, env); err != nil {
		p.logger.Error("publish failed",
			"entity_type", entityType,
			"entity_id", entityID,
			"crud_action", string(action),
			"message_id", env.MessageID,
			"error", err,
		)
		return fmt.Errorf("publishing envelope: %w", err)
	}

	p.logger.Info("envelope published",
		"entity_type", entityType,
		"entity_id", entityID,
		"crud_action", string(action),
		"message_id", env.MessageID,
	)
	return nil
}

// RoutingKey builds the per-message routing key, e.g. "sync.company.created".
// The bus uses it for routing only; correctness never depends on it.
func RoutingKey(entityType string, action domain.CrudAction) string {
	return fmt.Sprintf("sync.%s.%s", entityType, strings.ToLower(string(action)))
}
