package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Priya8975/entity-sync/internal/domain"
	"github.com/goccy/go-json"
)

// ReplicaStore is the consumer-owned persistence for synchronized entities.
// ApplyUpsert and ApplyDelete are conditional writes: they mutate only if the
// given timestamp is strictly newer than the stored watermark, as one atomic
// operation, and report whether they did. That conditional write — not any
// lock — is what keeps concurrent workers processing envelopes for the same
// entity correct.
type ReplicaStore interface {
	GetReplica(ctx context.Context, entityType, entityID string) (*domain.ReplicaRecord, error)
	ReplicaExists(ctx context.Context, entityType, entityID string) (bool, error)
	ApplyUpsert(ctx context.Context, entityType, entityID string, data json.RawMessage, syncedAt time.Time) (bool, error)
	ApplyDelete(ctx context.Context, entityType, entityID string, syncedAt time.Time) (bool, error)
}

// Result is the consumer's verdict on one envelope.
type Result struct {
	Decision domain.Decision
	Reason   string
	Applied  bool
	// Stale marks an acknowledged envelope that conflict resolution
	// skipped, as opposed to filtered or unhandled no-ops.
	Stale bool
	// PersistenceFailure marks a requeue caused by the replica store
	// failing for infrastructure reasons, feeding the store guard.
	PersistenceFailure bool
}

func ack(reason string, applied bool) Result {
	return Result{Decision: domain.DecisionAck, Reason: reason, Applied: applied}
}

func requeue(reason string) Result {
	return Result{Decision: domain.DecisionRequeue, Reason: reason}
}

func deadLetter(reason string) Result {
	return Result{Decision: domain.DecisionDeadLetter, Reason: reason}
}

// Consumer applies entity-change envelopes to the local replica store:
// filter, wait for dependencies, resolve conflicts, mutate, acknowledge.
type Consumer struct {
	registry *Registry
	store    ReplicaStore
	waiter   *Waiter
	logger   *slog.Logger
}

func NewConsumer(registry *Registry, store ReplicaStore, waiter *Waiter, logger *slog.Logger) *Consumer {
	return &Consumer{
		registry: registry,
		store:    store,
		waiter:   waiter,
		logger:   logger,
	}
}

// OnMessage processes one envelope and reports how the delivery should be
// settled. It never both mutates and requeues: any result other than an
// applied Ack leaves the replica store untouched by this message.
func (c *Consumer) OnMessage(ctx context.Context, env *domain.Envelope) Result {
	if err := env.Validate(); err != nil {
		c.logDecision(env, "dead_letter", err.Error())
		return deadLetter(err.Error())
	}

	handler, ok := c.registry.Lookup(env.EntityType)
	if !ok {
		return ack("no handler registered", false)
	}
	if !handler.ShouldHandle(env) {
		return ack("filtered", false)
	}

	// Deletes carry no payload to project and reference nothing; only
	// Created/Updated envelopes wait on foreign-key entities.
	if env.CrudAction != domain.ActionDeleted {
		if res, ok := c.awaitDependencies(ctx, env, handler); !ok {
			return res
		}
	}

	current, err := c.store.GetReplica(ctx, env.EntityType, env.EntityID)
	if err != nil {
		c.logDecision(env, "requeue", "replica read failed")
		r := requeue(fmt.Sprintf("replica read failed: %v", err))
		r.PersistenceFailure = true
		return r
	}

	if Resolve(env, current) == ResolutionSkip {
		c.logDecision(env, "skip", "stale")
		skippedStale.WithLabelValues(env.EntityType).Inc()
		r := ack("stale", false)
		r.Stale = true
		return r
	}

	applied, res := c.apply(ctx, env, handler)
	if res != nil {
		return *res
	}
	if !applied {
		// Lost the race to a concurrent worker that applied a newer
		// envelope between our read and the conditional write.
		c.logDecision(env, "skip", "stale on write")
		skippedStale.WithLabelValues(env.EntityType).Inc()
		r := ack("stale on write", false)
		r.Stale = true
		return r
	}

	c.logDecision(env, "applied", "")
	appliedTotal.WithLabelValues(env.EntityType, string(env.CrudAction)).Inc()
	return ack("applied", true)
}

func (c *Consumer) awaitDependencies(ctx context.Context, env *domain.Envelope, handler Handler) (Result, bool) {
	deps, err := handler.Dependencies(env)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedEnvelope) {
			c.logDecision(env, "dead_letter", err.Error())
			return deadLetter(err.Error()), false
		}
		return requeue(fmt.Sprintf("dependency extraction failed: %v", err)), false
	}

	for _, dep := range deps {
		satisfied, err := c.waiter.WaitUntil(ctx, func(ctx context.Context) (bool, error) {
			return c.store.ReplicaExists(ctx, dep.EntityType, dep.EntityID)
		})
		if err != nil {
			if ctx.Err() != nil {
				// Shutdown mid-wait: the message was not applied and
				// must be redelivered, never acknowledged.
				return requeue("shutdown during dependency wait"), false
			}
			c.logDecision(env, "requeue", "dependency check failed")
			r := requeue(fmt.Sprintf("dependency check failed: %v", err))
			r.PersistenceFailure = true
			return r, false
		}
		if !satisfied {
			c.logger.Warn("dependency wait timed out",
				"entity_type", env.EntityType,
				"entity_id", env.EntityID,
				"message_id", env.MessageID,
				"dependency_type", dep.EntityType,
				"dependency_id", dep.EntityID,
			)
			dependencyTimeouts.WithLabelValues(env.EntityType, dep.EntityType).Inc()
			return requeue(fmt.Sprintf("%v: %s %s", domain.ErrDependencyMissing, dep.EntityType, dep.EntityID)), false
		}
	}

	return Result{}, true
}

// apply performs the store mutation for an envelope that resolved to Apply.
// Returns a non-nil Result when processing must stop with that result.
func (c *Consumer) apply(ctx context.Context, env *domain.Envelope, handler Handler) (bool, *Result) {
	if env.CrudAction == domain.ActionDeleted {
		applied, err := c.store.ApplyDelete(ctx, env.EntityType, env.EntityID, env.CreatedUtcDate)
		if err != nil {
			c.logDecision(env, "requeue", "delete failed")
			r := requeue(fmt.Sprintf("delete failed: %v", err))
			r.PersistenceFailure = true
			return false, &r
		}
		return applied, nil
	}

	data, err := handler.Project(env)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedEnvelope) {
			c.logDecision(env, "dead_letter", err.Error())
			r := deadLetter(err.Error())
			return false, &r
		}
		r := requeue(fmt.Sprintf("projection failed: %v", err))
		return false, &r
	}

	applied, err := c.store.ApplyUpsert(ctx, env.EntityType, env.EntityID, data, env.CreatedUtcDate)
	if err != nil {
		c.logDecision(env, "requeue", "upsert failed")
		r := requeue(fmt.Sprintf("upsert failed: %v", err))
		r.PersistenceFailure = true
		return false, &r
	}
	return applied, nil
}

func (c *Consumer) logDecision(env *domain.Envelope, decision, detail string) {
	c.logger.Info("sync decision",
		"entity_type", env.EntityType,
		"entity_id", env.EntityID,
		"message_id", env.MessageID,
		"crud_action", string(env.CrudAction),
		"decision", decision,
		"detail", detail,
	)
}
