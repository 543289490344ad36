package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store guard states
const (
	GuardClosed   = "closed"
	GuardOpen     = "open"
	GuardHalfOpen = "half-open"
)

// StoreGuard is a per-entity-type circuit breaker over the replica store,
// shared between instances via Redis. During a sustained persistence outage
// messages requeue immediately instead of each burning a store round-trip.
// State transitions: closed → open → half-open → closed
//
// - Closed: normal operation. Persistence failures are counted.
// - Open: messages for the entity type requeue without touching the store.
//   Transitions to half-open after cooldown.
// - Half-Open: one test message is allowed through. Success → closed,
//   failure → open.
type StoreGuard struct {
	redisClient      *redis.Client
	logger           *slog.Logger
	failureThreshold int
	cooldownPeriod   time.Duration
}

// StoreGuardState represents the current guard state for an entity type.
type StoreGuardState struct {
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

func NewStoreGuard(redisClient *redis.Client, logger *slog.Logger) *StoreGuard {
	return &StoreGuard{
		redisClient:      redisClient,
		logger:           logger,
		failureThreshold: 5,
		cooldownPeriod:   30 * time.Second,
	}
}

func guardKey(entityType string) string {
	return fmt.Sprintf("guard:%s", entityType)
}

// AllowRequest checks whether a message for this entity type may proceed to
// the replica store. Returns the current state and the verdict.
func (g *StoreGuard) AllowRequest(ctx context.Context, entityType string) (string, bool) {
	key := guardKey(entityType)

	data, err := g.redisClient.HGetAll(ctx, key).Result()
	if err != nil || len(data) == 0 {
		// No state yet — guard is closed (default)
		return GuardClosed, true
	}

	state := data["state"]
	lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)

	switch state {
	case GuardOpen:
		if time.Now().Unix()-lastFailedAt >= int64(g.cooldownPeriod.Seconds()) {
			// Cooldown elapsed: allow one test message through
			g.redisClient.HSet(ctx, key, "state", GuardHalfOpen)
			g.logger.Info("store guard half-open", "entity_type", entityType)
			return GuardHalfOpen, true
		}
		return GuardOpen, false

	case GuardHalfOpen:
		return GuardHalfOpen, true

	default:
		return GuardClosed, true
	}
}

// RecordSuccess notes a successful store operation and closes the guard.
func (g *StoreGuard) RecordSuccess(ctx context.Context, entityType string) {
	key := guardKey(entityType)

	state, _ := g.redisClient.HGet(ctx, key, "state").Result()

	g.redisClient.HSet(ctx, key,
		"state", GuardClosed,
		"failures", 0,
	)

	if state == GuardHalfOpen {
		g.logger.Info("store guard closed (recovered)", "entity_type", entityType)
	}
}

// RecordFailure notes a persistence failure. Opens the guard once the
// threshold is reached.
func (g *StoreGuard) RecordFailure(ctx context.Context, entityType string) {
	key := guardKey(entityType)

	failures, err := g.redisClient.HIncrBy(ctx, key, "failures", 1).Result()
	if err != nil {
		g.logger.Error("failed to record store guard failure", "error", err)
		return
	}

	g.redisClient.HSet(ctx, key, "last_failed_at", time.Now().Unix())

	state, _ := g.redisClient.HGet(ctx, key, "state").Result()

	if state == GuardHalfOpen {
		g.redisClient.HSet(ctx, key, "state", GuardOpen)
		g.logger.Warn("store guard re-opened (half-open test failed)", "entity_type", entityType)
	} else if failures >= int64(g.failureThreshold) {
		g.redisClient.HSet(ctx, key, "state", GuardOpen)
		g.logger.Warn("store guard opened",
			"entity_type", entityType,
			"failures", failures,
			"threshold", g.failureThreshold,
		)
	} else if state == "" {
		g.redisClient.HSet(ctx, key, "state", GuardClosed)
	}
}

// GetState returns the current guard state for an entity type.
func (g *StoreGuard) GetState(ctx context.Context, entityType string) StoreGuardState {
	key := guardKey(entityType)

	data, err := g.redisClient.HGetAll(ctx, key).Result()
	if err != nil || len(data) == 0 {
		return StoreGuardState{State: GuardClosed, Failures: 0}
	}

	failures, _ := strconv.Atoi(data["failures"])
	state := data["state"]
	if state == "" {
		state = GuardClosed
	}

	if state == GuardOpen {
		lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
		if time.Now().Unix()-lastFailedAt >= int64(g.cooldownPeriod.Seconds()) {
			state = GuardHalfOpen
		}
	}

	result := StoreGuardState{
		State:    state,
		Failures: failures,
	}

	if ts, ok := data["last_failed_at"]; ok && ts != "" {
		lastFailed, _ := strconv.ParseInt(ts, 10, 64)
		if lastFailed > 0 {
			result.LastFailedAt = time.Unix(lastFailed, 0).Format(time.RFC3339)
		}
	}

	return result
}
