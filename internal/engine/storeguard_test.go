package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestGuard(t *testing.T) (*StoreGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStoreGuard(client, testLogger()), mr
}

// openGuardAndExpireCooldown opens the guard for an entity type, then sets
// last_failed_at to 31 seconds ago so the cooldown has elapsed.
func openGuardAndExpireCooldown(t *testing.T, g *StoreGuard, mr *miniredis.Miniredis, entityType string) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		g.RecordFailure(ctx, entityType)
	}

	pastTime := time.Now().Unix() - 31
	mr.HSet(guardKey(entityType), "last_failed_at", fmt.Sprintf("%d", pastTime))
}

func TestStoreGuard_InitialState(t *testing.T) {
	g, _ := setupTestGuard(t)
	ctx := context.Background()

	state, allowed := g.AllowRequest(ctx, "company")

	if state != GuardClosed {
		t.Errorf("expected state %q, got %q", GuardClosed, state)
	}
	if !allowed {
		t.Error("fresh entity type should be allowed (guard closed)")
	}
}

func TestStoreGuard_OpensAfterThreshold(t *testing.T) {
	g, _ := setupTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		g.RecordFailure(ctx, "company")
	}

	state, allowed := g.AllowRequest(ctx, "company")

	if state != GuardOpen {
		t.Errorf("expected state %q, got %q", GuardOpen, state)
	}
	if allowed {
		t.Error("open guard should block store access")
	}
}

func TestStoreGuard_StaysClosedBelowThreshold(t *testing.T) {
	g, _ := setupTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		g.RecordFailure(ctx, "company")
	}

	_, allowed := g.AllowRequest(ctx, "company")
	if !allowed {
		t.Error("guard should stay closed below the failure threshold")
	}
}

func TestStoreGuard_HalfOpenAfterCooldown(t *testing.T) {
	g, mr := setupTestGuard(t)
	ctx := context.Background()

	openGuardAndExpireCooldown(t, g, mr, "company")

	state, allowed := g.AllowRequest(ctx, "company")
	if state != GuardHalfOpen {
		t.Errorf("expected state %q, got %q", GuardHalfOpen, state)
	}
	if !allowed {
		t.Error("half-open guard should allow a test message")
	}
}

func TestStoreGuard_RecoversOnSuccess(t *testing.T) {
	g, mr := setupTestGuard(t)
	ctx := context.Background()

	openGuardAndExpireCooldown(t, g, mr, "company")
	g.AllowRequest(ctx, "company") // transitions to half-open
	g.RecordSuccess(ctx, "company")

	state, allowed := g.AllowRequest(ctx, "company")
	if state != GuardClosed || !allowed {
		t.Errorf("expected closed guard after recovery, got %q allowed=%v", state, allowed)
	}
}

func TestStoreGuard_ReopensOnHalfOpenFailure(t *testing.T) {
	g, mr := setupTestGuard(t)
	ctx := context.Background()

	openGuardAndExpireCooldown(t, g, mr, "company")
	g.AllowRequest(ctx, "company") // half-open
	g.RecordFailure(ctx, "company")

	state, allowed := g.AllowRequest(ctx, "company")
	if state != GuardOpen || allowed {
		t.Errorf("expected re-opened guard, got %q allowed=%v", state, allowed)
	}
}

func TestStoreGuard_IsolatesEntityTypes(t *testing.T) {
	g, _ := setupTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		g.RecordFailure(ctx, "company")
	}

	_, allowed := g.AllowRequest(ctx, "employee")
	if !allowed {
		t.Error("failures on one entity type should not block another")
	}
}

func TestStoreGuard_GetState(t *testing.T) {
	g, _ := setupTestGuard(t)
	ctx := context.Background()

	state := g.GetState(ctx, "unknown")
	if state.State != GuardClosed || state.Failures != 0 {
		t.Errorf("expected default closed state, got %+v", state)
	}

	g.RecordFailure(ctx, "company")
	state = g.GetState(ctx, "company")
	if state.Failures != 1 {
		t.Errorf("expected 1 failure, got %d", state.Failures)
	}
}
