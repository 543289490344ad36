package bus

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/Priya8975/entity-sync/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

func setupQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewRedisQueue(client, logger), mr
}

func testEnvelope(id string, action domain.CrudAction) *domain.Envelope {
	return &domain.Envelope{
		MessageID:      "msg-" + id,
		EntityType:     "company",
		EntityID:       id,
		CrudAction:     action,
		EntityData:     json.RawMessage(`{"name":"Acme"}`),
		CreatedUtcDate: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		RoutingKey:     "sync.company.created",
	}
}

func TestRedisQueue_PublishClaim(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	if err := q.Publish(ctx, testEnvelope("C1", domain.ActionCreated)); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	deliveries, err := q.Claim(ctx, 10)
	if err != nil {
		t.Fatalf("Claim error: %v", err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(deliveries))
	}

	d := deliveries[0]
	if d.ParseErr != nil {
		t.Fatalf("unexpected parse error: %v", d.ParseErr)
	}
	if d.Envelope.EntityID != "C1" {
		t.Errorf("EntityID = %q, want %q", d.Envelope.EntityID, "C1")
	}
	if d.Attempt != 1 {
		t.Errorf("Attempt = %d, want 1", d.Attempt)
	}

	// Claimed messages are gone from the queue
	depth, _ := q.QueueDepth(ctx)
	if depth != 0 {
		t.Errorf("queue depth = %d after claim, want 0", depth)
	}
}

func TestRedisQueue_DuplicatePublishesAreDistinct(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	env := testEnvelope("C1", domain.ActionCreated)
	q.Publish(ctx, env)
	q.Publish(ctx, env)

	depth, _ := q.QueueDepth(ctx)
	if depth != 2 {
		t.Errorf("queue depth = %d, want 2 (duplicate publish must not collapse)", depth)
	}
}

func TestRedisQueue_RequeueDelaysAndIncrementsAttempt(t *testing.T) {
	q, mr := setupQueue(t)
	ctx := context.Background()

	q.Publish(ctx, testEnvelope("C1", domain.ActionUpdated))
	deliveries, _ := q.Claim(ctx, 10)
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(deliveries))
	}

	if err := q.Requeue(ctx, deliveries[0], 30*time.Second); err != nil {
		t.Fatalf("Requeue error: %v", err)
	}

	// Not ready yet: the backoff score is in the future
	deliveries, _ = q.Claim(ctx, 10)
	if len(deliveries) != 0 {
		t.Fatalf("expected no ready deliveries during backoff, got %d", len(deliveries))
	}

	// Rewind the score so the message is ready now
	members, _ := mr.ZMembers(QueueKey)
	if len(members) != 1 {
		t.Fatalf("expected 1 queued member, got %d", len(members))
	}
	mr.ZAdd(QueueKey, float64(time.Now().Add(-time.Second).UnixMicro()), members[0])

	deliveries, _ = q.Claim(ctx, 10)
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery after backoff, got %d", len(deliveries))
	}
	if deliveries[0].Attempt != 2 {
		t.Errorf("Attempt = %d after requeue, want 2", deliveries[0].Attempt)
	}
}

func TestRedisQueue_DeadLetter(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	q.Publish(ctx, testEnvelope("C1", domain.ActionCreated))
	deliveries, _ := q.Claim(ctx, 10)

	if err := q.DeadLetter(ctx, deliveries[0]); err != nil {
		t.Fatalf("DeadLetter error: %v", err)
	}

	depth, _ := q.DeadLetterDepth(ctx)
	if depth != 1 {
		t.Errorf("dead-letter depth = %d, want 1", depth)
	}
}

func TestRedisQueue_MalformedEnvelopeSurfacesParseErr(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	msg := queuedMessage{
		Envelope:      json.RawMessage(`{"crudAction":`), // truncated JSON
		Attempt:       1,
		FirstQueuedAt: time.Now().UTC(),
		Nonce:         "n1",
	}
	if err := q.add(ctx, msg, 0); err != nil {
		t.Fatalf("add error: %v", err)
	}

	deliveries, err := q.Claim(ctx, 10)
	if err != nil {
		t.Fatalf("Claim error: %v", err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(deliveries))
	}
	if deliveries[0].ParseErr == nil {
		t.Error("expected ParseErr for malformed envelope payload")
	}
}

func TestRedisQueue_ClaimHonorsBatchLimit(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		q.Publish(ctx, testEnvelope(string(rune('A'+i)), domain.ActionCreated))
	}

	deliveries, _ := q.Claim(ctx, 3)
	if len(deliveries) != 3 {
		t.Errorf("expected 3 deliveries, got %d", len(deliveries))
	}

	depth, _ := q.QueueDepth(ctx)
	if depth != 2 {
		t.Errorf("queue depth = %d, want 2", depth)
	}
}
