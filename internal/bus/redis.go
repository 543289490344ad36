package bus

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Priya8975/entity-sync/internal/domain"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// QueueKey is the sorted set holding queued sync messages, scored by
	// the microsecond timestamp at which they become ready.
	QueueKey = "sync_queue"
	// DeadLetterKey is the list holding raw dead-lettered members.
	DeadLetterKey = "sync_dead_letters"
)

// queuedMessage is the sorted-set member. The nonce keeps two publishes of an
// identical envelope from collapsing into one member, preserving at-least-once
// semantics under producer retries.
type queuedMessage struct {
	Envelope      json.RawMessage `json:"envelope"`
	Attempt       int             `json:"attempt"`
	FirstQueuedAt time.Time       `json:"first_queued_at"`
	Nonce         string          `json:"nonce"`
}

// RedisQueue implements Publisher and Queue on a Redis sorted set.
type RedisQueue struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisQueue(client *redis.Client, logger *slog.Logger) *RedisQueue {
	return &RedisQueue{client: client, logger: logger}
}

// Publish adds an envelope to the queue, ready immediately.
func (q *RedisQueue) Publish(ctx context.Context, env *domain.Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}

	return q.add(ctx, queuedMessage{
		Envelope:      raw,
		Attempt:       1,
		FirstQueuedAt: time.Now().UTC(),
		Nonce:         uuid.NewString(),
	}, 0)
}

func (q *RedisQueue) add(ctx context.Context, msg queuedMessage, delay time.Duration) error {
	member, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling queue member: %w", err)
	}

	readyAt := float64(time.Now().Add(delay).UnixMicro())
	if err := q.client.ZAdd(ctx, QueueKey, redis.Z{
		Score:  readyAt,
		Member: string(member),
	}).Err(); err != nil {
		return fmt.Errorf("adding to queue: %w", err)
	}
	return nil
}

// Claim fetches up to max ready messages and removes them from the queue.
// ZRem is the claim: if another instance removed the member first, it is
// skipped here. A member whose wrapper cannot be decoded goes straight to the
// dead-letter list.
func (q *RedisQueue) Claim(ctx context.Context, max int64) ([]Delivery, error) {
	now := float64(time.Now().UnixMicro())

	results, err := q.client.ZRangeByScore(ctx, QueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(now, 'f', -1, 64),
		Count: max,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("polling queue: %w", err)
	}

	var deliveries []Delivery
	for _, member := range results {
		removed, err := q.client.ZRem(ctx, QueueKey, member).Result()
		if err != nil {
			return deliveries, fmt.Errorf("claiming message: %w", err)
		}
		if removed == 0 {
			continue
		}

		var msg queuedMessage
		if err := json.Unmarshal([]byte(member), &msg); err != nil {
			q.logger.Error("unreadable queue member, dead-lettering", "error", err)
			if err := q.client.LPush(ctx, DeadLetterKey, member).Err(); err != nil {
				q.logger.Error("failed to dead-letter unreadable member", "error", err)
			}
			continue
		}

		d := Delivery{
			Raw:           msg.Envelope,
			Attempt:       msg.Attempt,
			FirstQueuedAt: msg.FirstQueuedAt,
		}
		d.ParseErr = json.Unmarshal(msg.Envelope, &d.Envelope)
		deliveries = append(deliveries, d)
	}

	return deliveries, nil
}

// Requeue puts a claimed delivery back with an incremented attempt count,
// ready after the given delay.
func (q *RedisQueue) Requeue(ctx context.Context, d Delivery, delay time.Duration) error {
	return q.add(ctx, queuedMessage{
		Envelope:      d.Raw,
		Attempt:       d.Attempt + 1,
		FirstQueuedAt: d.FirstQueuedAt,
		Nonce:         uuid.NewString(),
	}, delay)
}

// DeadLetter pushes the raw envelope onto the dead-letter list.
func (q *RedisQueue) DeadLetter(ctx context.Context, d Delivery) error {
	if err := q.client.LPush(ctx, DeadLetterKey, string(d.Raw)).Err(); err != nil {
		return fmt.Errorf("pushing to dead-letter list: %w", err)
	}
	return nil
}

// QueueDepth returns the number of messages waiting in the queue.
func (q *RedisQueue) QueueDepth(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, QueueKey).Result()
}

// DeadLetterDepth returns the length of the dead-letter list.
func (q *RedisQueue) DeadLetterDepth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, DeadLetterKey).Result()
}
