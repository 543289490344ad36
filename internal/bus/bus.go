// Package bus provides the at-least-once message transport between producers
// and consumers. The queue is a Redis sorted set scored by ready-time: publish
// and requeue add members, claiming removes them, and a requeue with a backoff
// delay is just a re-add with a future score.
package bus

import (
	"context"
	"time"

	"github.com/Priya8975/entity-sync/internal/domain"
	"github.com/goccy/go-json"
)

// Publisher is the producer-side bus contract.
type Publisher interface {
	Publish(ctx context.Context, env *domain.Envelope) error
}

// Queue is the consumer-side bus contract. Claiming a delivery removes it
// from the queue; a claimed message that cannot be processed must be requeued
// or dead-lettered, never dropped.
type Queue interface {
	Claim(ctx context.Context, max int64) ([]Delivery, error)
	Requeue(ctx context.Context, d Delivery, delay time.Duration) error
	DeadLetter(ctx context.Context, d Delivery) error
	QueueDepth(ctx context.Context) (int64, error)
	DeadLetterDepth(ctx context.Context) (int64, error)
}

// Delivery is one claimed message. ParseErr is set when the envelope payload
// could not be decoded; such deliveries are permanently malformed.
type Delivery struct {
	Envelope      domain.Envelope
	Raw           json.RawMessage
	Attempt       int
	FirstQueuedAt time.Time
	ParseErr      error
}
