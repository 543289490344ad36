package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/Priya8975/entity-sync/internal/bus"
	"github.com/Priya8975/entity-sync/internal/domain"
	"github.com/Priya8975/entity-sync/internal/engine"
	"github.com/Priya8975/entity-sync/internal/store"
	ws "github.com/Priya8975/entity-sync/internal/websocket"
)

// maxBackoff caps the requeue delay regardless of attempt count.
const maxBackoff = 5 * time.Minute

// DeadLetterRecorder persists dead letters for operator inspection.
type DeadLetterRecorder interface {
	InsertDeadLetter(ctx context.Context, rec store.DeadLetterRecord) error
}

// EventBroadcaster pushes sync outcomes to dashboard clients.
type EventBroadcaster interface {
	Broadcast(event ws.SyncEvent)
}

// RetryPolicy bounds how long a message may keep being requeued before it is
// dead-lettered.
type RetryPolicy struct {
	MaxAttempts int
	MaxElapsed  time.Duration
	BackoffBase time.Duration
}

// Runner settles one claimed delivery: it runs the consumer pipeline and
// translates the resulting decision into bus operations. A claimed message
// always ends in exactly one of acknowledged (dropped), requeued, or
// dead-lettered — never silently discarded.
type Runner struct {
	consumer *engine.Consumer
	queue    bus.Queue
	guard    *engine.StoreGuard
	recorder DeadLetterRecorder
	hub      EventBroadcaster
	policy   RetryPolicy
	logger   *slog.Logger
}

func NewRunner(
	consumer *engine.Consumer,
	queue bus.Queue,
	guard *engine.StoreGuard,
	recorder DeadLetterRecorder,
	hub EventBroadcaster,
	policy RetryPolicy,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		consumer: consumer,
		queue:    queue,
		guard:    guard,
		recorder: recorder,
		hub:      hub,
		policy:   policy,
		logger:   logger,
	}
}

// Process handles one delivery end to end.
func (r *Runner) Process(ctx context.Context, d bus.Delivery) {
	start := time.Now()
	defer func() {
		engine.ProcessingDuration.WithLabelValues(d.Envelope.EntityType).Observe(time.Since(start).Seconds())
	}()

	if d.ParseErr != nil {
		r.deadLetter(ctx, d, "unparseable envelope: "+d.ParseErr.Error())
		return
	}

	if state, allowed := r.guard.AllowRequest(ctx, d.Envelope.EntityType); !allowed {
		r.logger.Warn("store guard open, requeueing without processing",
			"entity_type", d.Envelope.EntityType,
			"entity_id", d.Envelope.EntityID,
			"guard_state", state,
		)
		r.requeue(ctx, d, "store guard open")
		return
	}

	res := r.consumer.OnMessage(ctx, &d.Envelope)

	switch res.Decision {
	case domain.DecisionAck:
		r.guard.RecordSuccess(ctx, d.Envelope.EntityType)
		// The claim already removed the message from the queue, so an
		// ack has no bus side effect. Filtered and unhandled no-ops are
		// not sync outcomes and stay off the feed.
		switch {
		case res.Applied:
			r.broadcast(d, "applied", res.Reason)
		case res.Stale:
			r.broadcast(d, "skipped_stale", res.Reason)
		}

	case domain.DecisionRequeue:
		if res.PersistenceFailure {
			r.guard.RecordFailure(ctx, d.Envelope.EntityType)
		}
		r.requeue(ctx, d, res.Reason)

	case domain.DecisionDeadLetter:
		r.deadLetter(ctx, d, res.Reason)
	}
}

func (r *Runner) requeue(ctx context.Context, d bus.Delivery, reason string) {
	if d.Attempt >= r.policy.MaxAttempts {
		r.deadLetter(ctx, d, "retry attempts exhausted: "+reason)
		return
	}
	if !d.FirstQueuedAt.IsZero() && time.Since(d.FirstQueuedAt) > r.policy.MaxElapsed {
		r.deadLetter(ctx, d, "retry time exhausted: "+reason)
		return
	}

	delay := engine.Backoff(r.policy.BackoffBase, d.Attempt, maxBackoff)
	if err := r.queue.Requeue(ctx, d, delay); err != nil {
		// The claim removed the message; failing to requeue would lose
		// it, which is worse than a duplicate. Keep trying briefly.
		r.logger.Error("requeue failed, retrying",
			"entity_type", d.Envelope.EntityType,
			"entity_id", d.Envelope.EntityID,
			"error", err,
		)
		if err := r.queue.Requeue(context.WithoutCancel(ctx), d, delay); err != nil {
			r.logger.Error("requeue failed again, message may be lost",
				"entity_type", d.Envelope.EntityType,
				"entity_id", d.Envelope.EntityID,
				"message_id", d.Envelope.MessageID,
				"error", err,
			)
			return
		}
	}

	r.logger.Info("message requeued",
		"entity_type", d.Envelope.EntityType,
		"entity_id", d.Envelope.EntityID,
		"message_id", d.Envelope.MessageID,
		"attempt", d.Attempt,
		"delay", delay.String(),
		"reason", reason,
	)
	engine.RequeuedTotal.WithLabelValues(d.Envelope.EntityType).Inc()
	r.broadcast(d, "requeued", reason)
}

func (r *Runner) deadLetter(ctx context.Context, d bus.Delivery, reason string) {
	// Dead-lettering must survive shutdown: the message has already been
	// claimed off the queue.
	ctx = context.WithoutCancel(ctx)

	if err := r.queue.DeadLetter(ctx, d); err != nil {
		r.logger.Error("failed to push dead letter to bus", "error", err)
	}

	if err := r.recorder.InsertDeadLetter(ctx, store.DeadLetterRecord{
		MessageID:     d.Envelope.MessageID,
		EntityType:    d.Envelope.EntityType,
		EntityID:      d.Envelope.EntityID,
		Envelope:      d.Raw,
		TotalAttempts: d.Attempt,
		Reason:        reason,
	}); err != nil {
		r.logger.Error("failed to record dead letter",
			"message_id", d.Envelope.MessageID,
			"error", err,
		)
	}

	r.logger.Warn("message dead-lettered",
		"entity_type", d.Envelope.EntityType,
		"entity_id", d.Envelope.EntityID,
		"message_id", d.Envelope.MessageID,
		"attempts", d.Attempt,
		"reason", reason,
	)
	engine.DeadLetteredTotal.WithLabelValues(d.Envelope.EntityType).Inc()
	r.broadcast(d, "dead_lettered", reason)
}

func (r *Runner) broadcast(d bus.Delivery, eventType, reason string) {
	if r.hub == nil {
		return
	}
	r.hub.Broadcast(ws.SyncEvent{
		Type:       eventType,
		MessageID:  d.Envelope.MessageID,
		EntityType: d.Envelope.EntityType,
		EntityID:   d.Envelope.EntityID,
		CrudAction: string(d.Envelope.CrudAction),
		Attempt:    d.Attempt,
		Reason:     reason,
		Timestamp:  time.Now().UTC(),
	})
}
