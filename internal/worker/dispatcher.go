package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/Priya8975/entity-sync/internal/bus"
)

// Dispatcher continuously claims ready messages from the bus and sends them
// to the worker pool via channels.
type Dispatcher struct {
	queue        bus.Queue
	pool         *Pool
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int64
}

// NewDispatcher creates a dispatcher that pulls from the sync queue.
func NewDispatcher(queue bus.Queue, pool *Pool, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:        queue,
		pool:         pool,
		logger:       logger,
		pollInterval: 100 * time.Millisecond,
		batchSize:    10,
	}
}

// Start begins the polling loop. It runs until the context is cancelled and
// returns only after any in-flight poll has finished submitting, so callers
// must wait for Start to return before stopping the pool.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("dispatcher started")

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

// poll claims a batch of ready messages and hands them to workers.
func (d *Dispatcher) poll(ctx context.Context) {
	deliveries, err := d.queue.Claim(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("failed to claim from sync queue", "error", err)
		return
	}

	for _, delivery := range deliveries {
		d.pool.Submit(delivery)
	}
}
