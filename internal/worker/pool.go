package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Priya8975/entity-sync/internal/bus"
)

// Pool manages a fixed number of worker goroutines that settle claimed
// deliveries. One slow delivery — a dependency wait, for instance — only
// occupies its own worker; the rest keep draining the queue.
type Pool struct {
	numWorkers int
	jobs       chan bus.Delivery
	runner     *Runner
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewPool creates a worker pool with the given number of workers.
func NewPool(numWorkers int, runner *Runner, logger *slog.Logger) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan bus.Delivery, numWorkers*2),
		runner:     runner,
		logger:     logger,
	}
}

// Start launches all worker goroutines. They read from the jobs channel
// until it is closed.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("worker pool started", "num_workers", p.numWorkers)
}

// Submit sends a delivery to the worker pool via the jobs channel.
func (p *Pool) Submit(d bus.Delivery) {
	p.jobs <- d
}

// Stop closes the jobs channel and waits for all workers to finish.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker is a single goroutine that processes deliveries from the channel.
func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for d := range p.jobs {
		p.runner.Process(ctx, d)
	}
}
