package engine

import (
	"context"
	"time"
)

// Predicate is the condition a waiter polls, typically "does this foreign-key
// entity exist in the local replica store yet".
type Predicate func(ctx context.Context) (bool, error)

// Waiter polls a predicate until it is satisfied, the max wait elapses, or
// the context is cancelled. Each message's wait runs on its own worker
// goroutine, so a message held back by a missing dependency never stalls
// messages for other entities.
type Waiter struct {
	pollInterval time.Duration
	maxWait      time.Duration
}

func NewWaiter(pollInterval, maxWait time.Duration) *Waiter {
	return &Waiter{
		pollInterval: pollInterval,
		maxWait:      maxWait,
	}
}

// WaitUntil returns true once the predicate is satisfied, false if maxWait
// elapsed first. A context cancellation (service shutdown) aborts the wait
// promptly and returns the context error; predicate errors propagate so the
// caller can treat them as transient persistence failures.
func (w *Waiter) WaitUntil(ctx context.Context, pred Predicate) (bool, error) {
	ok, err := pred(ctx)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	deadline := time.NewTimer(w.maxWait)
	defer deadline.Stop()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
			ok, err := pred(ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
}
