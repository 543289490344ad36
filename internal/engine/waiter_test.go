package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWaiter_ImmediatelySatisfied(t *testing.T) {
	w := NewWaiter(10*time.Millisecond, time.Second)

	var calls atomic.Int32
	ok, err := w.WaitUntil(context.Background(), func(ctx context.Context) (bool, error) {
		calls.Add(1)
		return true, nil
	})
	if err != nil {
		t.Fatalf("WaitUntil error: %v", err)
	}
	if !ok {
		t.Error("expected satisfied")
	}
	if calls.Load() != 1 {
		t.Errorf("predicate called %d times, want 1", calls.Load())
	}
}

func TestWaiter_SatisfiedAfterPolling(t *testing.T) {
	w := NewWaiter(5*time.Millisecond, time.Second)

	var calls atomic.Int32
	ok, err := w.WaitUntil(context.Background(), func(ctx context.Context) (bool, error) {
		return calls.Add(1) >= 3, nil
	})
	if err != nil {
		t.Fatalf("WaitUntil error: %v", err)
	}
	if !ok {
		t.Error("expected satisfied after polling")
	}
	if calls.Load() < 3 {
		t.Errorf("predicate called %d times, want at least 3", calls.Load())
	}
}

func TestWaiter_TimesOut(t *testing.T) {
	w := NewWaiter(5*time.Millisecond, 30*time.Millisecond)

	start := time.Now()
	ok, err := w.WaitUntil(context.Background(), func(ctx context.Context) (bool, error) {
		return false, nil
	})
	if err != nil {
		t.Fatalf("WaitUntil error: %v", err)
	}
	if ok {
		t.Error("expected timeout, got satisfied")
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("returned before max wait: %v", elapsed)
	}
}

func TestWaiter_CancelledPromptly(t *testing.T) {
	w := NewWaiter(10*time.Millisecond, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	ok, err := w.WaitUntil(ctx, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	if ok {
		t.Error("cancelled wait should not report satisfied")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took too long: %v", elapsed)
	}
}

func TestWaiter_PredicateErrorPropagates(t *testing.T) {
	w := NewWaiter(5*time.Millisecond, time.Second)

	boom := errors.New("store down")
	_, err := w.WaitUntil(context.Background(), func(ctx context.Context) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
