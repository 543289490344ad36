package clock

import (
	"sync"
	"testing"
	"time"
)

func TestSystem_StrictlyIncreasing(t *testing.T) {
	c := NewSystem()

	prev := c.Now()
	for i := 0; i < 1000; i++ {
		now := c.Now()
		if !now.After(prev) {
			t.Fatalf("clock went backwards or stalled: %v then %v", prev, now)
		}
		prev = now
	}
}

func TestSystem_ConcurrentCallsAreDistinct(t *testing.T) {
	c := NewSystem()

	const goroutines = 8
	const callsEach = 200

	var mu sync.Mutex
	seen := make(map[int64]struct{}, goroutines*callsEach)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < callsEach; i++ {
				ts := c.Now().UnixNano()
				mu.Lock()
				seen[ts] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != goroutines*callsEach {
		t.Errorf("expected %d distinct timestamps, got %d", goroutines*callsEach, len(seen))
	}
}

func TestFixed_AdvanceMovesClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFixed(start)

	if got := c.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}

	c.Advance(5 * time.Second)

	if got := c.Now(); !got.Equal(start.Add(5 * time.Second)) {
		t.Errorf("Now() after Advance = %v, want %v", got, start.Add(5*time.Second))
	}
}
