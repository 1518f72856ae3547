package pagesift

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiter_NeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	lim := newLimiter(capacity)

	var current, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := lim.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer lim.Release()

			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&current, -1)
		}()
	}
	wg.Wait()

	if peak > capacity {
		t.Errorf("limiter granted %d simultaneous permits, capacity %d", peak, capacity)
	}
}

func TestLimiter_AcquireBlocksUntilRelease(t *testing.T) {
	lim := newLimiter(1)
	if err := lim.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		if err := lim.Acquire(context.Background()); err != nil {
			t.Errorf("second Acquire failed: %v", err)
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("Acquire should block while at capacity")
	case <-time.After(20 * time.Millisecond):
	}

	lim.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Acquire should proceed after Release")
	}
}

func TestLimiter_AcquireHonorsContext(t *testing.T) {
	lim := newLimiter(1)
	if err := lim.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := lim.Acquire(ctx); err == nil {
		t.Error("expected context error while at capacity")
	}
}

func TestLimiter_ReleaseClamped(t *testing.T) {
	lim := newLimiter(2)

	// Releasing with nothing held must not add phantom permits.
	lim.Release()
	lim.Release()

	for i := 0; i < 2; i++ {
		if err := lim.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := lim.Acquire(ctx); err == nil {
		t.Error("capacity should still be 2 after over-release")
	}
}
