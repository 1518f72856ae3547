package pagesift

import "context"

// limiter is a counting semaphore bounding in-flight extractions
// during a batch. Acquire blocks until a permit is free or the
// context is done; Release is clamped, so releasing without a held
// permit is a no-op rather than a capacity leak.
type limiter struct {
	permits chan struct{}
}

func newLimiter(n int) *limiter {
	if n < 1 {
		n = 1
	}
	return &limiter{permits: make(chan struct{}, n)}
}

func (l *limiter) Acquire(ctx context.Context) error {
	select {
	case l.permits <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limiter) Release() {
	select {
	case <-l.permits:
	default:
	}
}
