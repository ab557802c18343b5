package registry

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency caps in-flight outbound calls.
const DefaultConcurrency = 10

// Limiter gates outbound calls behind a shared semaphore and records how many
// ran at once. Ordering of waiting callers is not guaranteed.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64
	peak     atomic.Int64
	calls    atomic.Int64
}

// NewLimiter returns a limiter allowing n concurrent calls (n < 1 means DefaultConcurrency).
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = DefaultConcurrency
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n)), capacity: int64(n)}
}

// Do waits for a slot, then runs fn with a context bounded by timeout. The
// timeout starts once the slot is held; zero means no extra deadline.
func (l *Limiter) Do(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)

	n := l.inFlight.Add(1)
	defer l.inFlight.Add(-1)
	l.calls.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

// Cap is the configured concurrency ceiling.
func (l *Limiter) Cap() int { return int(l.capacity) }

// InFlight is the number of calls currently holding a slot.
func (l *Limiter) InFlight() int { return int(l.inFlight.Load()) }

// Peak is the highest InFlight value observed.
func (l *Limiter) Peak() int { return int(l.peak.Load()) }

// Calls is the number of calls that have acquired a slot.
func (l *Limiter) Calls() int { return int(l.calls.Load()) }
