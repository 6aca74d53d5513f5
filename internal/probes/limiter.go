package probes

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter bounds the number of in-flight probes and, optionally, the rate at
// which new probes start. Waiters are admitted in FIFO order.
type Limiter struct {
	sem      *semaphore.Weighted
	pace     *rate.Limiter
	capacity int

	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewLimiter creates a limiter admitting capacity concurrent probes. A
// positive perSecond additionally paces probe starts.
func NewLimiter(capacity, perSecond int) *Limiter {
	if capacity <= 0 {
		capacity = 1
	}
	l := &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
	if perSecond > 0 {
		l.pace = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return l
}

// Acquire blocks until a slot is free. It only fails if ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if l.pace != nil {
		if err := l.pace.Wait(ctx); err != nil {
			l.sem.Release(1)
			return err
		}
	}
	n := l.inFlight.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return nil
}

// Release returns a slot taken by Acquire.
func (l *Limiter) Release() {
	l.inFlight.Add(-1)
	l.sem.Release(1)
}

// Capacity returns the configured concurrency limit.
func (l *Limiter) Capacity() int {
	return l.capacity
}

// Peak returns the highest number of simultaneously held slots observed.
func (l *Limiter) Peak() int {
	return int(l.peak.Load())
}
