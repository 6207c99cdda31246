package extract

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of concurrently in-flight engine invocations.
// Waiters queue first-come-first-served; excess demand queues in memory
// with no depth limit.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64
}

// NewGate creates a gate with the given capacity (minimum 1).
func NewGate(capacity int) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.inFlight.Add(1)
	return nil
}

// Release returns a slot. Must be called exactly once per successful
// Acquire, on every exit path.
func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// Capacity returns the configured slot count.
func (g *Gate) Capacity() int64 {
	return g.capacity
}

// InFlight returns the number of currently held slots.
func (g *Gate) InFlight() int64 {
	return g.inFlight.Load()
}
