package gate

import (
	"fmt"
	"sync"

	"BlockProver/internal/proof"
)

// Gate is a counting admission gate bounding concurrent computations.
// Waiters are woken one per released permit, in arrival order.
type Gate struct {
	mu       sync.Mutex // mu protects inFlight and peak
	cond     *sync.Cond // cond signals a freed permit
	limit    int        // limit is the maximum number of admitted computations
	inFlight int        // inFlight is the number of held permits, in [0, limit]
	peak     int        // peak is the highest inFlight observed
}

// New creates a gate admitting at most limit computations.
// A limit below one could never admit work and is rejected.
func New(limit int) (*Gate, error) {
	if limit < 1 {
		return nil, fmt.Errorf("gate limit %d: %w", limit, proof.ErrInvalidLimit)
	}

	g := &Gate{limit: limit}
	g.cond = sync.NewCond(&g.mu)

	return g, nil
}

// Acquire blocks until a permit is free and takes it.
func (g *Gate) Acquire() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for g.inFlight >= g.limit {
		g.cond.Wait()
	}

	g.inFlight++
	if g.inFlight > g.peak {
		g.peak = g.inFlight
	}
}

// Release returns a permit and wakes one waiter.
// Releasing without a held permit is a programming error and panics.
func (g *Gate) Release() {
	g.mu.Lock()

	if g.inFlight == 0 {
		g.mu.Unlock()
		panic("gate: release without acquire")
	}

	g.inFlight--
	g.mu.Unlock()

	g.cond.Signal()
}

// Do runs fn while holding a permit.
// The permit is released on every exit path, including a panic in fn.
func (g *Gate) Do(fn func() error) error {
	g.Acquire()
	defer g.Release()

	return fn()
}

// Limit returns the admission limit.
func (g *Gate) Limit() int {
	return g.limit
}

// InFlight returns the number of held permits.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.inFlight
}

// Peak returns the highest number of simultaneously held permits.
func (g *Gate) Peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.peak
}
