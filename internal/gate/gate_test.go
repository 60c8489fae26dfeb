package gate

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"BlockProver/internal/proof"
)

// TestNewRejectsZeroLimit tests that a gate that could never admit work fails fast.
func TestNewRejectsZeroLimit(t *testing.T) {
	for _, limit := range []int{0, -3} {
		if _, err := New(limit); !errors.Is(err, proof.ErrInvalidLimit) {
			t.Errorf("New(%d): expected ErrInvalidLimit, got %v", limit, err)
		}
	}
}

// TestGateBoundsConcurrency tests that at most limit computations run at once.
func TestGateBoundsConcurrency(t *testing.T) {
	for _, limit := range []int{1, 4, 32} {
		g, err := New(limit)
		if err != nil {
			t.Fatalf("new gate: %v", err)
		}

		var running, peak atomic.Int64
		var wg sync.WaitGroup

		for i := 0; i < 64; i++ {
			wg.Add(1)

			go func() {
				defer wg.Done()

				g.Do(func() error {
					n := running.Add(1)
					defer running.Add(-1)

					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}

					time.Sleep(time.Millisecond)

					return nil
				})
			}()
		}

		wg.Wait()

		if got := int(peak.Load()); got > limit {
			t.Errorf("limit %d: observed concurrency %d", limit, got)
		}

		if g.Peak() > limit {
			t.Errorf("limit %d: gate peak %d", limit, g.Peak())
		}

		if g.InFlight() != 0 {
			t.Errorf("limit %d: %d permits leaked", limit, g.InFlight())
		}
	}
}

// TestDoReleasesOnError tests release after a failing computation.
func TestDoReleasesOnError(t *testing.T) {
	g, _ := New(1)
	want := errors.New("boom")

	if err := g.Do(func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("Do returned %v", err)
	}

	if g.InFlight() != 0 {
		t.Fatal("permit not released after error")
	}
}

// TestDoReleasesOnPanic tests release after a panicking computation.
func TestDoReleasesOnPanic(t *testing.T) {
	g, _ := New(1)

	func() {
		defer func() { recover() }()

		g.Do(func() error { panic("prover crashed") })
	}()

	if g.InFlight() != 0 {
		t.Fatal("permit not released after panic")
	}

	admitted := make(chan struct{})
	go func() {
		g.Acquire()
		close(admitted)
	}()

	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatal("gate lost capacity after panic")
	}

	g.Release()
}

// TestAcquireBlocksWhenSaturated tests that a saturated gate admits nobody.
func TestAcquireBlocksWhenSaturated(t *testing.T) {
	g, _ := New(2)
	g.Acquire()
	g.Acquire()

	admitted := make(chan struct{})
	go func() {
		g.Acquire()
		close(admitted)
	}()

	select {
	case <-admitted:
		t.Fatal("waiter admitted while saturated")
	case <-time.After(50 * time.Millisecond):
	}

	g.Release()

	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatal("waiter not woken after release")
	}

	g.Release()
	g.Release()
}

// TestNoStarvation tests that every waiter eventually runs.
func TestNoStarvation(t *testing.T) {
	g, _ := New(1)

	const waiters = 100
	var done atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Do(func() error {
				done.Add(1)
				return nil
			})
		}()
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatalf("only %d of %d waiters ran", done.Load(), waiters)
	}
}

// TestReleaseWithoutAcquirePanics tests misuse detection.
func TestReleaseWithoutAcquirePanics(t *testing.T) {
	g, _ := New(1)

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()

	g.Release()
}

// BenchmarkGateDo benchmarks uncontended scoped acquisition.
func BenchmarkGateDo(b *testing.B) {
	g, _ := New(4)
	noop := func() error { return nil }

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			g.Do(noop)
		}
	})
}
