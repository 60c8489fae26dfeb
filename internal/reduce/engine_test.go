package reduce

import (
	"errors"
	"testing"
	"time"

	"BlockProver/internal/proof"
	"BlockProver/internal/proof/prooftest"
)

// newTestEngine creates an engine over alg or fails the test.
func newTestEngine(t *testing.T, alg proof.Algebra, limit int, opts ...Option) *Engine {
	t.Helper()

	e, err := New(alg, limit, opts...)
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}

	return e
}

// TestRunEmptyYieldsIdentity tests that an empty batch reduces to Identity.
func TestRunEmptyYieldsIdentity(t *testing.T) {
	e := newTestEngine(t, prooftest.New(), 2)

	agg, err := e.Run(nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !agg.IsIdentity() {
		t.Errorf("expected Identity, got %v", agg)
	}
}

// TestRunSingleInput tests that one input yields its lifted leaf proof.
func TestRunSingleInput(t *testing.T) {
	alg := prooftest.New()
	e := newTestEngine(t, alg, 2)
	payloads := prooftest.Payloads(1)

	agg, err := e.Run(proof.Inputs(payloads))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want, err := proof.LeafAggregate(alg, proof.TxProofInput{Index: 0, Payload: payloads[0]})
	if err != nil {
		t.Fatalf("leaf: %v", err)
	}

	if !proof.Equal(agg, want) {
		t.Errorf("got %v, want %v", agg, want)
	}

	if alg.CombineCount() != 0 {
		t.Errorf("single input should not combine, got %d combines", alg.CombineCount())
	}
}

// TestPairingsAgree tests that every fold shape yields the same aggregate.
func TestPairingsAgree(t *testing.T) {
	for _, n := range []int{2, 3, 4, 7, 16, 33} {
		payloads := prooftest.Payloads(n)
		want := prooftest.Expected(payloads)

		for _, p := range []Pairing{PairTree, PairLeft, PairRight} {
			e := newTestEngine(t, prooftest.New(), 3, WithPairing(p), WithFoldWorkers(2))

			got, err := e.Run(proof.Inputs(payloads))
			if err != nil {
				t.Fatalf("n=%d %s: run: %v", n, p, err)
			}

			if !proof.Equal(got, want) {
				t.Errorf("n=%d %s: aggregate differs from expected", n, p)
			}

			if got.Leaves() != uint32(n) {
				t.Errorf("n=%d %s: leaves %d", n, p, got.Leaves())
			}
		}
	}
}

// TestMapRespectsLimit tests peak leaf concurrency never exceeds the limit.
func TestMapRespectsLimit(t *testing.T) {
	const n = 48

	for _, limit := range []int{1, 4, n} {
		alg := prooftest.New()
		alg.LeafDelay = 2 * time.Millisecond

		e := newTestEngine(t, alg, limit)

		if _, err := e.Run(proof.Inputs(prooftest.Payloads(n))); err != nil {
			t.Fatalf("limit %d: run: %v", limit, err)
		}

		if alg.Peak() > limit {
			t.Errorf("limit %d: observed concurrency %d", limit, alg.Peak())
		}

		if alg.LeafCount() != n {
			t.Errorf("limit %d: proved %d leaves, want %d", limit, alg.LeafCount(), n)
		}
	}
}

// TestFourInputsLimitTwo tests the four-transaction scenario.
func TestFourInputsLimitTwo(t *testing.T) {
	alg := prooftest.New()
	alg.LeafDelay = 5 * time.Millisecond

	e := newTestEngine(t, alg, 2)
	payloads := prooftest.Payloads(4)

	agg, err := e.Run(proof.Inputs(payloads))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !proof.Equal(agg, prooftest.Expected(payloads)) {
		t.Errorf("aggregate does not combine all four leaves: %v", agg)
	}

	if alg.Peak() > 2 {
		t.Errorf("peak concurrency %d > 2", alg.Peak())
	}
}

// TestFailingLeafAbortsRun tests fail-fast on a leaf error.
func TestFailingLeafAbortsRun(t *testing.T) {
	alg := prooftest.New()
	alg.FailLeaf = 5

	e := newTestEngine(t, alg, 2)

	agg, err := e.Run(proof.Inputs(prooftest.Payloads(12)))

	var le *proof.LeafComputationError
	if !errors.As(err, &le) {
		t.Fatalf("expected LeafComputationError, got %v", err)
	}

	if le.Index != 5 {
		t.Errorf("failing index: got %d, want 5", le.Index)
	}

	if !agg.IsIdentity() {
		t.Error("partial aggregate returned on failure")
	}

	if alg.CombineCount() != 0 {
		t.Error("fold ran after a map failure")
	}
}

// TestPanickingLeafReleasesGate tests that a prover panic is reported and does not leak permits.
func TestPanickingLeafReleasesGate(t *testing.T) {
	alg := prooftest.New()
	alg.PanicLeaf = 0

	e := newTestEngine(t, alg, 1)

	done := make(chan error, 1)
	go func() {
		_, err := e.Run(proof.Inputs(prooftest.Payloads(6)))
		done <- err
	}()

	select {
	case err := <-done:
		var le *proof.LeafComputationError
		if !errors.As(err, &le) {
			t.Fatalf("expected LeafComputationError, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run deadlocked after prover panic")
	}
}

// TestFailingCombineAbortsRun tests fail-fast on a combine error.
func TestFailingCombineAbortsRun(t *testing.T) {
	for _, p := range []Pairing{PairTree, PairLeft, PairRight} {
		alg := prooftest.New()
		alg.FailCombines = true

		e := newTestEngine(t, alg, 4, WithPairing(p))

		_, err := e.Run(proof.Inputs(prooftest.Payloads(5)))

		var ce *proof.CombineError
		if !errors.As(err, &ce) {
			t.Errorf("%s: expected CombineError, got %v", p, err)
		}
	}
}

// TestNewRejectsZeroLimit tests that the engine refuses a zero limit.
func TestNewRejectsZeroLimit(t *testing.T) {
	if _, err := New(prooftest.New(), 0); !errors.Is(err, proof.ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
}

// TestFoldIdentityItems tests that Identity items are absorbed.
func TestFoldIdentityItems(t *testing.T) {
	e := newTestEngine(t, prooftest.New(), 1)
	x := proof.Of(proof.AggProof{Leaves: 1, Data: []byte{7}})

	got, err := e.Fold([]proof.Aggregate{proof.Identity(), x, proof.Identity()})
	if err != nil {
		t.Fatalf("fold: %v", err)
	}

	if !proof.Equal(got, x) {
		t.Errorf("got %v, want %v", got, x)
	}
}

// BenchmarkRun benchmarks a 256-input run.
func BenchmarkRun(b *testing.B) {
	inputs := proof.Inputs(prooftest.Payloads(256))
	e, _ := New(prooftest.New(), 8)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := e.Run(inputs); err != nil {
			b.Fatal(err)
		}
	}
}
