package finalize

import (
	"context"
	"errors"
	"testing"

	"BlockProver/internal/proof"
	"BlockProver/internal/proof/prooftest"
)

// errWrapper fails every wrap with err.
type errWrapper struct {
	err error
}

func (w errWrapper) Wrap(context.Context, proof.AggProof, proof.Lineage) (proof.BlockProof, error) {
	return proof.BlockProof{}, w.err
}

// panicAlgebra panics on WrapBlock.
type panicAlgebra struct {
	*prooftest.Algebra
}

func (panicAlgebra) WrapBlock(proof.AggProof, proof.Lineage) ([]byte, error) {
	panic("wrap circuit crashed")
}

// TestFinalizeRoot tests a first block without a predecessor.
func TestFinalizeRoot(t *testing.T) {
	alg := prooftest.New()
	f := New(NewAlgebraWrapper(alg))

	agg := prooftest.Expected(prooftest.Payloads(3))

	block, err := f.Finalize(context.Background(), agg, nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if block.Height != 0 || block.HasParent || block.Leaves != 3 {
		t.Errorf("root block header: %+v", block)
	}

	if f.State() != Finalized || f.Block() != block {
		t.Errorf("state %s, block %p", f.State(), f.Block())
	}
}

// TestFinalizeChainsLineage tests linking to a previous block.
func TestFinalizeChainsLineage(t *testing.T) {
	alg := prooftest.New()
	w := NewAlgebraWrapper(alg)

	prev, err := New(w).Finalize(context.Background(), prooftest.Expected(prooftest.Payloads(1)), nil)
	if err != nil {
		t.Fatalf("finalize root: %v", err)
	}

	next, err := New(w).Finalize(context.Background(), prooftest.Expected(prooftest.Payloads(2)), prev)
	if err != nil {
		t.Fatalf("finalize child: %v", err)
	}

	if next.Height != prev.Height+1 || !next.HasParent || next.Parent != prev.Hash() {
		t.Errorf("child lineage: %+v", next.Lineage())
	}

	wraps := alg.Wraps()
	if len(wraps) != 2 || wraps[1] != next.Lineage() {
		t.Errorf("algebra saw lineages %v", wraps)
	}
}

// TestFinalizeAtHeight tests placing a block at an explicit lineage.
func TestFinalizeAtHeight(t *testing.T) {
	alg := prooftest.New()
	f := New(NewAlgebraWrapper(alg))

	block, err := f.FinalizeAt(context.Background(), prooftest.Expected(prooftest.Payloads(2)), proof.Lineage{Height: 7})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if block.Height != 7 || block.HasParent {
		t.Errorf("block lineage: %+v", block.Lineage())
	}

	if _, err := f.FinalizeAt(context.Background(), prooftest.Expected(prooftest.Payloads(2)), proof.Lineage{Height: 8}); !errors.Is(err, ErrTerminal) {
		t.Errorf("second call: expected ErrTerminal, got %v", err)
	}
}

// TestFinalizeIdentity tests that an empty aggregate cannot be finalized.
func TestFinalizeIdentity(t *testing.T) {
	alg := prooftest.New()
	f := New(NewAlgebraWrapper(alg))

	_, err := f.Finalize(context.Background(), proof.Identity(), nil)

	var ee *proof.EmptyAggregateError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EmptyAggregateError, got %v", err)
	}

	if f.State() != Failed || !errors.As(f.Err(), &ee) {
		t.Errorf("state %s, err %v", f.State(), f.Err())
	}

	if len(alg.Wraps()) != 0 {
		t.Error("identity reached the wrap circuit")
	}
}

// TestFinalizeWrapFailures tests how wrap failures are reported.
func TestFinalizeWrapFailures(t *testing.T) {
	agg := prooftest.Expected(prooftest.Payloads(2))

	failing := prooftest.New()
	failing.FailWrap = true

	tests := []struct {
		name    string
		wrapper Wrapper
		stage   proof.Stage
	}{
		{"algebra error", NewAlgebraWrapper(failing), proof.StageWrap},
		{"algebra panic", NewAlgebraWrapper(panicAlgebra{prooftest.New()}), proof.StageWrap},
		{"untyped error", errWrapper{errors.New("disk full")}, proof.StageWrap},
		{"runtime error", errWrapper{&proof.RuntimeError{Op: "await", Err: errors.New("gone")}}, proof.StageRuntime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.wrapper)

			_, err := f.Finalize(context.Background(), agg, nil)
			if err == nil {
				t.Fatal("expected failure")
			}

			stage, ok := proof.StageOf(err)
			if !ok || stage != tt.stage {
				t.Errorf("stage: got %q, want %q (%v)", stage, tt.stage, err)
			}

			if f.State() != Failed {
				t.Errorf("state: got %s, want failed", f.State())
			}
		})
	}
}

// TestFinalizeIsTerminal tests that neither terminal state accepts another call.
func TestFinalizeIsTerminal(t *testing.T) {
	agg := prooftest.Expected(prooftest.Payloads(1))

	done := New(NewAlgebraWrapper(prooftest.New()))
	if _, err := done.Finalize(context.Background(), agg, nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	failed := New(NewAlgebraWrapper(prooftest.New()))
	failed.Finalize(context.Background(), proof.Identity(), nil)

	for _, f := range []*Finalizer{done, failed} {
		if _, err := f.Finalize(context.Background(), agg, nil); !errors.Is(err, ErrTerminal) {
			t.Errorf("%s: expected ErrTerminal, got %v", f.State(), err)
		}
	}

	if done.State() != Finalized || failed.State() != Failed {
		t.Error("terminal state changed by a rejected call")
	}
}
