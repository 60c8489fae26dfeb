// Package finalize turns a completed aggregate into a block proof.
package finalize

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"BlockProver/internal/logger"
	"BlockProver/internal/proof"
)

// ErrTerminal is returned when a finalizer that already finished is used again.
var ErrTerminal = errors.New("finalizer is in a terminal state")

// State is the lifecycle position of a Finalizer.
type State uint8

const (
	// Aggregating means no aggregate has been finalized yet.
	Aggregating State = iota

	// Finalized means a block proof was produced.
	Finalized

	// Failed means finalization failed. There is no retry.
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Aggregating:
		return "aggregating"
	case Finalized:
		return "finalized"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Wrapper produces a block proof from a completed aggregate.
type Wrapper interface {
	Wrap(ctx context.Context, agg proof.AggProof, lineage proof.Lineage) (proof.BlockProof, error)
}

// AlgebraWrapper wraps aggregates in-process with an algebra.
type AlgebraWrapper struct {
	alg proof.Algebra // alg performs the block wrap
}

// NewAlgebraWrapper creates a wrapper over alg.
func NewAlgebraWrapper(alg proof.Algebra) *AlgebraWrapper {
	return &AlgebraWrapper{alg: alg}
}

// Wrap calls the algebra's block wrap. Failures and panics are reported as WrapError.
func (w *AlgebraWrapper) Wrap(_ context.Context, agg proof.AggProof, lineage proof.Lineage) (block proof.BlockProof, err error) {
	defer func() {
		if r := recover(); r != nil {
			block, err = proof.BlockProof{}, &proof.WrapError{Err: fmt.Errorf("prover panic: %v", r)}
		}
	}()

	data, err := w.alg.WrapBlock(agg, lineage)
	if err != nil {
		return proof.BlockProof{}, &proof.WrapError{Err: err}
	}

	return proof.BlockProof{
		Height:    lineage.Height,
		Leaves:    agg.Leaves,
		Parent:    lineage.Parent,
		HasParent: lineage.HasParent,
		Data:      data,
	}, nil
}

// Finalizer wraps exactly one aggregate into a block proof.
//
// It starts in Aggregating and moves to Finalized or Failed on the first
// Finalize call. Both are terminal.
type Finalizer struct {
	wrapper Wrapper // wrapper produces the block proof

	mu    sync.Mutex        // mu protects the fields below
	state State             // state is the lifecycle position
	block *proof.BlockProof // block is set once Finalized
	err   error             // err is set once Failed
}

// New creates a finalizer in the Aggregating state.
func New(w Wrapper) *Finalizer {
	return &Finalizer{wrapper: w}
}

// Finalize wraps agg into a block proof following prev, which may be nil.
// Identity fails with EmptyAggregateError. Wrap failures that do not carry a
// stage are reported as WrapError.
func (f *Finalizer) Finalize(ctx context.Context, agg proof.Aggregate, prev *proof.BlockProof) (*proof.BlockProof, error) {
	return f.FinalizeAt(ctx, agg, proof.LineageAfter(prev))
}

// FinalizeAt wraps agg into a block proof placed at lineage.
func (f *Finalizer) FinalizeAt(ctx context.Context, agg proof.Aggregate, lineage proof.Lineage) (*proof.BlockProof, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != Aggregating {
		return nil, fmt.Errorf("finalize in state %s: %w", f.state, ErrTerminal)
	}

	block, err := f.finalize(ctx, agg, lineage)
	if err != nil {
		f.state, f.err = Failed, err
		logger.Warn("finalization failed", "error", err)

		return nil, err
	}

	f.state, f.block = Finalized, block

	logger.Info("block finalized",
		"height", block.Height,
		"leaves", block.Leaves,
		"parent", block.HasParent,
	)

	return block, nil
}

// finalize performs the wrap without touching the state.
func (f *Finalizer) finalize(ctx context.Context, agg proof.Aggregate, lineage proof.Lineage) (*proof.BlockProof, error) {
	p, ok := agg.Proof()
	if !ok {
		return nil, &proof.EmptyAggregateError{}
	}

	block, err := f.wrapper.Wrap(ctx, p, lineage)
	if err != nil {
		if _, typed := proof.StageOf(err); typed {
			return nil, err
		}

		return nil, &proof.WrapError{Err: err}
	}

	return &block, nil
}

// State returns the current state.
func (f *Finalizer) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state
}

// Block returns the block proof once Finalized, or nil.
func (f *Finalizer) Block() *proof.BlockProof {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.block
}

// Err returns the failure once Failed, or nil.
func (f *Finalizer) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.err
}
