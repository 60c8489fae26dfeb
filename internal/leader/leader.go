// Package leader proves blocks locally or on a distributed runtime.
package leader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"BlockProver/internal/finalize"
	"BlockProver/internal/logger"
	"BlockProver/internal/pipeline"
	"BlockProver/internal/proof"
	"BlockProver/internal/reduce"
	"BlockProver/internal/storage"
)

// Option configures a Leader.
type Option func(*Leader)

// WithStore persists finished block proofs in s.
func WithStore(s *storage.Store) Option {
	return func(l *Leader) {
		l.store = s
	}
}

// WithChaining links each block to the latest stored block when no
// previous block is given. It requires a store.
func WithChaining(on bool) Option {
	return func(l *Leader) {
		l.chain = on
	}
}

// WithEngineOptions configures the local reduction engine.
func WithEngineOptions(opts ...reduce.Option) Option {
	return func(l *Leader) {
		l.engineOpts = append(l.engineOpts, opts...)
	}
}

// Leader runs proving requests end to end: aggregate, finalize, persist.
type Leader struct {
	alg        proof.Algebra   // alg is the proving collaborator for local runs
	store      *storage.Store  // store persists block proofs, may be nil
	chain      bool            // chain links blocks to the latest stored one
	engineOpts []reduce.Option // engineOpts configures local engines

	mu sync.Mutex // mu serializes stored runs so each takes a free height
}

// New creates a leader proving locally with alg.
func New(alg proof.Algebra, opts ...Option) *Leader {
	l := &Leader{alg: alg}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// ProveLocal proves inputs in-process with at most limit concurrent leaf
// computations and wraps the aggregate into a block following prev.
func (l *Leader) ProveLocal(ctx context.Context, inputs []proof.TxProofInput, limit int, prev *proof.BlockProof) (*proof.BlockProof, error) {
	engine, err := reduce.New(l.alg, limit, l.engineOpts...)
	if err != nil {
		return nil, err
	}

	return l.prove(ctx, prev, "local", func() (proof.Aggregate, finalize.Wrapper, error) {
		agg, err := engine.Run(inputs)
		return agg, finalize.NewAlgebraWrapper(l.alg), err
	})
}

// ProveDistributed proves inputs on rt and wraps the aggregate on rt into a
// block following prev.
func (l *Leader) ProveDistributed(ctx context.Context, inputs []proof.TxProofInput, rt pipeline.Runtime, prev *proof.BlockProof) (*proof.BlockProof, error) {
	driver := pipeline.NewDriver(rt)

	return l.prove(ctx, prev, "distributed", func() (proof.Aggregate, finalize.Wrapper, error) {
		agg, err := driver.Aggregate(ctx, inputs)
		return agg, driver, err
	})
}

// Latest returns the latest stored block, or nil without a store or blocks.
func (l *Leader) Latest() (*proof.BlockProof, error) {
	if l.store == nil {
		return nil, nil
	}

	b, err := l.store.Latest()
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}

	return b, err
}

// prove runs aggregate, then finalizes and persists the block.
func (l *Leader) prove(
	ctx context.Context,
	prev *proof.BlockProof,
	mode string,
	aggregate func() (proof.Aggregate, finalize.Wrapper, error),
) (*proof.BlockProof, error) {
	if l.store != nil {
		l.mu.Lock()
		defer l.mu.Unlock()
	}

	lineage, err := l.lineage(prev)
	if err != nil {
		return nil, err
	}

	done := logger.Stage("prove block", "mode", mode, "height", lineage.Height, "parent", lineage.HasParent)

	agg, wrapper, err := aggregate()
	if err != nil {
		return nil, err
	}

	block, err := finalize.New(wrapper).FinalizeAt(ctx, agg, lineage)
	if err != nil {
		return nil, err
	}

	if l.store != nil {
		if err := l.store.PutBlock(block); err != nil {
			return nil, fmt.Errorf("store block %d:\n%w", block.Height, err)
		}
	}

	done()

	return block, nil
}

// lineage places the next block. An explicit prev always wins. Otherwise a
// chained leader follows the latest stored block, and an unchained one takes
// the next free height in the store without a parent link.
func (l *Leader) lineage(prev *proof.BlockProof) (proof.Lineage, error) {
	if prev != nil || l.store == nil {
		return proof.LineageAfter(prev), nil
	}

	latest, err := l.Latest()
	if err != nil {
		return proof.Lineage{}, fmt.Errorf("load latest block:\n%w", err)
	}

	if l.chain || latest == nil {
		return proof.LineageAfter(latest), nil
	}

	return proof.Lineage{Height: latest.Height + 1}, nil
}
