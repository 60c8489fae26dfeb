package reduce

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"BlockProver/internal/gate"
	"BlockProver/internal/logger"
	"BlockProver/internal/proof"
)

// Pairing selects the shape of the fold.
type Pairing uint8

const (
	// PairTree combines adjacent pairs layer by layer, in parallel.
	PairTree Pairing = iota

	// PairLeft folds strictly left to right: ((a·b)·c)·d.
	PairLeft

	// PairRight folds strictly right to left: a·(b·(c·d)).
	PairRight
)

// String returns the pairing name.
func (p Pairing) String() string {
	switch p {
	case PairTree:
		return "tree"
	case PairLeft:
		return "left"
	case PairRight:
		return "right"
	default:
		return "unknown"
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithPairing sets the fold shape.
func WithPairing(p Pairing) Option {
	return func(e *Engine) {
		e.pairing = p
	}
}

// WithFoldWorkers bounds the number of concurrent combines.
func WithFoldWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.foldWorkers = n
		}
	}
}

// Engine runs the map and fold stages of a proving run in-process.
type Engine struct {
	alg         proof.Algebra // alg is the proving collaborator
	limit       int           // limit bounds concurrent leaf computations
	pairing     Pairing       // pairing is the fold shape
	foldWorkers int           // foldWorkers bounds concurrent combines
}

// New creates an engine admitting at most limit concurrent leaf computations.
func New(alg proof.Algebra, limit int, opts ...Option) (*Engine, error) {
	if limit < 1 {
		return nil, fmt.Errorf("engine limit %d: %w", limit, proof.ErrInvalidLimit)
	}

	e := &Engine{
		alg:         alg,
		limit:       limit,
		pairing:     PairTree,
		foldWorkers: runtime.GOMAXPROCS(0),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Run maps every input to a leaf aggregate and folds them into one.
// An empty input yields Identity. The first failure aborts the run.
func (e *Engine) Run(inputs []proof.TxProofInput) (proof.Aggregate, error) {
	done := logger.Stage("generate tx proofs", "txs", len(inputs), "limit", e.limit)
	leaves, err := e.Map(inputs)
	if err != nil {
		return proof.Aggregate{}, err
	}
	done()

	done = logger.Stage("aggregate proofs", "leaves", len(leaves), "pairing", e.pairing)
	agg, err := e.Fold(leaves)
	if err != nil {
		return proof.Aggregate{}, err
	}
	done()

	return agg, nil
}

// Map computes the leaf aggregate of every input, in parallel under the gate.
// Results are returned in input order.
func (e *Engine) Map(inputs []proof.TxProofInput) ([]proof.Aggregate, error) {
	g, err := gate.New(e.limit)
	if err != nil {
		return nil, err
	}

	results := make([]proof.Aggregate, len(inputs))
	run := newFirstError()

	var wg sync.WaitGroup

	for i, in := range inputs {
		wg.Add(1)

		go func(idx int, in proof.TxProofInput) {
			defer wg.Done()

			err := g.Do(func() error {
				if run.failed() {
					return nil
				}

				agg, err := e.leaf(in)
				if err != nil {
					return err
				}

				results[idx] = agg

				return nil
			})

			if err != nil {
				run.set(err)
			}
		}(i, in)
	}

	wg.Wait()

	if err := run.get(); err != nil {
		logger.Warn("map stage aborted", "error", err)
		return nil, err
	}

	return results, nil
}

// leaf proves one input, converting a prover panic into a LeafComputationError.
func (e *Engine) leaf(in proof.TxProofInput) (agg proof.Aggregate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &proof.LeafComputationError{Index: in.Index, Err: fmt.Errorf("prover panic: %v", r)}
		}
	}()

	return proof.LeafAggregate(e.alg, in)
}

// Fold reduces items into one aggregate, seeded with Identity.
func (e *Engine) Fold(items []proof.Aggregate) (proof.Aggregate, error) {
	switch e.pairing {
	case PairLeft:
		return e.foldLeft(items)
	case PairRight:
		return e.foldRight(items)
	default:
		return e.foldTree(items)
	}
}

// foldLeft combines items sequentially from the left.
func (e *Engine) foldLeft(items []proof.Aggregate) (proof.Aggregate, error) {
	acc := proof.Identity()

	for _, it := range items {
		var err error
		if acc, err = e.combine(acc, it); err != nil {
			return proof.Aggregate{}, err
		}
	}

	return acc, nil
}

// foldRight combines items sequentially from the right.
func (e *Engine) foldRight(items []proof.Aggregate) (proof.Aggregate, error) {
	acc := proof.Identity()

	for i := len(items) - 1; i >= 0; i-- {
		var err error
		if acc, err = e.combine(items[i], acc); err != nil {
			return proof.Aggregate{}, err
		}
	}

	return acc, nil
}

// foldTree combines adjacent pairs layer by layer until one value remains.
// Each layer runs its combines in parallel, bounded by foldWorkers.
func (e *Engine) foldTree(items []proof.Aggregate) (proof.Aggregate, error) {
	if len(items) == 0 {
		return proof.Identity(), nil
	}

	g, err := gate.New(e.foldWorkers)
	if err != nil {
		return proof.Aggregate{}, err
	}

	layer := items
	depth := 0

	for len(layer) > 1 {
		next := make([]proof.Aggregate, (len(layer)+1)/2)
		run := newFirstError()

		var wg sync.WaitGroup

		for i := 0; i+1 < len(layer); i += 2 {
			wg.Add(1)

			go func(slot int, a, b proof.Aggregate) {
				defer wg.Done()

				err := g.Do(func() error {
					if run.failed() {
						return nil
					}

					merged, err := e.combine(a, b)
					if err != nil {
						return err
					}

					next[slot] = merged

					return nil
				})

				if err != nil {
					run.set(err)
				}
			}(i/2, layer[i], layer[i+1])
		}

		// Odd element is carried to the next layer unchanged.
		if len(layer)%2 == 1 {
			next[len(next)-1] = layer[len(layer)-1]
		}

		wg.Wait()

		if err := run.get(); err != nil {
			logger.Warn("fold stage aborted", "layer", depth, "error", err)
			return proof.Aggregate{}, err
		}

		logger.Debug("fold layer done", "layer", depth, "width", len(next))

		layer = next
		depth++
	}

	return layer[0], nil
}

// combine merges two aggregates, converting a prover panic into a CombineError.
func (e *Engine) combine(a, b proof.Aggregate) (agg proof.Aggregate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &proof.CombineError{Err: fmt.Errorf("prover panic: %v", r)}
		}
	}()

	return proof.Combine(e.alg, a, b)
}

// firstError records the first failure of a stage.
type firstError struct {
	flag atomic.Bool // flag is set once an error is recorded
	mu   sync.Mutex  // mu protects err
	err  error       // err is the first recorded error
}

func newFirstError() *firstError {
	return &firstError{}
}

// set records err if no error was recorded yet.
func (f *firstError) set(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err == nil {
		f.err = err
		f.flag.Store(true)
	}
}

// failed reports whether an error was recorded.
func (f *firstError) failed() bool {
	return f.flag.Load()
}

// get returns the recorded error.
func (f *firstError) get() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.err
}
