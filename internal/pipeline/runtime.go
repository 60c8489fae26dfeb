package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"BlockProver/internal/proof"
)

var (
	// ErrUnknownJob is returned for a job ID the runtime does not track.
	ErrUnknownJob = errors.New("unknown job")

	// ErrJobCancelled is reported by jobs stopped through Cancel.
	ErrJobCancelled = errors.New("job cancelled")
)

// JobID identifies a submitted directive.
type JobID uint64

// String returns the decimal job ID.
func (id JobID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Result is the outcome of a job.
// Payload is set on success; Err describes a failure reported by the runtime.
type Result struct {
	Payload []byte // Payload is the last stage's output
	Err     string // Err is non-empty when the job failed
}

// Runtime executes directives asynchronously.
type Runtime interface {
	// Submit starts a job from an encoded directive.
	Submit(ctx context.Context, directive []byte) (JobID, error)

	// Await blocks until the job finishes or ctx ends.
	Await(ctx context.Context, id JobID) (Result, error)

	// Cancel stops a running job.
	Cancel(ctx context.Context, id JobID) error
}

// Executor runs the stage kinds of a directive.
type Executor interface {
	// Map produces the leaf aggregate of every input, in input order.
	Map(ctx context.Context, inputs []proof.TxProofInput) ([]proof.Aggregate, error)

	// Fold reduces items in order into one aggregate.
	Fold(ctx context.Context, items []proof.Aggregate) (proof.Aggregate, error)

	// Wrap produces the block proof bytes of an aggregate.
	Wrap(ctx context.Context, agg proof.AggProof, lineage proof.Lineage) ([]byte, error)
}

// value is the output of one stage.
type value struct {
	items []proof.Aggregate // items is set by map stages
	agg   proof.Aggregate   // agg is set by fold stages
	block []byte            // block is set by wrap stages
}

// Execute runs a validated directive with ex and returns the last stage's
// output: an encoded aggregate for fold, block proof bytes for wrap.
func Execute(ctx context.Context, d *Directive, ex Executor) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	values := make(map[uint32]value, len(d.Stages))

	var last value
	var lastKind StageKind

	for _, s := range d.Stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		v, err := runStage(ctx, d, s, values, ex)
		if err != nil {
			return nil, err
		}

		values[s.ID] = v
		last, lastKind = v, s.Kind
	}

	if lastKind == StageWrap {
		return last.block, nil
	}

	return proof.EncodeAggregate(last.agg), nil
}

// runStage runs one stage against the outputs of its dependencies.
func runStage(ctx context.Context, d *Directive, s Stage, values map[uint32]value, ex Executor) (value, error) {
	switch s.Kind {
	case StageMap:
		items, err := ex.Map(ctx, d.Inputs)
		return value{items: items}, err

	case StageFold:
		dep := values[s.Deps[0]]

		items := dep.items
		if items == nil {
			items = []proof.Aggregate{dep.agg}
		}

		agg, err := ex.Fold(ctx, items)

		return value{agg: agg}, err

	case StageWrap:
		agg, err := wrapInput(d, s, values)
		if err != nil {
			return value{}, err
		}

		p, ok := agg.Proof()
		if !ok {
			return value{}, &proof.EmptyAggregateError{}
		}

		block, err := ex.Wrap(ctx, p, d.Lineage)

		return value{block: block}, err

	default:
		return value{}, fmt.Errorf("stage %d has unknown kind %d: %w", s.ID, s.Kind, ErrInvalidDirective)
	}
}

// wrapInput returns the aggregate a wrap stage consumes.
func wrapInput(d *Directive, s Stage, values map[uint32]value) (proof.Aggregate, error) {
	if len(s.Deps) == 1 {
		return values[s.Deps[0]].agg, nil
	}

	agg, err := proof.DecodeAggregate(d.Literal)
	if err != nil {
		return proof.Aggregate{}, fmt.Errorf("decode literal:\n%w", err)
	}

	return agg, nil
}
