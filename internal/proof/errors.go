package proof

import (
	"errors"
	"fmt"
)

// ErrInvalidLimit is returned when a concurrency limit below one is requested.
var ErrInvalidLimit = errors.New("concurrency limit must be at least 1")

// Stage names the part of a proving run that failed.
type Stage string

const (
	StageMap      Stage = "map"
	StageFold     Stage = "fold"
	StageDecode   Stage = "decode"
	StageFinalize Stage = "finalize"
	StageWrap     Stage = "wrap"
	StageRuntime  Stage = "runtime"
)

// LeafComputationError reports that one input failed to produce a leaf proof.
type LeafComputationError struct {
	Index int   // Index is the batch position of the failing input
	Err   error // Err is the prover's failure
}

func (e *LeafComputationError) Error() string {
	return fmt.Sprintf("leaf proof %d:\n%v", e.Index, e.Err)
}

func (e *LeafComputationError) Unwrap() error { return e.Err }

// Stage returns StageMap.
func (e *LeafComputationError) Stage() Stage { return StageMap }

// CombineError reports that two valid aggregates failed to combine.
type CombineError struct {
	Err error // Err is the prover's failure
}

func (e *CombineError) Error() string {
	return fmt.Sprintf("combine proofs:\n%v", e.Err)
}

func (e *CombineError) Unwrap() error { return e.Err }

// Stage returns StageFold.
func (e *CombineError) Stage() Stage { return StageFold }

// ShapeMismatchError reports an aggregate that is not the expected variant.
type ShapeMismatchError struct {
	Want string // Want describes the expected shape
	Got  string // Got describes the received shape
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("aggregate shape mismatch: want %s, got %s", e.Want, e.Got)
}

// Stage returns StageDecode.
func (e *ShapeMismatchError) Stage() Stage { return StageDecode }

// EmptyAggregateError reports finalization of the Identity aggregate.
type EmptyAggregateError struct{}

func (e *EmptyAggregateError) Error() string {
	return "cannot finalize an empty aggregate"
}

// Stage returns StageFinalize.
func (e *EmptyAggregateError) Stage() Stage { return StageFinalize }

// WrapError reports a failure of the block wrap operation.
type WrapError struct {
	Err error // Err is the prover's failure
}

func (e *WrapError) Error() string {
	return fmt.Sprintf("wrap block proof:\n%v", e.Err)
}

func (e *WrapError) Unwrap() error { return e.Err }

// Stage returns StageWrap.
func (e *WrapError) Stage() Stage { return StageWrap }

// RuntimeError reports a failure of the distributed runtime.
type RuntimeError struct {
	Op  string // Op is the runtime operation that failed (submit, await, ...)
	Err error  // Err is the runtime's failure
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime %s:\n%v", e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// Stage returns StageRuntime.
func (e *RuntimeError) Stage() Stage { return StageRuntime }

// StageOf returns the stage reported by the first typed error in err's chain.
func StageOf(err error) (Stage, bool) {
	var staged interface{ Stage() Stage }
	if errors.As(err, &staged) {
		return staged.Stage(), true
	}

	return "", false
}
