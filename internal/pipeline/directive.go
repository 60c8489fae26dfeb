// Package pipeline describes proving runs as directives for a distributed
// runtime and drives them to a checked result.
package pipeline

import (
	"errors"
	"fmt"

	"BlockProver/internal/proof"
)

// Operation names carried by stages.
const (
	OpProveLeaf = "prove_leaf"
	OpCombine   = "combine"
	OpWrapBlock = "wrap_block"
)

// ErrInvalidDirective is returned for a malformed stage graph.
var ErrInvalidDirective = errors.New("invalid directive")

// StageKind selects what a stage does with its input.
type StageKind uint8

const (
	// StageMap applies the leaf operation to every input.
	StageMap StageKind = iota

	// StageFold reduces its dependency's values to one aggregate.
	StageFold

	// StageWrap turns an aggregate into a block proof.
	StageWrap
)

// String returns the stage kind name.
func (k StageKind) String() string {
	switch k {
	case StageMap:
		return "map"
	case StageFold:
		return "fold"
	case StageWrap:
		return "wrap"
	default:
		return fmt.Sprintf("StageKind(%d)", uint8(k))
	}
}

// Stage is one node of a directive graph.
type Stage struct {
	ID   uint32    // ID identifies the stage within its directive
	Kind StageKind // Kind selects the stage behavior
	Op   string    // Op names the algebra operation the stage applies
	Deps []uint32  // Deps lists the stages whose output this stage consumes
}

// Directive is a declarative proving job.
// Stages are listed in execution order; the last stage's output is the result.
type Directive struct {
	Stages  []Stage              // Stages is the graph in topological order
	Inputs  []proof.TxProofInput // Inputs feed the map stage
	Literal []byte               // Literal is an encoded aggregate fed to a dependency-free wrap stage
	Lineage proof.Lineage        // Lineage is passed to wrap stages
}

// MapFold builds the two-stage aggregation directive: map every input to a
// leaf proof, then fold all leaves into one aggregate.
func MapFold(inputs []proof.TxProofInput) *Directive {
	return &Directive{
		Stages: []Stage{
			{ID: 0, Kind: StageMap, Op: OpProveLeaf},
			{ID: 1, Kind: StageFold, Op: OpCombine, Deps: []uint32{0}},
		},
		Inputs: inputs,
	}
}

// WrapLiteral builds a directive wrapping an already computed aggregate.
func WrapLiteral(agg proof.AggProof, lineage proof.Lineage) *Directive {
	return &Directive{
		Stages: []Stage{
			{ID: 0, Kind: StageWrap, Op: OpWrapBlock},
		},
		Literal: proof.EncodeAggregate(proof.Of(agg)),
		Lineage: lineage,
	}
}

// Validate checks the stage graph.
// Every dependency must name an earlier stage, map stages take no
// dependencies, fold and wrap stages take at most one, and the last stage
// must produce an aggregate or a block.
func (d *Directive) Validate() error {
	if len(d.Stages) == 0 {
		return fmt.Errorf("no stages: %w", ErrInvalidDirective)
	}

	kinds := make(map[uint32]StageKind, len(d.Stages))

	for _, s := range d.Stages {
		if _, dup := kinds[s.ID]; dup {
			return fmt.Errorf("duplicate stage %d: %w", s.ID, ErrInvalidDirective)
		}

		for _, dep := range s.Deps {
			if _, ok := kinds[dep]; !ok {
				return fmt.Errorf("stage %d depends on unknown or later stage %d: %w", s.ID, dep, ErrInvalidDirective)
			}
		}

		if err := validateStage(s, kinds, d); err != nil {
			return err
		}

		kinds[s.ID] = s.Kind
	}

	if d.Stages[len(d.Stages)-1].Kind == StageMap {
		return fmt.Errorf("directive ends with a map stage: %w", ErrInvalidDirective)
	}

	return nil
}

// validateStage checks one stage against the stages before it.
func validateStage(s Stage, kinds map[uint32]StageKind, d *Directive) error {
	switch s.Kind {
	case StageMap:
		if len(s.Deps) != 0 {
			return fmt.Errorf("map stage %d has dependencies: %w", s.ID, ErrInvalidDirective)
		}

	case StageFold:
		if len(s.Deps) != 1 {
			return fmt.Errorf("fold stage %d needs one dependency: %w", s.ID, ErrInvalidDirective)
		}

		if kinds[s.Deps[0]] == StageWrap {
			return fmt.Errorf("fold stage %d consumes a block: %w", s.ID, ErrInvalidDirective)
		}

	case StageWrap:
		if len(s.Deps) > 1 {
			return fmt.Errorf("wrap stage %d has %d dependencies: %w", s.ID, len(s.Deps), ErrInvalidDirective)
		}

		if len(s.Deps) == 0 && len(d.Literal) == 0 {
			return fmt.Errorf("wrap stage %d has no input: %w", s.ID, ErrInvalidDirective)
		}

		if len(s.Deps) == 1 && kinds[s.Deps[0]] != StageFold {
			return fmt.Errorf("wrap stage %d must follow a fold: %w", s.ID, ErrInvalidDirective)
		}

	default:
		return fmt.Errorf("stage %d has unknown kind %d: %w", s.ID, s.Kind, ErrInvalidDirective)
	}

	return nil
}
