package pipeline

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"BlockProver/internal/proof"
	"BlockProver/internal/types"
)

// Encode serializes the directive as a Directive flatbuffer.
func (d *Directive) Encode() []byte {
	builder := flatbuffers.NewBuilder(1024)

	stages := make([]flatbuffers.UOffsetT, len(d.Stages))
	for i, s := range d.Stages {
		stages[i] = buildStage(builder, s)
	}

	inputs := make([]flatbuffers.UOffsetT, len(d.Inputs))
	for i, in := range d.Inputs {
		payload := builder.CreateByteVector(in.Payload)

		types.InputStart(builder)
		types.InputAddIndex(builder, uint32(in.Index))
		types.InputAddPayload(builder, payload)
		inputs[i] = types.InputEnd(builder)
	}

	stagesVec := offsetVector(builder, types.DirectiveStartStagesVector, stages)
	inputsVec := offsetVector(builder, types.DirectiveStartInputsVector, inputs)
	lineage := BuildLineage(builder, d.Lineage)

	var literal flatbuffers.UOffsetT
	if len(d.Literal) > 0 {
		literal = builder.CreateByteVector(d.Literal)
	}

	types.DirectiveStart(builder)
	types.DirectiveAddStages(builder, stagesVec)
	types.DirectiveAddInputs(builder, inputsVec)

	if len(d.Literal) > 0 {
		types.DirectiveAddLiteral(builder, literal)
	}

	types.DirectiveAddLineage(builder, lineage)
	root := types.DirectiveEnd(builder)

	types.FinishDirectiveBuffer(builder, root)

	return builder.FinishedBytes()
}

// buildStage serializes one stage.
func buildStage(builder *flatbuffers.Builder, s Stage) flatbuffers.UOffsetT {
	op := builder.CreateString(s.Op)

	types.StageStartDepsVector(builder, len(s.Deps))
	for i := len(s.Deps) - 1; i >= 0; i-- {
		builder.PrependUint32(s.Deps[i])
	}
	deps := builder.EndVector(len(s.Deps))

	types.StageStart(builder)
	types.StageAddId(builder, s.ID)
	types.StageAddKind(builder, types.StageKind(s.Kind))
	types.StageAddOp(builder, op)
	types.StageAddDeps(builder, deps)

	return types.StageEnd(builder)
}

// offsetVector writes a vector of table offsets.
func offsetVector(builder *flatbuffers.Builder, start func(*flatbuffers.Builder, int) flatbuffers.UOffsetT, offsets []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	start(builder, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}

	return builder.EndVector(len(offsets))
}

// BuildLineage serializes a lineage table.
func BuildLineage(builder *flatbuffers.Builder, l proof.Lineage) flatbuffers.UOffsetT {
	parent := builder.CreateByteVector(l.Parent[:])

	types.LineageStart(builder)
	types.LineageAddHeight(builder, l.Height)
	types.LineageAddParent(builder, parent)
	types.LineageAddHasParent(builder, l.HasParent)

	return types.LineageEnd(builder)
}

// ReadLineage converts a lineage table. A nil table is the root lineage.
func ReadLineage(t *types.Lineage) (proof.Lineage, error) {
	if t == nil {
		return proof.Lineage{}, nil
	}

	l := proof.Lineage{Height: t.Height(), HasParent: t.HasParent()}

	parent := t.ParentBytes()
	if len(parent) != 0 && len(parent) != proof.HashSize {
		return proof.Lineage{}, fmt.Errorf("invalid parent size: got %d, want %d", len(parent), proof.HashSize)
	}

	copy(l.Parent[:], parent)

	return l, nil
}

// DecodeDirective parses and validates a Directive flatbuffer.
func DecodeDirective(data []byte) (d *Directive, err error) {
	// FlatBuffers panics on malformed data
	defer func() {
		if r := recover(); r != nil {
			d, err = nil, fmt.Errorf("malformed directive: %w", ErrInvalidDirective)
		}
	}()

	if len(data) < 8 {
		return nil, fmt.Errorf("directive too short: %w", ErrInvalidDirective)
	}

	root := types.GetRootAsDirective(data, 0)
	d = &Directive{}

	var st types.Stage
	for i := 0; i < root.StagesLength(); i++ {
		root.Stages(&st, i)

		s := Stage{ID: st.Id(), Kind: StageKind(st.Kind()), Op: string(st.Op())}
		for j := 0; j < st.DepsLength(); j++ {
			s.Deps = append(s.Deps, st.Deps(j))
		}

		d.Stages = append(d.Stages, s)
	}

	var in types.Input
	for i := 0; i < root.InputsLength(); i++ {
		root.Inputs(&in, i)

		payload := make([]byte, len(in.PayloadBytes()))
		copy(payload, in.PayloadBytes())

		d.Inputs = append(d.Inputs, proof.TxProofInput{Index: int(in.Index()), Payload: payload})
	}

	if lit := root.LiteralBytes(); len(lit) > 0 {
		d.Literal = append([]byte(nil), lit...)
	}

	if d.Lineage, err = ReadLineage(root.Lineage(nil)); err != nil {
		return nil, err
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}

	return d, nil
}
