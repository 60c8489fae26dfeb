package proof

// Algebra is the proving collaborator consumed by the aggregation core.
//
// Combine must be associative: Combine(Combine(a, b), c) equals
// Combine(a, Combine(b, c)). The core relies on this without checking it.
// Implementations must be safe for concurrent use.
type Algebra interface {
	// ProveLeaf produces the leaf proof of one input.
	ProveLeaf(input TxProofInput) (LeafProof, error)

	// Lift embeds a leaf proof into the aggregate domain.
	Lift(leaf LeafProof) (AggProof, error)

	// Combine merges two aggregate proofs into one.
	Combine(a, b AggProof) (AggProof, error)

	// WrapBlock turns a final aggregate into block proof data.
	WrapBlock(agg AggProof, lineage Lineage) ([]byte, error)
}

// Combine merges two aggregates under the identity law.
// Identity on either side returns the other operand without calling the algebra.
func Combine(alg Algebra, a, b Aggregate) (Aggregate, error) {
	if a.IsIdentity() {
		return b, nil
	}

	if b.IsIdentity() {
		return a, nil
	}

	merged, err := alg.Combine(a.proof, b.proof)
	if err != nil {
		return Aggregate{}, &CombineError{Err: err}
	}

	merged.Leaves = a.proof.Leaves + b.proof.Leaves

	return Of(merged), nil
}

// LeafAggregate proves one input and lifts it into an aggregate.
// Failures are reported as LeafComputationError.
func LeafAggregate(alg Algebra, input TxProofInput) (Aggregate, error) {
	leaf, err := alg.ProveLeaf(input)
	if err != nil {
		return Aggregate{}, &LeafComputationError{Index: input.Index, Err: err}
	}

	lifted, err := alg.Lift(leaf)
	if err != nil {
		return Aggregate{}, &LeafComputationError{Index: input.Index, Err: err}
	}

	lifted.Leaves = 1

	return Of(lifted), nil
}

// Inputs builds indexed inputs from raw payloads.
func Inputs(payloads [][]byte) []TxProofInput {
	inputs := make([]TxProofInput, len(payloads))

	for i, p := range payloads {
		inputs[i] = TxProofInput{Index: i, Payload: p}
	}

	return inputs
}
