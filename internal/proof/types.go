package proof

import (
	"bytes"
	"fmt"

	"github.com/zeebo/blake3"
)

// HashSize is the size of a block proof hash.
const HashSize = 32

// TxProofInput is the proof-generation input of one transaction.
// The payload is opaque to the core and handed to the algebra as is.
type TxProofInput struct {
	Index   int    // Index is the position of the transaction in its batch
	Payload []byte // Payload is the encoded proof-generation IR
}

// LeafProof is the proof produced from a single TxProofInput.
type LeafProof struct {
	Index int    // Index is the batch position of the source input
	Data  []byte // Data is the algebra-specific proof encoding
}

// AggProof is a completed aggregate proof covering one or more leaves.
type AggProof struct {
	Leaves uint32 // Leaves is the number of leaf proofs folded into this proof
	Data   []byte // Data is the algebra-specific proof encoding
}

// Kind tags the variant held by an Aggregate.
type Kind uint8

const (
	// KindIdentity is the neutral element: no proofs yet.
	KindIdentity Kind = iota

	// KindProof holds a completed aggregate proof.
	KindProof
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindIdentity:
		return "Identity"
	case KindProof:
		return "Proof"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Aggregate is the value flowing through a reduction: either Identity or Proof(p).
// The zero value is Identity.
type Aggregate struct {
	kind  Kind     // kind selects the variant
	proof AggProof // proof is set only when kind is KindProof
}

// Identity returns the neutral aggregate.
func Identity() Aggregate {
	return Aggregate{kind: KindIdentity}
}

// Of wraps a completed proof.
func Of(p AggProof) Aggregate {
	return Aggregate{kind: KindProof, proof: p}
}

// Kind returns the variant tag.
func (a Aggregate) Kind() Kind {
	return a.kind
}

// IsIdentity reports whether a is the neutral element.
func (a Aggregate) IsIdentity() bool {
	return a.kind == KindIdentity
}

// Proof returns the wrapped proof and true, or false for Identity.
func (a Aggregate) Proof() (AggProof, bool) {
	if a.kind != KindProof {
		return AggProof{}, false
	}

	return a.proof, true
}

// Leaves returns the number of leaves folded into a (zero for Identity).
func (a Aggregate) Leaves() uint32 {
	if a.kind != KindProof {
		return 0
	}

	return a.proof.Leaves
}

// String describes the aggregate for logs.
func (a Aggregate) String() string {
	if a.kind != KindProof {
		return a.kind.String()
	}

	return fmt.Sprintf("Proof(leaves=%d, %d bytes)", a.proof.Leaves, len(a.proof.Data))
}

// Equal reports whether two aggregates hold the same variant and proof bytes.
func Equal(a, b Aggregate) bool {
	if a.kind != b.kind {
		return false
	}

	if a.kind != KindProof {
		return true
	}

	return a.proof.Leaves == b.proof.Leaves && bytes.Equal(a.proof.Data, b.proof.Data)
}

// Lineage links a block proof to its predecessor.
type Lineage struct {
	Height    uint64         // Height is the block's position in the chain
	Parent    [HashSize]byte // Parent is the previous block proof's hash
	HasParent bool           // HasParent is false for the first block
}

// LineageAfter returns the lineage of a block following prev.
// A nil prev yields the root lineage.
func LineageAfter(prev *BlockProof) Lineage {
	if prev == nil {
		return Lineage{}
	}

	return Lineage{
		Height:    prev.Height + 1,
		Parent:    prev.Hash(),
		HasParent: true,
	}
}

// BlockProof is the finished proof of one block.
type BlockProof struct {
	Height    uint64         // Height is the block's position in the chain
	Leaves    uint32         // Leaves is the number of transactions covered
	Parent    [HashSize]byte // Parent is the previous block proof's hash
	HasParent bool           // HasParent reports whether Parent is set
	Data      []byte         // Data is the algebra-specific block proof encoding
}

// Lineage returns the block's link to its predecessor.
func (b *BlockProof) Lineage() Lineage {
	return Lineage{Height: b.Height, Parent: b.Parent, HasParent: b.HasParent}
}

// Hash returns BLAKE3 of the block's canonical encoding.
func (b *BlockProof) Hash() [HashSize]byte {
	return blake3.Sum256(EncodeBlock(b))
}
