package blsproof

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"
	"github.com/zeebo/blake3"

	"BlockProver/internal/proof"
)

const (
	// leafSize is txHash || commitment || signature.
	leafSize = 32 + CommitmentSize + SignatureSize

	// aggSize is commitment || signature.
	aggSize = CommitmentSize + SignatureSize

	// blockSize is digest || blockSignature || commitment || signature.
	blockSize = 32 + SignatureSize + aggSize
)

var (
	// ErrMalformedProof is returned when proof bytes do not decode to curve points.
	ErrMalformedProof = errors.New("malformed proof")

	// blockDomain prefixes the block digest.
	blockDomain = []byte("blockprover-block")
)

// Algebra is a proof algebra over BLS12-381.
//
// A leaf commits to its transaction with HashToG1(BLAKE3(payload)) and signs
// the transaction hash. Combining adds commitments in G1 and signatures in
// G2; group addition is associative and commutative, and compressed points
// are canonical, so every pairing order yields identical bytes.
type Algebra struct {
	key *KeyPair // key is the fleet's proving key
}

// New creates an algebra proving with key.
func New(key *KeyPair) *Algebra {
	return &Algebra{key: key}
}

// PublicKey returns the compressed proving public key.
func (a *Algebra) PublicKey() []byte {
	return a.key.PublicKeyBytes()
}

// ProveLeaf commits to and signs the hash of the input payload.
func (a *Algebra) ProveLeaf(in proof.TxProofInput) (proof.LeafProof, error) {
	if len(in.Payload) == 0 {
		return proof.LeafProof{}, fmt.Errorf("empty payload")
	}

	txHash := blake3.Sum256(in.Payload)

	data := make([]byte, 0, leafSize)
	data = append(data, txHash[:]...)
	data = append(data, commit(txHash[:])...)
	data = append(data, a.key.Sign(txHash[:])...)

	return proof.LeafProof{Index: in.Index, Data: data}, nil
}

// Lift drops the transaction hash, keeping commitment and signature.
func (a *Algebra) Lift(leaf proof.LeafProof) (proof.AggProof, error) {
	if len(leaf.Data) != leafSize {
		return proof.AggProof{}, fmt.Errorf("leaf size %d, want %d: %w", len(leaf.Data), leafSize, ErrMalformedProof)
	}

	data := make([]byte, aggSize)
	copy(data, leaf.Data[32:])

	return proof.AggProof{Leaves: 1, Data: data}, nil
}

// Combine adds the commitments and aggregates the signatures of x and y.
func (a *Algebra) Combine(x, y proof.AggProof) (proof.AggProof, error) {
	if len(x.Data) != aggSize || len(y.Data) != aggSize {
		return proof.AggProof{}, fmt.Errorf("aggregate sizes %d/%d, want %d: %w", len(x.Data), len(y.Data), aggSize, ErrMalformedProof)
	}

	c, err := addG1(x.Data[:CommitmentSize], y.Data[:CommitmentSize])
	if err != nil {
		return proof.AggProof{}, fmt.Errorf("add commitments:\n%w", err)
	}

	s, err := addG2(x.Data[CommitmentSize:], y.Data[CommitmentSize:])
	if err != nil {
		return proof.AggProof{}, fmt.Errorf("aggregate signatures:\n%w", err)
	}

	return proof.AggProof{Leaves: x.Leaves + y.Leaves, Data: append(c, s...)}, nil
}

// WrapBlock signs the digest of the lineage and the aggregate.
func (a *Algebra) WrapBlock(agg proof.AggProof, lineage proof.Lineage) ([]byte, error) {
	if len(agg.Data) != aggSize {
		return nil, fmt.Errorf("aggregate size %d, want %d: %w", len(agg.Data), aggSize, ErrMalformedProof)
	}

	digest := blockDigest(agg.Data, lineage)

	data := make([]byte, 0, blockSize)
	data = append(data, digest[:]...)
	data = append(data, a.key.Sign(digest[:])...)
	data = append(data, agg.Data...)

	return data, nil
}

// VerifyBlock checks the block signature and that the digest covers its lineage.
// It does not verify the aggregated transaction signatures.
func VerifyBlock(publicKey []byte, b *proof.BlockProof) bool {
	if len(b.Data) != blockSize {
		return false
	}

	digest := blockDigest(b.Data[32+SignatureSize:], b.Lineage())
	if !bytes.Equal(digest[:], b.Data[:32]) {
		return false
	}

	return Verify(b.Data[32:32+SignatureSize], digest[:], publicKey)
}

// CommitPayloads returns the commitment an aggregate of payloads must carry.
func CommitPayloads(payloads [][]byte) ([]byte, error) {
	if len(payloads) == 0 {
		return nil, fmt.Errorf("no payloads")
	}

	points := make([]*blst.P1Affine, len(payloads))
	for i, p := range payloads {
		h := blake3.Sum256(p)
		points[i] = blst.HashToG1(h[:], commitDST).ToAffine()
	}

	agg := new(blst.P1Aggregate)
	if !agg.Aggregate(points, false) {
		return nil, fmt.Errorf("commitment aggregation failed")
	}

	return agg.ToAffine().Compress(), nil
}

// Commitment returns the G1 commitment of an aggregate proof.
func Commitment(agg proof.AggProof) []byte {
	if len(agg.Data) != aggSize {
		return nil
	}

	return agg.Data[:CommitmentSize]
}

// commit hashes a transaction hash to a compressed G1 point.
func commit(txHash []byte) []byte {
	return blst.HashToG1(txHash, commitDST).ToAffine().Compress()
}

// blockDigest computes BLAKE3(domain || height || hasParent || parent || aggregate).
func blockDigest(aggData []byte, lineage proof.Lineage) [32]byte {
	h := blake3.New()
	h.Write(blockDomain)

	var height [8]byte
	binary.BigEndian.PutUint64(height[:], lineage.Height)
	h.Write(height[:])

	if lineage.HasParent {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}

	h.Write(lineage.Parent[:])
	h.Write(aggData)

	var digest [32]byte
	h.Sum(digest[:0])

	return digest
}

// addG1 adds two compressed G1 points.
func addG1(a, b []byte) ([]byte, error) {
	pa := new(blst.P1Affine).Uncompress(a)
	pb := new(blst.P1Affine).Uncompress(b)

	if pa == nil || pb == nil {
		return nil, ErrMalformedProof
	}

	agg := new(blst.P1Aggregate)
	if !agg.Aggregate([]*blst.P1Affine{pa, pb}, true) {
		return nil, ErrMalformedProof
	}

	return agg.ToAffine().Compress(), nil
}

// addG2 adds two compressed G2 points.
func addG2(a, b []byte) ([]byte, error) {
	pa := new(blst.P2Affine).Uncompress(a)
	pb := new(blst.P2Affine).Uncompress(b)

	if pa == nil || pb == nil {
		return nil, ErrMalformedProof
	}

	agg := new(blst.P2Aggregate)
	if !agg.Aggregate([]*blst.P2Affine{pa, pb}, true) {
		return nil, ErrMalformedProof
	}

	return agg.ToAffine().Compress(), nil
}
