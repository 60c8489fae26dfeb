// Package prooftest provides a deterministic proof algebra for tests.
//
// Leaf proofs are BLAKE3 digests of the payload and Combine concatenates,
// which is associative but not commutative: any reduction that reorders
// inputs produces a different aggregate.
package prooftest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"

	"BlockProver/internal/proof"
)

// ErrInjected is returned by injected failures.
var ErrInjected = errors.New("injected failure")

// Algebra is an instrumented concatenation algebra.
type Algebra struct {
	LeafDelay    time.Duration // LeafDelay is slept inside every ProveLeaf
	FailLeaf     int           // FailLeaf is the input index that fails (-1 for none)
	PanicLeaf    int           // PanicLeaf is the input index that panics (-1 for none)
	FailCombines bool          // FailCombines makes every Combine fail
	FailWrap     bool          // FailWrap makes WrapBlock fail

	inFlight atomic.Int64 // inFlight counts running ProveLeaf calls
	peak     atomic.Int64 // peak is the highest inFlight observed
	leaves   atomic.Int64 // leaves counts completed ProveLeaf calls
	combines atomic.Int64 // combines counts Combine calls

	mu    sync.Mutex      // mu protects wraps
	wraps []proof.Lineage // wraps records every WrapBlock lineage
}

// New returns an algebra without injected failures.
func New() *Algebra {
	return &Algebra{FailLeaf: -1, PanicLeaf: -1}
}

// ProveLeaf returns BLAKE3(payload) after the configured delay.
func (a *Algebra) ProveLeaf(in proof.TxProofInput) (proof.LeafProof, error) {
	n := a.inFlight.Add(1)
	defer a.inFlight.Add(-1)

	for {
		p := a.peak.Load()
		if n <= p || a.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if a.LeafDelay > 0 {
		time.Sleep(a.LeafDelay)
	}

	if in.Index == a.PanicLeaf {
		panic(fmt.Sprintf("prover crashed on input %d", in.Index))
	}

	if in.Index == a.FailLeaf {
		return proof.LeafProof{}, fmt.Errorf("input %d: %w", in.Index, ErrInjected)
	}

	sum := blake3.Sum256(in.Payload)
	a.leaves.Add(1)

	return proof.LeafProof{Index: in.Index, Data: sum[:]}, nil
}

// Lift returns the leaf digest unchanged.
func (a *Algebra) Lift(leaf proof.LeafProof) (proof.AggProof, error) {
	return proof.AggProof{Leaves: 1, Data: leaf.Data}, nil
}

// Combine concatenates a and b.
func (a *Algebra) Combine(x, y proof.AggProof) (proof.AggProof, error) {
	a.combines.Add(1)

	if a.FailCombines {
		return proof.AggProof{}, fmt.Errorf("combine: %w", ErrInjected)
	}

	data := make([]byte, 0, len(x.Data)+len(y.Data))
	data = append(data, x.Data...)
	data = append(data, y.Data...)

	return proof.AggProof{Leaves: x.Leaves + y.Leaves, Data: data}, nil
}

// WrapBlock returns BLAKE3(height || parent || aggregate).
func (a *Algebra) WrapBlock(agg proof.AggProof, lineage proof.Lineage) ([]byte, error) {
	if a.FailWrap {
		return nil, fmt.Errorf("wrap: %w", ErrInjected)
	}

	a.mu.Lock()
	a.wraps = append(a.wraps, lineage)
	a.mu.Unlock()

	h := blake3.New()

	var height [8]byte
	binary.BigEndian.PutUint64(height[:], lineage.Height)
	h.Write(height[:])
	h.Write(lineage.Parent[:])
	h.Write(agg.Data)

	var sum [32]byte
	h.Sum(sum[:0])

	return sum[:], nil
}

// Expected returns the aggregate any correct reduction of payloads must produce.
func Expected(payloads [][]byte) proof.Aggregate {
	if len(payloads) == 0 {
		return proof.Identity()
	}

	var data []byte
	for _, p := range payloads {
		sum := blake3.Sum256(p)
		data = append(data, sum[:]...)
	}

	return proof.Of(proof.AggProof{Leaves: uint32(len(payloads)), Data: data})
}

// Payloads returns n distinct payloads.
func Payloads(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte(fmt.Sprintf("tx-%04d", i))
	}

	return out
}

// Peak returns the highest number of concurrent ProveLeaf calls observed.
func (a *Algebra) Peak() int {
	return int(a.peak.Load())
}

// InFlight returns the number of ProveLeaf calls currently running.
func (a *Algebra) InFlight() int {
	return int(a.inFlight.Load())
}

// LeafCount returns the number of successful ProveLeaf calls.
func (a *Algebra) LeafCount() int {
	return int(a.leaves.Load())
}

// CombineCount returns the number of Combine calls.
func (a *Algebra) CombineCount() int {
	return int(a.combines.Load())
}

// Wraps returns the lineages passed to WrapBlock.
func (a *Algebra) Wraps() []proof.Lineage {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]proof.Lineage(nil), a.wraps...)
}
