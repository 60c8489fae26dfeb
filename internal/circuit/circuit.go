package circuit

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"BlockProver/internal/proof"
)

// Request opcodes understood by a circuit module.
const (
	opLeaf    byte = 1
	opLift    byte = 2
	opCombine byte = 3
	opWrap    byte = 4
)

// DefaultGasLimit bounds one circuit call when no limit is configured.
const DefaultGasLimit = 10_000_000

// ErrEmptyOutput is returned when the guest writes no output.
var ErrEmptyOutput = errors.New("circuit produced no output")

// Circuit is a proof algebra backed by a WASM module.
//
// Every operation is one call to the module's execute export. The request is
// [1B op][payload]; the response is the raw proof bytes.
type Circuit struct {
	pool     *Pool    // pool runs the module
	id       [32]byte // id is the module hash
	gasLimit uint64   // gasLimit bounds each call
	owned    bool     // owned is true when Close must close the pool
}

// Open loads the circuit module at path into a private pool.
func Open(ctx context.Context, path string, gasLimit uint64) (*Circuit, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read circuit %s:\n%w", path, err)
	}

	pool, err := NewPool(ctx)
	if err != nil {
		return nil, err
	}

	c, err := New(ctx, pool, wasm, gasLimit)
	if err != nil {
		pool.Close()
		return nil, err
	}

	c.owned = true

	return c, nil
}

// New loads wasm into pool and returns a circuit running it.
func New(ctx context.Context, pool *Pool, wasm []byte, gasLimit uint64) (*Circuit, error) {
	id, err := pool.Load(ctx, wasm)
	if err != nil {
		return nil, err
	}

	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}

	return &Circuit{pool: pool, id: id, gasLimit: gasLimit}, nil
}

// ID returns the module hash.
func (c *Circuit) ID() [32]byte {
	return c.id
}

// ProveLeaf runs the leaf circuit over the input payload.
func (c *Circuit) ProveLeaf(in proof.TxProofInput) (proof.LeafProof, error) {
	out, err := c.call(opLeaf, in.Payload)
	if err != nil {
		return proof.LeafProof{}, err
	}

	return proof.LeafProof{Index: in.Index, Data: out}, nil
}

// Lift runs the lift circuit over a leaf proof.
func (c *Circuit) Lift(leaf proof.LeafProof) (proof.AggProof, error) {
	out, err := c.call(opLift, leaf.Data)
	if err != nil {
		return proof.AggProof{}, err
	}

	return proof.AggProof{Leaves: 1, Data: out}, nil
}

// Combine runs the combine circuit over two aggregates.
// The payload is [4B len a][a][b].
func (c *Circuit) Combine(a, b proof.AggProof) (proof.AggProof, error) {
	payload := make([]byte, 4, 4+len(a.Data)+len(b.Data))
	binary.BigEndian.PutUint32(payload, uint32(len(a.Data)))
	payload = append(payload, a.Data...)
	payload = append(payload, b.Data...)

	out, err := c.call(opCombine, payload)
	if err != nil {
		return proof.AggProof{}, err
	}

	return proof.AggProof{Leaves: a.Leaves + b.Leaves, Data: out}, nil
}

// WrapBlock runs the block circuit.
// The payload is [8B height][1B hasParent][32B parent][aggregate].
func (c *Circuit) WrapBlock(agg proof.AggProof, lineage proof.Lineage) ([]byte, error) {
	payload := make([]byte, 8, 8+1+proof.HashSize+len(agg.Data))
	binary.BigEndian.PutUint64(payload, lineage.Height)

	if lineage.HasParent {
		payload = append(payload, 1)
	} else {
		payload = append(payload, 0)
	}

	payload = append(payload, lineage.Parent[:]...)
	payload = append(payload, agg.Data...)

	return c.call(opWrap, payload)
}

// Close releases the pool if the circuit owns it.
func (c *Circuit) Close() error {
	if !c.owned {
		return nil
	}

	return c.pool.Close()
}

// call executes one request and rejects empty responses.
func (c *Circuit) call(op byte, payload []byte) ([]byte, error) {
	req := make([]byte, 0, 1+len(payload))
	req = append(req, op)
	req = append(req, payload...)

	out, _, err := c.pool.Execute(context.Background(), c.id, req, c.gasLimit)
	if err != nil {
		return nil, fmt.Errorf("circuit op %d:\n%w", op, err)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("circuit op %d: %w", op, ErrEmptyOutput)
	}

	return out, nil
}
