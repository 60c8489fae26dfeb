// Package backend selects the proof algebra a prover runs with.
package backend

import (
	"context"
	"fmt"
	"io"

	"BlockProver/internal/blsproof"
	"BlockProver/internal/circuit"
	"BlockProver/internal/proof"
)

// Algebra kinds.
const (
	KindBLS  = "bls"
	KindWASM = "wasm"
)

// Config selects and configures an algebra.
type Config struct {
	Kind        string // Kind is "bls" or "wasm"
	ProverKey   string // ProverKey is the path of the shared BLS proving seed
	CircuitPath string // CircuitPath is the path of the WASM circuit
	GasLimit    uint64 // GasLimit bounds one circuit call
}

// nopCloser closes nothing.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the configured algebra.
// The returned closer releases resources held by the algebra.
func Open(ctx context.Context, cfg Config) (proof.Algebra, io.Closer, error) {
	switch cfg.Kind {
	case KindBLS, "":
		alg, err := openBLS(cfg.ProverKey)
		if err != nil {
			return nil, nil, err
		}

		return alg, nopCloser{}, nil

	case KindWASM:
		if cfg.CircuitPath == "" {
			return nil, nil, fmt.Errorf("wasm backend requires a circuit path")
		}

		c, err := circuit.Open(ctx, cfg.CircuitPath, cfg.GasLimit)
		if err != nil {
			return nil, nil, fmt.Errorf("open circuit:\n%w", err)
		}

		return c, c, nil

	default:
		return nil, nil, fmt.Errorf("unknown algebra %q", cfg.Kind)
	}
}

// openBLS loads the proving seed, creating it when missing.
func openBLS(path string) (*blsproof.Algebra, error) {
	if path == "" {
		return nil, fmt.Errorf("bls backend requires a prover key path")
	}

	seed, err := blsproof.LoadOrCreateSeed(path)
	if err != nil {
		return nil, fmt.Errorf("load prover key:\n%w", err)
	}

	key, err := blsproof.GenerateKeyFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("derive prover key:\n%w", err)
	}

	return blsproof.New(key), nil
}
