package backend

import (
	"context"
	"path/filepath"
	"testing"

	"BlockProver/internal/blsproof"
	"BlockProver/internal/proof"
)

// TestOpenBLSSharedKey tests that two provers opening one seed agree.
func TestOpenBLSSharedKey(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Kind: KindBLS, ProverKey: filepath.Join(t.TempDir(), "prover.seed")}

	a, closer, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closer.Close()

	b, _, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	in := proof.TxProofInput{Payload: []byte("tx")}

	la, err := a.ProveLeaf(in)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	lb, _ := b.ProveLeaf(in)

	if string(la.Data) != string(lb.Data) {
		t.Error("provers sharing a seed disagree")
	}

	if _, ok := a.(*blsproof.Algebra); !ok {
		t.Errorf("expected *blsproof.Algebra, got %T", a)
	}
}

// TestOpenErrors tests configuration failures.
func TestOpenErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown kind", Config{Kind: "snark"}},
		{"bls without key", Config{Kind: KindBLS}},
		{"wasm without circuit", Config{Kind: KindWASM}},
		{"wasm missing file", Config{Kind: KindWASM, CircuitPath: filepath.Join(t.TempDir(), "none.wasm")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Open(ctx, tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
