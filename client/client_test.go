package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"BlockProver/internal/api"
	"BlockProver/internal/leader"
	"BlockProver/internal/proof"
	"BlockProver/internal/proof/prooftest"
	"BlockProver/internal/storage"
)

// newTestLeader serves a locally proving leader over httptest.
func newTestLeader(t *testing.T) *Client {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "blocks"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	t.Cleanup(func() { store.Close() })

	l := leader.New(prooftest.New(), leader.WithStore(store), leader.WithChaining(true))

	prover := api.ProverFunc(func(ctx context.Context, inputs []proof.TxProofInput) (*proof.BlockProof, error) {
		return l.ProveLocal(ctx, inputs, 2, nil)
	})

	srv := httptest.NewServer(api.New("", prover, store, nil).Handler())
	t.Cleanup(srv.Close)

	return NewClient(srv.URL)
}

// TestProveAndFetch tests proving and reading blocks back.
func TestProveAndFetch(t *testing.T) {
	c := newTestLeader(t)
	ctx := context.Background()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}

	first, err := c.Prove(ctx, prooftest.Payloads(3))
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	second, err := c.Prove(ctx, prooftest.Payloads(4))
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	if second.Parent != first.Hash() || second.Height != 1 {
		t.Errorf("second block lineage: %+v", second.Lineage())
	}

	latest, err := c.Latest(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}

	if latest.Hash() != second.Hash() {
		t.Error("latest is not the second block")
	}

	byHeight, err := c.Block(ctx, 0)
	if err != nil {
		t.Fatalf("block 0: %v", err)
	}

	if byHeight.Hash() != first.Hash() {
		t.Error("block 0 is not the first block")
	}

	status, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}

	if status.Blocks != 2 || status.Proved != 2 {
		t.Errorf("status: %+v", status)
	}
}

// TestAPIErrors tests that error responses surface as APIError.
func TestAPIErrors(t *testing.T) {
	c := newTestLeader(t)
	ctx := context.Background()

	_, err := c.Prove(ctx, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity {
		t.Errorf("empty batch: expected 422 APIError, got %v", err)
	}

	_, err = c.Block(ctx, 99)
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Errorf("missing block: expected 404 APIError, got %v", err)
	}
}

// TestParseBlockRejectsTampering tests hash verification.
func TestParseBlockRejectsTampering(t *testing.T) {
	resp := api.BlockResponse{Height: 1, Leaves: 2, Hash: "00", Data: "abcd"}

	if _, err := parseBlock(resp); !errors.Is(err, ErrHashMismatch) {
		t.Errorf("expected ErrHashMismatch, got %v", err)
	}

	resp.Parent = "1234"
	if _, err := parseBlock(resp); err == nil {
		t.Error("short parent hash accepted")
	}
}

// TestNewClientNormalizesAddress tests address handling.
func TestNewClientNormalizesAddress(t *testing.T) {
	tests := map[string]string{
		"127.0.0.1:8080":         "http://127.0.0.1:8080",
		"http://example.com/":    "http://example.com",
		"https://prover.example": "https://prover.example",
	}

	for in, want := range tests {
		if got := NewClient(in).baseURL; got != want {
			t.Errorf("%s: got %s, want %s", in, got, want)
		}
	}
}
