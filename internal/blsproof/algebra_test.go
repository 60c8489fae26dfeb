package blsproof

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"BlockProver/internal/proof"
)

// newTestAlgebra creates an algebra with a fixed seed.
func newTestAlgebra(t *testing.T) *Algebra {
	t.Helper()

	key, err := GenerateKeyFromSeed(bytes.Repeat([]byte{7}, SeedSize))
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	return New(key)
}

// leafAggregate proves payload at index i.
func leafAggregate(t *testing.T, alg *Algebra, i int, payload string) proof.Aggregate {
	t.Helper()

	agg, err := proof.LeafAggregate(alg, proof.TxProofInput{Index: i, Payload: []byte(payload)})
	if err != nil {
		t.Fatalf("leaf %d: %v", i, err)
	}

	return agg
}

// mustCombine combines a and b or fails the test.
func mustCombine(t *testing.T, alg *Algebra, a, b proof.Aggregate) proof.Aggregate {
	t.Helper()

	out, err := proof.Combine(alg, a, b)
	if err != nil {
		t.Fatalf("combine: %v", err)
	}

	return out
}

// TestCombineAssociative tests (a·b)·c == a·(b·c) over curve points.
func TestCombineAssociative(t *testing.T) {
	alg := newTestAlgebra(t)

	a := leafAggregate(t, alg, 0, "tx-a")
	b := leafAggregate(t, alg, 1, "tx-b")
	c := leafAggregate(t, alg, 2, "tx-c")

	left := mustCombine(t, alg, mustCombine(t, alg, a, b), c)
	right := mustCombine(t, alg, a, mustCombine(t, alg, b, c))

	if !proof.Equal(left, right) {
		t.Fatal("associativity violated")
	}

	if left.Leaves() != 3 {
		t.Errorf("leaves: got %d, want 3", left.Leaves())
	}
}

// TestCombineOrderIndependent tests that reordered reductions agree.
func TestCombineOrderIndependent(t *testing.T) {
	alg := newTestAlgebra(t)

	items := make([]proof.Aggregate, 5)
	for i := range items {
		items[i] = leafAggregate(t, alg, i, fmt.Sprintf("tx-%d", i))
	}

	forward := proof.Identity()
	for _, it := range items {
		forward = mustCombine(t, alg, forward, it)
	}

	backward := proof.Identity()
	for i := len(items) - 1; i >= 0; i-- {
		backward = mustCombine(t, alg, backward, items[i])
	}

	if !proof.Equal(forward, backward) {
		t.Fatal("reduction depends on order")
	}
}

// TestCombineIdentity tests the identity law with BLS aggregates.
func TestCombineIdentity(t *testing.T) {
	alg := newTestAlgebra(t)
	x := leafAggregate(t, alg, 0, "tx")

	if !proof.Equal(mustCombine(t, alg, proof.Identity(), x), x) {
		t.Error("combine(identity, x) != x")
	}

	if !proof.Equal(mustCombine(t, alg, x, proof.Identity()), x) {
		t.Error("combine(x, identity) != x")
	}
}

// TestCommitmentCoversBatch tests that the aggregate commits to exactly the batch.
func TestCommitmentCoversBatch(t *testing.T) {
	alg := newTestAlgebra(t)
	payloads := [][]byte{[]byte("one"), []byte("two"), []byte("three")}

	acc := proof.Identity()
	for i, p := range payloads {
		acc = mustCombine(t, alg, acc, leafAggregate(t, alg, i, string(p)))
	}

	want, err := CommitPayloads(payloads)
	if err != nil {
		t.Fatalf("commit payloads: %v", err)
	}

	p, _ := acc.Proof()
	if !bytes.Equal(Commitment(p), want) {
		t.Error("commitment does not match batch")
	}

	other, _ := CommitPayloads(payloads[:2])
	if bytes.Equal(Commitment(p), other) {
		t.Error("commitment matches a smaller batch")
	}
}

// TestWrapBlockVerifies tests block signatures and lineage binding.
func TestWrapBlockVerifies(t *testing.T) {
	alg := newTestAlgebra(t)
	agg := mustCombine(t, alg, leafAggregate(t, alg, 0, "a"), leafAggregate(t, alg, 1, "b"))
	p, _ := agg.Proof()

	lineage := proof.Lineage{Height: 3, Parent: [32]byte{9}, HasParent: true}

	data, err := alg.WrapBlock(p, lineage)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}

	block := &proof.BlockProof{Height: 3, Leaves: 2, Parent: lineage.Parent, HasParent: true, Data: data}
	if !VerifyBlock(alg.PublicKey(), block) {
		t.Fatal("valid block rejected")
	}

	forged := *block
	forged.Height = 4
	if VerifyBlock(alg.PublicKey(), &forged) {
		t.Error("block with altered height accepted")
	}

	other, _ := GenerateKey()
	if VerifyBlock(other.PublicKeyBytes(), block) {
		t.Error("block accepted under a foreign key")
	}
}

// TestMalformedInputs tests size and point validation.
func TestMalformedInputs(t *testing.T) {
	alg := newTestAlgebra(t)

	if _, err := alg.ProveLeaf(proof.TxProofInput{}); err == nil {
		t.Error("empty payload accepted")
	}

	if _, err := alg.Lift(proof.LeafProof{Data: []byte{1}}); !errors.Is(err, ErrMalformedProof) {
		t.Errorf("Lift: expected ErrMalformedProof, got %v", err)
	}

	garbage := proof.AggProof{Leaves: 1, Data: bytes.Repeat([]byte{0xff}, aggSize)}
	if _, err := alg.Combine(garbage, garbage); !errors.Is(err, ErrMalformedProof) {
		t.Errorf("Combine: expected ErrMalformedProof, got %v", err)
	}

	if _, err := alg.WrapBlock(proof.AggProof{Data: []byte{1}}, proof.Lineage{}); !errors.Is(err, ErrMalformedProof) {
		t.Errorf("WrapBlock: expected ErrMalformedProof, got %v", err)
	}
}

// TestDeriveFromED25519 tests deterministic key derivation.
func TestDeriveFromED25519(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519: %v", err)
	}

	k1, err := DeriveFromED25519(priv)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	k2, _ := DeriveFromED25519(priv)

	if !bytes.Equal(k1.PublicKeyBytes(), k2.PublicKeyBytes()) {
		t.Error("derivation is not deterministic")
	}

	msg := []byte("message")
	if !Verify(k1.Sign(msg), msg, k2.PublicKeyBytes()) {
		t.Error("signature does not verify")
	}
}

// TestLoadOrCreateSeed tests seed persistence.
func TestLoadOrCreateSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prover.seed")

	first, err := LoadOrCreateSeed(path)
	if err != nil {
		t.Fatalf("create seed: %v", err)
	}

	second, err := LoadOrCreateSeed(path)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("seed changed between loads")
	}

	if _, err := GenerateKeyFromSeed(first[:8]); err == nil {
		t.Error("short seed accepted")
	}
}

// BenchmarkCombine benchmarks one aggregate combine.
func BenchmarkCombine(b *testing.B) {
	key, _ := GenerateKey()
	alg := New(key)

	l1, _ := alg.ProveLeaf(proof.TxProofInput{Payload: []byte("a")})
	l2, _ := alg.ProveLeaf(proof.TxProofInput{Payload: []byte("b")})
	x, _ := alg.Lift(l1)
	y, _ := alg.Lift(l2)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := alg.Combine(x, y); err != nil {
			b.Fatal(err)
		}
	}
}
