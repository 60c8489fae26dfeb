package blsproof

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"

	blst "github.com/supranational/blst/bindings/go"
	"github.com/zeebo/blake3"
)

const (
	// PublicKeySize is the size of a compressed BLS public key in bytes.
	PublicKeySize = 48

	// SignatureSize is the size of a compressed BLS signature in bytes.
	SignatureSize = 96

	// CommitmentSize is the size of a compressed G1 commitment in bytes.
	CommitmentSize = 48

	// SeedSize is the size of a proving key seed in bytes.
	SeedSize = 32
)

// Domain separation tags.
var (
	sigDST    = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")
	commitDST = []byte("BLOCKPROVER-V01-CS01-with-BLS12381G1_XMD:SHA-256_SSWU_RO_")
)

// KeyPair is the proving key shared by every prover of a fleet.
type KeyPair struct {
	secret *blst.SecretKey // secret is the private key
	public *blst.P1Affine  // public is the public key
}

// DeriveFromED25519 derives a deterministic proving key from an ED25519 private key.
// The key is bound to the identity via BLAKE3("blockprover-bls-keygen" || seed).
func DeriveFromED25519(privKey ed25519.PrivateKey) (*KeyPair, error) {
	h := blake3.New()
	h.Write([]byte("blockprover-bls-keygen"))
	h.Write(privKey.Seed())

	var derived [32]byte
	h.Sum(derived[:0])

	return GenerateKeyFromSeed(derived[:])
}

// GenerateKey creates a proving key from a random seed.
func GenerateKey() (*KeyPair, error) {
	var ikm [SeedSize]byte
	if _, err := rand.Read(ikm[:]); err != nil {
		return nil, fmt.Errorf("generate random seed:\n%w", err)
	}

	return GenerateKeyFromSeed(ikm[:])
}

// GenerateKeyFromSeed creates a proving key from a deterministic seed.
// The seed must be at least 32 bytes.
func GenerateKeyFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) < SeedSize {
		return nil, fmt.Errorf("seed must be at least %d bytes, got %d", SeedSize, len(seed))
	}

	secret := blst.KeyGen(seed)
	if secret == nil {
		return nil, fmt.Errorf("failed to generate BLS key")
	}

	return &KeyPair{
		secret: secret,
		public: new(blst.P1Affine).From(secret),
	}, nil
}

// LoadOrCreateSeed reads a proving key seed from path, creating it when missing.
func LoadOrCreateSeed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		seed := make([]byte, SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("generate seed:\n%w", err)
		}

		if err := os.WriteFile(path, seed, 0600); err != nil {
			return nil, fmt.Errorf("save seed to %s:\n%w", path, err)
		}

		return seed, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read seed file:\n%w", err)
	}

	if len(data) < SeedSize {
		return nil, fmt.Errorf("invalid seed size: got %d, want at least %d", len(data), SeedSize)
	}

	return data, nil
}

// Sign creates a BLS signature over the message.
func (k *KeyPair) Sign(message []byte) []byte {
	return new(blst.P2Affine).Sign(k.secret, message, sigDST).Compress()
}

// PublicKeyBytes returns the compressed public key bytes.
func (k *KeyPair) PublicKeyBytes() []byte {
	return k.public.Compress()
}

// Verify checks a BLS signature against a message and public key.
func Verify(signature, message, publicKey []byte) bool {
	if len(signature) != SignatureSize || len(publicKey) != PublicKeySize {
		return false
	}

	sig := new(blst.P2Affine).Uncompress(signature)
	if sig == nil {
		return false
	}

	pk := new(blst.P1Affine).Uncompress(publicKey)
	if pk == nil {
		return false
	}

	return sig.Verify(true, pk, true, message, sigDST)
}
