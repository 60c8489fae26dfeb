package main

import (
	"testing"

	"BlockProver/internal/reduce"
)

// TestParseFlagsDefaults tests the default configuration.
func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.Mode != modeLocal || cfg.Algebra != "bls" || cfg.Pairing != "tree" || cfg.Chain {
		t.Errorf("defaults: %+v", cfg)
	}

	if cfg.Parallelism < 1 {
		t.Errorf("parallelism default %d", cfg.Parallelism)
	}
}

// TestParseFlagsValidation tests rejected combinations.
func TestParseFlagsValidation(t *testing.T) {
	bad := [][]string{
		{"-mode", "cloud"},
		{"-pairing", "zigzag"},
		{"-parallelism", "0"},
		{"-chain", "-data", ""},
	}

	for _, args := range bad {
		if _, err := parseFlags(args); err == nil {
			t.Errorf("%v accepted", args)
		}
	}

	cfg, err := parseFlags([]string{"-mode", "distributed", "-parallelism", "0", "-pairing", "left"})
	if err != nil {
		t.Fatalf("distributed config rejected: %v", err)
	}

	if cfg.Mode != modeDistributed {
		t.Errorf("mode: %s", cfg.Mode)
	}
}

// TestParsePairing tests every pairing name.
func TestParsePairing(t *testing.T) {
	for _, p := range []reduce.Pairing{reduce.PairTree, reduce.PairLeft, reduce.PairRight} {
		got, err := parsePairing(p.String())
		if err != nil || got != p {
			t.Errorf("%s: got %v, %v", p, got, err)
		}
	}
}
