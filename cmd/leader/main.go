package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"BlockProver/internal/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point with error handling.
func run(args []string) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	logger.Init(level)

	p, err := NewProver(cfg)
	if err != nil {
		return fmt.Errorf("create prover:\n%w", err)
	}

	printStartupInfo(cfg, p)

	if cfg.InputPath != "" {
		defer p.Close()
		return p.ProveFile(cfg.InputPath, cfg.OutputPath)
	}

	return p.Serve()
}

// printStartupInfo displays the leader configuration at startup.
func printStartupInfo(cfg *Config, p *Prover) {
	args := []any{
		"mode", cfg.Mode,
		"algebra", cfg.Algebra,
		"data", cfg.DataPath,
		"chain", cfg.Chain,
	}

	if cfg.Mode == modeLocal {
		args = append(args, "parallelism", cfg.Parallelism, "pairing", cfg.Pairing)
	} else {
		args = append(args, "quic", p.network.Addr(), "pubkey", hex.EncodeToString(p.network.PublicKey()))
	}

	if cfg.InputPath == "" {
		args = append(args, "http", cfg.HTTPAddress)
	}

	logger.Info("starting BlockProver leader", args...)
}
