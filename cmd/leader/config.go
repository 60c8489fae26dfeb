package main

import (
	"flag"
	"fmt"
	"runtime"
	"time"

	"BlockProver/internal/circuit"
	"BlockProver/internal/reduce"
)

// Proving modes.
const (
	modeLocal       = "local"
	modeDistributed = "distributed"
)

// Config holds the leader configuration.
type Config struct {
	// DataPath is the directory for the block store. Empty disables persistence.
	DataPath string

	// HTTPAddress is the HTTP API listen address.
	HTTPAddress string

	// QUICAddress is the address workers connect to in distributed mode.
	QUICAddress string

	// KeyPath is the path to the Ed25519 identity key file.
	KeyPath string

	// Mode is "local" or "distributed".
	Mode string

	// Algebra selects the proof algebra: "bls" or "wasm".
	Algebra string

	// ProverKey is the path to the BLS proving seed shared by the fleet.
	ProverKey string

	// CircuitPath is the path to the WASM circuit.
	CircuitPath string

	// GasLimit bounds one circuit call.
	GasLimit uint64

	// Parallelism bounds concurrent leaf proofs in local mode.
	Parallelism int

	// Pairing is the local fold shape: "tree", "left" or "right".
	Pairing string

	// Chain links each block to the latest stored block.
	Chain bool

	// InputPath is an input document to prove once before exiting.
	InputPath string

	// OutputPath receives the block proof of InputPath. Empty writes to stdout.
	OutputPath string

	// MinWorkers is the number of workers to wait for before proving.
	MinWorkers int

	// WorkerWait bounds the wait for MinWorkers.
	WorkerWait time.Duration

	// MaxAttempts is the number of workers tried per task.
	MaxAttempts int

	// FanOut bounds concurrently dispatched tasks per stage.
	FanOut int

	// TaskTimeout bounds one task request.
	TaskTimeout time.Duration

	// LogLevel is the minimum log level.
	LogLevel string
}

// parseFlags parses command-line flags into Config.
func parseFlags(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("leader", flag.ContinueOnError)
	fs.StringVar(&cfg.DataPath, "data", "./data", "Block store directory (empty disables persistence)")
	fs.StringVar(&cfg.HTTPAddress, "http", ":8080", "HTTP API address")
	fs.StringVar(&cfg.QUICAddress, "quic", ":9000", "QUIC address for workers")
	fs.StringVar(&cfg.KeyPath, "key", "", "Ed25519 identity key path (generates new if missing)")
	fs.StringVar(&cfg.Mode, "mode", modeLocal, "Proving mode: local or distributed")
	fs.StringVar(&cfg.Algebra, "algebra", "bls", "Proof algebra: bls or wasm")
	fs.StringVar(&cfg.ProverKey, "prover-key", "./prover.seed", "BLS proving seed shared by the fleet")
	fs.StringVar(&cfg.CircuitPath, "circuit", "", "WASM circuit path (wasm algebra)")
	fs.Uint64Var(&cfg.GasLimit, "gas", circuit.DefaultGasLimit, "Gas limit per circuit call")
	fs.IntVar(&cfg.Parallelism, "parallelism", runtime.GOMAXPROCS(0), "Concurrent leaf proofs in local mode")
	fs.StringVar(&cfg.Pairing, "pairing", "tree", "Local fold shape: tree, left or right")
	fs.BoolVar(&cfg.Chain, "chain", false, "Link each block to the latest stored block")
	fs.StringVar(&cfg.InputPath, "input", "", "Prove this input document once and exit")
	fs.StringVar(&cfg.OutputPath, "output", "", "Block proof output path for -input (default stdout)")
	fs.IntVar(&cfg.MinWorkers, "min-workers", 1, "Workers to wait for in distributed mode")
	fs.DurationVar(&cfg.WorkerWait, "worker-wait", time.Minute, "Maximum wait for -min-workers")
	fs.IntVar(&cfg.MaxAttempts, "attempts", 3, "Workers tried per task")
	fs.IntVar(&cfg.FanOut, "fan-out", 64, "Concurrent tasks per stage")
	fs.DurationVar(&cfg.TaskTimeout, "task-timeout", 2*time.Minute, "Timeout of one task")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks flag combinations.
func (c *Config) validate() error {
	if c.Mode != modeLocal && c.Mode != modeDistributed {
		return fmt.Errorf("unknown mode %q", c.Mode)
	}

	if _, err := parsePairing(c.Pairing); err != nil {
		return err
	}

	if c.Mode == modeLocal && c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}

	if c.Chain && c.DataPath == "" {
		return fmt.Errorf("-chain requires a block store (-data)")
	}

	return nil
}

// parsePairing maps a flag value to a fold shape.
func parsePairing(s string) (reduce.Pairing, error) {
	for _, p := range []reduce.Pairing{reduce.PairTree, reduce.PairLeft, reduce.PairRight} {
		if p.String() == s {
			return p, nil
		}
	}

	return 0, fmt.Errorf("unknown pairing %q", s)
}
