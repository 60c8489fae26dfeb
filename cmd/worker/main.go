package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"BlockProver/internal/backend"
	"BlockProver/internal/circuit"
	"BlockProver/internal/cluster"
	"BlockProver/internal/logger"
	"BlockProver/internal/network"
)

const (
	// statsInterval is the period of the task counter log line.
	statsInterval = 30 * time.Second

	// maxSlots is the largest capacity the leader accepts from a worker.
	maxSlots = 1 << 16
)

// Config holds the worker configuration.
type Config struct {
	// LeaderAddress is the leader's QUIC address.
	LeaderAddress string

	// KeyPath is the path to the Ed25519 identity key file.
	KeyPath string

	// Algebra selects the proof algebra: "bls" or "wasm".
	Algebra string

	// ProverKey is the path to the BLS proving seed shared by the fleet.
	ProverKey string

	// CircuitPath is the path to the WASM circuit.
	CircuitPath string

	// GasLimit bounds one circuit call.
	GasLimit uint64

	// Slots bounds concurrently executing tasks.
	Slots int

	// ConnectTimeout bounds the initial connection to the leader.
	ConnectTimeout time.Duration

	// LogLevel is the minimum log level.
	LogLevel string
}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	alg, closer, err := backend.Open(ctx, backend.Config{
		Kind:        cfg.Algebra,
		ProverKey:   cfg.ProverKey,
		CircuitPath: cfg.CircuitPath,
		GasLimit:    cfg.GasLimit,
	})
	if err != nil {
		return fmt.Errorf("init algebra:\n%w", err)
	}
	defer closer.Close()

	worker, err := cluster.NewWorker(alg, cfg.Slots)
	if err != nil {
		return err
	}

	key, err := network.LoadOrCreateIdentity(cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("load identity:\n%w", err)
	}

	node, err := network.NewNode(network.Config{PrivateKey: key, Slots: worker.Slots()}, worker.Handlers())
	if err != nil {
		return fmt.Errorf("init network:\n%w", err)
	}
	defer node.Close()

	logger.Info("starting BlockProver worker",
		"pubkey", hex.EncodeToString(node.PublicKey()),
		"leader", cfg.LeaderAddress,
		"algebra", cfg.Algebra,
		"slots", cfg.Slots,
	)

	if err := connectLeader(ctx, node, cfg); err != nil {
		return err
	}

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down", "served", worker.Served(), "failed", worker.Failed())
			return nil
		case <-ticker.C:
			logger.Info("worker stats",
				"served", worker.Served(),
				"failed", worker.Failed(),
				"in_flight", worker.InFlight(),
			)
		}
	}
}

// connectLeader dials the leader until it answers or ConnectTimeout expires.
// Once connected, the node redials the leader on its own after a disconnect.
func connectLeader(ctx context.Context, node *network.Node, cfg *Config) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	for {
		peer, err := node.Dial(ctx, cfg.LeaderAddress)
		if err == nil {
			logger.Info("connected to leader", "leader", peer.ID(), "addr", cfg.LeaderAddress)
			return nil
		}

		logger.Debug("leader not reachable", "addr", cfg.LeaderAddress, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("connect to leader %s:\n%w", cfg.LeaderAddress, err)
		case <-time.After(time.Second):
		}
	}
}

// parseFlags parses command-line flags into Config.
func parseFlags(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	fs.StringVar(&cfg.LeaderAddress, "leader", "", "Leader QUIC address (required)")
	fs.StringVar(&cfg.KeyPath, "key", "", "Ed25519 identity key path (generates new if missing)")
	fs.StringVar(&cfg.Algebra, "algebra", "bls", "Proof algebra: bls or wasm")
	fs.StringVar(&cfg.ProverKey, "prover-key", "./prover.seed", "BLS proving seed shared by the fleet")
	fs.StringVar(&cfg.CircuitPath, "circuit", "", "WASM circuit path (wasm algebra)")
	fs.Uint64Var(&cfg.GasLimit, "gas", circuit.DefaultGasLimit, "Gas limit per circuit call")
	fs.IntVar(&cfg.Slots, "slots", runtime.GOMAXPROCS(0), "Concurrent tasks")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", time.Minute, "Maximum wait for the leader")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.LeaderAddress == "" {
		return nil, fmt.Errorf("-leader is required")
	}

	if cfg.Slots < 1 || cfg.Slots > maxSlots {
		return nil, fmt.Errorf("slots must be in 1..%d, got %d", maxSlots, cfg.Slots)
	}

	return cfg, nil
}
