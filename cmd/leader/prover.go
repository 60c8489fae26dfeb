package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"BlockProver/internal/api"
	"BlockProver/internal/backend"
	"BlockProver/internal/cluster"
	"BlockProver/internal/leader"
	"BlockProver/internal/logger"
	"BlockProver/internal/network"
	"BlockProver/internal/proof"
	"BlockProver/internal/reduce"
	"BlockProver/internal/storage"
)

// Prover is a running leader and its components.
type Prover struct {
	cfg *Config // cfg is the leader configuration

	alg       proof.Algebra // alg is the local proof algebra
	algCloser io.Closer     // algCloser releases the algebra

	store   *storage.Store       // store persists block proofs, may be nil
	leader  *leader.Leader       // leader runs proving requests
	network *network.Node        // network accepts workers in distributed mode
	coord   *cluster.Coordinator // coord dispatches tasks to workers
	api     *api.Server          // api serves HTTP requests
}

// NewProver wires the components selected by cfg.
func NewProver(cfg *Config) (*Prover, error) {
	p := &Prover{cfg: cfg}

	if err := p.init(); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// init initializes components in dependency order.
func (p *Prover) init() error {
	if err := p.initAlgebra(); err != nil {
		return err
	}

	if err := p.initStorage(); err != nil {
		return err
	}

	if p.cfg.Mode == modeDistributed {
		if err := p.initNetwork(); err != nil {
			return err
		}
	}

	pairing, _ := parsePairing(p.cfg.Pairing)

	opts := []leader.Option{
		leader.WithChaining(p.cfg.Chain),
		leader.WithEngineOptions(reduce.WithPairing(pairing)),
	}

	if p.store != nil {
		opts = append(opts, leader.WithStore(p.store))
	}

	p.leader = leader.New(p.alg, opts...)

	return nil
}

// initAlgebra opens the configured proof algebra.
func (p *Prover) initAlgebra() error {
	alg, closer, err := backend.Open(context.Background(), backend.Config{
		Kind:        p.cfg.Algebra,
		ProverKey:   p.cfg.ProverKey,
		CircuitPath: p.cfg.CircuitPath,
		GasLimit:    p.cfg.GasLimit,
	})
	if err != nil {
		return fmt.Errorf("init algebra:\n%w", err)
	}

	p.alg, p.algCloser = alg, closer

	return nil
}

// initStorage opens the block store unless persistence is disabled.
func (p *Prover) initStorage() error {
	if p.cfg.DataPath == "" {
		return nil
	}

	if err := os.MkdirAll(p.cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("create data directory:\n%w", err)
	}

	store, err := storage.Open(filepath.Join(p.cfg.DataPath, "blocks"))
	if err != nil {
		return fmt.Errorf("init storage:\n%w", err)
	}

	p.store = store

	return nil
}

// initNetwork starts the QUIC node workers connect to.
func (p *Prover) initNetwork() error {
	key, err := network.LoadOrCreateIdentity(p.cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("load identity:\n%w", err)
	}

	node, err := network.NewNode(network.Config{
		PrivateKey: key,
		ListenAddr: p.cfg.QUICAddress,
	}, network.Handlers{
		Connect: func(peer *network.Peer) {
			logger.Info("worker connected", "worker", peer.ID(), "addr", peer.Address(), "slots", peer.Slots())
		},
		Disconnect: func(peer *network.Peer) {
			logger.Warn("worker disconnected", "worker", peer.ID())
		},
	})
	if err != nil {
		return fmt.Errorf("init network:\n%w", err)
	}

	p.network = node

	if err := node.Listen(); err != nil {
		return fmt.Errorf("start network:\n%w", err)
	}

	p.coord = cluster.NewCoordinator(node, cluster.CoordinatorConfig{
		MaxAttempts: p.cfg.MaxAttempts,
		FanOut:      p.cfg.FanOut,
		TaskTimeout: p.cfg.TaskTimeout,
	})

	return nil
}

// Prove proves one block with the configured mode.
func (p *Prover) Prove(ctx context.Context, inputs []proof.TxProofInput) (*proof.BlockProof, error) {
	if p.cfg.Mode == modeLocal {
		return p.leader.ProveLocal(ctx, inputs, p.cfg.Parallelism, nil)
	}

	return p.leader.ProveDistributed(ctx, inputs, p.coord, nil)
}

// Mode returns the proving mode.
func (p *Prover) Mode() string {
	return p.cfg.Mode
}

// Workers returns the number of connected workers.
func (p *Prover) Workers() int {
	if p.coord == nil {
		return 0
	}

	return len(p.coord.Workers())
}

// ProveFile proves the input document at path and writes the block as JSON.
func (p *Prover) ProveFile(path, out string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input:\n%w", err)
	}

	inputs, err := leader.ParseInput(data)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.waitForWorkers(ctx); err != nil {
		return err
	}

	block, err := p.Prove(ctx, inputs)
	if err != nil {
		if stage, ok := proof.StageOf(err); ok {
			return fmt.Errorf("%s stage failed:\n%w", stage, err)
		}

		return err
	}

	return writeBlock(block, out)
}

// Serve runs the HTTP API until SIGINT or SIGTERM.
func (p *Prover) Serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.waitForWorkers(ctx); err != nil {
		p.Close()
		return err
	}

	var blocks api.BlockSource
	if p.store != nil {
		blocks = p.store
	}

	p.api = api.New(p.cfg.HTTPAddress, p, blocks, p)
	if err := p.api.Start(); err != nil {
		p.Close()
		return fmt.Errorf("start api:\n%w", err)
	}

	return p.waitForShutdown(ctx)
}

// waitForWorkers blocks until MinWorkers are connected in distributed mode.
func (p *Prover) waitForWorkers(ctx context.Context) error {
	if p.coord == nil || p.cfg.MinWorkers < 1 {
		return nil
	}

	logger.Info("waiting for workers", "want", p.cfg.MinWorkers)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.WorkerWait)
	defer cancel()

	return p.coord.WaitForWorkers(ctx, p.cfg.MinWorkers)
}

// waitForShutdown blocks until ctx ends.
func (p *Prover) waitForShutdown(ctx context.Context) error {
	<-ctx.Done()
	logger.Info("shutting down")

	return p.Close()
}

// Close shuts down all components gracefully. It is safe to call more than once.
func (p *Prover) Close() error {
	if p.api != nil {
		p.api.Stop()
		p.api = nil
	}

	if p.network != nil {
		p.network.Close()
		p.network = nil
	}

	if p.store != nil {
		p.store.Close()
		p.store = nil
	}

	if p.algCloser != nil {
		p.algCloser.Close()
		p.algCloser = nil
	}

	return nil
}

// writeBlock writes the block's JSON form to path, or stdout when path is empty.
func writeBlock(b *proof.BlockProof, path string) error {
	data, err := json.MarshalIndent(api.NewBlockResponse(b), "", "  ")
	if err != nil {
		return err
	}

	data = append(data, '\n')

	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}

	return os.WriteFile(path, data, 0644)
}
