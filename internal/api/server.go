// Package api serves the leader's HTTP API.
package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"BlockProver/internal/leader"
	"BlockProver/internal/logger"
	"BlockProver/internal/proof"
	"BlockProver/internal/storage"
)

const (
	// maxBodySize is the maximum input document size in bytes.
	maxBodySize = 64 << 20 // 64 MB

	// proveTimeout bounds one proving request.
	proveTimeout = 10 * time.Minute
)

// Prover proves one block from indexed inputs.
type Prover interface {
	Prove(ctx context.Context, inputs []proof.TxProofInput) (*proof.BlockProof, error)
}

// ProverFunc adapts a function to Prover.
type ProverFunc func(ctx context.Context, inputs []proof.TxProofInput) (*proof.BlockProof, error)

// Prove calls f.
func (f ProverFunc) Prove(ctx context.Context, inputs []proof.TxProofInput) (*proof.BlockProof, error) {
	return f(ctx, inputs)
}

// BlockSource reads stored block proofs.
type BlockSource interface {
	Block(height uint64) (*proof.BlockProof, error)
	Latest() (*proof.BlockProof, error)
	Count() (int, error)
}

// StatusProvider exposes the prover's configuration for monitoring.
type StatusProvider interface {
	Mode() string
	Workers() int
}

// BlockResponse is the JSON form of a block proof.
type BlockResponse struct {
	Height    uint64 `json:"height"`               // Height is the block's position in the chain
	Leaves    uint32 `json:"leaves"`               // Leaves is the number of transactions covered
	Parent    string `json:"parent,omitempty"`     // Parent is the hex parent hash, empty for a root block
	Hash      string `json:"hash"`                 // Hash is the hex block proof hash
	Data      string `json:"data"`                 // Data is the hex block proof
	ElapsedMS int64  `json:"elapsed_ms,omitempty"` // ElapsedMS is the proving time, set by POST /prove
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Mode    string `json:"mode"`    // Mode is "local" or "distributed"
	Workers int    `json:"workers"` // Workers is the number of connected workers
	Blocks  int    `json:"blocks"`  // Blocks is the number of stored blocks
	Proving int64  `json:"proving"` // Proving is the number of requests in progress
	Proved  int64  `json:"proved"`  // Proved is the number of blocks proved since start
}

// Server is the HTTP API server.
type Server struct {
	addr   string         // addr is the HTTP listen address
	prover Prover         // prover proves submitted batches
	blocks BlockSource    // blocks serves stored proofs, may be nil
	status StatusProvider // status describes the prover, may be nil
	server *http.Server   // server is the underlying HTTP server
	ln     net.Listener   // ln is the bound listener

	proving atomic.Int64 // proving counts requests in progress
	proved  atomic.Int64 // proved counts successful requests
}

// New creates a new HTTP API server.
func New(addr string, prover Prover, blocks BlockSource, status StatusProvider) *Server {
	return &Server{
		addr:   addr,
		prover: prover,
		blocks: blocks,
		status: status,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /prove", s.handleProve)
	mux.HandleFunc("GET /blocks/latest", s.handleLatest)
	mux.HandleFunc("GET /blocks/{height}", s.handleBlock)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// Start binds the listen address and serves in a goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s:\n%w", s.addr, err)
	}

	s.ln = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http api started", "addr", ln.Addr().String())

		if err := s.server.Serve(ln); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}

	return s.ln.Addr().String()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// handleProve handles POST /prove requests.
func (s *Server) handleProve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if len(body) > maxBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "input document too large")
		return
	}

	inputs, err := leader.ParseInput(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := validateInputs(inputs); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), proveTimeout)
	defer cancel()

	s.proving.Add(1)
	defer s.proving.Add(-1)

	start := time.Now()

	block, err := s.prover.Prove(ctx, inputs)
	if err != nil {
		logger.Warn("prove request failed", "txs", len(inputs), "error", err)
		writeError(w, statusFor(err), err.Error())

		return
	}

	s.proved.Add(1)

	resp := NewBlockResponse(block)
	resp.ElapsedMS = time.Since(start).Milliseconds()

	writeJSON(w, http.StatusOK, resp)
}

// handleLatest handles GET /blocks/latest requests.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if s.blocks == nil {
		writeError(w, http.StatusServiceUnavailable, "block store not configured")
		return
	}

	s.writeBlock(w)(s.blocks.Latest())
}

// handleBlock handles GET /blocks/{height} requests.
func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	if s.blocks == nil {
		writeError(w, http.StatusServiceUnavailable, "block store not configured")
		return
	}

	height, err := strconv.ParseUint(r.PathValue("height"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid height")
		return
	}

	s.writeBlock(w)(s.blocks.Block(height))
}

// writeBlock returns a callback writing a store lookup result.
func (s *Server) writeBlock(w http.ResponseWriter) func(*proof.BlockProof, error) {
	return func(b *proof.BlockProof, err error) {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}

		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, NewBlockResponse(b))
	}
}

// handleStatus handles GET /status requests.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Mode:    "local",
		Proving: s.proving.Load(),
		Proved:  s.proved.Load(),
	}

	if s.status != nil {
		resp.Mode = s.status.Mode()
		resp.Workers = s.status.Workers()
	}

	if s.blocks != nil {
		n, err := s.blocks.Count()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp.Blocks = n
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// NewBlockResponse converts a block proof to its JSON form.
func NewBlockResponse(b *proof.BlockProof) BlockResponse {
	hash := b.Hash()

	resp := BlockResponse{
		Height: b.Height,
		Leaves: b.Leaves,
		Hash:   hex.EncodeToString(hash[:]),
		Data:   hex.EncodeToString(b.Data),
	}

	if b.HasParent {
		resp.Parent = hex.EncodeToString(b.Parent[:])
	}

	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
