// Package client talks to a leader's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"BlockProver/internal/api"
	"BlockProver/internal/leader"
	"BlockProver/internal/proof"
)

// ErrHashMismatch is returned when a block's advertised hash does not match its contents.
var ErrHashMismatch = errors.New("block hash mismatch")

// Client connects to a leader via HTTP.
type Client struct {
	baseURL string       // baseURL is the leader's API root (e.g. "http://127.0.0.1:8080")
	http    *http.Client // http performs the requests
}

// NewClient creates a client for the leader at addr.
// addr may be host:port or a full http(s) URL.
func NewClient(addr string) *Client {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}

	return &Client{
		baseURL: strings.TrimSuffix(addr, "/"),
		http:    &http.Client{Timeout: 15 * time.Minute},
	}
}

// Prove asks the leader to prove one block from raw payloads.
func (c *Client) Prove(ctx context.Context, payloads [][]byte) (*proof.BlockProof, error) {
	doc, err := leader.EncodeInput(payloads)
	if err != nil {
		return nil, fmt.Errorf("encode input:\n%w", err)
	}

	return c.ProveDocument(ctx, doc)
}

// ProveDocument asks the leader to prove one block from an input document.
func (c *Client) ProveDocument(ctx context.Context, doc []byte) (*proof.BlockProof, error) {
	var resp api.BlockResponse
	if err := c.doJSON(ctx, http.MethodPost, "/prove", bytes.NewReader(doc), &resp); err != nil {
		return nil, err
	}

	return parseBlock(resp)
}

// Latest returns the leader's latest stored block.
func (c *Client) Latest(ctx context.Context) (*proof.BlockProof, error) {
	var resp api.BlockResponse
	if err := c.doJSON(ctx, http.MethodGet, "/blocks/latest", nil, &resp); err != nil {
		return nil, err
	}

	return parseBlock(resp)
}

// Block returns the stored block at height.
func (c *Client) Block(ctx context.Context, height uint64) (*proof.BlockProof, error) {
	var resp api.BlockResponse
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/blocks/%d", height), nil, &resp); err != nil {
		return nil, err
	}

	return parseBlock(resp)
}

// Status returns the leader's status.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/status", nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Health checks that the leader is serving.
func (c *Client) Health(ctx context.Context) error {
	var resp map[string]string
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return err
	}

	if resp["status"] != "ok" {
		return fmt.Errorf("unhealthy: %q", resp["status"])
	}

	return nil
}

// parseBlock decodes a block response and checks its hash.
func parseBlock(resp api.BlockResponse) (*proof.BlockProof, error) {
	data, err := hex.DecodeString(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("decode block data:\n%w", err)
	}

	b := &proof.BlockProof{Height: resp.Height, Leaves: resp.Leaves, Data: data}

	if resp.Parent != "" {
		parent, err := hex.DecodeString(resp.Parent)
		if err != nil || len(parent) != proof.HashSize {
			return nil, fmt.Errorf("invalid parent hash %q", resp.Parent)
		}

		copy(b.Parent[:], parent)
		b.HasParent = true
	}

	hash := b.Hash()
	if resp.Hash != hex.EncodeToString(hash[:]) {
		return nil, fmt.Errorf("block %d: %w", b.Height, ErrHashMismatch)
	}

	return b, nil
}
