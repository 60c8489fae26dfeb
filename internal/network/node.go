package network

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"BlockProver/internal/logger"
)

const (
	// defaultRedialDelay is the first wait before redialing a lost leader.
	defaultRedialDelay = 2 * time.Second

	// maxRedialDelay caps the redial backoff.
	maxRedialDelay = 30 * time.Second

	// noticeTimeout bounds one Notify round.
	noticeTimeout = 5 * time.Second

	// alpnProtocol is the ALPN protocol identifier.
	alpnProtocol = "blockprover/1"
)

// Stream and connection error codes.
const (
	codeRefused   quic.StreamErrorCode      = 1 // the remote has no answer for a request
	codeAbandoned quic.StreamErrorCode      = 2 // the requester gave up
	codeHandshake quic.ApplicationErrorCode = 3 // the fleet handshake failed
)

// Config holds the configuration for a Node.
type Config struct {
	PrivateKey  ed25519.PrivateKey // PrivateKey is the node's ed25519 identity key
	ListenAddr  string             // ListenAddr is the leader's listen address, unused by workers
	Slots       int                // Slots is the task capacity a worker announces when dialing
	RedialDelay time.Duration      // RedialDelay is the first wait before redialing a lost leader
}

// Handlers are the callbacks a Node invokes. Nil handlers are skipped; a
// node without a Request handler refuses every request.
type Handlers struct {
	Connect    func(*Peer)                         // Connect is called when a peer joins
	Disconnect func(*Peer)                         // Disconnect is called when a peer leaves
	Request    func(*Peer, []byte) ([]byte, error) // Request answers a task request
	Notice     func(*Peer, []byte)                 // Notice receives a one-way notice
}

// Node is one end of the fleet's QUIC transport.
//
// The leader listens and collects the workers that dial it. A worker dials the
// leader, announces its task slots, answers task requests, and redials with
// backoff when the link drops.
type Node struct {
	key         ed25519.PrivateKey // key is the node's identity
	listenAddr  string             // listenAddr is the leader's listen address
	slots       int                // slots is the capacity announced when dialing
	redialDelay time.Duration      // redialDelay is the first redial wait
	handlers    Handlers           // handlers are fixed at construction
	tlsConfig   *tls.Config        // tlsConfig carries the identity certificate
	quicConfig  *quic.Config       // quicConfig holds transport settings

	listener *quic.Listener // listener is set by Listen

	mu    sync.RWMutex     // mu protects peers
	peers map[string]*Peer // peers maps public key hex to the live peer

	ctx    context.Context    // ctx is cancelled by Close
	cancel context.CancelFunc // cancel cancels ctx
	wg     sync.WaitGroup     // wg waits for node goroutines
}

// NewNode creates a node. A leader calls Listen; a worker calls Dial.
func NewNode(cfg Config, h Handlers) (*Node, error) {
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("private key is required")
	}

	cert, err := generateCertificate(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("generate certificate:\n%w", err)
	}

	n := &Node{
		key:         cfg.PrivateKey,
		listenAddr:  cfg.ListenAddr,
		slots:       max(cfg.Slots, 1),
		redialDelay: cfg.RedialDelay,
		handlers:    h,
		tlsConfig: &tls.Config{
			Certificates:       []tls.Certificate{cert},
			ClientAuth:         tls.RequireAnyClientCert,
			InsecureSkipVerify: true, // identity is the certificate's ed25519 key
			NextProtos:         []string{alpnProtocol},
		},
		quicConfig: &quic.Config{
			MaxIdleTimeout:  30 * time.Second,
			KeepAlivePeriod: 10 * time.Second,
		},
		peers: make(map[string]*Peer),
	}

	if n.redialDelay <= 0 {
		n.redialDelay = defaultRedialDelay
	}

	n.ctx, n.cancel = context.WithCancel(context.Background())

	return n, nil
}

// PublicKey returns the node's identity.
func (n *Node) PublicKey() ed25519.PublicKey {
	return n.key.Public().(ed25519.PublicKey)
}

// Addr returns the listen address, or "" when the node does not listen.
func (n *Node) Addr() string {
	if n.listener == nil {
		return ""
	}

	return n.listener.Addr().String()
}

// Listen accepts workers in the background.
func (n *Node) Listen() error {
	if n.listenAddr == "" {
		return fmt.Errorf("listen address is required")
	}

	listener, err := quic.ListenAddr(n.listenAddr, n.tlsConfig, n.quicConfig)
	if err != nil {
		return fmt.Errorf("listen on %s:\n%w", n.listenAddr, err)
	}

	n.listener = listener

	n.wg.Add(1)
	go n.acceptLoop()

	logger.Debug("quic listening", "addr", n.Addr())

	return nil
}

// Dial connects to the leader at addr and completes the handshake. The
// leader is redialed with backoff whenever the connection drops, until the
// peer is closed locally or the node closes.
func (n *Node) Dial(ctx context.Context, addr string) (*Peer, error) {
	peer, err := n.dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	n.wg.Add(1)
	go n.supervise(addr, peer)

	return peer, nil
}

// Notify sends a notice to every connected peer.
func (n *Node) Notify(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, noticeTimeout)
	defer cancel()

	var errs []error

	for _, p := range n.Peers() {
		if err := p.notify(ctx, data); err != nil {
			errs = append(errs, fmt.Errorf("notify %s:\n%w", p.ID(), err))
		}
	}

	return errors.Join(errs...)
}

// Peers returns the connected peers ordered by public key.
func (n *Node) Peers() []*Peer {
	n.mu.RLock()
	peers := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}
	n.mu.RUnlock()

	slices.SortFunc(peers, func(a, b *Peer) int {
		return bytes.Compare(a.publicKey, b.publicKey)
	})

	return peers
}

// Slots returns the total task capacity announced by connected workers.
func (n *Node) Slots() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	total := 0
	for _, p := range n.peers {
		total += p.slots
	}

	return total
}

// Close stops the node and closes every connection.
func (n *Node) Close() error {
	n.cancel()

	if n.listener != nil {
		n.listener.Close()
	}

	for _, p := range n.Peers() {
		p.Close()
	}

	n.wg.Wait()

	return nil
}

// acceptLoop admits workers until the listener closes.
func (n *Node) acceptLoop() {
	defer n.wg.Done()

	for {
		conn, err := n.listener.Accept(n.ctx)
		if err != nil {
			return
		}

		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.admit(conn)
		}()
	}
}

// admit reads a worker's announcement, registers it and acknowledges.
// The worker is registered before it learns the handshake succeeded.
func (n *Node) admit(conn *quic.Conn) {
	addr := conn.RemoteAddr().String()

	stream, slots, err := acceptHello(n.ctx, conn)
	if err != nil {
		logger.Debug("reject worker", "addr", addr, "error", err)
		conn.CloseWithError(codeHandshake, "handshake failed")
		return
	}

	peer, err := n.register(conn, addr, slots)
	if err != nil {
		logger.Debug("reject worker", "addr", addr, "error", err)
		stream.CancelWrite(codeRefused)
		conn.CloseWithError(codeHandshake, "handshake failed")
		return
	}

	if err := writeFrame(stream, encodeAck()); err != nil {
		logger.Debug("acknowledge worker", "worker", peer.ID(), "error", err)
		peer.Close()
		return
	}

	stream.Close()
}

// dial opens one connection to the leader and registers it.
func (n *Node) dial(ctx context.Context, addr string) (*Peer, error) {
	conn, err := quic.DialAddr(ctx, addr, n.tlsConfig, n.quicConfig)
	if err != nil {
		return nil, fmt.Errorf("dial %s:\n%w", addr, err)
	}

	if err := sendHello(ctx, conn, n.slots); err != nil {
		conn.CloseWithError(codeHandshake, "handshake failed")
		return nil, fmt.Errorf("handshake with %s:\n%w", addr, err)
	}

	peer, err := n.register(conn, addr, 0)
	if err != nil {
		conn.CloseWithError(codeHandshake, "setup failed")
		return nil, err
	}

	return peer, nil
}

// supervise redials addr each time the current peer drops remotely.
func (n *Node) supervise(addr string, peer *Peer) {
	defer n.wg.Done()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-peer.done:
		}

		if peer.closed.Load() {
			return
		}

		if peer = n.redial(addr); peer == nil {
			return
		}
	}
}

// redial dials addr with exponential backoff until it succeeds.
// It returns nil once the node closes.
func (n *Node) redial(addr string) *Peer {
	delay := n.redialDelay

	for {
		select {
		case <-n.ctx.Done():
			return nil
		case <-time.After(delay):
		}

		peer, err := n.dial(n.ctx, addr)
		if err == nil {
			logger.Info("redialed leader", "leader", peer.ID(), "addr", addr)
			return peer
		}

		logger.Debug("redial failed", "addr", addr, "delay", delay, "error", err)

		delay = min(delay*2, maxRedialDelay)
	}
}

// register records a connection and starts serving its streams.
// A peer reconnecting under the same identity replaces its stale entry.
func (n *Node) register(conn *quic.Conn, addr string, slots int) (*Peer, error) {
	pubKey, err := extractPublicKey(conn.ConnectionState().TLS)
	if err != nil {
		return nil, fmt.Errorf("extract public key:\n%w", err)
	}

	peer := &Peer{
		publicKey: pubKey,
		address:   addr,
		slots:     slots,
		conn:      conn,
		node:      n,
		done:      make(chan struct{}),
	}

	keyHex := hex.EncodeToString(pubKey)

	n.mu.Lock()
	stale := n.peers[keyHex]
	n.peers[keyHex] = peer
	n.mu.Unlock()

	if stale != nil {
		stale.Close()
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		peer.serve()
	}()

	if n.handlers.Connect != nil {
		n.handlers.Connect(peer)
	}

	return peer, nil
}

// drop unregisters a peer whose connection ended.
func (n *Node) drop(p *Peer) {
	keyHex := hex.EncodeToString(p.publicKey)

	n.mu.Lock()
	if n.peers[keyHex] == p {
		delete(n.peers, keyHex)
	}
	n.mu.Unlock()

	close(p.done)

	if n.handlers.Disconnect != nil {
		n.handlers.Disconnect(p)
	}
}
