package network

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/quic-go/quic-go"

	"BlockProver/internal/logger"
)

var (
	// ErrPeerClosed is returned when using a closed peer.
	ErrPeerClosed = errors.New("peer is closed")

	// ErrRefused is returned when the remote has no answer for a request.
	ErrRefused = errors.New("request refused")
)

// Peer is a live connection between the leader and one worker.
type Peer struct {
	publicKey ed25519.PublicKey // publicKey is the remote identity
	address   string            // address is the remote address
	slots     int               // slots is the capacity a worker announced, 0 for the leader
	conn      *quic.Conn        // conn is the QUIC connection
	node      *Node             // node is the owning node
	closed    atomic.Bool       // closed is set once the peer is closed locally
	done      chan struct{}     // done is closed when the connection ends
}

// PublicKey returns the remote identity.
func (p *Peer) PublicKey() ed25519.PublicKey {
	return p.publicKey
}

// ID returns a short hex form of the remote identity for logs.
func (p *Peer) ID() string {
	return hex.EncodeToString(p.publicKey[:8])
}

// Address returns the remote address.
func (p *Peer) Address() string {
	return p.address
}

// Slots returns the task capacity the remote announced.
func (p *Peer) Slots() int {
	return p.slots
}

// Request sends data on a new stream and waits for the single answer.
// The stream is reset in both directions when ctx ends first.
func (p *Peer) Request(ctx context.Context, data []byte) ([]byte, error) {
	if p.closed.Load() {
		return nil, ErrPeerClosed
	}

	stream, err := p.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("open stream:\n%w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		stream.CancelWrite(codeAbandoned)
		stream.CancelRead(codeAbandoned)
	})
	defer stop()

	if err := writeFrame(stream, data); err != nil {
		return nil, fmt.Errorf("write request:\n%w", err)
	}

	stream.Close()

	response, err := readFrame(stream)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var se *quic.StreamError
		if errors.As(err, &se) && se.Remote && se.ErrorCode == codeRefused {
			return nil, fmt.Errorf("peer %s: %w", p.ID(), ErrRefused)
		}

		return nil, fmt.Errorf("read response:\n%w", err)
	}

	return response, nil
}

// Close closes the connection. A closed peer is not redialed.
func (p *Peer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	return p.conn.CloseWithError(0, "closed")
}

// notify writes one notice on a unidirectional stream.
func (p *Peer) notify(ctx context.Context, data []byte) error {
	if p.closed.Load() {
		return ErrPeerClosed
	}

	stream, err := p.conn.OpenUniStreamSync(ctx)
	if err != nil {
		return fmt.Errorf("open stream:\n%w", err)
	}

	if err := writeFrame(stream, data); err != nil {
		stream.CancelWrite(codeAbandoned)
		return err
	}

	return stream.Close()
}

// serve answers requests and delivers notices until the connection ends,
// then unregisters the peer.
func (p *Peer) serve() {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.serveRequests()
	}()

	p.serveNotices()
	wg.Wait()

	logger.Debug("connection ended", "peer", p.ID(), "addr", p.address)

	p.node.drop(p)
}

// serveRequests answers each request stream.
func (p *Peer) serveRequests() {
	for {
		stream, err := p.conn.AcceptStream(p.conn.Context())
		if err != nil {
			return
		}

		go p.answer(stream)
	}
}

// serveNotices delivers each notice stream.
func (p *Peer) serveNotices() {
	for {
		stream, err := p.conn.AcceptUniStream(p.conn.Context())
		if err != nil {
			return
		}

		go p.deliver(stream)
	}
}

// answer runs the request handler. Without a handler, or when it fails,
// the stream is reset with codeRefused.
func (p *Peer) answer(stream *quic.Stream) {
	defer stream.Close()

	data, err := readFrame(stream)
	if err != nil {
		stream.CancelWrite(codeRefused)
		return
	}

	handle := p.node.handlers.Request
	if handle == nil {
		stream.CancelWrite(codeRefused)
		return
	}

	response, err := handle(p, data)
	if err != nil {
		logger.Debug("request handler failed", "peer", p.ID(), "error", err)
		stream.CancelWrite(codeRefused)
		return
	}

	if err := writeFrame(stream, response); err != nil {
		logger.Debug("write response", "peer", p.ID(), "error", err)
	}
}

// deliver reads one notice and hands it to the notice handler.
func (p *Peer) deliver(stream *quic.ReceiveStream) {
	data, err := readFrame(stream)
	if err != nil {
		logger.Debug("read notice", "peer", p.ID(), "error", err)
		return
	}

	if handle := p.node.handlers.Notice; handle != nil {
		handle(p, data)
	}
}
