package network

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/quic-go/quic-go"
)

const (
	// helloVersion is the handshake version spoken by this build.
	helloVersion = 1

	// helloSize is [1B version][4B slots].
	helloSize = 5

	// helloTimeout bounds the handshake on either side.
	helloTimeout = 5 * time.Second

	// maxSlots bounds the capacity a worker may announce.
	maxSlots = 1 << 16
)

// ErrHandshake is returned when a worker and the leader cannot agree on the handshake.
var ErrHandshake = errors.New("fleet handshake failed")

// encodeHello builds a worker's announcement.
func encodeHello(slots int) []byte {
	buf := make([]byte, helloSize)
	buf[0] = helloVersion
	binary.BigEndian.PutUint32(buf[1:], uint32(slots))

	return buf
}

// decodeHello validates an announcement and returns its slot count.
func decodeHello(data []byte) (int, error) {
	if len(data) != helloSize {
		return 0, fmt.Errorf("hello of %d bytes: %w", len(data), ErrHandshake)
	}

	if data[0] != helloVersion {
		return 0, fmt.Errorf("version %d, want %d: %w", data[0], helloVersion, ErrHandshake)
	}

	slots := binary.BigEndian.Uint32(data[1:])
	if slots == 0 || slots > maxSlots {
		return 0, fmt.Errorf("%d slots: %w", slots, ErrHandshake)
	}

	return int(slots), nil
}

// encodeAck builds the leader's acknowledgement.
func encodeAck() []byte {
	return []byte{helloVersion}
}

// sendHello announces slots on a new stream and waits for the acknowledgement.
func sendHello(ctx context.Context, conn *quic.Conn, slots int) error {
	ctx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return fmt.Errorf("open handshake stream:\n%w", err)
	}
	defer stream.Close()

	deadline, _ := ctx.Deadline()
	stream.SetDeadline(deadline)

	if err := writeFrame(stream, encodeHello(slots)); err != nil {
		return err
	}

	ack, err := readFrame(stream)
	if err != nil {
		return fmt.Errorf("read acknowledgement:\n%w", err)
	}

	if len(ack) != 1 || ack[0] != helloVersion {
		return fmt.Errorf("leader acknowledged %x: %w", ack, ErrHandshake)
	}

	return nil
}

// acceptHello reads a worker's announcement from the first stream it opens.
// The returned stream carries the acknowledgement.
func acceptHello(ctx context.Context, conn *quic.Conn) (*quic.Stream, int, error) {
	ctx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("accept handshake stream:\n%w", err)
	}

	deadline, _ := ctx.Deadline()
	stream.SetDeadline(deadline)

	data, err := readFrame(stream)
	if err != nil {
		stream.CancelWrite(codeRefused)
		return nil, 0, fmt.Errorf("read hello:\n%w", err)
	}

	slots, err := decodeHello(data)
	if err != nil {
		stream.CancelWrite(codeRefused)
		return nil, 0, err
	}

	return stream, slots, nil
}
