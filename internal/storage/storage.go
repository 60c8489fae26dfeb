// Package storage persists finished block proofs in Pebble.
package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"BlockProver/internal/proof"
)

const (
	// defaultSyncInterval is the default interval between WAL syncs.
	defaultSyncInterval = 100 * time.Millisecond

	// blockKeyLen is the length of a block key: prefix + 8B height.
	blockKeyLen = 2 + 8
)

var (
	// ErrNotFound is returned when a requested block does not exist.
	ErrNotFound = errors.New("block not found")

	// ErrHeightTaken is returned when a different block is already stored at a height.
	ErrHeightTaken = errors.New("height already holds a different block")

	blockPrefix = []byte("b:")
	latestKey   = []byte("m:latest")
)

// Option configures a Store.
type Option func(*Store)

// WithSyncInterval sets the interval between background WAL syncs.
func WithSyncInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.syncInterval = d
		}
	}
}

// Store keeps block proofs by height and tracks the latest one.
// Writes are non-blocking (NoSync) and a background goroutine
// periodically syncs the WAL to disk.
type Store struct {
	db           *pebble.DB    // db is the underlying Pebble database
	syncInterval time.Duration // syncInterval is the WAL sync period
	stopSync     chan struct{} // stopSync signals the sync goroutine to stop
	wg           sync.WaitGroup

	mu sync.Mutex // mu serializes PutBlock so latest stays consistent
}

// Open opens or creates a store at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{
		Cache:                       pebble.NewCache(16 << 20), // 16 MB cache
		MemTableSize:                8 << 20,                   // 8 MB memtable
		MemTableStopWritesThreshold: 2,
	})
	if err != nil {
		return nil, fmt.Errorf("open block store %s:\n%w", path, err)
	}

	s := &Store{
		db:           db,
		syncInterval: defaultSyncInterval,
		stopSync:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.startSyncLoop()

	return s, nil
}

// PutBlock stores b and advances the latest pointer when b is the highest block.
// Storing the same block twice is a no-op; a different block at a stored
// height is rejected with ErrHeightTaken.
func (s *Store) PutBlock(b *proof.BlockProof) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := blockKey(b.Height)
	data := proof.EncodeBlock(b)

	existing, err := s.get(key)
	if err != nil {
		return err
	}

	if existing != nil {
		if bytes.Equal(existing, data) {
			return nil
		}

		return fmt.Errorf("block %d: %w", b.Height, ErrHeightTaken)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(key, data, nil); err != nil {
		return err
	}

	latest, ok, err := s.latestHeight()
	if err != nil {
		return err
	}

	if !ok || b.Height > latest {
		if err := batch.Set(latestKey, encodeHeight(b.Height), nil); err != nil {
			return err
		}
	}

	if err := batch.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("commit block %d:\n%w", b.Height, err)
	}

	return nil
}

// Block returns the block at height.
func (s *Store) Block(height uint64) (*proof.BlockProof, error) {
	data, err := s.get(blockKey(height))
	if err != nil {
		return nil, err
	}

	if data == nil {
		return nil, fmt.Errorf("block %d: %w", height, ErrNotFound)
	}

	return proof.DecodeBlock(data)
}

// Latest returns the highest stored block.
func (s *Store) Latest() (*proof.BlockProof, error) {
	height, ok, err := s.latestHeight()
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrNotFound
	}

	return s.Block(height)
}

// Blocks calls fn for every stored block in height order.
// If fn returns an error, iteration stops and the error is returned.
func (s *Store) Blocks(fn func(*proof.BlockProof) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: blockPrefix,
		UpperBound: prefixUpperBound(blockPrefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		b, err := proof.DecodeBlock(value)
		if err != nil {
			return fmt.Errorf("decode block at key %x:\n%w", iter.Key(), err)
		}

		if err := fn(b); err != nil {
			return err
		}
	}

	return iter.Error()
}

// Count returns the number of stored blocks.
func (s *Store) Count() (int, error) {
	n := 0

	err := s.Blocks(func(*proof.BlockProof) error {
		n++
		return nil
	})

	return n, err
}

// Close stops the sync goroutine and closes the database.
// It performs a final sync before closing.
func (s *Store) Close() error {
	close(s.stopSync)
	s.wg.Wait()

	if err := s.sync(); err != nil {
		return err
	}

	return s.db.Close()
}

// get returns a copy of the value at key, or nil if absent.
func (s *Store) get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// value is invalid after closer.Close()
	return append([]byte(nil), value...), nil
}

// latestHeight returns the height stored under latestKey.
func (s *Store) latestHeight() (uint64, bool, error) {
	data, err := s.get(latestKey)
	if err != nil || data == nil {
		return 0, false, err
	}

	if len(data) != 8 {
		return 0, false, fmt.Errorf("corrupt latest pointer of %d bytes", len(data))
	}

	return binary.BigEndian.Uint64(data), true, nil
}

// startSyncLoop starts the background goroutine that periodically syncs the WAL.
func (s *Store) startSyncLoop() {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.syncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = s.sync()
			case <-s.stopSync:
				return
			}
		}
	}()
}

// sync forces a WAL sync to disk.
func (s *Store) sync() error {
	return s.db.LogData(nil, pebble.Sync)
}

// blockKey returns "b:" followed by the big-endian height, so keys sort by height.
func blockKey(height uint64) []byte {
	key := make([]byte, 0, blockKeyLen)
	key = append(key, blockPrefix...)

	return binary.BigEndian.AppendUint64(key, height)
}

// encodeHeight returns the big-endian height.
func encodeHeight(height uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, height)
}

// prefixUpperBound computes the exclusive upper bound for a prefix scan.
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper
		}
	}

	return nil
}
