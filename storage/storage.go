/*
Package storage provides the persistent repositories for the poll node.

# Storage Organization

The storage uses a key-value database with prefixed namespaces to organize
the different tables:

  - p/ : poll id (4 bytes, big-endian) → Poll record (CBOR)
  - c/ : singleton → next poll id counter (4 bytes, big-endian)
  - n/ : poll id + nullifier → 0x01 (consumed; absence means unconsumed)
  - r/ : poll id + option index → vote count (4 bytes, big-endian)
  - k/ : singleton → verification key bytes

Poll records are CBOR-encoded with deterministic options; the fixed-width
tables (counters, nullifier marks) are stored raw. All read-modify-write
sequences hold the global lock, and every multi-table mutation (new poll plus
counter, the whole vote commit) goes through a single WriteTx so it lands
atomically or not at all.
*/
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vocdoni/zkpoll/db"
	"github.com/vocdoni/zkpoll/db/prefixeddb"
	"github.com/vocdoni/zkpoll/log"
	"github.com/vocdoni/zkpoll/types"
)

var (
	// ErrNotFound is returned when the requested artifact does not exist.
	ErrNotFound = errors.New("not found")

	// Prefixes
	pollPrefix            = []byte("p/")
	pollCounterPrefix     = []byte("c/")
	nullifierPrefix       = []byte("n/")
	resultPrefix          = []byte("r/")
	verificationKeyPrefix = []byte("k/")

	// Singleton keys inside their prefix namespaces.
	pollCounterKey     = []byte("next")
	verificationKeyKey = []byte("vk")

	pollCacheSize = 1000
)

// Storage manages the poll, nullifier, result and verification key tables.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
	pollCache  *lru.Cache[uint32, *types.Poll]
}

// New creates a new Storage instance on the given database.
func New(database db.Database) *Storage {
	cache, err := lru.New[uint32, *types.Poll](pollCacheSize)
	if err != nil {
		log.Fatalf("failed to create poll cache: %v", err)
	}
	return &Storage{
		db:        database,
		pollCache: cache,
	}
}

// Close closes the underlying database.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("failed to close storage", "error", err.Error())
	}
}

// pollKey returns the fixed-width key of a poll record.
func pollKey(pollID uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, pollID)
}

// nullifierKey returns the key of a (poll, nullifier) consumption mark.
func nullifierKey(pollID uint32, nullifier types.HexBytes) []byte {
	return append(pollKey(pollID), nullifier...)
}

// resultKey returns the key of a (poll, option) counter.
func resultKey(pollID, option uint32) []byte {
	return binary.BigEndian.AppendUint32(pollKey(pollID), option)
}

// setArtifact stores a CBOR-encoded artifact under prefix/key through the
// given transaction.
func setArtifact(wTx db.WriteTx, prefix, key []byte, artifact any) error {
	data, err := EncodeArtifact(artifact)
	if err != nil {
		return err
	}
	return prefixeddb.NewPrefixedWriteTx(wTx, prefix).Set(key, data)
}

// getArtifact retrieves a CBOR-encoded artifact from prefix/key. Returns
// ErrNotFound if the key does not exist.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := DecodeArtifact(data, out); err != nil {
		return fmt.Errorf("could not decode artifact: %w", err)
	}
	return nil
}
