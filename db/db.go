// Package db abstracts the key-value persistence engine used by the poll
// storage layer. Implementations must provide read access and batched write
// transactions that commit atomically.
package db

import "errors"

var (
	// ErrKeyNotFound is returned by Get when the key does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrConflict is returned by Commit when the transaction read keys that
	// were modified concurrently by another committed transaction.
	ErrConflict = errors.New("txn conflict")
)

// Options defines generic parameters for creating a database.
type Options struct {
	Path string
}

// Reader is the interface for read-only database access.
type Reader interface {
	// Get retrieves the value for the given key. If the key does not
	// exist, returns ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	// Iterate calls callback with all key-value pairs in the database
	// whose key starts with prefix. The iteration stops when the callback
	// returns false. The keys and values passed to the callback must not
	// be modified nor retained after the callback returns.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// Database is the interface for a key-value database with atomic write
// transactions.
type Database interface {
	Reader
	// WriteTx creates a new write transaction.
	WriteTx() WriteTx
	// Close closes the database.
	Close() error
	// Compact triggers a database compaction, if supported by the engine.
	Compact() error
}

// WriteTx is the interface for a write transaction. Writes performed through
// the transaction are not visible to other readers until Commit. A WriteTx
// must be terminated by exactly one call to Commit or Discard; calling
// Discard after Commit is a harmless no-op, which allows the
// `defer tx.Discard()` pattern.
type WriteTx interface {
	Reader
	// Set stores a key-value pair in the transaction.
	Set(key, value []byte) error
	// Delete removes the key from the transaction. Deleting a key that
	// does not exist is not an error.
	Delete(key []byte) error
	// Apply copies all pending writes from the given transaction into
	// this one.
	Apply(WriteTx) error
	// Commit atomically applies all pending writes to the database.
	Commit() error
	// Discard drops all pending writes. It is safe to call after Commit.
	Discard()
}
