// Package pebbledb implements the db.Database interface on top of
// cockroachdb/pebble. This is the production engine used by the poll node.
package pebbledb

import (
	"bytes"
	"errors"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/vocdoni/zkpoll/db"
	"github.com/vocdoni/zkpoll/log"
)

// PebbleDB implements db.Database.
type PebbleDB struct {
	db     *pebble.DB
	closed atomic.Bool
}

// check that PebbleDB implements the db.Database interface
var _ db.Database = (*PebbleDB)(nil)

// New returns a PebbleDB using the given Options.
func New(opts db.Options) (*PebbleDB, error) {
	pdb, err := pebble.Open(opts.Path, &pebble.Options{
		Logger: pebbleLogger{},
	})
	if err != nil {
		return nil, err
	}
	return &PebbleDB{db: pdb}, nil
}

// pebbleLogger redirects pebble's internal logging to our log package.
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...any) {
	log.Debugf("pebble: "+format, args...)
}

func (pebbleLogger) Errorf(format string, args ...any) {
	log.Errorf("pebble: "+format, args...)
}

func (pebbleLogger) Fatalf(format string, args ...any) {
	log.Fatalf("pebble: "+format, args...)
}

// Get implements db.Reader.Get.
func (d *PebbleDB) Get(key []byte) ([]byte, error) {
	value, closer, err := d.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	out := bytes.Clone(value)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

// keyUpperBound returns the smallest key strictly greater than every key with
// the given prefix, or nil if the prefix is all 0xff bytes (no upper bound).
func keyUpperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func prefixIterOptions(prefix []byte) *pebble.IterOptions {
	if len(prefix) == 0 {
		return &pebble.IterOptions{}
	}
	return &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	}
}

// Iterate implements db.Reader.Iterate.
func (d *PebbleDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	iter, err := d.db.NewIter(prefixIterOptions(prefix))
	if err != nil {
		return err
	}
	for iter.First(); iter.Valid(); iter.Next() {
		if !callback(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Close()
}

// WriteTx returns a new write transaction backed by a pebble indexed batch.
// Note that pebble batches do not detect conflicts between concurrent
// transactions; callers must serialize writers externally.
func (d *PebbleDB) WriteTx() db.WriteTx {
	if d.closed.Load() {
		return &WriteTx{db: d}
	}
	return &WriteTx{db: d, batch: d.db.NewIndexedBatch()}
}

// Close closes the database. Any WriteTx created before the close becomes a
// no-op, but does not panic.
func (d *PebbleDB) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.db.Close()
}

// Compact triggers a full-range pebble compaction.
func (d *PebbleDB) Compact() error {
	if d.closed.Load() {
		return nil
	}
	// Compact the entire key space.
	return d.db.Compact(nil, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, true)
}

// WriteTx implements db.WriteTx on a pebble indexed batch.
type WriteTx struct {
	db        *PebbleDB
	batch     *pebble.Batch
	committed bool
}

// check that WriteTx implements the db.WriteTx interface
var _ db.WriteTx = (*WriteTx)(nil)

// unusable reports whether the transaction can no longer touch the batch,
// either because the database was closed underneath it or because it has
// already been committed.
func (tx *WriteTx) unusable() bool {
	return tx.batch == nil || tx.committed || tx.db.closed.Load()
}

// Get implements db.Reader.Get.
func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	if tx.unusable() {
		return nil, nil
	}
	value, closer, err := tx.batch.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	out := bytes.Clone(value)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

// Iterate implements db.Reader.Iterate.
func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	if tx.unusable() {
		return nil
	}
	iter, err := tx.batch.NewIter(prefixIterOptions(prefix))
	if err != nil {
		return err
	}
	for iter.First(); iter.Valid(); iter.Next() {
		if !callback(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Close()
}

// Set implements db.WriteTx.Set.
func (tx *WriteTx) Set(key, value []byte) error {
	if tx.unusable() {
		return nil
	}
	return tx.batch.Set(key, value, nil)
}

// Delete implements db.WriteTx.Delete.
func (tx *WriteTx) Delete(key []byte) error {
	if tx.unusable() {
		return nil
	}
	return tx.batch.Delete(key, nil)
}

// Apply implements db.WriteTx.Apply.
func (tx *WriteTx) Apply(other db.WriteTx) error {
	if tx.unusable() {
		return nil
	}
	return other.Iterate(nil, func(k, v []byte) bool {
		if err := tx.Set(k, v); err != nil {
			return false
		}
		return true
	})
}

// Commit implements db.WriteTx.Commit.
func (tx *WriteTx) Commit() error {
	if tx.unusable() {
		return nil
	}
	tx.committed = true
	return tx.batch.Commit(pebble.Sync)
}

// Discard implements db.WriteTx.Discard. It is safe to call after Commit.
func (tx *WriteTx) Discard() {
	if tx.batch == nil || tx.db.closed.Load() {
		return
	}
	if err := tx.batch.Close(); err != nil && !tx.committed {
		log.Warnw("error closing pebble batch", "error", err.Error())
	}
	tx.batch = nil
}
