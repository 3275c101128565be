package storage

import (
	"errors"

	"github.com/vocdoni/zkpoll/db"
	"github.com/vocdoni/zkpoll/db/prefixeddb"
	"github.com/vocdoni/zkpoll/types"
)

// nullifierUsedValue marks a consumed (poll, nullifier) pair. There is no
// unmark operation: once written, the mark is permanent.
var nullifierUsedValue = []byte{0x01}

// IsNullifierUsed reports whether the nullifier has already been consumed for
// the given poll. Absence means unconsumed. Nullifier scope is per poll: the
// same value may be used once in each poll.
func (s *Storage) IsNullifierUsed(pollID uint32, nullifier types.HexBytes) (bool, error) {
	_, err := prefixeddb.NewPrefixedReader(s.db, nullifierPrefix).Get(nullifierKey(pollID, nullifier))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// markNullifierUsed writes the consumption mark through the given
// transaction. Idempotent.
func markNullifierUsed(wTx db.WriteTx, pollID uint32, nullifier types.HexBytes) error {
	return prefixeddb.NewPrefixedWriteTx(wTx, nullifierPrefix).
		Set(nullifierKey(pollID, nullifier), nullifierUsedValue)
}
