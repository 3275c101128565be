package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/vocdoni/zkpoll/db"
	"github.com/vocdoni/zkpoll/db/prefixeddb"
)

// ResultCount returns the vote count for one poll option. Absence means 0.
func (s *Storage) ResultCount(pollID, option uint32) (uint32, error) {
	data, err := prefixeddb.NewPrefixedReader(s.db, resultPrefix).Get(resultKey(pollID, option))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(data) != 4 {
		return 0, fmt.Errorf("malformed result counter value (%d bytes)", len(data))
	}
	return binary.BigEndian.Uint32(data), nil
}

// setResultCount writes an option counter through the given transaction.
// Counters only ever grow; the caller performs the overflow-checked
// increment.
func setResultCount(wTx db.WriteTx, pollID, option, count uint32) error {
	value := binary.BigEndian.AppendUint32(nil, count)
	return prefixeddb.NewPrefixedWriteTx(wTx, resultPrefix).Set(resultKey(pollID, option), value)
}
