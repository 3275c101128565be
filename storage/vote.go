package storage

import (
	"fmt"

	"github.com/vocdoni/zkpoll/types"
)

// CommitVote applies all state changes of one accepted vote atomically: the
// nullifier consumption mark, the updated option counter and the updated poll
// record land in a single transaction, or none of them do. The caller has
// already performed every check and every overflow-checked increment; this
// method only persists the outcome.
func (s *Storage) CommitVote(poll *types.Poll, nullifier types.HexBytes, option, newCount uint32) error {
	if poll == nil {
		return fmt.Errorf("nil poll")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wTx := s.db.WriteTx()
	defer wTx.Discard()

	if err := markNullifierUsed(wTx, poll.ID, nullifier); err != nil {
		return err
	}
	if err := setResultCount(wTx, poll.ID, option, newCount); err != nil {
		return err
	}
	if err := setArtifact(wTx, pollPrefix, pollKey(poll.ID), poll); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	s.pollCache.Add(poll.ID, clonePoll(poll))
	return nil
}
