package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/vocdoni/zkpoll/db"
	"github.com/vocdoni/zkpoll/db/prefixeddb"
	"github.com/vocdoni/zkpoll/types"
)

// Poll retrieves a poll record. Returns ErrNotFound if the poll does not
// exist. The returned poll is a copy: callers may mutate it freely before
// persisting it back.
func (s *Storage) Poll(pollID uint32) (*types.Poll, error) {
	if poll, ok := s.pollCache.Get(pollID); ok {
		return clonePoll(poll), nil
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	poll := &types.Poll{}
	if err := s.getArtifact(pollPrefix, pollKey(pollID), poll); err != nil {
		return nil, err
	}
	s.pollCache.Add(pollID, poll)
	return clonePoll(poll), nil
}

// clonePoll returns a copy of p. The option labels and the merkle root are
// shared: both are immutable after creation.
func clonePoll(p *types.Poll) *types.Poll {
	cp := *p
	return &cp
}

// NextPollID returns the id the next created poll will be assigned. The
// counter starts at 1 for an empty database.
func (s *Storage) NextPollID() (uint32, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.nextPollID()
}

func (s *Storage) nextPollID() (uint32, error) {
	data, err := prefixeddb.NewPrefixedReader(s.db, pollCounterPrefix).Get(pollCounterKey)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 1, nil
		}
		return 0, err
	}
	if len(data) != 4 {
		return 0, fmt.Errorf("malformed poll counter value (%d bytes)", len(data))
	}
	return binary.BigEndian.Uint32(data), nil
}

// CommitNewPoll stores a new poll record and advances the id counter to
// nextID, atomically. The poll id must match the current counter value; the
// caller (the lifecycle manager) owns id assignment and overflow checking.
func (s *Storage) CommitNewPoll(poll *types.Poll, nextID uint32) error {
	if poll == nil {
		return fmt.Errorf("nil poll")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wTx := s.db.WriteTx()
	defer wTx.Discard()

	if err := setArtifact(wTx, pollPrefix, pollKey(poll.ID), poll); err != nil {
		return err
	}
	counter := binary.BigEndian.AppendUint32(nil, nextID)
	if err := prefixeddb.NewPrefixedWriteTx(wTx, pollCounterPrefix).Set(pollCounterKey, counter); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	s.pollCache.Add(poll.ID, clonePoll(poll))
	return nil
}

// SetPoll overwrites an existing poll record. Used by EndPoll to persist the
// deactivated poll.
func (s *Storage) SetPoll(poll *types.Poll) error {
	if poll == nil {
		return fmt.Errorf("nil poll")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := setArtifact(wTx, pollPrefix, pollKey(poll.ID), poll); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	s.pollCache.Add(poll.ID, clonePoll(poll))
	return nil
}

// ListPolls returns the ids of all stored polls, in ascending order.
func (s *Storage) ListPolls() ([]uint32, error) {
	var ids []uint32
	err := prefixeddb.NewPrefixedReader(s.db, pollPrefix).Iterate(nil, func(k, _ []byte) bool {
		if len(k) == 4 {
			ids = append(ids, binary.BigEndian.Uint32(k))
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
