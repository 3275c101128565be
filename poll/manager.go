// Package poll implements the poll lifecycle: creation, vote acceptance with
// zero-knowledge membership proofs and per-poll nullifiers, explicit and
// height-based ending, and the public read operations. It owns the poll table
// and the next-id counter; the nullifier ledger and the result tally are
// consulted and mutated only from inside Vote.
package poll

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/zkpoll/storage"
	"github.com/vocdoni/zkpoll/types"
	"github.com/vocdoni/zkpoll/voteverifier"
)

// HeightSource provides the current block height. Height provisioning is
// external: the manager never advances time on its own.
type HeightSource interface {
	CurrentHeight() (uint64, error)
}

// Manager owns the poll state and serializes all operations against it. Every
// mutating operation either fully commits or leaves no trace.
type Manager struct {
	lock     sync.Mutex
	stg      *storage.Storage
	verifier *voteverifier.Verifier
	heights  HeightSource
	notifier Notifier
}

// New creates a Manager on the given storage, verifier and height source.
func New(stg *storage.Storage, verifier *voteverifier.Verifier, heights HeightSource) *Manager {
	return &Manager{
		stg:      stg,
		verifier: verifier,
		heights:  heights,
		notifier: logNotifier{},
	}
}

// NewWithVerificationKey creates a Manager and stores the given verification
// key, for deployments that provision the key at startup.
func NewWithVerificationKey(stg *storage.Storage, verifier *voteverifier.Verifier,
	heights HeightSource, verificationKey []byte,
) (*Manager, error) {
	m := New(stg, verifier, heights)
	if err := m.stg.SetVerificationKey(verificationKey); err != nil {
		return nil, fmt.Errorf("cannot store verification key: %w", err)
	}
	return m, nil
}

// SetNotifier replaces the default log-based notifier.
func (m *Manager) SetNotifier(n Notifier) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if n != nil {
		m.notifier = n
	}
}

// CreatePoll creates a new poll owned by creator, active for duration blocks
// from the current height, and returns its assigned id. Ids are assigned
// monotonically starting at 1; both the id counter and the end block height
// are computed with overflow-checked arithmetic.
func (m *Manager) CreatePoll(creator common.Address, title, description string,
	options []string, merkleRoot types.HexBytes, duration uint64,
) (uint32, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	pollID, err := m.stg.NextPollID()
	if err != nil {
		return 0, fmt.Errorf("cannot read poll counter: %w", err)
	}
	nextID, ok := checkedAddU32(pollID, 1)
	if !ok {
		return 0, ErrArithmeticOverflow
	}

	height, err := m.heights.CurrentHeight()
	if err != nil {
		return 0, fmt.Errorf("cannot get current height: %w", err)
	}
	endBlock, ok := checkedAddU64(height, duration)
	if !ok {
		return 0, ErrArithmeticOverflow
	}

	p := &types.Poll{
		ID:          pollID,
		Title:       title,
		Description: description,
		Options:     options,
		MerkleRoot:  merkleRoot,
		Creator:     creator,
		IsActive:    true,
		TotalVotes:  0,
		EndBlock:    endBlock,
	}
	if err := m.stg.CommitNewPoll(p, nextID); err != nil {
		return 0, fmt.Errorf("cannot store poll: %w", err)
	}

	m.notifier.Notify(PollCreated{PollID: pollID, Creator: creator, Title: title})
	return pollID, nil
}

// Vote verifies and accepts one vote for the poll. The checks run in a fixed
// order (poll liveness, nullifier replay, option range, nullifier format,
// proof) and any failure aborts the call with no state change; on success the
// nullifier mark, the option counter and the poll record commit atomically.
func (m *Manager) Vote(pollID uint32, proofData *types.ProofData) error {
	if proofData == nil {
		return ErrInvalidProof
	}
	m.lock.Lock()
	defer m.lock.Unlock()

	p, err := m.stg.Poll(pollID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrPollNotFound
		}
		return fmt.Errorf("cannot load poll: %w", err)
	}

	height, err := m.heights.CurrentHeight()
	if err != nil {
		return fmt.Errorf("cannot get current height: %w", err)
	}
	if !p.IsActive || height > p.EndBlock {
		return ErrPollEnded
	}

	used, err := m.stg.IsNullifierUsed(pollID, proofData.Nullifier)
	if err != nil {
		return fmt.Errorf("cannot check nullifier: %w", err)
	}
	if used {
		return ErrNullifierAlreadyUsed
	}

	if proofData.VoteOption >= p.OptionCount() {
		return ErrInvalidVoteChoice
	}

	if len(proofData.Nullifier) != types.NullifierLength || proofData.Nullifier.IsZero() {
		return ErrInvalidNullifierFormat
	}

	verificationKey, err := m.stg.VerificationKey()
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("cannot load verification key: %w", err)
	}
	valid, err := m.verifier.Verify(p, proofData, verificationKey)
	if err != nil {
		return err
	}
	if !valid {
		return ErrInvalidProof
	}

	count, err := m.stg.ResultCount(pollID, proofData.VoteOption)
	if err != nil {
		return fmt.Errorf("cannot read result counter: %w", err)
	}
	newCount, ok := checkedAddU32(count, 1)
	if !ok {
		return ErrArithmeticOverflow
	}
	newTotal, ok := checkedAddU32(p.TotalVotes, 1)
	if !ok {
		return ErrArithmeticOverflow
	}
	p.TotalVotes = newTotal

	if err := m.stg.CommitVote(p, proofData.Nullifier, proofData.VoteOption, newCount); err != nil {
		return fmt.Errorf("cannot commit vote: %w", err)
	}

	m.notifier.Notify(VoteCast{
		PollID:     pollID,
		Nullifier:  proofData.Nullifier,
		VoteOption: proofData.VoteOption,
	})
	return nil
}

// EndPoll deactivates the poll. Only the poll creator may end it; ending an
// already ended poll is a no-op that still emits the notification, matching
// the idempotent flag write.
func (m *Manager) EndPoll(caller common.Address, pollID uint32) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	p, err := m.stg.Poll(pollID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrPollNotFound
		}
		return fmt.Errorf("cannot load poll: %w", err)
	}
	if p.Creator != caller {
		return ErrNotPollCreator
	}

	p.IsActive = false
	if err := m.stg.SetPoll(p); err != nil {
		return fmt.Errorf("cannot store poll: %w", err)
	}

	m.notifier.Notify(PollEnded{PollID: pollID, TotalVotes: p.TotalVotes})
	return nil
}

// Poll returns the poll record, or nil if it does not exist.
func (m *Manager) Poll(pollID uint32) (*types.Poll, error) {
	p, err := m.stg.Poll(pollID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// ListPolls returns the ids of all existing polls, ascending.
func (m *Manager) ListPolls() ([]uint32, error) {
	return m.stg.ListPolls()
}

// Results returns the per-option vote counts of the poll, aligned with its
// option list, or nil if the poll does not exist.
func (m *Manager) Results(pollID uint32) ([]uint32, error) {
	p, err := m.stg.Poll(pollID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	results := make([]uint32, 0, len(p.Options))
	for i := range p.Options {
		count, err := m.stg.ResultCount(pollID, uint32(i))
		if err != nil {
			return nil, err
		}
		results = append(results, count)
	}
	return results, nil
}

// IsNullifierUsed reports whether the nullifier has been consumed for the
// poll.
func (m *Manager) IsNullifierUsed(pollID uint32, nullifier types.HexBytes) (bool, error) {
	return m.stg.IsNullifierUsed(pollID, nullifier)
}

// SetVerificationKey stores a new proof verification key.
func (m *Manager) SetVerificationKey(caller common.Address, key []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.stg.SetVerificationKey(key); err != nil {
		return fmt.Errorf("cannot store verification key: %w", err)
	}
	m.notifier.Notify(VerificationKeyUpdated{UpdatedBy: caller})
	return nil
}

// VerificationKey returns the stored verification key, or nil if none is set.
func (m *Manager) VerificationKey() ([]byte, error) {
	key, err := m.stg.VerificationKey()
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return key, nil
}

// HasVerificationKey reports whether a verification key is set.
func (m *Manager) HasVerificationKey() bool {
	return m.stg.HasVerificationKey()
}

// checkedAddU32 adds two uint32 values, reporting false on wrap.
func checkedAddU32(a, b uint32) (uint32, bool) {
	if a > math.MaxUint32-b {
		return 0, false
	}
	return a + b, true
}

// checkedAddU64 adds two uint64 values, reporting false on wrap.
func checkedAddU64(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}
