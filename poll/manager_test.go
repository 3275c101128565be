package poll

import (
	"math"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zkpoll/db"
	"github.com/vocdoni/zkpoll/db/inmemory"
	"github.com/vocdoni/zkpoll/internal/testutil"
	"github.com/vocdoni/zkpoll/storage"
	"github.com/vocdoni/zkpoll/types"
	"github.com/vocdoni/zkpoll/voteverifier"
	"github.com/vocdoni/zkpoll/web3"
)

type testEnv struct {
	manager *Manager
	stg     *storage.Storage
	heights *web3.SimulatedHeight
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	kv, err := inmemory.New(db.Options{})
	qt.Assert(t, err, qt.IsNil)
	t.Cleanup(func() { _ = kv.Close() })

	stg := storage.New(kv)
	heights := web3.NewSimulatedHeight(0)
	verifier := voteverifier.New(voteverifier.StructuralChecker{})
	manager, err := NewWithVerificationKey(stg, verifier, heights, []byte("test-vk"))
	qt.Assert(t, err, qt.IsNil)
	return &testEnv{manager: manager, stg: stg, heights: heights}
}

func (e *testEnv) createPoll(t *testing.T, options []string, duration uint64) uint32 {
	t.Helper()
	pollID, err := e.manager.CreatePoll(testutil.Address(1), "test poll", "",
		options, testutil.Root(1), duration)
	qt.Assert(t, err, qt.IsNil)
	return pollID
}

func (e *testEnv) vote(t *testing.T, pollID uint32, nullifier types.HexBytes, option uint32) error {
	t.Helper()
	p, err := e.manager.Poll(pollID)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, p, qt.IsNotNil)
	return e.manager.Vote(pollID, &types.ProofData{
		Proof:      testutil.ProofFor(p, nullifier, option),
		Nullifier:  nullifier,
		VoteOption: option,
	})
}

func TestCreatePoll(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)

	// Ids are assigned monotonically starting at 1.
	c.Assert(env.createPoll(t, []string{"a", "b"}, 100), qt.Equals, uint32(1))
	c.Assert(env.createPoll(t, []string{"a", "b"}, 100), qt.Equals, uint32(2))

	env.heights.Advance(10)
	pollID := env.createPoll(t, []string{"a", "b", "c"}, 50)
	p, err := env.manager.Poll(pollID)
	c.Assert(err, qt.IsNil)
	c.Assert(p.EndBlock, qt.Equals, uint64(60))
	c.Assert(p.IsActive, qt.IsTrue)
	c.Assert(p.TotalVotes, qt.Equals, uint32(0))
	c.Assert(p.OptionCount(), qt.Equals, uint32(3))

	ids, err := env.manager.ListPolls()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.DeepEquals, []uint32{1, 2, 3})
}

func TestCreatePollDurationOverflow(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	env.heights.Advance(10)

	_, err := env.manager.CreatePoll(testutil.Address(1), "overflow", "",
		[]string{"a"}, testutil.Root(1), math.MaxUint64)
	c.Assert(err, qt.Equals, ErrArithmeticOverflow)
}

func TestCreatePollIDOverflow(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)

	// Drive the id counter to its maximum, so the next assignment would wrap.
	p := &types.Poll{ID: math.MaxUint32, Options: []string{"a"}, IsActive: true}
	c.Assert(env.stg.CommitNewPoll(p, math.MaxUint32), qt.IsNil)

	_, err := env.manager.CreatePoll(testutil.Address(1), "overflow", "",
		[]string{"a"}, testutil.Root(1), 10)
	c.Assert(err, qt.Equals, ErrArithmeticOverflow)
}

func TestVote(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	pollID := env.createPoll(t, []string{"yes", "no"}, 100)

	c.Assert(env.vote(t, pollID, testutil.Nullifier(1), 0), qt.IsNil)
	c.Assert(env.vote(t, pollID, testutil.Nullifier(2), 1), qt.IsNil)
	c.Assert(env.vote(t, pollID, testutil.Nullifier(3), 0), qt.IsNil)

	p, err := env.manager.Poll(pollID)
	c.Assert(err, qt.IsNil)
	c.Assert(p.TotalVotes, qt.Equals, uint32(3))

	results, err := env.manager.Results(pollID)
	c.Assert(err, qt.IsNil)
	c.Assert(results, qt.DeepEquals, []uint32{2, 1})

	// The tally always sums to the vote total.
	var sum uint32
	for _, count := range results {
		sum += count
	}
	c.Assert(sum, qt.Equals, p.TotalVotes)
}

func TestVoteUnknownPoll(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)

	err := env.manager.Vote(99, &types.ProofData{
		Proof:     testutil.ProofFor(&types.Poll{ID: 99, Options: []string{"a"}}, testutil.Nullifier(1), 0),
		Nullifier: testutil.Nullifier(1),
	})
	c.Assert(err, qt.Equals, ErrPollNotFound)
}

func TestVoteNilProofData(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	pollID := env.createPoll(t, []string{"a"}, 100)

	c.Assert(env.manager.Vote(pollID, nil), qt.Equals, ErrInvalidProof)
}

func TestDoubleVote(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	pollID := env.createPoll(t, []string{"yes", "no"}, 100)

	nullifier := testutil.Nullifier(1)
	c.Assert(env.vote(t, pollID, nullifier, 0), qt.IsNil)

	// The same nullifier is refused even with a different option.
	c.Assert(env.vote(t, pollID, nullifier, 1), qt.Equals, ErrNullifierAlreadyUsed)

	// And the failed attempt left no trace in the tally.
	results, err := env.manager.Results(pollID)
	c.Assert(err, qt.IsNil)
	c.Assert(results, qt.DeepEquals, []uint32{1, 0})
}

func TestVoteInvalidChoice(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	pollID := env.createPoll(t, []string{"yes", "no"}, 100)

	c.Assert(env.vote(t, pollID, testutil.Nullifier(1), 2), qt.Equals, ErrInvalidVoteChoice)
	c.Assert(env.vote(t, pollID, testutil.Nullifier(1), math.MaxUint32), qt.Equals, ErrInvalidVoteChoice)
}

func TestVoteNullifierFormat(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	pollID := env.createPoll(t, []string{"yes", "no"}, 100)

	// All-zero nullifier.
	zero := make(types.HexBytes, types.NullifierLength)
	c.Assert(env.vote(t, pollID, zero, 0), qt.Equals, ErrInvalidNullifierFormat)

	// Wrong lengths.
	c.Assert(env.vote(t, pollID, types.HexBytes{0x01}, 0), qt.Equals, ErrInvalidNullifierFormat)
	long := make(types.HexBytes, types.NullifierLength+1)
	long[0] = 0x01
	c.Assert(env.vote(t, pollID, long, 0), qt.Equals, ErrInvalidNullifierFormat)
}

func TestVoteMalformedProof(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	pollID := env.createPoll(t, []string{"yes", "no"}, 100)

	err := env.manager.Vote(pollID, &types.ProofData{
		Proof:     types.HexBytes{0x01, 0x02, 0x03},
		Nullifier: testutil.Nullifier(1),
	})
	c.Assert(err, qt.ErrorIs, ErrProofDeserialization)
}

func TestVoteInputMismatch(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	pollID := env.createPoll(t, []string{"yes", "no"}, 100)

	p, err := env.manager.Poll(pollID)
	c.Assert(err, qt.IsNil)

	// Proof committed to a different nullifier than the one submitted.
	err = env.manager.Vote(pollID, &types.ProofData{
		Proof:     testutil.ProofFor(p, testutil.Nullifier(2), 0),
		Nullifier: testutil.Nullifier(1),
	})
	c.Assert(err, qt.Equals, ErrInvalidProof)
}

func TestVoteWithoutVerificationKey(t *testing.T) {
	c := qt.New(t)
	kv, err := inmemory.New(db.Options{})
	c.Assert(err, qt.IsNil)
	defer func() { _ = kv.Close() }()

	stg := storage.New(kv)
	manager := New(stg, voteverifier.New(voteverifier.StructuralChecker{}), web3.NewSimulatedHeight(0))
	pollID, err := manager.CreatePoll(testutil.Address(1), "no key", "",
		[]string{"a"}, testutil.Root(1), 100)
	c.Assert(err, qt.IsNil)

	p, err := manager.Poll(pollID)
	c.Assert(err, qt.IsNil)
	err = manager.Vote(pollID, &types.ProofData{
		Proof:     testutil.ProofFor(p, testutil.Nullifier(1), 0),
		Nullifier: testutil.Nullifier(1),
	})
	c.Assert(err, qt.Equals, ErrInvalidProof)
}

func TestVoteAfterExpiry(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	pollID := env.createPoll(t, []string{"yes", "no"}, 10)

	env.heights.Advance(11)
	c.Assert(env.vote(t, pollID, testutil.Nullifier(1), 0), qt.Equals, ErrPollEnded)

	// Height expiry does not rewrite the record: the active flag stays set.
	p, err := env.manager.Poll(pollID)
	c.Assert(err, qt.IsNil)
	c.Assert(p.IsActive, qt.IsTrue)
}

func TestVoteAtEndBlock(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	pollID := env.createPoll(t, []string{"yes", "no"}, 10)

	// The end block itself is still inside the voting window.
	env.heights.Advance(10)
	c.Assert(env.vote(t, pollID, testutil.Nullifier(1), 0), qt.IsNil)
}

func TestEndPoll(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	pollID := env.createPoll(t, []string{"yes", "no"}, 100)

	// Only the creator may end the poll.
	c.Assert(env.manager.EndPoll(testutil.Address(9), pollID), qt.Equals, ErrNotPollCreator)
	c.Assert(env.manager.EndPoll(testutil.Address(1), 99), qt.Equals, ErrPollNotFound)

	c.Assert(env.manager.EndPoll(testutil.Address(1), pollID), qt.IsNil)
	p, err := env.manager.Poll(pollID)
	c.Assert(err, qt.IsNil)
	c.Assert(p.IsActive, qt.IsFalse)

	// Votes are refused after the explicit end, well before the end block.
	c.Assert(env.vote(t, pollID, testutil.Nullifier(1), 0), qt.Equals, ErrPollEnded)

	// Ending again is idempotent.
	c.Assert(env.manager.EndPoll(testutil.Address(1), pollID), qt.IsNil)
}

func TestVoteTotalOverflow(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	pollID := env.createPoll(t, []string{"yes", "no"}, 100)

	// Saturate the vote total directly in storage.
	p, err := env.manager.Poll(pollID)
	c.Assert(err, qt.IsNil)
	p.TotalVotes = math.MaxUint32
	c.Assert(env.stg.SetPoll(p), qt.IsNil)

	err = env.vote(t, pollID, testutil.Nullifier(1), 0)
	c.Assert(err, qt.Equals, ErrArithmeticOverflow)

	// The aborted vote left no partial state.
	used, err := env.manager.IsNullifierUsed(pollID, testutil.Nullifier(1))
	c.Assert(err, qt.IsNil)
	c.Assert(used, qt.IsFalse)
	results, err := env.manager.Results(pollID)
	c.Assert(err, qt.IsNil)
	c.Assert(results, qt.DeepEquals, []uint32{0, 0})
}

func TestResultCounterOverflow(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	pollID := env.createPoll(t, []string{"yes", "no"}, 100)

	// Saturate the option 0 counter directly in storage, keeping the vote
	// total low so only the counter increment can overflow.
	p, err := env.manager.Poll(pollID)
	c.Assert(err, qt.IsNil)
	p.TotalVotes = 1
	c.Assert(env.stg.CommitVote(p, testutil.Nullifier(9), 0, math.MaxUint32), qt.IsNil)

	err = env.vote(t, pollID, testutil.Nullifier(1), 0)
	c.Assert(err, qt.Equals, ErrArithmeticOverflow)

	// The counter is unchanged and the rejected nullifier stays unconsumed.
	count, err := env.stg.ResultCount(pollID, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint32(math.MaxUint32))
	used, err := env.manager.IsNullifierUsed(pollID, testutil.Nullifier(1))
	c.Assert(err, qt.IsNil)
	c.Assert(used, qt.IsFalse)
	p, err = env.manager.Poll(pollID)
	c.Assert(err, qt.IsNil)
	c.Assert(p.TotalVotes, qt.Equals, uint32(1))

	// The other option is still votable.
	c.Assert(env.vote(t, pollID, testutil.Nullifier(1), 1), qt.IsNil)
}

func TestReadMissingPoll(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)

	p, err := env.manager.Poll(42)
	c.Assert(err, qt.IsNil)
	c.Assert(p, qt.IsNil)

	results, err := env.manager.Results(42)
	c.Assert(err, qt.IsNil)
	c.Assert(results, qt.IsNil)
}

func TestVerificationKeyManagement(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)

	c.Assert(env.manager.HasVerificationKey(), qt.IsTrue)
	key, err := env.manager.VerificationKey()
	c.Assert(err, qt.IsNil)
	c.Assert(key, qt.DeepEquals, []byte("test-vk"))

	c.Assert(env.manager.SetVerificationKey(testutil.Address(1), []byte("new-vk")), qt.IsNil)
	key, err = env.manager.VerificationKey()
	c.Assert(err, qt.IsNil)
	c.Assert(key, qt.DeepEquals, []byte("new-vk"))
}

type recordingNotifier struct {
	events []any
}

func (n *recordingNotifier) Notify(event any) {
	n.events = append(n.events, event)
}

func TestNotifications(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t)
	notifier := &recordingNotifier{}
	env.manager.SetNotifier(notifier)

	pollID := env.createPoll(t, []string{"yes", "no"}, 100)
	c.Assert(env.vote(t, pollID, testutil.Nullifier(1), 1), qt.IsNil)
	c.Assert(env.manager.EndPoll(testutil.Address(1), pollID), qt.IsNil)

	c.Assert(notifier.events, qt.HasLen, 3)

	created, ok := notifier.events[0].(PollCreated)
	c.Assert(ok, qt.IsTrue)
	c.Assert(created.PollID, qt.Equals, pollID)

	cast, ok := notifier.events[1].(VoteCast)
	c.Assert(ok, qt.IsTrue)
	c.Assert(cast.VoteOption, qt.Equals, uint32(1))

	ended, ok := notifier.events[2].(PollEnded)
	c.Assert(ok, qt.IsTrue)
	c.Assert(ended.TotalVotes, qt.Equals, uint32(1))
}
