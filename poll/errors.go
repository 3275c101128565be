package poll

import (
	"fmt"

	"github.com/vocdoni/zkpoll/voteverifier"
)

// The error kinds surfaced by poll operations. Every failure of a manager
// operation is one of these; malformed input never causes a panic, only a
// typed error.
var (
	// ErrPollNotFound is returned when the referenced poll does not exist.
	ErrPollNotFound = fmt.Errorf("poll not found")
	// ErrPollAlreadyExists is reserved: poll ids are manager-assigned, so
	// it is never produced.
	ErrPollAlreadyExists = fmt.Errorf("poll already exists")
	// ErrPollEnded is returned when voting on a poll that was explicitly
	// ended or whose end block has passed.
	ErrPollEnded = fmt.Errorf("poll has ended")
	// ErrInvalidProof is returned when the proof envelope decodes but
	// fails the public input, structural or cryptographic checks.
	ErrInvalidProof = fmt.Errorf("invalid proof")
	// ErrNullifierAlreadyUsed is returned on a double-vote attempt.
	ErrNullifierAlreadyUsed = fmt.Errorf("nullifier already used")
	// ErrNotPollCreator is returned when someone other than the creator
	// tries to end a poll.
	ErrNotPollCreator = fmt.Errorf("caller is not the poll creator")
	// ErrInvalidVoteChoice is returned when the vote option index is out
	// of range for the poll.
	ErrInvalidVoteChoice = fmt.Errorf("invalid vote choice")
	// ErrArithmeticOverflow is returned when a counter or height
	// computation would wrap.
	ErrArithmeticOverflow = fmt.Errorf("arithmetic overflow")
	// ErrProofDeserialization is returned when the proof envelope bytes
	// are malformed. It is the same error kind the verifier reports, so
	// errors.Is works across both packages.
	ErrProofDeserialization = voteverifier.ErrProofDeserialization
	// ErrInvalidPublicInputs is reserved for surfacing builder/verifier
	// input mismatches distinctly; the verifier currently reports them as
	// a failed verification instead.
	ErrInvalidPublicInputs = fmt.Errorf("invalid public inputs")
	// ErrInvalidNullifierFormat is returned for degenerate nullifiers:
	// wrong length or the all-zero placeholder value.
	ErrInvalidNullifierFormat = fmt.Errorf("invalid nullifier format")
)
