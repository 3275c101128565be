package poll

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/zkpoll/log"
	"github.com/vocdoni/zkpoll/types"
)

// Notifier receives the notifications emitted by the manager after a state
// change commits. Implementations must not block: notifications are emitted
// synchronously from inside the serialized operation.
type Notifier interface {
	Notify(event any)
}

// PollCreated is emitted after a poll is created.
type PollCreated struct {
	PollID  uint32         `json:"pollId"`
	Creator common.Address `json:"creator"`
	Title   string         `json:"title"`
}

// VoteCast is emitted after a vote is accepted and committed.
type VoteCast struct {
	PollID     uint32         `json:"pollId"`
	Nullifier  types.HexBytes `json:"nullifier"`
	VoteOption uint32         `json:"voteOption"`
}

// PollEnded is emitted after a poll is explicitly ended by its creator.
type PollEnded struct {
	PollID     uint32 `json:"pollId"`
	TotalVotes uint32 `json:"totalVotes"`
}

// VerificationKeyUpdated is emitted after the verification key changes.
type VerificationKeyUpdated struct {
	UpdatedBy common.Address `json:"updatedBy"`
}

// logNotifier is the default Notifier: it writes every event to the log.
type logNotifier struct{}

func (logNotifier) Notify(event any) {
	switch e := event.(type) {
	case PollCreated:
		log.Infow("poll created", "pollId", e.PollID, "creator", e.Creator.Hex(), "title", e.Title)
	case VoteCast:
		log.Infow("vote cast", "pollId", e.PollID, "nullifier", e.Nullifier.String(), "option", e.VoteOption)
	case PollEnded:
		log.Infow("poll ended", "pollId", e.PollID, "totalVotes", e.TotalVotes)
	case VerificationKeyUpdated:
		log.Infow("verification key updated", "updatedBy", e.UpdatedBy.Hex())
	default:
		log.Debugw("unknown poll event", "event", event)
	}
}
