package types

import (
	"github.com/ethereum/go-ethereum/common"
)

const (
	// MerkleRootLength is the size in bytes of a poll eligibility census
	// merkle root.
	MerkleRootLength = 32
	// NullifierLength is the size in bytes of a vote nullifier.
	NullifierLength = 32
)

// Poll is the persisted record of a poll. It is created once by CreatePoll,
// mutated only by vote acceptance (TotalVotes) and EndPoll (IsActive), and
// never deleted.
type Poll struct {
	ID          uint32         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Options     []string       `json:"options"`
	MerkleRoot  HexBytes       `json:"merkleRoot"`
	Creator     common.Address `json:"creator"`
	IsActive    bool           `json:"isActive"`
	TotalVotes  uint32         `json:"totalVotes"`
	EndBlock    uint64         `json:"endBlock"`
}

// OptionCount returns the number of options of the poll.
func (p *Poll) OptionCount() uint32 {
	return uint32(len(p.Options))
}

// ProofData is the payload submitted with a vote. It is transient: consumed
// by one Vote call and never persisted.
type ProofData struct {
	// Proof is the opaque serialized proof envelope, in the length-prefixed
	// wire layout understood by voteverifier.DecodeProof.
	Proof HexBytes `json:"proof"`
	// Nullifier is the 32-byte one-time token bound to the voter's
	// eligibility secret.
	Nullifier HexBytes `json:"nullifier"`
	// VoteOption is the index of the chosen option in Poll.Options.
	VoteOption uint32 `json:"voteOption"`
}
