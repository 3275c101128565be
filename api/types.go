package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/zkpoll/types"
)

// PingResponse is the payload of the health check endpoint.
type PingResponse struct {
	InstanceID string `json:"instanceId"`
	Uptime     string `json:"uptime"`
}

// NewPollRequest is the payload to create a poll.
type NewPollRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Options     []string       `json:"options"`
	MerkleRoot  types.HexBytes `json:"merkleRoot"`
	Duration    uint64         `json:"duration"`
	Creator     common.Address `json:"creator"`
}

// NewPollResponse returns the id assigned to a created poll.
type NewPollResponse struct {
	PollID uint32 `json:"pollId"`
}

// PollListResponse lists the ids of all existing polls.
type PollListResponse struct {
	Polls []uint32 `json:"polls"`
}

// VoteRequest is the payload to cast a vote: the serialized proof envelope,
// the vote nullifier and the chosen option index.
type VoteRequest struct {
	Proof      types.HexBytes `json:"proof"`
	Nullifier  types.HexBytes `json:"nullifier"`
	VoteOption uint32         `json:"voteOption"`
}

// EndPollRequest identifies the caller asking to end a poll.
type EndPollRequest struct {
	Caller common.Address `json:"caller"`
}

// PollResultsResponse carries the tally of a poll, aligned with its options.
type PollResultsResponse struct {
	PollID     uint32   `json:"pollId"`
	Options    []string `json:"options"`
	Results    []uint32 `json:"results"`
	TotalVotes uint32   `json:"totalVotes"`
	IsActive   bool     `json:"isActive"`
}

// NullifierStatusResponse reports whether a nullifier has been consumed.
type NullifierStatusResponse struct {
	Used bool `json:"used"`
}

// VerificationKeyRequest is the payload to set the proof verification key.
type VerificationKeyRequest struct {
	VerificationKey types.HexBytes `json:"verificationKey"`
	Caller          common.Address `json:"caller"`
}

// VerificationKeyResponse carries the stored proof verification key.
type VerificationKeyResponse struct {
	VerificationKey types.HexBytes `json:"verificationKey"`
}
