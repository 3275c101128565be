// Package testutil provides deterministic fixtures for poll and vote tests:
// nullifiers, census roots and proof envelopes that pass the structural
// checks of the vote verifier.
package testutil

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/zkpoll/types"
	"github.com/vocdoni/zkpoll/voteverifier"
)

// Nullifier returns a deterministic 32-byte nullifier derived from seed. Seed
// zero still yields a nonzero nullifier.
func Nullifier(seed byte) types.HexBytes {
	n := make(types.HexBytes, types.NullifierLength)
	for i := range n {
		n[i] = seed ^ byte(i+1)
	}
	return n
}

// Root returns a deterministic 32-byte census root derived from seed.
func Root(seed byte) types.HexBytes {
	r := make(types.HexBytes, types.MerkleRootLength)
	for i := range r {
		r[i] = seed + byte(i)
	}
	return r
}

// Address returns a deterministic creator address derived from seed.
func Address(seed byte) common.Address {
	var a common.Address
	for i := range a {
		a[i] = seed + byte(i)
	}
	return a
}

// ProofFor builds a proof envelope whose public inputs match exactly what the
// verifier derives for the given poll and vote, so it passes the input
// comparison and structural checks. The proof bytes themselves are opaque
// filler accepted by the structural backend.
func ProofFor(poll *types.Poll, nullifier types.HexBytes, voteOption uint32) types.HexBytes {
	inputs := voteverifier.BuildPublicInputs(poll, &types.ProofData{
		Nullifier:  nullifier,
		VoteOption: voteOption,
	})
	return voteverifier.EncodeProof([]byte("test-proof-bytes"), inputs)
}
