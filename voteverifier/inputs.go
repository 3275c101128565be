package voteverifier

import (
	"strconv"

	"github.com/holiman/uint256"
	"github.com/vocdoni/zkpoll/types"
)

// fieldWindow is the number of bytes of a 32-byte value folded into a public
// input field element. Only the first 16 bytes (little-endian) are used: this
// matches the packing of the deployed proving circuit, and widening the
// window would break byte-for-byte agreement with proofs it produces. Roots
// and nullifiers whose high-order 16 bytes are nonzero lose that information
// here.
const fieldWindow = 16

// BuildPublicInputs derives the exact ordered sequence of public inputs a
// valid proof for this poll and vote must carry, as decimal field-element
// strings. The order and encoding are fixed by the proving circuit:
//
//	0: census merkle root (first 16 bytes, little-endian integer)
//	1: vote nullifier (same encoding)
//	2: poll id
//	3: poll option count
func BuildPublicInputs(poll *types.Poll, proofData *types.ProofData) []string {
	return []string{
		fieldString(poll.MerkleRoot),
		fieldString(proofData.Nullifier),
		strconv.FormatUint(uint64(poll.ID), 10),
		strconv.FormatUint(uint64(poll.OptionCount()), 10),
	}
}

// fieldString interprets the first fieldWindow bytes of b as a little-endian
// unsigned integer and renders it in base 10.
func fieldString(b []byte) string {
	n := min(fieldWindow, len(b))
	// uint256 parses big-endian, so reverse the window.
	window := make([]byte, n)
	for i := 0; i < n; i++ {
		window[i] = b[n-1-i]
	}
	return new(uint256.Int).SetBytes(window).Dec()
}
