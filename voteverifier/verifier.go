package voteverifier

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/vocdoni/zkpoll/log"
	"github.com/vocdoni/zkpoll/types"
)

const (
	// maxProofBytes is the maximum accepted size of the raw proof inside
	// an envelope. Anything larger is rejected before reaching the
	// cryptographic backend.
	maxProofBytes = 10000
	// expectedPublicInputs is the number of public inputs committed by the
	// vote circuit (census root, nullifier, poll id, option count).
	expectedPublicInputs = 4
	// maxFieldBits bounds the accepted width of a public input value. The
	// circuit packs values into at most 128 bits.
	maxFieldBits = 128
)

// ProofChecker is the pluggable cryptographic core: it checks the raw proof
// bytes against the verification key, given the already-validated public
// inputs. Implementations must be stateless and safe for concurrent use.
type ProofChecker interface {
	CheckProof(proofBytes, verificationKey []byte, publicInputs []string) (bool, error)
}

// Verifier checks vote proof envelopes against a poll snapshot and a
// verification key. It holds no persistent state: Verify is a pure function
// of its arguments and is safe to call repeatedly or speculatively.
type Verifier struct {
	checker ProofChecker
}

// New returns a Verifier using the given cryptographic backend. A nil checker
// falls back to the structural reference backend.
func New(checker ProofChecker) *Verifier {
	if checker == nil {
		checker = StructuralChecker{}
	}
	return &Verifier{checker: checker}
}

// Verify decodes the proof envelope and checks it against the poll and the
// verification key. A malformed envelope returns an error wrapping
// ErrProofDeserialization; any other rejection (public input mismatch,
// structural violation, missing key, failed cryptographic check) returns
// (false, nil).
func (v *Verifier) Verify(poll *types.Poll, proofData *types.ProofData, verificationKey []byte) (bool, error) {
	decoded, err := DecodeProof(proofData.Proof)
	if err != nil {
		return false, err
	}

	expected := BuildPublicInputs(poll, proofData)
	if !equalInputs(decoded.PublicInputs, expected) {
		log.Debugw("public input mismatch", "pollId", poll.ID,
			"got", fmt.Sprintf("%q", decoded.PublicInputs),
			"want", fmt.Sprintf("%q", expected))
		return false, nil
	}

	if !validProofStructure(decoded) {
		return false, nil
	}

	// No key means no proof can be valid; there is no permissive mode.
	if len(verificationKey) == 0 {
		log.Warnw("rejecting proof, no verification key configured", "pollId", poll.ID)
		return false, nil
	}

	return v.checker.CheckProof(decoded.ProofBytes, verificationKey, decoded.PublicInputs)
}

// equalInputs compares two public input sequences element-wise.
func equalInputs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// validProofStructure performs the structural checks on a decoded proof: the
// raw proof size must be in (0, maxProofBytes], there must be exactly
// expectedPublicInputs inputs, and each input must be a non-empty decimal
// string of at most maxFieldBits bits.
func validProofStructure(proof *DecodedProof) bool {
	if len(proof.ProofBytes) == 0 || len(proof.ProofBytes) > maxProofBytes {
		return false
	}
	if len(proof.PublicInputs) != expectedPublicInputs {
		return false
	}
	for _, input := range proof.PublicInputs {
		if !validFieldString(input) {
			return false
		}
	}
	return true
}

// validFieldString reports whether s is a valid decimal field-element
// encoding: non-empty, base-10 digits only, value below 2^maxFieldBits.
func validFieldString(s string) bool {
	if s == "" {
		return false
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return false
	}
	return v.BitLen() <= maxFieldBits
}

// StructuralChecker is the reference ProofChecker: it performs no
// cryptographic work and accepts any envelope that already passed decoding,
// public input reconstruction and structural validation. It stands in for a
// real proving-scheme backend in development deployments.
type StructuralChecker struct{}

var _ ProofChecker = StructuralChecker{}

// CheckProof implements ProofChecker.
func (StructuralChecker) CheckProof(_, _ []byte, _ []string) (bool, error) {
	return true, nil
}
