package voteverifier

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/vocdoni/zkpoll/log"
)

// Groth16Checker is a ProofChecker backed by gnark's Groth16 verifier. The
// proof bytes and the verification key must use gnark's binary serialization
// for the configured curve, and the public inputs are interpreted as the
// public witness, in order.
type Groth16Checker struct {
	curve ecc.ID
}

var _ ProofChecker = (*Groth16Checker)(nil)

// NewGroth16Checker returns a Groth16 backend on the given curve. The zero
// value of curve selects BN254.
func NewGroth16Checker(curve ecc.ID) *Groth16Checker {
	if curve == ecc.UNKNOWN {
		curve = ecc.BN254
	}
	return &Groth16Checker{curve: curve}
}

// CheckProof implements ProofChecker. Undecodable proof bytes or key material
// are reported as a failed check rather than an error: both come from
// untrusted or operator-provided input, and the caller treats any rejection
// the same way.
func (g *Groth16Checker) CheckProof(proofBytes, verificationKey []byte, publicInputs []string) (bool, error) {
	proof := groth16.NewProof(g.curve)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		log.Debugw("cannot parse groth16 proof", "error", err.Error())
		return false, nil
	}

	vk := groth16.NewVerifyingKey(g.curve)
	if _, err := vk.ReadFrom(bytes.NewReader(verificationKey)); err != nil {
		log.Debugw("cannot parse groth16 verification key", "error", err.Error())
		return false, nil
	}

	publicWitness, err := g.publicWitness(publicInputs)
	if err != nil {
		return false, err
	}

	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		log.Debugw("groth16 verification failed", "error", err.Error())
		return false, nil
	}
	return true, nil
}

// publicWitness builds a gnark public witness from decimal field-element
// strings.
func (g *Groth16Checker) publicWitness(publicInputs []string) (witness.Witness, error) {
	w, err := witness.New(g.curve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("cannot create witness: %w", err)
	}
	values := make(chan any, len(publicInputs))
	for _, input := range publicInputs {
		v, ok := new(big.Int).SetString(input, 10)
		if !ok {
			close(values)
			return nil, fmt.Errorf("public input %q is not a decimal integer", input)
		}
		values <- v
	}
	close(values)
	if err := w.Fill(len(publicInputs), 0, values); err != nil {
		return nil, fmt.Errorf("cannot fill witness: %w", err)
	}
	return w, nil
}
