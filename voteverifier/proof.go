// Package voteverifier implements the vote proof pipeline: decoding the
// serialized proof envelope submitted with a vote, reconstructing the public
// inputs the proving circuit committed to, and checking the proof against the
// stored verification key through a pluggable cryptographic backend.
package voteverifier

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// ErrProofDeserialization is returned when the proof envelope bytes cannot be
// decoded: truncated buffer, declared lengths past the end of the buffer, or
// public inputs that are not valid UTF-8.
var ErrProofDeserialization = fmt.Errorf("proof deserialization failed")

// DecodedProof is the structured form of a proof envelope. Its lifetime is a
// single verification call.
type DecodedProof struct {
	// ProofBytes is the raw serialized proof, as produced by the external
	// prover.
	ProofBytes []byte
	// PublicInputs are the circuit public inputs claimed by the prover, as
	// decimal field-element strings, in circuit order.
	PublicInputs []string
}

// The proof envelope wire layout is little-endian and length-prefixed:
//
//	[u32 proof_len][proof_len bytes]
//	[u32 input_count]
//	for each input: [u32 input_len][input_len UTF-8 bytes]
//
// The decoder performs structural and bounds validation only; it never
// interprets the proof bytes or the input strings.

// DecodeProof decodes a proof envelope. It fails with an error wrapping
// ErrProofDeserialization on any malformed input and never reads out of
// bounds, whatever the buffer contents.
func DecodeProof(data []byte) (*DecodedProof, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: buffer too short (%d bytes)", ErrProofDeserialization, len(data))
	}

	offset := 0
	proofLen := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4

	if proofLen > len(data)-offset-4 {
		return nil, fmt.Errorf("%w: declared proof length %d exceeds buffer", ErrProofDeserialization, proofLen)
	}
	proofBytes := make([]byte, proofLen)
	copy(proofBytes, data[offset:offset+proofLen])
	offset += proofLen

	inputCount := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4

	// The slice is grown per input rather than preallocated, so a bogus
	// huge input count fails on bounds instead of allocating.
	var publicInputs []string
	for i := 0; i < inputCount; i++ {
		if len(data)-offset < 4 {
			return nil, fmt.Errorf("%w: truncated length prefix for input %d", ErrProofDeserialization, i)
		}
		inputLen := int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4

		if inputLen > len(data)-offset {
			return nil, fmt.Errorf("%w: declared length %d for input %d exceeds buffer", ErrProofDeserialization, inputLen, i)
		}
		inputBytes := data[offset : offset+inputLen]
		if !utf8.Valid(inputBytes) {
			return nil, fmt.Errorf("%w: input %d is not valid UTF-8", ErrProofDeserialization, i)
		}
		publicInputs = append(publicInputs, string(inputBytes))
		offset += inputLen
	}

	return &DecodedProof{
		ProofBytes:   proofBytes,
		PublicInputs: publicInputs,
	}, nil
}

// EncodeProof is the inverse of DecodeProof. It is used by provers and test
// fixtures to build a proof envelope from its parts.
func EncodeProof(proofBytes []byte, publicInputs []string) []byte {
	size := 8 + len(proofBytes)
	for _, input := range publicInputs {
		size += 4 + len(input)
	}
	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(proofBytes)))
	out = append(out, proofBytes...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(publicInputs)))
	for _, input := range publicInputs {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(input)))
		out = append(out, input...)
	}
	return out
}
