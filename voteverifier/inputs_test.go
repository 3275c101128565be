package voteverifier

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zkpoll/types"
)

func TestBuildPublicInputs(t *testing.T) {
	c := qt.New(t)

	root := make(types.HexBytes, types.MerkleRootLength)
	root[0] = 0x01
	nullifier := make(types.HexBytes, types.NullifierLength)
	nullifier[15] = 0x01 // highest byte inside the field window

	p := &types.Poll{
		ID:         7,
		Options:    []string{"yes", "no", "abstain"},
		MerkleRoot: root,
	}
	inputs := BuildPublicInputs(p, &types.ProofData{Nullifier: nullifier, VoteOption: 1})

	c.Assert(inputs, qt.DeepEquals, []string{
		"1",
		"1329227995784915872903807060280344576", // 2^120
		"7",
		"3",
	})
}

func TestFieldStringWindow(t *testing.T) {
	c := qt.New(t)

	// Bytes past the 16-byte window do not contribute to the value.
	b := make([]byte, 32)
	b[16] = 0xff
	b[31] = 0xff
	c.Assert(fieldString(b), qt.Equals, "0")

	// A fully saturated window is the 128-bit maximum.
	for i := 0; i < 16; i++ {
		b[i] = 0xff
	}
	c.Assert(fieldString(b), qt.Equals, "340282366920938463463374607431768211455")

	// Little-endian interpretation: byte 1 is the 256s place.
	c.Assert(fieldString([]byte{0x02, 0x01}), qt.Equals, "258")

	// Inputs shorter than the window are read as-is.
	c.Assert(fieldString([]byte{0x05}), qt.Equals, "5")
	c.Assert(fieldString(nil), qt.Equals, "0")
}

func TestBuildPublicInputsStable(t *testing.T) {
	c := qt.New(t)

	root := types.HexBytes{0xaa, 0xbb, 0xcc}
	p := &types.Poll{ID: 42, Options: []string{"a", "b"}, MerkleRoot: root}
	data := &types.ProofData{Nullifier: types.HexBytes{0x01, 0x02}}

	first := BuildPublicInputs(p, data)
	second := BuildPublicInputs(p, data)
	c.Assert(first, qt.DeepEquals, second)
}
