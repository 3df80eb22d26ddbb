package secp256r1

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTriple(t *testing.T) ([PublicKeySize]byte, [SignatureSize]byte, []byte) {
	t.Helper()
	priv, err := GenerateKey()
	require.NoError(t, err)
	msg := []byte{0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8}
	sig, err := Sign(priv, msg)
	require.NoError(t, err)
	return CompressPublicKey(&priv.PublicKey), sig, msg
}

func TestInstructionDataLayout(t *testing.T) {
	pubkey, sig, msg := testTriple(t)

	data, err := InstructionData(pubkey, sig, msg)
	require.NoError(t, err)
	require.Len(t, data, 2+14+33+64+len(msg))

	assert.Equal(t, byte(1), data[0])
	assert.Equal(t, byte(0), data[1])
	u16 := func(at int) uint16 { return binary.LittleEndian.Uint16(data[at:]) }
	assert.Equal(t, uint16(49), u16(2), "signature offset")
	assert.Equal(t, uint16(0xFFFF), u16(4), "signature ix index")
	assert.Equal(t, uint16(16), u16(6), "public key offset")
	assert.Equal(t, uint16(0xFFFF), u16(8), "public key ix index")
	assert.Equal(t, uint16(113), u16(10), "message offset")
	assert.Equal(t, uint16(len(msg)), u16(12), "message size")
	assert.Equal(t, uint16(0xFFFF), u16(14), "message ix index")
	assert.Equal(t, pubkey[:], data[16:49])
	assert.Equal(t, sig[:], data[49:113])
	assert.Equal(t, msg, data[113:])
}

func TestVerifyInstructionAcceptsExactLayout(t *testing.T) {
	pubkey, sig, msg := testTriple(t)
	ix, err := NewInstruction(ProgramID, pubkey, sig, msg)
	require.NoError(t, err)

	require.NoError(t, VerifyInstruction(ix, ProgramID, pubkey, msg, sig))
}

func TestVerifyInstructionRejectsEverySingleByteChange(t *testing.T) {
	pubkey, sig, msg := testTriple(t)
	data, err := InstructionData(pubkey, sig, msg)
	require.NoError(t, err)

	for i := range data {
		mutated := append([]byte(nil), data...)
		mutated[i] ^= 0x01
		ix := solana.NewInstruction(ProgramID, solana.AccountMetaSlice{}, mutated)
		err := VerifyInstruction(ix, ProgramID, pubkey, msg, sig)
		assert.ErrorIs(t, err, ErrAssertionMismatch, "byte %d", i)
	}
}

func TestVerifyInstructionRejectsStructure(t *testing.T) {
	pubkey, sig, msg := testTriple(t)
	data, err := InstructionData(pubkey, sig, msg)
	require.NoError(t, err)

	other := solana.NewWallet().PublicKey()
	tests := []struct {
		name string
		ix   solana.Instruction
		msg  []byte
	}{
		{"nil instruction", nil, msg},
		{"wrong program", solana.NewInstruction(other, solana.AccountMetaSlice{}, data), msg},
		{"with accounts", solana.NewInstruction(ProgramID, solana.AccountMetaSlice{solana.Meta(other)}, data), msg},
		{"trailing byte", solana.NewInstruction(ProgramID, solana.AccountMetaSlice{}, append(append([]byte(nil), data...), 0)), msg},
		{"truncated", solana.NewInstruction(ProgramID, solana.AccountMetaSlice{}, data[:len(data)-1]), msg},
		{"claimed message shorter", solana.NewInstruction(ProgramID, solana.AccountMetaSlice{}, data), msg[:len(msg)-1]},
		{"claimed message differs", solana.NewInstruction(ProgramID, solana.AccountMetaSlice{}, data), append([]byte{9}, msg[1:]...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyInstruction(tt.ix, ProgramID, pubkey, tt.msg, sig)
			assert.ErrorIs(t, err, ErrAssertionMismatch)
		})
	}
}

func TestVerifyInstructionRejectsShiftedOffsets(t *testing.T) {
	pubkey, sig, msg := testTriple(t)

	// Same bytes, but the message offset claims to start one byte later and
	// the size one byte shorter: a layout the verifier itself would accept.
	data, err := InstructionData(pubkey, sig, msg)
	require.NoError(t, err)
	binary.LittleEndian.PutUint16(data[10:], 114)
	binary.LittleEndian.PutUint16(data[12:], uint16(len(msg)-1))
	ix := solana.NewInstruction(ProgramID, solana.AccountMetaSlice{}, data)

	assert.ErrorIs(t, VerifyInstruction(ix, ProgramID, pubkey, msg, sig), ErrAssertionMismatch)
	assert.ErrorIs(t, VerifyInstruction(ix, ProgramID, pubkey, msg[1:], sig), ErrAssertionMismatch)
}

func TestParseOffsetsOutOfBounds(t *testing.T) {
	_, err := ParseOffsets(make([]byte, 10), 0)
	assert.Error(t, err)
}
