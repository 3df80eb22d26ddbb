// Package secp256r1 handles the companion instruction consumed from the
// native secp256r1 signature verification program.
//
// Instruction data layout for a single signature:
//
//	[0]      number of signatures (1)
//	[1]      padding (0)
//	[2:16]   SignatureOffsets, little endian u16 fields
//	[16:49]  compressed public key
//	[49:113] signature (r || s)
//	[113:]   message
package secp256r1

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	PublicKeySize = 33
	SignatureSize = 64

	offsetsStart = 2
	offsetsSize  = 14
	// DataStart is where the variable-length fields begin.
	DataStart = offsetsStart + offsetsSize

	// CurrentInstruction as an instruction index means "this instruction".
	CurrentInstruction = math.MaxUint16
)

// ProgramID is the well-known address of the native verifier.
var ProgramID = solana.MustPublicKeyFromBase58("Secp256r1SigVerify1111111111111111111111111")

// ErrAssertionMismatch is returned when the companion instruction does not
// assert exactly the claimed (public key, message, signature) triple.
var ErrAssertionMismatch = errors.New("secp256r1 instruction does not match claimed signature")

// SignatureOffsets is the serialized offset table of one signature entry.
type SignatureOffsets struct {
	SignatureOffset           uint16
	SignatureInstructionIndex uint16
	PublicKeyOffset           uint16
	PublicKeyInstructionIndex uint16
	MessageDataOffset         uint16
	MessageDataSize           uint16
	MessageInstructionIndex   uint16
}

// expectedOffsets is the only offset table accepted for a message of msgLen
// bytes.
func expectedOffsets(msgLen int) SignatureOffsets {
	return SignatureOffsets{
		SignatureOffset:           DataStart + PublicKeySize,
		SignatureInstructionIndex: CurrentInstruction,
		PublicKeyOffset:           DataStart,
		PublicKeyInstructionIndex: CurrentInstruction,
		MessageDataOffset:         DataStart + PublicKeySize + SignatureSize,
		MessageDataSize:           uint16(msgLen),
		MessageInstructionIndex:   CurrentInstruction,
	}
}

// ParseOffsets decodes the i-th offset table of a verifier instruction.
func ParseOffsets(data []byte, i int) (SignatureOffsets, error) {
	var offsets SignatureOffsets
	start := offsetsStart + i*offsetsSize
	if start+offsetsSize > len(data) {
		return offsets, fmt.Errorf("offset table %d out of bounds", i)
	}
	if err := bin.NewBorshDecoder(data[start : start+offsetsSize]).Decode(&offsets); err != nil {
		return offsets, fmt.Errorf("failed to decode offsets: %w", err)
	}
	return offsets, nil
}

// VerifyInstruction checks that ix is a verifier instruction owned by
// verifierID, with no accounts, asserting exactly one signature over msg by
// pubkey, laid out at the one legal set of offsets.
func VerifyInstruction(ix solana.Instruction, verifierID solana.PublicKey, pubkey [PublicKeySize]byte, msg []byte, sig [SignatureSize]byte) error {
	if ix == nil {
		return fmt.Errorf("%w: missing instruction", ErrAssertionMismatch)
	}
	if !ix.ProgramID().Equals(verifierID) {
		return fmt.Errorf("%w: program %s", ErrAssertionMismatch, ix.ProgramID())
	}
	if len(ix.Accounts()) != 0 {
		return fmt.Errorf("%w: %d accounts", ErrAssertionMismatch, len(ix.Accounts()))
	}
	if len(msg) > math.MaxUint16-DataStart-PublicKeySize-SignatureSize {
		return fmt.Errorf("%w: message too long", ErrAssertionMismatch)
	}

	data, err := ix.Data()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAssertionMismatch, err)
	}
	if len(data) != DataStart+PublicKeySize+SignatureSize+len(msg) {
		return fmt.Errorf("%w: data length %d", ErrAssertionMismatch, len(data))
	}

	// The padding byte is pinned too so that no byte of the header is free.
	if data[0] != 1 || data[1] != 0 {
		return fmt.Errorf("%w: signature count", ErrAssertionMismatch)
	}
	offsets, err := ParseOffsets(data, 0)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAssertionMismatch, err)
	}
	if offsets != expectedOffsets(len(msg)) {
		return fmt.Errorf("%w: offsets %+v", ErrAssertionMismatch, offsets)
	}

	pkStart := int(offsets.PublicKeyOffset)
	sigStart := int(offsets.SignatureOffset)
	msgStart := int(offsets.MessageDataOffset)
	if !bytes.Equal(data[pkStart:pkStart+PublicKeySize], pubkey[:]) ||
		!bytes.Equal(data[sigStart:sigStart+SignatureSize], sig[:]) ||
		!bytes.Equal(data[msgStart:], msg) {
		return fmt.Errorf("%w: content", ErrAssertionMismatch)
	}
	return nil
}

// InstructionData serializes a single-signature verifier payload.
func InstructionData(pubkey [PublicKeySize]byte, sig [SignatureSize]byte, msg []byte) ([]byte, error) {
	if len(msg) > math.MaxUint16-DataStart-PublicKeySize-SignatureSize {
		return nil, fmt.Errorf("message too long: %d bytes", len(msg))
	}
	buf := new(bytes.Buffer)
	buf.Grow(DataStart + PublicKeySize + SignatureSize + len(msg))
	buf.Write([]byte{1, 0})
	if err := bin.NewBorshEncoder(buf).Encode(expectedOffsets(len(msg))); err != nil {
		return nil, fmt.Errorf("failed to encode offsets: %w", err)
	}
	buf.Write(pubkey[:])
	buf.Write(sig[:])
	buf.Write(msg)
	return buf.Bytes(), nil
}

// NewInstruction builds the companion instruction for verifierID.
func NewInstruction(verifierID solana.PublicKey, pubkey [PublicKeySize]byte, sig [SignatureSize]byte, msg []byte) (*solana.GenericInstruction, error) {
	data, err := InstructionData(pubkey, sig, msg)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(verifierID, solana.AccountMetaSlice{}, data), nil
}
