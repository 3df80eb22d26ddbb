package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlexZinkM/smart-wallet/internal/program"
	"github.com/AlexZinkM/smart-wallet/internal/secp256r1"
)

var (
	ErrInvalidPrecompileData = errors.New("invalid secp256r1 instruction data")
	ErrInvalidSignature      = errors.New("secp256r1 signature verification failed")
)

// secp256r1Program verifies every signature listed in the instruction; the
// transaction fails if any of them does not verify.
func secp256r1Program(_ context.Context, ic *program.Context, data []byte) error {
	if len(data) < 2 {
		return ErrInvalidPrecompileData
	}
	count := int(data[0])
	if count == 0 {
		if len(data) > 2 {
			return ErrInvalidPrecompileData
		}
		return nil
	}

	for i := 0; i < count; i++ {
		offsets, err := secp256r1.ParseOffsets(data, i)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPrecompileData, err)
		}
		pubkeyBytes, err := slice(ic, data, offsets.PublicKeyInstructionIndex, offsets.PublicKeyOffset, secp256r1.PublicKeySize)
		if err != nil {
			return err
		}
		sigBytes, err := slice(ic, data, offsets.SignatureInstructionIndex, offsets.SignatureOffset, secp256r1.SignatureSize)
		if err != nil {
			return err
		}
		msg, err := slice(ic, data, offsets.MessageInstructionIndex, offsets.MessageDataOffset, int(offsets.MessageDataSize))
		if err != nil {
			return err
		}

		var pubkey [secp256r1.PublicKeySize]byte
		var sig [secp256r1.SignatureSize]byte
		copy(pubkey[:], pubkeyBytes)
		copy(sig[:], sigBytes)
		if !secp256r1.Verify(pubkey, msg, sig) {
			return fmt.Errorf("%w: signature %d", ErrInvalidSignature, i)
		}
	}
	return nil
}

// slice reads size bytes at offset from the instruction at index, where
// CurrentInstruction means data itself.
func slice(ic *program.Context, data []byte, index, offset uint16, size int) ([]byte, error) {
	src := data
	if index != secp256r1.CurrentInstruction {
		ix, err := ic.Instructions.LoadInstructionAt(int(index))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPrecompileData, err)
		}
		if src, err = ix.Data(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPrecompileData, err)
		}
	}
	start := int(offset)
	if start+size > len(src) {
		return nil, fmt.Errorf("%w: range %d+%d out of bounds", ErrInvalidPrecompileData, start, size)
	}
	return src[start : start+size], nil
}
