package program

import (
	"context"
	"errors"

	"github.com/AlexZinkM/smart-wallet/internal/storage"

	"github.com/gagliardetto/solana-go"
)

// Host errors, raised for malformed calls rather than failed authorizations.
var (
	ErrNotEnoughAccounts   = errors.New("not enough account keys")
	ErrMissingSigner       = errors.New("missing required signature")
	ErrInvalidSeeds        = errors.New("account does not match derived address")
	ErrAccountAlreadyInUse = errors.New("account already in use")
	ErrInvalidOwner        = errors.New("account not owned by program")
	ErrInvalidSysvar       = errors.New("invalid instructions sysvar")
	ErrUnknownInstruction  = errors.New("unknown instruction")
	ErrInvalidArgs         = errors.New("invalid instruction data")
)

// InstructionLoader reads instructions of the running transaction.
type InstructionLoader interface {
	LoadInstructionAt(index int) (solana.Instruction, error)
}

// Clock reports the cluster time of the running transaction.
type Clock interface {
	UnixTimestamp() int64
}

// AccountState reads and writes accounts passed to an instruction.
type AccountState interface {
	Account(addr solana.PublicKey) (*storage.Account, error)
	SetAccount(addr solana.PublicKey, acct *storage.Account) error
}

// Invoker performs a cross-program call. Every account flagged as signer in
// ix must either have signed the transaction or be proven by one of the
// signing authorities.
type Invoker interface {
	InvokeSigned(ctx context.Context, ix solana.Instruction, signers ...SigningAuthority) error
}

// Context is everything an instruction handler may touch.
type Context struct {
	ProgramID    solana.PublicKey
	Accounts     solana.AccountMetaSlice
	Instructions InstructionLoader
	Clock        Clock
	State        AccountState
	Invoker      Invoker
}

// SigningAuthority proves that the caller may sign for a derived address.
// It is only built from seeds that reproduce that address.
type SigningAuthority struct {
	address solana.PublicKey
	seeds   [][]byte
}

// NewSigningAuthority checks that seeds derive address under programID.
func NewSigningAuthority(programID solana.PublicKey, seeds [][]byte) (SigningAuthority, error) {
	addr, err := solana.CreateProgramAddress(seeds, programID)
	if err != nil {
		return SigningAuthority{}, ErrInvalidSeeds
	}
	return SigningAuthority{address: addr, seeds: seeds}, nil
}

// Address is the derived address this authority signs for.
func (a SigningAuthority) Address() solana.PublicKey {
	return a.address
}

// Seeds returns a copy of the seed components.
func (a SigningAuthority) Seeds() [][]byte {
	out := make([][]byte, len(a.seeds))
	for i, s := range a.seeds {
		out[i] = append([]byte(nil), s...)
	}
	return out
}

// RentExemptMinimum returns the lamports an account of dataLen bytes must
// hold to be exempt from rent.
func RentExemptMinimum(dataLen uint64) uint64 {
	const (
		accountStorageOverhead = 128
		lamportsPerByteYear    = 3480
		exemptionYears         = 2
	)
	return (accountStorageOverhead + dataLen) * lamportsPerByteYear * exemptionYears
}
