package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlexZinkM/smart-wallet/internal/program"
	"github.com/AlexZinkM/smart-wallet/internal/storage"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient lamports")
	ErrUnsupportedSystem  = errors.New("unsupported system instruction")
	ErrSystemAccountInUse = errors.New("system account already in use")
)

// systemProgram implements CreateAccount and Transfer.
func systemProgram(_ context.Context, ic *program.Context, data []byte) error {
	inst, err := system.DecodeInstruction(ic.Accounts, data)
	if err != nil {
		return fmt.Errorf("failed to decode system instruction: %w", err)
	}

	switch impl := inst.Impl.(type) {
	case *system.CreateAccount:
		from, to := impl.GetFundingAccount(), impl.GetNewAccount()
		if !from.IsSigner || !to.IsSigner {
			return program.ErrMissingSigner
		}
		if existing, err := ic.State.Account(to.PublicKey); err == nil {
			if existing.Lamports > 0 || len(existing.Data) > 0 {
				return fmt.Errorf("%w: %s", ErrSystemAccountInUse, to.PublicKey)
			}
		} else if !errors.Is(err, storage.ErrAccountNotFound) {
			return err
		}
		if err := debit(ic, from.PublicKey, *impl.Lamports); err != nil {
			return err
		}
		return ic.State.SetAccount(to.PublicKey, &storage.Account{
			Lamports: *impl.Lamports,
			Owner:    *impl.Owner,
			Data:     make([]byte, *impl.Space),
		})

	case *system.Transfer:
		from, to := impl.GetFundingAccount(), impl.GetRecipientAccount()
		if !from.IsSigner {
			return program.ErrMissingSigner
		}
		if err := debit(ic, from.PublicKey, *impl.Lamports); err != nil {
			return err
		}
		return credit(ic, to.PublicKey, *impl.Lamports)

	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedSystem, impl)
	}
}

func debit(ic *program.Context, addr solana.PublicKey, lamports uint64) error {
	acct, err := ic.State.Account(addr)
	if errors.Is(err, storage.ErrAccountNotFound) {
		return fmt.Errorf("%w: %s has 0", ErrInsufficientFunds, addr)
	} else if err != nil {
		return err
	}
	if !acct.Owner.Equals(solana.SystemProgramID) || len(acct.Data) > 0 {
		return fmt.Errorf("%w: %s carries data", ErrExternalModify, addr)
	}
	if acct.Lamports < lamports {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, addr, acct.Lamports, lamports)
	}
	acct.Lamports -= lamports
	return ic.State.SetAccount(addr, acct)
}

func credit(ic *program.Context, addr solana.PublicKey, lamports uint64) error {
	acct, err := ic.State.Account(addr)
	if errors.Is(err, storage.ErrAccountNotFound) {
		acct = &storage.Account{Owner: solana.SystemProgramID}
	} else if err != nil {
		return err
	}
	acct.Lamports += lamports
	return ic.State.SetAccount(addr, acct)
}
