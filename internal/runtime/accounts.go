package runtime

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/AlexZinkM/smart-wallet/internal/storage"

	"github.com/gagliardetto/solana-go"
)

// accountView is what one instruction sees of the account database: only
// the accounts it was passed, writable only where flagged, and mutable only
// where the running program owns them.
type accountView struct {
	ex        *execution
	programID solana.PublicKey
	metas     solana.AccountMetaSlice
}

func (v *accountView) Account(addr solana.PublicKey) (*storage.Account, error) {
	if findMeta(v.metas, addr) == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotPassed, addr)
	}
	return v.ex.db.Account(addr)
}

func (v *accountView) SetAccount(addr solana.PublicKey, acct *storage.Account) error {
	meta := findMeta(v.metas, addr)
	if meta == nil {
		return fmt.Errorf("%w: %s", ErrAccountNotPassed, addr)
	}
	if !meta.IsWritable {
		return fmt.Errorf("%w: %s", ErrReadonlyAccount, addr)
	}

	prev, err := v.ex.db.Account(addr)
	if errors.Is(err, storage.ErrAccountNotFound) {
		prev = &storage.Account{Owner: solana.SystemProgramID}
	} else if err != nil {
		return err
	}
	if !prev.Owner.Equals(v.programID) {
		// Anyone may credit an account; only its owner may change the rest.
		if !acct.Owner.Equals(prev.Owner) || !bytes.Equal(acct.Data, prev.Data) || acct.Lamports < prev.Lamports {
			return fmt.Errorf("%w: %s", ErrExternalModify, addr)
		}
	}
	return v.ex.db.SetAccount(addr, acct)
}
