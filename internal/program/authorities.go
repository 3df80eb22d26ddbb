package program

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// AddAuthorities appends args.Pubkeys to the wallet of args.ID. The call
// must carry an authorization by the creator or an existing authority, and
// consumes one nonce like any other authorized operation.
//
// Accounts: [payer (s), smart_wallet (w), instructions sysvar].
func (p *Processor) AddAuthorities(_ context.Context, ic *Context, args AddPubkeyArgs) error {
	if len(ic.Accounts) < 3 {
		return ErrNotEnoughAccounts
	}
	if !ic.Accounts[0].IsSigner {
		return fmt.Errorf("%w: payer", ErrMissingSigner)
	}
	walletAddr := ic.Accounts[1].PublicKey
	if err := p.checkInstructionsSysvar(ic.Accounts[2]); err != nil {
		return err
	}

	w, _, err := p.loadWallet(ic, walletAddr)
	if err != nil {
		return err
	}
	if w.ID != args.ID {
		return fmt.Errorf("%w: wallet id %d", ErrInvalidSeeds, args.ID)
	}
	if err := p.authorize(ic, w, args.authorization()); err != nil {
		p.log.Debug("authorization rejected", zap.Stringer("wallet", walletAddr), zap.Error(err))
		return err
	}

	updated := w.Clone()
	if err := updated.AddAuthorities(args.Pubkeys); err != nil {
		return err
	}
	updated.Nonce++
	if err := p.storeWallet(ic, walletAddr, updated); err != nil {
		return err
	}

	p.log.Info("authorities added",
		zap.Stringer("wallet", walletAddr),
		zap.Int("added", len(args.Pubkeys)),
		zap.Int("total", len(updated.Authorities)),
	)
	return nil
}
