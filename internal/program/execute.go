package program

import (
	"context"
	"fmt"

	"github.com/AlexZinkM/smart-wallet/internal/contract"
	"github.com/AlexZinkM/smart-wallet/internal/secp256r1"
	"github.com/AlexZinkM/smart-wallet/internal/wallet"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Stage is how far an authorization got before it stopped.
type Stage int

const (
	StageUnverified Stage = iota
	StageAdapterChecked
	StageNonceChecked
	StageTimeChecked
	StageAuthorityChecked
	StageExecuted
)

var stageNames = [...]string{"unverified", "adapter-checked", "nonce-checked", "time-checked", "authority-checked", "executed"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// AuthorizationError wraps the contract error that stopped an authorization
// together with the last stage it passed.
type AuthorizationError struct {
	Stage Stage
	Err   error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization stopped at %s: %v", e.Stage, e.Err)
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// authorize runs the companion-instruction, replay and membership checks
// against w. It does not modify w.
func (p *Processor) authorize(ic *Context, w *wallet.SmartWallet, auth Authorization) error {
	stage := StageUnverified
	fail := func(err error) error {
		return &AuthorizationError{Stage: stage, Err: err}
	}

	msg := auth.Message.Bytes()
	ix, err := ic.Instructions.LoadInstructionAt(p.cfg.VerifierIndex)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", contract.ErrSigVerificationFailed, err))
	}
	if err := secp256r1.VerifyInstruction(ix, p.cfg.VerifierProgramID, auth.Pubkey, msg, auth.Signature); err != nil {
		return fail(fmt.Errorf("%w: %v", contract.ErrSigVerificationFailed, err))
	}
	stage = StageAdapterChecked

	if err := wallet.CheckNonce(auth.Message, w.Nonce); err != nil {
		return fail(err)
	}
	stage = StageNonceChecked

	if err := wallet.CheckTimestamp(auth.Message.Timestamp, ic.Clock.UnixTimestamp()); err != nil {
		return fail(err)
	}
	stage = StageTimeChecked

	if !w.IsAuthorized(auth.Pubkey) {
		return fail(contract.ErrInvalidPubkey)
	}
	return nil
}

// RemapAccounts flags walletAddr as a signer wherever it appears. Every
// other flag is passed through as declared by the caller.
func RemapAccounts(accounts solana.AccountMetaSlice, walletAddr solana.PublicKey) solana.AccountMetaSlice {
	out := make(solana.AccountMetaSlice, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, &solana.AccountMeta{
			PublicKey:  acc.PublicKey,
			IsSigner:   acc.IsSigner || acc.PublicKey.Equals(walletAddr),
			IsWritable: acc.IsWritable,
		})
	}
	return out
}

// VerifyAndExecute forwards args.Data to the cpi_program as the wallet once
// the authorization holds, then consumes the nonce. A failed forward leaves
// the nonce untouched.
//
// Accounts: [payer (s), smart_wallet (w), instructions sysvar, cpi_program,
// ...accounts of the forwarded instruction].
func (p *Processor) VerifyAndExecute(ctx context.Context, ic *Context, args VerifyAndExecuteArgs) error {
	if len(ic.Accounts) < 4 {
		return ErrNotEnoughAccounts
	}
	if !ic.Accounts[0].IsSigner {
		return fmt.Errorf("%w: payer", ErrMissingSigner)
	}
	walletAddr := ic.Accounts[1].PublicKey
	if err := p.checkInstructionsSysvar(ic.Accounts[2]); err != nil {
		return err
	}
	target := ic.Accounts[3].PublicKey

	w, _, err := p.loadWallet(ic, walletAddr)
	if err != nil {
		return err
	}
	if err := p.authorize(ic, w, args.authorization()); err != nil {
		p.log.Debug("authorization rejected", zap.Stringer("wallet", walletAddr), zap.Error(err))
		return err
	}

	authority, err := NewSigningAuthority(p.cfg.ProgramID, w.Seeds())
	if err != nil {
		return err
	}
	forward := solana.NewInstruction(target, RemapAccounts(ic.Accounts[4:], walletAddr), args.Data)
	if err := ic.Invoker.InvokeSigned(ctx, forward, authority); err != nil {
		return fmt.Errorf("forwarded instruction failed: %w", err)
	}

	// Reload: the forwarded call may have moved lamports of the wallet.
	w, _, err = p.loadWallet(ic, walletAddr)
	if err != nil {
		return err
	}
	if w.Nonce != args.Message.Nonce {
		return fmt.Errorf("%w: nonce changed during forwarded call", contract.ErrInvalidNonce)
	}
	w.Nonce++
	if err := p.storeWallet(ic, walletAddr, w); err != nil {
		return err
	}

	p.log.Info("instruction executed",
		zap.Stringer("wallet", walletAddr),
		zap.Stringer("program", target),
		zap.Uint64("nonce", args.Message.Nonce),
		zap.Stringer("stage", StageExecuted),
	)
	return nil
}
