// Package program is the smart wallet program: it creates wallets, adds
// authorities and forwards instructions signed by the wallet once a
// secp256r1 authority has approved them.
package program

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/AlexZinkM/smart-wallet/internal/secp256r1"
	"github.com/AlexZinkM/smart-wallet/internal/storage"
	"github.com/AlexZinkM/smart-wallet/internal/wallet"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"go.uber.org/zap"
)

// DefaultProgramID is the deployed address of the program.
var DefaultProgramID = solana.MustPublicKeyFromBase58("3jq9oBWGCUWmBynC8TTBL9KWJdGegsChJ1c8ksybGhum")

// Config holds the fixed identities the program trusts. It is set once at
// construction and never changes.
type Config struct {
	ProgramID         solana.PublicKey
	VerifierProgramID solana.PublicKey
	// VerifierIndex is the position of the companion verifier instruction
	// in the transaction.
	VerifierIndex int
}

// DefaultConfig returns the mainnet identities.
func DefaultConfig() Config {
	return Config{
		ProgramID:         DefaultProgramID,
		VerifierProgramID: secp256r1.ProgramID,
		VerifierIndex:     0,
	}
}

// Processor executes program instructions.
type Processor struct {
	cfg Config
	log *zap.Logger
}

// NewProcessor creates a processor. A nil logger disables logging.
func NewProcessor(cfg Config, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{cfg: cfg, log: log.Named("program")}
}

// ProgramID returns the address the processor runs as.
func (p *Processor) ProgramID() solana.PublicKey {
	return p.cfg.ProgramID
}

// Process decodes one instruction and runs its handler.
func (p *Processor) Process(ctx context.Context, ic *Context, data []byte) error {
	if len(data) < discriminatorSize {
		return ErrUnknownInstruction
	}
	var disc [discriminatorSize]byte
	copy(disc[:], data)
	body := data[discriminatorSize:]

	switch disc {
	case InitSmartWalletDiscriminator:
		var args InitSmartWalletArgs
		if err := decodeArgs(body, &args); err != nil {
			return err
		}
		_, err := p.InitSmartWallet(ctx, ic, args)
		return err
	case VerifyAndExecuteDiscriminator:
		var args VerifyAndExecuteArgs
		if err := decodeArgs(body, &args); err != nil {
			return err
		}
		return p.VerifyAndExecute(ctx, ic, args)
	case AddPubkeyDiscriminator:
		var args AddPubkeyArgs
		if err := decodeArgs(body, &args); err != nil {
			return err
		}
		return p.AddAuthorities(ctx, ic, args)
	default:
		return fmt.Errorf("%w: %x", ErrUnknownInstruction, disc)
	}
}

// InitSmartWallet allocates the wallet record at the address derived from
// args.ID, paid for by the signing payer.
//
// Accounts: [payer (w, s), smart_wallet (w), system_program].
func (p *Processor) InitSmartWallet(ctx context.Context, ic *Context, args InitSmartWalletArgs) (*wallet.SmartWallet, error) {
	if len(ic.Accounts) < 3 {
		return nil, ErrNotEnoughAccounts
	}
	payer, walletMeta := ic.Accounts[0], ic.Accounts[1]
	if !payer.IsSigner {
		return nil, fmt.Errorf("%w: payer", ErrMissingSigner)
	}

	addr, bump, err := wallet.DeriveAddress(p.cfg.ProgramID, args.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive wallet address: %w", err)
	}
	if !walletMeta.PublicKey.Equals(addr) {
		return nil, fmt.Errorf("%w: smart_wallet", ErrInvalidSeeds)
	}
	if _, err := ic.State.Account(addr); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, addr)
	} else if !errors.Is(err, storage.ErrAccountNotFound) {
		return nil, err
	}

	authority, err := NewSigningAuthority(p.cfg.ProgramID, wallet.SignerSeeds(args.ID, bump))
	if err != nil {
		return nil, err
	}
	create := system.NewCreateAccountInstruction(
		RentExemptMinimum(wallet.Space),
		wallet.Space,
		p.cfg.ProgramID,
		payer.PublicKey,
		addr,
	).Build()
	if err := ic.Invoker.InvokeSigned(ctx, create, authority); err != nil {
		return nil, fmt.Errorf("failed to allocate smart wallet: %w", err)
	}

	w := wallet.New(args.Pubkey, args.ID, bump)
	if err := p.storeWallet(ic, addr, w); err != nil {
		return nil, err
	}
	p.log.Info("smart wallet initialized",
		zap.Stringer("wallet", addr),
		zap.Uint64("id", args.ID),
		zap.Stringer("creator", args.Pubkey),
	)
	return w, nil
}

// loadWallet reads and decodes the wallet at addr and checks that its seeds
// reproduce addr.
func (p *Processor) loadWallet(ic *Context, addr solana.PublicKey) (*wallet.SmartWallet, *storage.Account, error) {
	acct, err := ic.State.Account(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load smart wallet %s: %w", addr, err)
	}
	if !acct.Owner.Equals(p.cfg.ProgramID) {
		return nil, nil, fmt.Errorf("%w: %s", ErrInvalidOwner, addr)
	}
	w, err := wallet.Unmarshal(acct.Data)
	if err != nil {
		return nil, nil, err
	}
	derived, err := wallet.AddressFromSeeds(p.cfg.ProgramID, w.ID, w.Bump)
	if err != nil || !derived.Equals(addr) {
		return nil, nil, fmt.Errorf("%w: smart_wallet", ErrInvalidSeeds)
	}
	return w, acct, nil
}

// storeWallet writes w into the account at addr, keeping its lamports and
// allocation size.
func (p *Processor) storeWallet(ic *Context, addr solana.PublicKey, w *wallet.SmartWallet) error {
	acct, err := ic.State.Account(addr)
	if err != nil {
		return fmt.Errorf("failed to load smart wallet %s: %w", addr, err)
	}
	data, err := w.Marshal()
	if err != nil {
		return err
	}
	size := len(acct.Data)
	if size < len(data) {
		return fmt.Errorf("smart wallet %s: account too small (%d < %d)", addr, size, len(data))
	}
	acct.Data = append(data, bytes.Repeat([]byte{0}, size-len(data))...)
	return ic.State.SetAccount(addr, acct)
}

func (p *Processor) checkInstructionsSysvar(meta *solana.AccountMeta) error {
	if !meta.PublicKey.Equals(solana.SysVarInstructionsPubkey) {
		return fmt.Errorf("%w: %s", ErrInvalidSysvar, meta.PublicKey)
	}
	return nil
}
