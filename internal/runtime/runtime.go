// Package runtime is a local transaction executor for the smart wallet
// program. It runs every instruction of a transaction inside one storage
// transaction, so a failure anywhere rolls back the whole transaction.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AlexZinkM/smart-wallet/internal/program"
	"github.com/AlexZinkM/smart-wallet/internal/secp256r1"
	"github.com/AlexZinkM/smart-wallet/internal/storage"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const maxInvokeDepth = 4

var (
	ErrProgramNotFound     = errors.New("program not found")
	ErrReentrancy          = errors.New("cross-program reentrancy not allowed")
	ErrCallDepth           = errors.New("cross-program invocation too deep")
	ErrPrivilegeEscalation = errors.New("cross-program invocation with unauthorized signer or writable account")
	ErrAccountNotPassed    = errors.New("account not passed to instruction")
	ErrReadonlyAccount     = errors.New("write to read-only account")
	ErrExternalModify      = errors.New("instruction modified data or debited lamports of an account it does not own")
	ErrInstructionIndex    = errors.New("instruction index out of range")
)

// Program handles instructions addressed to one program id.
type Program interface {
	Process(ctx context.Context, ic *program.Context, data []byte) error
}

// ProgramFunc adapts a function to Program.
type ProgramFunc func(ctx context.Context, ic *program.Context, data []byte) error

func (f ProgramFunc) Process(ctx context.Context, ic *program.Context, data []byte) error {
	return f(ctx, ic, data)
}

// Transaction is a signed list of instructions.
type Transaction struct {
	Signers      []solana.PublicKey
	Instructions []solana.Instruction
}

// Runtime executes transactions against a Store.
type Runtime struct {
	store      *storage.Store
	programs   map[solana.PublicKey]Program
	now        func() time.Time
	log        *zap.Logger
	verifierID solana.PublicKey
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithClock sets the time source read once per transaction.
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) { r.now = now }
}

// WithVerifierID installs the secp256r1 verifier at id instead of
// secp256r1.ProgramID.
func WithVerifierID(id solana.PublicKey) Option {
	return func(r *Runtime) { r.verifierID = id }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Runtime) { r.log = log }
}

// New creates a runtime with the system program and the secp256r1
// verifier registered.
func New(store *storage.Store, opts ...Option) *Runtime {
	r := &Runtime{
		store:      store,
		programs:   make(map[solana.PublicKey]Program),
		now:        time.Now,
		log:        zap.NewNop(),
		verifierID: secp256r1.ProgramID,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Register(solana.SystemProgramID, ProgramFunc(systemProgram))
	r.Register(r.verifierID, ProgramFunc(secp256r1Program))
	return r
}

// Register installs prog at id, replacing any previous program.
func (r *Runtime) Register(id solana.PublicKey, prog Program) {
	r.programs[id] = prog
}

// Account returns the committed state of addr.
func (r *Runtime) Account(addr solana.PublicKey) (*storage.Account, error) {
	return r.store.Account(addr)
}

// Airdrop credits lamports to a system-owned account.
func (r *Runtime) Airdrop(addr solana.PublicKey, lamports uint64) error {
	tx, err := r.store.Begin()
	if err != nil {
		return err
	}
	defer tx.Discard()

	acct, err := tx.Account(addr)
	if errors.Is(err, storage.ErrAccountNotFound) {
		acct = &storage.Account{Owner: solana.SystemProgramID}
	} else if err != nil {
		return err
	}
	acct.Lamports += lamports
	if err := tx.SetAccount(addr, acct); err != nil {
		return err
	}
	return tx.Commit()
}

// Execute runs tx atomically. Either every instruction succeeds and all
// writes are committed, or none are.
func (r *Runtime) Execute(ctx context.Context, tx *Transaction) error {
	dbtx, err := r.store.Begin()
	if err != nil {
		return err
	}
	defer dbtx.Discard()

	ex := &execution{
		rt:           r,
		db:           dbtx,
		instructions: tx.Instructions,
		timestamp:    r.now().Unix(),
		signers:      make(map[solana.PublicKey]bool, len(tx.Signers)),
	}
	for _, s := range tx.Signers {
		ex.signers[s] = true
	}

	for i, ix := range tx.Instructions {
		for _, meta := range ix.Accounts() {
			if meta.IsSigner && !ex.signers[meta.PublicKey] {
				return fmt.Errorf("instruction %d: %w: %s", i, program.ErrMissingSigner, meta.PublicKey)
			}
		}
		if err := ex.invoke(ctx, ix); err != nil {
			r.log.Debug("transaction failed", zap.Int("instruction", i), zap.Error(err))
			return fmt.Errorf("instruction %d: %w", i, err)
		}
	}
	return dbtx.Commit()
}

// execution is the state of one running transaction. It serves as the
// instructions sysvar and the clock of every instruction it runs.
type execution struct {
	rt           *Runtime
	db           *storage.Tx
	instructions []solana.Instruction
	timestamp    int64
	signers      map[solana.PublicKey]bool
	stack        []solana.PublicKey
}

func (ex *execution) LoadInstructionAt(index int) (solana.Instruction, error) {
	if index < 0 || index >= len(ex.instructions) {
		return nil, fmt.Errorf("%w: %d", ErrInstructionIndex, index)
	}
	return ex.instructions[index], nil
}

func (ex *execution) UnixTimestamp() int64 {
	return ex.timestamp
}

func (ex *execution) invoke(ctx context.Context, ix solana.Instruction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := ix.ProgramID()
	prog, ok := ex.rt.programs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, id)
	}
	for _, caller := range ex.stack {
		if caller.Equals(id) {
			return fmt.Errorf("%w: %s", ErrReentrancy, id)
		}
	}
	if len(ex.stack) >= maxInvokeDepth {
		return ErrCallDepth
	}
	data, err := ix.Data()
	if err != nil {
		return err
	}

	metas := solana.AccountMetaSlice(ix.Accounts())
	ic := &program.Context{
		ProgramID:    id,
		Accounts:     metas,
		Instructions: ex,
		Clock:        ex,
		State:        &accountView{ex: ex, programID: id, metas: metas},
		Invoker:      &invoker{ex: ex, callerID: id, callerMetas: metas},
	}

	ex.stack = append(ex.stack, id)
	defer func() { ex.stack = ex.stack[:len(ex.stack)-1] }()
	return prog.Process(ctx, ic, data)
}

// invoker performs cross-program calls on behalf of callerID.
type invoker struct {
	ex          *execution
	callerID    solana.PublicKey
	callerMetas solana.AccountMetaSlice
}

func (v *invoker) InvokeSigned(ctx context.Context, ix solana.Instruction, signers ...program.SigningAuthority) error {
	derived := make(map[solana.PublicKey]bool, len(signers))
	for _, s := range signers {
		addr, err := solana.CreateProgramAddress(s.Seeds(), v.callerID)
		if err != nil {
			return fmt.Errorf("%w: %v", program.ErrInvalidSeeds, err)
		}
		derived[addr] = true
	}

	if findMeta(v.callerMetas, ix.ProgramID()) == nil {
		return fmt.Errorf("%w: program %s", ErrAccountNotPassed, ix.ProgramID())
	}
	for _, meta := range ix.Accounts() {
		caller := findMeta(v.callerMetas, meta.PublicKey)
		if caller == nil {
			return fmt.Errorf("%w: %s", ErrAccountNotPassed, meta.PublicKey)
		}
		if meta.IsSigner && !caller.IsSigner && !derived[meta.PublicKey] {
			return fmt.Errorf("%w: signer %s", ErrPrivilegeEscalation, meta.PublicKey)
		}
		if meta.IsWritable && !caller.IsWritable {
			return fmt.Errorf("%w: writable %s", ErrPrivilegeEscalation, meta.PublicKey)
		}
	}
	return v.ex.invoke(ctx, ix)
}

func findMeta(metas solana.AccountMetaSlice, addr solana.PublicKey) *solana.AccountMeta {
	for _, m := range metas {
		if m.PublicKey.Equals(addr) {
			return m
		}
	}
	return nil
}
