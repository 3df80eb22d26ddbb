package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/AlexZinkM/smart-wallet/internal/program"
	"github.com/AlexZinkM/smart-wallet/internal/runtime"
	"github.com/AlexZinkM/smart-wallet/internal/secp256r1"
	"github.com/AlexZinkM/smart-wallet/internal/storage"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()
	store, err := storage.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return runtime.New(store, runtime.WithLogger(zaptest.NewLogger(t)))
}

func balance(t *testing.T, rt *runtime.Runtime, addr solana.PublicKey) uint64 {
	t.Helper()
	acct, err := rt.Account(addr)
	if errors.Is(err, storage.ErrAccountNotFound) {
		return 0
	}
	require.NoError(t, err)
	return acct.Lamports
}

func TestTransfer(t *testing.T) {
	rt := newRuntime(t)
	from, to := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	require.NoError(t, rt.Airdrop(from, 1000))

	err := rt.Execute(context.Background(), &runtime.Transaction{
		Signers:      []solana.PublicKey{from},
		Instructions: []solana.Instruction{system.NewTransferInstruction(400, from, to).Build()},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(600), balance(t, rt, from))
	assert.Equal(t, uint64(400), balance(t, rt, to))
}

func TestTransferRequiresSignature(t *testing.T) {
	rt := newRuntime(t)
	from, to := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	require.NoError(t, rt.Airdrop(from, 1000))

	err := rt.Execute(context.Background(), &runtime.Transaction{
		Signers:      []solana.PublicKey{to},
		Instructions: []solana.Instruction{system.NewTransferInstruction(400, from, to).Build()},
	})
	assert.ErrorIs(t, err, program.ErrMissingSigner)
	assert.Equal(t, uint64(1000), balance(t, rt, from))
}

func TestTransactionIsAtomic(t *testing.T) {
	rt := newRuntime(t)
	from, to := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	require.NoError(t, rt.Airdrop(from, 1000))

	err := rt.Execute(context.Background(), &runtime.Transaction{
		Signers: []solana.PublicKey{from},
		Instructions: []solana.Instruction{
			system.NewTransferInstruction(400, from, to).Build(),
			system.NewTransferInstruction(700, from, to).Build(),
		},
	})
	assert.ErrorIs(t, err, runtime.ErrInsufficientFunds)
	assert.Equal(t, uint64(1000), balance(t, rt, from))
	assert.Equal(t, uint64(0), balance(t, rt, to))
}

func TestUnknownProgram(t *testing.T) {
	rt := newRuntime(t)
	ix := solana.NewInstruction(solana.NewWallet().PublicKey(), solana.AccountMetaSlice{}, nil)
	err := rt.Execute(context.Background(), &runtime.Transaction{Instructions: []solana.Instruction{ix}})
	assert.ErrorIs(t, err, runtime.ErrProgramNotFound)
}

func TestPrecompile(t *testing.T) {
	priv, err := secp256r1.GenerateKey()
	require.NoError(t, err)
	pubkey := secp256r1.CompressPublicKey(&priv.PublicKey)
	msg := []byte("hello")
	sig, err := secp256r1.Sign(priv, msg)
	require.NoError(t, err)

	run := func(ix solana.Instruction) error {
		return newRuntime(t).Execute(context.Background(), &runtime.Transaction{Instructions: []solana.Instruction{ix}})
	}

	valid, err := secp256r1.NewInstruction(secp256r1.ProgramID, pubkey, sig, msg)
	require.NoError(t, err)
	assert.NoError(t, run(valid))

	wrongMsg, err := secp256r1.NewInstruction(secp256r1.ProgramID, pubkey, sig, []byte("hellp"))
	require.NoError(t, err)
	assert.ErrorIs(t, run(wrongMsg), runtime.ErrInvalidSignature)

	truncated := solana.NewInstruction(secp256r1.ProgramID, solana.AccountMetaSlice{}, []byte{1, 0, 2})
	assert.ErrorIs(t, run(truncated), runtime.ErrInvalidPrecompileData)

	empty := solana.NewInstruction(secp256r1.ProgramID, solana.AccountMetaSlice{}, []byte{0, 0})
	assert.NoError(t, run(empty))
}

func TestPrecompileAtVerifierID(t *testing.T) {
	priv, err := secp256r1.GenerateKey()
	require.NoError(t, err)
	pubkey := secp256r1.CompressPublicKey(&priv.PublicKey)
	sig, err := secp256r1.Sign(priv, []byte("hello"))
	require.NoError(t, err)

	store, err := storage.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	verifierID := solana.NewWallet().PublicKey()
	rt := runtime.New(store, runtime.WithVerifierID(verifierID))

	run := func(id solana.PublicKey) error {
		ix, err := secp256r1.NewInstruction(id, pubkey, sig, []byte("hello"))
		require.NoError(t, err)
		return rt.Execute(context.Background(), &runtime.Transaction{Instructions: []solana.Instruction{ix}})
	}
	assert.NoError(t, run(verifierID))
	assert.ErrorIs(t, run(secp256r1.ProgramID), runtime.ErrProgramNotFound)
}

// caller forwards its instruction data to the program in its first account,
// passing along every account after it.
func caller() runtime.ProgramFunc {
	return func(ctx context.Context, ic *program.Context, data []byte) error {
		target := ic.Accounts[0].PublicKey
		return ic.Invoker.InvokeSigned(ctx, solana.NewInstruction(target, ic.Accounts[1:], data))
	}
}

func TestInvokeRejectsEscalation(t *testing.T) {
	rt := newRuntime(t)
	callerID := solana.NewWallet().PublicKey()
	rt.Register(callerID, runtime.ProgramFunc(func(ctx context.Context, ic *program.Context, data []byte) error {
		from, to := ic.Accounts[1].PublicKey, ic.Accounts[2].PublicKey
		return ic.Invoker.InvokeSigned(ctx, system.NewTransferInstruction(1, from, to).Build())
	}))

	from, to := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	require.NoError(t, rt.Airdrop(from, 10))
	ix := solana.NewInstruction(callerID, solana.AccountMetaSlice{
		solana.Meta(solana.SystemProgramID),
		solana.Meta(from).WRITE(),
		solana.Meta(to).WRITE(),
	}, nil)

	err := rt.Execute(context.Background(), &runtime.Transaction{Instructions: []solana.Instruction{ix}})
	assert.ErrorIs(t, err, runtime.ErrPrivilegeEscalation)
	assert.Equal(t, uint64(10), balance(t, rt, from))
}

func TestInvokeWithDerivedSigner(t *testing.T) {
	rt := newRuntime(t)
	callerID, targetID := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	seeds := [][]byte{[]byte("vault")}
	vault, bump, err := solana.FindProgramAddress(seeds, callerID)
	require.NoError(t, err)
	authority, err := program.NewSigningAuthority(callerID, [][]byte{seeds[0], {bump}})
	require.NoError(t, err)
	assert.Equal(t, vault, authority.Address())

	var seen solana.AccountMetaSlice
	rt.Register(targetID, runtime.ProgramFunc(func(_ context.Context, ic *program.Context, _ []byte) error {
		seen = ic.Accounts
		return nil
	}))
	invokeAsVault := func(signers ...program.SigningAuthority) runtime.ProgramFunc {
		return func(ctx context.Context, ic *program.Context, data []byte) error {
			metas := solana.AccountMetaSlice{solana.Meta(vault).SIGNER()}
			return ic.Invoker.InvokeSigned(ctx, solana.NewInstruction(targetID, metas, data), signers...)
		}
	}
	ix := solana.NewInstruction(callerID, solana.AccountMetaSlice{
		solana.Meta(targetID),
		solana.Meta(vault),
	}, nil)

	rt.Register(callerID, invokeAsVault(authority))
	require.NoError(t, rt.Execute(context.Background(), &runtime.Transaction{Instructions: []solana.Instruction{ix}}))
	require.Len(t, seen, 1)
	assert.True(t, seen[0].IsSigner)

	rt.Register(callerID, invokeAsVault())
	err = rt.Execute(context.Background(), &runtime.Transaction{Instructions: []solana.Instruction{ix}})
	assert.ErrorIs(t, err, runtime.ErrPrivilegeEscalation)
}

func TestInvokeRejectsReentrancy(t *testing.T) {
	rt := newRuntime(t)
	selfID := solana.NewWallet().PublicKey()
	rt.Register(selfID, caller())

	ix := solana.NewInstruction(selfID, solana.AccountMetaSlice{solana.Meta(selfID)}, nil)
	err := rt.Execute(context.Background(), &runtime.Transaction{Instructions: []solana.Instruction{ix}})
	assert.ErrorIs(t, err, runtime.ErrReentrancy)
}

func TestAccountViewGuards(t *testing.T) {
	rt := newRuntime(t)
	progID := solana.NewWallet().PublicKey()
	victim, hidden := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	require.NoError(t, rt.Airdrop(victim, 100))

	var action func(ic *program.Context) error
	rt.Register(progID, runtime.ProgramFunc(func(_ context.Context, ic *program.Context, _ []byte) error {
		return action(ic)
	}))
	run := func(metas solana.AccountMetaSlice) error {
		ix := solana.NewInstruction(progID, metas, nil)
		return rt.Execute(context.Background(), &runtime.Transaction{Instructions: []solana.Instruction{ix}})
	}

	action = func(ic *program.Context) error {
		_, err := ic.State.Account(hidden)
		return err
	}
	assert.ErrorIs(t, run(solana.AccountMetaSlice{solana.Meta(victim)}), runtime.ErrAccountNotPassed)

	action = func(ic *program.Context) error {
		acct, err := ic.State.Account(victim)
		if err != nil {
			return err
		}
		acct.Lamports++
		return ic.State.SetAccount(victim, acct)
	}
	assert.ErrorIs(t, run(solana.AccountMetaSlice{solana.Meta(victim)}), runtime.ErrReadonlyAccount)
	require.NoError(t, run(solana.AccountMetaSlice{solana.Meta(victim).WRITE()}), "crediting a foreign account is allowed")
	assert.Equal(t, uint64(101), balance(t, rt, victim))

	action = func(ic *program.Context) error {
		acct, err := ic.State.Account(victim)
		if err != nil {
			return err
		}
		acct.Lamports--
		return ic.State.SetAccount(victim, acct)
	}
	assert.ErrorIs(t, run(solana.AccountMetaSlice{solana.Meta(victim).WRITE()}), runtime.ErrExternalModify)
	assert.Equal(t, uint64(101), balance(t, rt, victim))
}
