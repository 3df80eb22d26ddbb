package program_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"github.com/AlexZinkM/smart-wallet/internal/program"
	"github.com/AlexZinkM/smart-wallet/internal/runtime"
	"github.com/AlexZinkM/smart-wallet/internal/secp256r1"
	"github.com/AlexZinkM/smart-wallet/internal/storage"
	"github.com/AlexZinkM/smart-wallet/internal/wallet"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	recorderID  = solana.MustPublicKeyFromBase58("Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo")
	errRecorder = errors.New("recorder asked to fail")
)

// call is one invocation seen by the recorder program.
type call struct {
	accounts solana.AccountMetaSlice
	data     []byte
}

type harness struct {
	t     *testing.T
	rt    *runtime.Runtime
	proc  *program.Processor
	now   time.Time
	payer solana.PublicKey
	calls []call
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &harness{
		t:     t,
		now:   time.Unix(1_700_000_000, 0),
		payer: solana.NewWallet().PublicKey(),
	}
	h.rt = runtime.New(store,
		runtime.WithClock(func() time.Time { return h.now }),
		runtime.WithLogger(zaptest.NewLogger(t)),
	)
	h.proc = program.NewProcessor(program.DefaultConfig(), zaptest.NewLogger(t))
	h.rt.Register(h.proc.ProgramID(), h.proc)
	h.rt.Register(recorderID, runtime.ProgramFunc(func(_ context.Context, ic *program.Context, data []byte) error {
		if len(data) > 0 && data[0] == 0xFF {
			return errRecorder
		}
		h.calls = append(h.calls, call{accounts: ic.Accounts, data: data})
		return nil
	}))
	require.NoError(t, h.rt.Airdrop(h.payer, 10*solana.LAMPORTS_PER_SOL))
	return h
}

func newKey(t *testing.T) (*ecdsa.PrivateKey, wallet.PublicKey) {
	t.Helper()
	priv, err := secp256r1.GenerateKey()
	require.NoError(t, err)
	return priv, secp256r1.CompressPublicKey(&priv.PublicKey)
}

func (h *harness) initWallet(creator wallet.PublicKey, id uint64) solana.PublicKey {
	h.t.Helper()
	ix, err := program.NewInitSmartWalletInstruction(h.proc.ProgramID(), h.payer, creator, id)
	require.NoError(h.t, err)
	require.NoError(h.t, h.send(ix))
	addr, _, err := wallet.DeriveAddress(h.proc.ProgramID(), id)
	require.NoError(h.t, err)
	return addr
}

func (h *harness) send(ixs ...solana.Instruction) error {
	return h.rt.Execute(context.Background(), &runtime.Transaction{
		Signers:      []solana.PublicKey{h.payer},
		Instructions: ixs,
	})
}

func (h *harness) wallet(addr solana.PublicKey) *wallet.SmartWallet {
	h.t.Helper()
	acct, err := h.rt.Account(addr)
	require.NoError(h.t, err)
	w, err := wallet.Unmarshal(acct.Data)
	require.NoError(h.t, err)
	return w
}

// authorization signs msg with priv and returns the matching companion
// instruction.
func (h *harness) authorization(priv *ecdsa.PrivateKey, msg wallet.Message) (program.Authorization, *solana.GenericInstruction) {
	h.t.Helper()
	auth, companion, err := program.SignAuthorization(priv, secp256r1.ProgramID, msg)
	require.NoError(h.t, err)
	return auth, companion
}

func (h *harness) target(walletAddr solana.PublicKey, data []byte) *solana.GenericInstruction {
	return solana.NewInstruction(recorderID, solana.AccountMetaSlice{
		solana.Meta(walletAddr).WRITE(),
	}, data)
}

// execute authorizes target as the wallet with a message signed by priv.
func (h *harness) execute(priv *ecdsa.PrivateKey, walletAddr solana.PublicKey, msg wallet.Message, target solana.Instruction) error {
	h.t.Helper()
	auth, companion := h.authorization(priv, msg)
	ix, err := program.NewVerifyAndExecuteInstruction(h.proc.ProgramID(), h.payer, walletAddr, auth, target)
	require.NoError(h.t, err)
	return h.send(companion, ix)
}

func (h *harness) addAuthorities(priv *ecdsa.PrivateKey, id uint64, msg wallet.Message, keys ...wallet.PublicKey) error {
	h.t.Helper()
	auth, companion := h.authorization(priv, msg)
	ix, err := program.NewAddPubkeyInstruction(h.proc.ProgramID(), h.payer, id, auth, keys)
	require.NoError(h.t, err)
	return h.send(companion, ix)
}
