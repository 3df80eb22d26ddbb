// Package localnet serves the client RPC surface from a local runtime, so
// the smart wallet can be driven end to end without a cluster.
package localnet

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/AlexZinkM/smart-wallet/internal/program"
	"github.com/AlexZinkM/smart-wallet/internal/runtime"
	"github.com/AlexZinkM/smart-wallet/internal/storage"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// MemoProgramID is the address the local memo program is installed at.
var MemoProgramID = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

var (
	ErrInvalidMemo      = errors.New("memo is not valid UTF-8")
	ErrMalformedMessage = errors.New("malformed transaction message")
)

// Cluster is a single-node cluster over a Store.
type Cluster struct {
	rt    *runtime.Runtime
	store *storage.Store
	log   *zap.Logger

	mu    sync.Mutex
	slot  uint64
	memos []string
}

// New installs the smart wallet program (with cfg), a memo program and a
// no-op compute budget program on a fresh runtime over store. The verifier
// runs at cfg.VerifierProgramID.
func New(store *storage.Store, cfg program.Config, log *zap.Logger, opts ...runtime.Option) *Cluster {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cluster{store: store, log: log.Named("localnet")}
	base := []runtime.Option{runtime.WithLogger(log), runtime.WithVerifierID(cfg.VerifierProgramID)}
	c.rt = runtime.New(store, append(base, opts...)...)
	c.rt.Register(cfg.ProgramID, program.NewProcessor(cfg, log))
	c.rt.Register(computebudget.ProgramID, runtime.ProgramFunc(func(context.Context, *program.Context, []byte) error {
		return nil
	}))
	c.rt.Register(MemoProgramID, runtime.ProgramFunc(c.memo))
	return c
}

// Runtime exposes the underlying executor.
func (c *Cluster) Runtime() *runtime.Runtime {
	return c.rt
}

// Airdrop credits lamports to addr.
func (c *Cluster) Airdrop(addr solana.PublicKey, lamports uint64) error {
	return c.rt.Airdrop(addr, lamports)
}

// Memos returns every memo recorded so far.
func (c *Cluster) Memos() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.memos...)
}

func (c *Cluster) memo(_ context.Context, ic *program.Context, data []byte) error {
	for _, acc := range ic.Accounts {
		if !acc.IsSigner {
			return fmt.Errorf("%w: %s", program.ErrMissingSigner, acc.PublicKey)
		}
	}
	if !utf8.Valid(data) {
		return ErrInvalidMemo
	}
	c.mu.Lock()
	c.memos = append(c.memos, string(data))
	c.mu.Unlock()
	c.log.Info("memo", zap.String("text", string(data)), zap.Int("signers", len(ic.Accounts)))
	return nil
}

func (c *Cluster) GetAccountInfoWithOpts(_ context.Context, account solana.PublicKey, _ *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	acct, err := c.store.Account(account)
	if errors.Is(err, storage.ErrAccountNotFound) {
		return nil, rpc.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rpc.GetAccountInfoResult{
		RPCContext: c.context(),
		Value:      toRPCAccount(acct),
	}, nil
}

func (c *Cluster) GetProgramAccountsWithOpts(_ context.Context, programID solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	accounts, err := c.store.ProgramAccounts(programID)
	if err != nil {
		return nil, err
	}
	var filters []rpc.RPCFilter
	if opts != nil {
		filters = opts.Filters
	}

	out := make(rpc.GetProgramAccountsResult, 0, len(accounts))
	for addr, acct := range accounts {
		if !matches(acct.Data, filters) {
			continue
		}
		out = append(out, &rpc.KeyedAccount{Pubkey: addr, Account: toRPCAccount(acct)})
	}
	return out, nil
}

func matches(data []byte, filters []rpc.RPCFilter) bool {
	for _, f := range filters {
		if f.DataSize != 0 && uint64(len(data)) != f.DataSize {
			return false
		}
		if m := f.Memcmp; m != nil {
			end := m.Offset + uint64(len(m.Bytes))
			if end > uint64(len(data)) || !bytes.Equal(data[m.Offset:end], m.Bytes) {
				return false
			}
		}
	}
	return true
}

func (c *Cluster) GetLatestBlockhash(_ context.Context, _ rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	c.mu.Lock()
	slot := c.slot
	c.mu.Unlock()

	seed := []byte(fmt.Sprintf("localnet/%d", slot))
	return &rpc.GetLatestBlockhashResult{
		RPCContext: c.context(),
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            solana.Hash(sha256.Sum256(seed)),
			LastValidBlockHeight: slot + 150,
		},
	}, nil
}

// SendTransactionWithOpts verifies the signatures of tx and executes it.
// Preflight options are ignored: the transaction runs immediately.
func (c *Cluster) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, fmt.Errorf("%w: unsigned", ErrMalformedMessage)
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, fmt.Errorf("invalid transaction signature: %w", err)
	}
	decoded, err := Decompile(tx)
	if err != nil {
		return solana.Signature{}, err
	}

	start := time.Now()
	if err := c.rt.Execute(ctx, decoded); err != nil {
		return solana.Signature{}, err
	}
	c.mu.Lock()
	c.slot++
	c.mu.Unlock()
	c.log.Debug("transaction executed",
		zap.Stringer("signature", tx.Signatures[0]),
		zap.Int("instructions", len(decoded.Instructions)),
		zap.Duration("took", time.Since(start)),
	)
	return tx.Signatures[0], nil
}

func (c *Cluster) context() rpc.RPCContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return rpc.RPCContext{Context: rpc.Context{Slot: c.slot}}
}

func toRPCAccount(acct *storage.Account) *rpc.Account {
	return &rpc.Account{
		Lamports: acct.Lamports,
		Owner:    acct.Owner,
		Data:     rpc.DataBytesOrJSONFromBytes(acct.Data),
	}
}

// Decompile turns a signed legacy transaction back into instructions with
// their account flags. Signers are the accounts the message requires
// signatures from.
func Decompile(tx *solana.Transaction) (*runtime.Transaction, error) {
	msg := tx.Message
	keys := msg.AccountKeys
	n := len(keys)
	signed := int(msg.Header.NumRequiredSignatures)
	if signed > n || int(msg.Header.NumReadonlySignedAccounts) > signed ||
		int(msg.Header.NumReadonlyUnsignedAccounts) > n-signed {
		return nil, fmt.Errorf("%w: header does not fit %d keys", ErrMalformedMessage, n)
	}

	writable := func(i int) bool {
		if i < signed {
			return i < signed-int(msg.Header.NumReadonlySignedAccounts)
		}
		return i < n-int(msg.Header.NumReadonlyUnsignedAccounts)
	}

	out := &runtime.Transaction{}
	for i := 0; i < signed; i++ {
		out.Signers = append(out.Signers, keys[i])
	}
	for i, ci := range msg.Instructions {
		if int(ci.ProgramIDIndex) >= n {
			return nil, fmt.Errorf("%w: instruction %d program index %d", ErrMalformedMessage, i, ci.ProgramIDIndex)
		}
		metas := make(solana.AccountMetaSlice, 0, len(ci.Accounts))
		for _, idx := range ci.Accounts {
			if int(idx) >= n {
				return nil, fmt.Errorf("%w: instruction %d account index %d", ErrMalformedMessage, i, idx)
			}
			metas = append(metas, &solana.AccountMeta{
				PublicKey:  keys[idx],
				IsSigner:   int(idx) < signed,
				IsWritable: writable(int(idx)),
			})
		}
		out.Instructions = append(out.Instructions, solana.NewInstruction(keys[ci.ProgramIDIndex], metas, []byte(ci.Data)))
	}
	return out, nil
}
