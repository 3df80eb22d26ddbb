package client

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AlexZinkM/smart-wallet/internal/contract"
	"github.com/AlexZinkM/smart-wallet/internal/program"
	"github.com/AlexZinkM/smart-wallet/internal/secp256r1"
	"github.com/AlexZinkM/smart-wallet/internal/wallet"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
)

// ErrWalletNotFound is returned when no smart wallet lives at an address.
var ErrWalletNotFound = errors.New("smart wallet not found")

// MemoProgramID is the SPL Memo program (v2). It requires every account it
// is passed to sign, which makes it a minimal check of wallet signing.
var MemoProgramID = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

// RPC is the part of the Solana JSON-RPC API the client uses. *rpc.Client
// implements it.
type RPC interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetProgramAccountsWithOpts(ctx context.Context, programID solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

// WalletAccount is a decoded smart wallet together with its address and
// balance.
type WalletAccount struct {
	Address  solana.PublicKey
	Lamports uint64
	Wallet   *wallet.SmartWallet
}

// SolanaClient builds, signs and sends smart wallet transactions.
type SolanaClient struct {
	rpcClient    RPC
	program      program.Config
	computeUnits uint32
	now          func() time.Time
	log          *zap.Logger
}

// NewSolanaClient creates a client for the cluster at rpcURL.
func NewSolanaClient(rpcURL string, cfg program.Config, computeUnits uint32, log *zap.Logger) *SolanaClient {
	return NewWithRPC(rpc.New(rpcURL), cfg, computeUnits, log)
}

// NewWithRPC creates a client over an existing RPC connection.
func NewWithRPC(rpcClient RPC, cfg program.Config, computeUnits uint32, log *zap.Logger) *SolanaClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &SolanaClient{
		rpcClient:    rpcClient,
		program:      cfg,
		computeUnits: computeUnits,
		now:          time.Now,
		log:          log.Named("client"),
	}
}

// WalletAddress returns the address of the wallet with the given id.
func (c *SolanaClient) WalletAddress(id uint64) (solana.PublicKey, error) {
	addr, _, err := wallet.DeriveAddress(c.program.ProgramID, id)
	return addr, err
}

// FetchWallet reads and decodes the smart wallet at addr.
func (c *SolanaClient) FetchWallet(ctx context.Context, addr solana.PublicKey) (*WalletAccount, error) {
	res, err := c.rpcClient.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (res == nil || res.Value == nil)) {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account info: %w", err)
	}
	return c.decodeWallet(addr, res.Value)
}

// FetchWalletByID reads the wallet with the given id.
func (c *SolanaClient) FetchWalletByID(ctx context.Context, id uint64) (*WalletAccount, error) {
	addr, err := c.WalletAddress(id)
	if err != nil {
		return nil, err
	}
	return c.FetchWallet(ctx, addr)
}

// FindWalletsByCreator lists every wallet created by creator.
func (c *SolanaClient) FindWalletsByCreator(ctx context.Context, creator wallet.PublicKey) ([]*WalletAccount, error) {
	res, err := c.rpcClient.GetProgramAccountsWithOpts(ctx, c.program.ProgramID, &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Filters: []rpc.RPCFilter{
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58(wallet.Discriminator[:])}},
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: wallet.DiscriminatorSize, Bytes: solana.Base58(creator[:])}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get program accounts: %w", err)
	}

	out := make([]*WalletAccount, 0, len(res))
	for _, keyed := range res {
		acc, err := c.decodeWallet(keyed.Pubkey, keyed.Account)
		if err != nil {
			c.log.Warn("skipping undecodable account", zap.Stringer("address", keyed.Pubkey), zap.Error(err))
			continue
		}
		out = append(out, acc)
	}
	return out, nil
}

func (c *SolanaClient) decodeWallet(addr solana.PublicKey, acct *rpc.Account) (*WalletAccount, error) {
	if acct == nil || acct.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, addr)
	}
	if !acct.Owner.Equals(c.program.ProgramID) {
		return nil, fmt.Errorf("account %s is owned by %s, not the smart wallet program", addr, acct.Owner)
	}
	w, err := wallet.Unmarshal(acct.Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("failed to decode smart wallet %s: %w", addr, err)
	}
	return &WalletAccount{Address: addr, Lamports: acct.Lamports, Wallet: w}, nil
}

// GetMessage returns the message the next authorization for the wallet at
// addr must sign: the stored nonce and the current time.
func (c *SolanaClient) GetMessage(ctx context.Context, addr solana.PublicKey) (wallet.Message, error) {
	acc, err := c.FetchWallet(ctx, addr)
	if err != nil {
		return wallet.Message{}, err
	}
	return wallet.Message{Nonce: acc.Wallet.Nonce, Timestamp: c.now().Unix()}, nil
}

// InitWallet creates the wallet with the given id for creator, paid by payer.
func (c *SolanaClient) InitWallet(ctx context.Context, payer solana.PrivateKey, creator wallet.PublicKey, id uint64) (solana.Signature, solana.PublicKey, error) {
	addr, err := c.WalletAddress(id)
	if err != nil {
		return solana.Signature{}, solana.PublicKey{}, err
	}
	ix, err := program.NewInitSmartWalletInstruction(c.program.ProgramID, payer.PublicKey(), creator, id)
	if err != nil {
		return solana.Signature{}, solana.PublicKey{}, err
	}
	sig, err := c.send(ctx, payer, []solana.Instruction{ix})
	if err != nil {
		return solana.Signature{}, solana.PublicKey{}, err
	}
	c.log.Info("smart wallet created", zap.Stringer("wallet", addr), zap.Uint64("id", id), zap.Stringer("tx", sig))
	return sig, addr, nil
}

// ExecuteInstructions builds the instructions that run target as the
// wallet at walletAddr, authorized by authority for msg. extra
// instructions run before the forwarded call.
func (c *SolanaClient) ExecuteInstructions(authority *ecdsa.PrivateKey, payer, walletAddr solana.PublicKey, msg wallet.Message, target solana.Instruction, extra ...solana.Instruction) ([]solana.Instruction, error) {
	auth, _, err := program.SignAuthorization(authority, c.program.VerifierProgramID, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to sign authorization: %w", err)
	}
	return c.ExecuteSignedInstructions(auth, payer, walletAddr, target, extra...)
}

// ExecuteSignedInstructions is ExecuteInstructions for an authorization
// signed elsewhere, e.g. by a passkey or a hardware key.
func (c *SolanaClient) ExecuteSignedInstructions(auth program.Authorization, payer, walletAddr solana.PublicKey, target solana.Instruction, extra ...solana.Instruction) ([]solana.Instruction, error) {
	companion, err := secp256r1.NewInstruction(c.program.VerifierProgramID, auth.Pubkey, auth.Signature, auth.Message.Bytes())
	if err != nil {
		return nil, err
	}
	ix, err := program.NewVerifyAndExecuteInstruction(c.program.ProgramID, payer, walletAddr, auth, target)
	if err != nil {
		return nil, err
	}
	rest := []solana.Instruction{computebudget.NewSetComputeUnitLimitInstruction(c.computeUnits).Build()}
	rest = append(rest, extra...)
	return c.withCompanion(companion, append(rest, ix)...)
}

// AddAuthoritiesInstructions builds the instructions that add keys to the
// wallet with the given id.
func (c *SolanaClient) AddAuthoritiesInstructions(authority *ecdsa.PrivateKey, payer solana.PublicKey, id uint64, msg wallet.Message, keys []wallet.PublicKey) ([]solana.Instruction, error) {
	auth, companion, err := program.SignAuthorization(authority, c.program.VerifierProgramID, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to sign authorization: %w", err)
	}
	ix, err := program.NewAddPubkeyInstruction(c.program.ProgramID, payer, id, auth, keys)
	if err != nil {
		return nil, err
	}
	return c.withCompanion(companion, ix)
}

// withCompanion places the verifier instruction at the index the program
// reads it from.
func (c *SolanaClient) withCompanion(companion solana.Instruction, rest ...solana.Instruction) ([]solana.Instruction, error) {
	idx := c.program.VerifierIndex
	if idx < 0 || idx > len(rest) {
		return nil, fmt.Errorf("verifier index %d does not fit a transaction of %d instructions", idx, len(rest)+1)
	}
	out := make([]solana.Instruction, 0, len(rest)+1)
	out = append(out, rest[:idx]...)
	out = append(out, companion)
	return append(out, rest[idx:]...), nil
}

// Execute runs target as the wallet at walletAddr. The authorization covers
// the wallet's current nonce and the current time.
func (c *SolanaClient) Execute(ctx context.Context, payer solana.PrivateKey, authority *ecdsa.PrivateKey, walletAddr solana.PublicKey, target solana.Instruction, extra ...solana.Instruction) (solana.Signature, error) {
	msg, err := c.GetMessage(ctx, walletAddr)
	if err != nil {
		return solana.Signature{}, err
	}
	auth, _, err := program.SignAuthorization(authority, c.program.VerifierProgramID, msg)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign authorization: %w", err)
	}
	return c.ExecuteSigned(ctx, payer, auth, walletAddr, target, extra...)
}

// ExecuteSigned runs target as the wallet at walletAddr under an
// authorization signed elsewhere.
func (c *SolanaClient) ExecuteSigned(ctx context.Context, payer solana.PrivateKey, auth program.Authorization, walletAddr solana.PublicKey, target solana.Instruction, extra ...solana.Instruction) (solana.Signature, error) {
	ixs, err := c.ExecuteSignedInstructions(auth, payer.PublicKey(), walletAddr, target, extra...)
	if err != nil {
		return solana.Signature{}, err
	}
	sig, err := c.send(ctx, payer, ixs)
	if err != nil {
		return solana.Signature{}, err
	}
	c.log.Info("instruction executed",
		zap.Stringer("wallet", walletAddr),
		zap.Stringer("program", target.ProgramID()),
		zap.Uint64("nonce", auth.Message.Nonce),
		zap.Stringer("tx", sig),
	)
	return sig, nil
}

// AddAuthorities adds keys to the wallet with the given id.
func (c *SolanaClient) AddAuthorities(ctx context.Context, payer solana.PrivateKey, authority *ecdsa.PrivateKey, id uint64, keys []wallet.PublicKey) (solana.Signature, error) {
	addr, err := c.WalletAddress(id)
	if err != nil {
		return solana.Signature{}, err
	}
	msg, err := c.GetMessage(ctx, addr)
	if err != nil {
		return solana.Signature{}, err
	}
	ixs, err := c.AddAuthoritiesInstructions(authority, payer.PublicKey(), id, msg, keys)
	if err != nil {
		return solana.Signature{}, err
	}
	sig, err := c.send(ctx, payer, ixs)
	if err != nil {
		return solana.Signature{}, err
	}
	c.log.Info("authorities added", zap.Stringer("wallet", addr), zap.Int("count", len(keys)), zap.Stringer("tx", sig))
	return sig, nil
}

// TransferToken moves amount base units of mint from the wallet's
// associated token account to the one of to, creating the destination
// account when it does not exist yet.
func (c *SolanaClient) TransferToken(ctx context.Context, payer solana.PrivateKey, authority *ecdsa.PrivateKey, walletAddr, mint, to solana.PublicKey, amount uint64, decimals uint8) (solana.Signature, error) {
	source, _, err := solana.FindAssociatedTokenAddress(walletAddr, mint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to find source token account address: %w", err)
	}
	dest, _, err := solana.FindAssociatedTokenAddress(to, mint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to find destination token account: %w", err)
	}

	var extra []solana.Instruction
	destInfo, err := c.rpcClient.GetAccountInfoWithOpts(ctx, dest, &rpc.GetAccountInfoOpts{Commitment: rpc.CommitmentConfirmed})
	if err != nil && !isAccountNotFoundError(err) {
		return solana.Signature{}, fmt.Errorf("failed to get destination account info: %w", err)
	}
	if err != nil || destInfo == nil || destInfo.Value == nil {
		extra = append(extra, associatedtokenaccount.NewCreateInstruction(payer.PublicKey(), to, mint).Build())
	}

	transfer := token.NewTransferCheckedInstruction(
		amount,
		decimals,
		source,
		mint,
		dest,
		walletAddr,
		[]solana.PublicKey{},
	).Build()
	return c.Execute(ctx, payer, authority, walletAddr, transfer, extra...)
}

// NewMemoInstruction builds an SPL memo signed by walletAddr.
func NewMemoInstruction(walletAddr solana.PublicKey, text string) solana.Instruction {
	return solana.NewInstruction(MemoProgramID, solana.AccountMetaSlice{
		solana.Meta(walletAddr).SIGNER(),
	}, []byte(text))
}

// Memo records text on chain with the wallet at walletAddr as its signer.
func (c *SolanaClient) Memo(ctx context.Context, payer solana.PrivateKey, authority *ecdsa.PrivateKey, walletAddr solana.PublicKey, text string) (solana.Signature, error) {
	return c.Execute(ctx, payer, authority, walletAddr, NewMemoInstruction(walletAddr, text))
}

// MemoSigned is Memo under an authorization signed elsewhere.
func (c *SolanaClient) MemoSigned(ctx context.Context, payer solana.PrivateKey, auth program.Authorization, walletAddr solana.PublicKey, text string) (solana.Signature, error) {
	return c.ExecuteSigned(ctx, payer, auth, walletAddr, NewMemoInstruction(walletAddr, text))
}

func (c *SolanaClient) send(ctx context.Context, payer solana.PrivateKey, ixs []solana.Instruction) (solana.Signature, error) {
	recent, err := c.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(ixs, recent.Value.Blockhash, solana.TransactionPayer(payer.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create transaction: %w", err)
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if payer.PublicKey().Equals(key) {
			return &payer
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := c.rpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", decodeProgramError(err))
	}
	return sig, nil
}

// decodeProgramError surfaces the smart wallet error behind a failed
// preflight. A node reports it as {"err":{"InstructionError":[i,{"Custom":n}]}}
// in the data of the RPC error.
func decodeProgramError(err error) error {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Data == nil {
		return err
	}
	raw, mErr := json.Marshal(rpcErr.Data)
	if mErr != nil {
		return err
	}
	var sim struct {
		Err json.RawMessage `json:"err"`
	}
	if json.Unmarshal(raw, &sim) == nil && len(sim.Err) > 0 {
		raw = sim.Err
	}

	var txErr struct {
		InstructionError []json.RawMessage
	}
	if json.Unmarshal(raw, &txErr) != nil || len(txErr.InstructionError) != 2 {
		return err
	}
	var index uint8
	var custom struct {
		Custom *uint32
	}
	if json.Unmarshal(txErr.InstructionError[0], &index) != nil ||
		json.Unmarshal(txErr.InstructionError[1], &custom) != nil || custom.Custom == nil {
		return err
	}
	if perr := contract.FromCode(*custom.Custom); perr != nil {
		return fmt.Errorf("instruction %d: %w: %w", index, perr, err)
	}
	return err
}

// isAccountNotFoundError checks if error indicates that the account doesn't exist
func isAccountNotFoundError(err error) bool {
	if errors.Is(err, rpc.ErrNotFound) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "could not find account") ||
		strings.Contains(errStr, "not found")
}
