package solana

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/AlexZinkM/smart-wallet/internal/client"
	"github.com/AlexZinkM/smart-wallet/internal/common"
	"github.com/AlexZinkM/smart-wallet/internal/crypto"
	"github.com/AlexZinkM/smart-wallet/internal/model"
	"github.com/AlexZinkM/smart-wallet/internal/program"
	"github.com/AlexZinkM/smart-wallet/internal/secp256r1"
	"github.com/AlexZinkM/smart-wallet/internal/wallet"

	"github.com/gagliardetto/solana-go"
)

// ErrInvalidAuthorization is returned for an externally signed
// authorization that cannot be decoded.
var ErrInvalidAuthorization = errors.New("invalid authorization")

// Service runs smart wallet operations with the authority key stored in a
// .cwt file and a fee payer keypair.
type Service struct {
	client   *client.SolanaClient
	filePath string
	payer    solana.PrivateKey

	// Authorized operations read the nonce and then consume it, so two in
	// flight for one process would race.
	opMu sync.Mutex
}

// NewService creates a Service.
func NewService(c *client.SolanaClient, filePath string, payer solana.PrivateKey) *Service {
	return &Service{client: c, filePath: filePath, payer: payer}
}

// FilePath returns the keystore path.
func (s *Service) FilePath() string {
	return s.filePath
}

// AuthorityPubkey reads the public key from the keystore without decrypting it.
func (s *Service) AuthorityPubkey() (wallet.PublicKey, error) {
	address, err := crypto.ReadKeyAddress(s.filePath)
	if err != nil {
		return wallet.PublicKey{}, fmt.Errorf("failed to read key address: %w", err)
	}
	return common.ParsePublicKey(address)
}

// loadAuthority decrypts the keystore and checks the key against its address.
// password must be []byte for security (caller should zero it after use)
func (s *Service) loadAuthority(password []byte) (*ecdsa.PrivateKey, error) {
	file, keyData, err := crypto.DecryptKey(s.filePath, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}
	defer clear(keyData.PrivateKey)

	priv, err := secp256r1.PrivateKeyFromBytes(keyData.PrivateKey)
	if err != nil {
		return nil, err
	}
	compressed := secp256r1.CompressPublicKey(&priv.PublicKey)
	if hex.EncodeToString(compressed[:]) != file.Address {
		return nil, errors.New("private key does not match address")
	}
	return priv, nil
}

// InitWallet creates the wallet with the given id with the keystore key as creator.
func (s *Service) InitWallet(ctx context.Context, id uint64) (*model.TxResponse, error) {
	creator, err := s.AuthorityPubkey()
	if err != nil {
		return nil, err
	}
	sig, addr, err := s.client.InitWallet(ctx, s.payer, creator, id)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return &model.TxResponse{TxID: sig.String(), Wallet: addr.String()}, nil
}

// WalletInfo returns the state of the wallet with the given id.
func (s *Service) WalletInfo(ctx context.Context, id uint64) (*model.SmartWalletResponse, error) {
	acc, err := s.client.FetchWalletByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(acc)
	return &resp, nil
}

// WalletsByCreator lists the wallets created by creator (hex or base64).
// An empty creator means the keystore key.
func (s *Service) WalletsByCreator(ctx context.Context, creator string) (*model.WalletListResponse, error) {
	var key wallet.PublicKey
	var err error
	if creator == "" {
		key, err = s.AuthorityPubkey()
	} else {
		key, err = common.ParsePublicKey(creator)
	}
	if err != nil {
		return nil, err
	}

	found, err := s.client.FindWalletsByCreator(ctx, key)
	if err != nil {
		return nil, err
	}
	resp := &model.WalletListResponse{Creator: key.String(), Wallets: make([]model.SmartWalletResponse, 0, len(found))}
	for _, acc := range found {
		resp.Wallets = append(resp.Wallets, toResponse(acc))
	}
	return resp, nil
}

func toResponse(acc *client.WalletAccount) model.SmartWalletResponse {
	authorities := make([]string, 0, len(acc.Wallet.Authorities))
	for _, k := range acc.Wallet.Authorities {
		authorities = append(authorities, k.String())
	}
	return model.SmartWalletResponse{
		Address:     acc.Address.String(),
		ID:          acc.Wallet.ID,
		Bump:        acc.Wallet.Bump,
		Creator:     acc.Wallet.Creator.String(),
		Authorities: authorities,
		Nonce:       acc.Wallet.Nonce,
		SOL:         common.LamportsToSOL(acc.Lamports),
	}
}

// Message returns the message the next authorization of the wallet must sign.
func (s *Service) Message(ctx context.Context, id uint64) (*model.MessageResponse, error) {
	addr, err := s.client.WalletAddress(id)
	if err != nil {
		return nil, err
	}
	msg, err := s.client.GetMessage(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &model.MessageResponse{
		Nonce:     msg.Nonce,
		Timestamp: msg.Timestamp,
		Bytes:     hex.EncodeToString(msg.Bytes()),
	}, nil
}

// Transfer sends SPL tokens from the wallet's token account.
// password must be []byte for security (caller should zero it after use)
func (s *Service) Transfer(ctx context.Context, password []byte, req model.TransferRequest) (*model.TxResponse, error) {
	mint, err := solana.PublicKeyFromBase58(req.Mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address: %w", err)
	}
	to, err := solana.PublicKeyFromBase58(req.ToAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid Solana address: %w", err)
	}
	amount, err := common.ParseAmount(req.Amount, int(req.Decimals))
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	if amount == 0 {
		return nil, errors.New("amount must be positive")
	}

	return s.authorized(ctx, password, req.WalletID, func(priv *ecdsa.PrivateKey, addr solana.PublicKey) (solana.Signature, error) {
		return s.client.TransferToken(ctx, s.payer, priv, addr, mint, to, amount, req.Decimals)
	})
}

// Memo records text on chain signed by the wallet.
// password must be []byte for security (caller should zero it after use)
func (s *Service) Memo(ctx context.Context, password []byte, id uint64, text string) (*model.TxResponse, error) {
	if text == "" {
		return nil, errors.New("memo cannot be empty")
	}
	return s.authorized(ctx, password, id, func(priv *ecdsa.PrivateKey, addr solana.PublicKey) (solana.Signature, error) {
		return s.client.Memo(ctx, s.payer, priv, addr, text)
	})
}

// MemoSigned records a memo under an authorization signed outside the
// keystore. A high-s signature is accepted and normalized.
func (s *Service) MemoSigned(ctx context.Context, req model.SignedMemoRequest) (*model.TxResponse, error) {
	if req.Text == "" {
		return nil, errors.New("memo cannot be empty")
	}
	auth, err := parseAuthorization(req.Pubkey, req.Message, req.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAuthorization, err)
	}
	addr, err := s.client.WalletAddress(req.WalletID)
	if err != nil {
		return nil, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	sig, err := s.client.MemoSigned(ctx, s.payer, auth, addr, req.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	return &model.TxResponse{TxID: sig.String(), Wallet: addr.String()}, nil
}

func parseAuthorization(pubkey, message, signature string) (program.Authorization, error) {
	key, err := common.ParsePublicKey(pubkey)
	if err != nil {
		return program.Authorization{}, err
	}
	raw, err := hex.DecodeString(message)
	if err != nil {
		return program.Authorization{}, fmt.Errorf("invalid message: %w", err)
	}
	msg, err := wallet.ParseMessage(raw)
	if err != nil {
		return program.Authorization{}, err
	}
	sig, err := common.ParseSignature(signature)
	if err != nil {
		return program.Authorization{}, err
	}
	sig, err = secp256r1.NormalizeSignature(sig[:])
	if err != nil {
		return program.Authorization{}, err
	}
	return program.Authorization{Pubkey: key, Message: msg, Signature: sig}, nil
}

// AddAuthorities adds keys (hex or base64) to the wallet.
// password must be []byte for security (caller should zero it after use)
func (s *Service) AddAuthorities(ctx context.Context, password []byte, req model.AddAuthorityRequest) (*model.TxResponse, error) {
	if len(req.Pubkeys) == 0 {
		return nil, errors.New("no public keys given")
	}
	keys, err := common.ParsePublicKeys(req.Pubkeys)
	if err != nil {
		return nil, err
	}
	return s.authorized(ctx, password, req.WalletID, func(priv *ecdsa.PrivateKey, _ solana.PublicKey) (solana.Signature, error) {
		return s.client.AddAuthorities(ctx, s.payer, priv, req.WalletID, keys)
	})
}

func (s *Service) authorized(ctx context.Context, password []byte, id uint64, send func(*ecdsa.PrivateKey, solana.PublicKey) (solana.Signature, error)) (*model.TxResponse, error) {
	addr, err := s.client.WalletAddress(id)
	if err != nil {
		return nil, err
	}
	priv, err := s.loadAuthority(password)
	if err != nil {
		return nil, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	sig, err := send(priv, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	return &model.TxResponse{TxID: sig.String(), Wallet: addr.String()}, nil
}
