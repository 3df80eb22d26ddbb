package solana_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/AlexZinkM/smart-wallet/internal/client"
	"github.com/AlexZinkM/smart-wallet/internal/contract"
	"github.com/AlexZinkM/smart-wallet/internal/crypto"
	"github.com/AlexZinkM/smart-wallet/internal/localnet"
	"github.com/AlexZinkM/smart-wallet/internal/model"
	"github.com/AlexZinkM/smart-wallet/internal/program"
	"github.com/AlexZinkM/smart-wallet/internal/secp256r1"
	"github.com/AlexZinkM/smart-wallet/internal/storage"
	sw "github.com/AlexZinkM/smart-wallet/solana"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var password = []byte("correct horse")

func init() {
	crypto.SetScryptN(1 << 10)
}

func newService(t *testing.T) (*sw.Service, *localnet.Cluster, string) {
	t.Helper()
	store, err := storage.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := zaptest.NewLogger(t)
	cfg := program.DefaultConfig()
	cluster := localnet.New(store, cfg, log)
	payer := solana.NewWallet().PrivateKey
	require.NoError(t, cluster.Airdrop(payer.PublicKey(), 5*solana.LAMPORTS_PER_SOL))

	path := filepath.Join(t.TempDir(), "authority.cwt")
	pubkey, err := sw.GenerateKey(path, password)
	require.NoError(t, err)

	c := client.NewWithRPC(cluster, cfg, 200_000, log)
	return sw.NewService(c, path, payer), cluster, pubkey
}

func TestGenerateKeyTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.cwt")
	pubkey, err := sw.GenerateKey(path, password)
	require.NoError(t, err)
	assert.Len(t, pubkey, 2*secp256r1.PublicKeySize)

	_, err = sw.GenerateKey(path, password)
	assert.True(t, sw.IsFileExistsError(err))

	_, err = sw.GenerateKey(filepath.Join(t.TempDir(), "k.txt"), password)
	assert.Error(t, err)
}

func TestServiceFlow(t *testing.T) {
	s, cluster, pubkey := newService(t)
	ctx := context.Background()

	created, err := s.InitWallet(ctx, 11)
	require.NoError(t, err)

	info, err := s.WalletInfo(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, created.Wallet, info.Address)
	assert.Equal(t, pubkey, info.Creator)
	assert.Empty(t, info.Authorities)
	assert.Equal(t, uint64(0), info.Nonce)

	msg, err := s.Message(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), msg.Nonce)
	raw, err := hex.DecodeString(msg.Bytes)
	require.NoError(t, err)
	assert.Len(t, raw, 16)

	_, err = s.Memo(ctx, password, 11, "paid invoice 42")
	require.NoError(t, err)
	assert.Equal(t, []string{"paid invoice 42"}, cluster.Memos())

	other, err := secp256r1.GenerateKey()
	require.NoError(t, err)
	otherKey := secp256r1.CompressPublicKey(&other.PublicKey)
	_, err = s.AddAuthorities(ctx, password, model.AddAuthorityRequest{
		WalletID: 11,
		Pubkeys:  []string{hex.EncodeToString(otherKey[:])},
	})
	require.NoError(t, err)

	info, err = s.WalletInfo(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, []string{hex.EncodeToString(otherKey[:])}, info.Authorities)
	assert.Equal(t, uint64(2), info.Nonce)

	list, err := s.WalletsByCreator(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, pubkey, list.Creator)
	require.Len(t, list.Wallets, 1)
	assert.Equal(t, uint64(11), list.Wallets[0].ID)
}

func TestServiceWrongPassword(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	_, err := s.InitWallet(ctx, 1)
	require.NoError(t, err)

	_, err = s.Memo(ctx, []byte("wrong"), 1, "x")
	assert.ErrorIs(t, err, crypto.ErrInvalidPassword)
}

func TestServiceTooManyAuthorities(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	_, err := s.InitWallet(ctx, 2)
	require.NoError(t, err)

	keys := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		k, err := secp256r1.GenerateKey()
		require.NoError(t, err)
		c := secp256r1.CompressPublicKey(&k.PublicKey)
		keys = append(keys, hex.EncodeToString(c[:]))
	}
	_, err = s.AddAuthorities(ctx, password, model.AddAuthorityRequest{WalletID: 2, Pubkeys: keys})
	assert.ErrorIs(t, err, contract.ErrTooManyPubkey)

	info, err := s.WalletInfo(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), info.Nonce)
}

func TestServiceRejectsBadInput(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()

	_, err := s.Memo(ctx, password, 1, "")
	assert.Error(t, err)

	_, err = s.AddAuthorities(ctx, password, model.AddAuthorityRequest{WalletID: 1})
	assert.Error(t, err)

	_, err = s.Transfer(ctx, password, model.TransferRequest{Mint: "bad", ToAddress: "bad", Amount: "1"})
	assert.Error(t, err)

	_, err = s.WalletInfo(ctx, 404)
	assert.ErrorIs(t, err, client.ErrWalletNotFound)
}

// highSSignature signs msg the way a raw P-256 signer may: s is left in the
// upper half of the order.
func highSSignature(t *testing.T, priv *ecdsa.PrivateKey, msg []byte) []byte {
	t.Helper()
	digest := sha256.Sum256(msg)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	require.NoError(t, err)
	n := elliptic.P256().Params().N
	if s.Cmp(new(big.Int).Rsh(n, 1)) <= 0 {
		s = new(big.Int).Sub(n, s)
	}
	out := make([]byte, 64)
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out
}

func TestServiceMemoSigned(t *testing.T) {
	s, cluster, _ := newService(t)
	ctx := context.Background()
	_, err := s.InitWallet(ctx, 12)
	require.NoError(t, err)

	signer, err := secp256r1.GenerateKey()
	require.NoError(t, err)
	signerKey := secp256r1.CompressPublicKey(&signer.PublicKey)
	_, err = s.AddAuthorities(ctx, password, model.AddAuthorityRequest{
		WalletID: 12,
		Pubkeys:  []string{hex.EncodeToString(signerKey[:])},
	})
	require.NoError(t, err)

	msg, err := s.Message(ctx, 12)
	require.NoError(t, err)
	raw, err := hex.DecodeString(msg.Bytes)
	require.NoError(t, err)

	req := model.SignedMemoRequest{
		WalletID:  12,
		Text:      "signed by a passkey",
		Pubkey:    base64.StdEncoding.EncodeToString(signerKey[:]),
		Message:   msg.Bytes,
		Signature: hex.EncodeToString(highSSignature(t, signer, raw)),
	}
	_, err = s.MemoSigned(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"signed by a passkey"}, cluster.Memos())

	info, err := s.WalletInfo(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.Nonce)

	_, err = s.MemoSigned(ctx, req)
	assert.ErrorIs(t, err, contract.ErrInvalidNonce)
}

func TestServiceMemoSignedRejectsBadInput(t *testing.T) {
	s, _, pubkey := newService(t)
	ctx := context.Background()
	valid := model.SignedMemoRequest{
		WalletID:  1,
		Text:      "x",
		Pubkey:    pubkey,
		Message:   hex.EncodeToString(make([]byte, 16)),
		Signature: hex.EncodeToString(make([]byte, 64)),
	}

	tests := []struct {
		name   string
		modify func(*model.SignedMemoRequest)
	}{
		{"bad pubkey", func(r *model.SignedMemoRequest) { r.Pubkey = "00" }},
		{"message not hex", func(r *model.SignedMemoRequest) { r.Message = "zz" }},
		{"short message", func(r *model.SignedMemoRequest) { r.Message = hex.EncodeToString(make([]byte, 15)) }},
		{"short signature", func(r *model.SignedMemoRequest) { r.Signature = hex.EncodeToString(make([]byte, 63)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.modify(&req)
			_, err := s.MemoSigned(ctx, req)
			assert.ErrorIs(t, err, sw.ErrInvalidAuthorization)
		})
	}

	empty := valid
	empty.Text = ""
	_, err := s.MemoSigned(ctx, empty)
	assert.Error(t, err)
}
