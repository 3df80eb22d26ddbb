package program

import (
	"testing"

	"github.com/AlexZinkM/smart-wallet/internal/contract"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemapAccounts(t *testing.T) {
	walletAddr := solana.NewWallet().PublicKey()
	signer := solana.NewWallet().PublicKey()
	plain := solana.NewWallet().PublicKey()

	in := solana.AccountMetaSlice{
		solana.Meta(plain).WRITE(),
		solana.Meta(walletAddr),
		solana.Meta(signer).SIGNER(),
		solana.Meta(walletAddr).WRITE(),
	}
	out := RemapAccounts(in, walletAddr)
	require.Len(t, out, 4)

	assert.False(t, out[0].IsSigner)
	assert.True(t, out[0].IsWritable)
	assert.True(t, out[1].IsSigner)
	assert.False(t, out[1].IsWritable)
	assert.True(t, out[2].IsSigner)
	assert.True(t, out[3].IsSigner)
	assert.True(t, out[3].IsWritable)

	assert.False(t, in[1].IsSigner, "input must not be modified")
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "unverified", StageUnverified.String())
	assert.Equal(t, "executed", StageExecuted.String())
	assert.Equal(t, "stage(9)", Stage(9).String())
}

func TestAuthorizationErrorUnwraps(t *testing.T) {
	err := error(&AuthorizationError{Stage: StageNonceChecked, Err: contract.ErrSignatureExpired})
	assert.ErrorIs(t, err, contract.ErrSignatureExpired)
	assert.Contains(t, err.Error(), "nonce-checked")

	code, ok := contract.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, uint32(6003), code.Code)
}

func TestDiscriminators(t *testing.T) {
	assert.Equal(t, sighash("init_smart_wallet"), InitSmartWalletDiscriminator)
	assert.NotEqual(t, InitSmartWalletDiscriminator, VerifyAndExecuteDiscriminator)
	assert.NotEqual(t, VerifyAndExecuteDiscriminator, AddPubkeyDiscriminator)
}
