package program

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"

	"github.com/AlexZinkM/smart-wallet/internal/secp256r1"
	"github.com/AlexZinkM/smart-wallet/internal/wallet"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const discriminatorSize = 8

var (
	InitSmartWalletDiscriminator  = sighash("init_smart_wallet")
	VerifyAndExecuteDiscriminator = sighash("verify_and_execute_instruction")
	AddPubkeyDiscriminator        = sighash("add_pubkey")
)

// InitSmartWalletArgs creates a wallet for Pubkey at the address of ID.
type InitSmartWalletArgs struct {
	Pubkey wallet.PublicKey
	ID     uint64
}

// VerifyAndExecuteArgs authorizes Data to be forwarded as the wallet.
type VerifyAndExecuteArgs struct {
	Pubkey    wallet.PublicKey
	Message   wallet.Message
	Signature [secp256r1.SignatureSize]byte
	Data      []byte
}

// AddPubkeyArgs authorizes adding Pubkeys to the wallet of ID.
type AddPubkeyArgs struct {
	Pubkeys   []wallet.PublicKey
	ID        uint64
	Pubkey    wallet.PublicKey
	Message   wallet.Message
	Signature [secp256r1.SignatureSize]byte
}

// Authorization is the signed part shared by authorized instructions.
type Authorization struct {
	Pubkey    wallet.PublicKey
	Message   wallet.Message
	Signature [secp256r1.SignatureSize]byte
}

func (a VerifyAndExecuteArgs) authorization() Authorization {
	return Authorization{Pubkey: a.Pubkey, Message: a.Message, Signature: a.Signature}
}

func (a AddPubkeyArgs) authorization() Authorization {
	return Authorization{Pubkey: a.Pubkey, Message: a.Message, Signature: a.Signature}
}

// SignAuthorization signs msg with priv and returns the authorization
// together with the verifier instruction that must precede it in the
// transaction.
func SignAuthorization(priv *ecdsa.PrivateKey, verifierID solana.PublicKey, msg wallet.Message) (Authorization, *solana.GenericInstruction, error) {
	raw := msg.Bytes()
	sig, err := secp256r1.Sign(priv, raw)
	if err != nil {
		return Authorization{}, nil, err
	}
	pubkey := secp256r1.CompressPublicKey(&priv.PublicKey)
	companion, err := secp256r1.NewInstruction(verifierID, pubkey, sig, raw)
	if err != nil {
		return Authorization{}, nil, err
	}
	return Authorization{Pubkey: pubkey, Message: msg, Signature: sig}, companion, nil
}

// NewInitSmartWalletInstruction builds init_smart_wallet.
func NewInitSmartWalletInstruction(programID, payer solana.PublicKey, creator wallet.PublicKey, id uint64) (*solana.GenericInstruction, error) {
	addr, _, err := wallet.DeriveAddress(programID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to derive wallet address: %w", err)
	}
	data, err := encodeInstruction(InitSmartWalletDiscriminator, InitSmartWalletArgs{Pubkey: creator, ID: id})
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(addr).WRITE(),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewVerifyAndExecuteInstruction wraps target so that it runs as the wallet
// at walletAddr. The target's accounts are passed with signer flags cleared;
// the program flags the wallet itself.
func NewVerifyAndExecuteInstruction(programID, payer, walletAddr solana.PublicKey, auth Authorization, target solana.Instruction) (*solana.GenericInstruction, error) {
	targetData, err := target.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to encode target instruction: %w", err)
	}
	data, err := encodeInstruction(VerifyAndExecuteDiscriminator, VerifyAndExecuteArgs{
		Pubkey:    auth.Pubkey,
		Message:   auth.Message,
		Signature: auth.Signature,
		Data:      targetData,
	})
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(walletAddr).WRITE(),
		solana.Meta(solana.SysVarInstructionsPubkey),
		solana.Meta(target.ProgramID()),
	}
	for _, acc := range target.Accounts() {
		accounts = append(accounts, &solana.AccountMeta{
			PublicKey:  acc.PublicKey,
			IsWritable: acc.IsWritable,
		})
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewAddPubkeyInstruction builds add_pubkey.
func NewAddPubkeyInstruction(programID, payer solana.PublicKey, id uint64, auth Authorization, keys []wallet.PublicKey) (*solana.GenericInstruction, error) {
	addr, _, err := wallet.DeriveAddress(programID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to derive wallet address: %w", err)
	}
	data, err := encodeInstruction(AddPubkeyDiscriminator, AddPubkeyArgs{
		Pubkeys:   keys,
		ID:        id,
		Pubkey:    auth.Pubkey,
		Message:   auth.Message,
		Signature: auth.Signature,
	})
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(addr).WRITE(),
		solana.Meta(solana.SysVarInstructionsPubkey),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

func encodeInstruction(discriminator [discriminatorSize]byte, args interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(discriminator[:])
	if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
		return nil, fmt.Errorf("failed to encode instruction args: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeArgs(data []byte, args interface{}) error {
	dec := bin.NewBorshDecoder(data)
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	if dec.Remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidArgs, dec.Remaining())
	}
	return nil
}

func sighash(name string) [discriminatorSize]byte {
	var d [discriminatorSize]byte
	sum := sha256.Sum256([]byte("global:" + name))
	copy(d[:], sum[:discriminatorSize])
	return d
}
