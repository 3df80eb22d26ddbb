// Package wallet defines the persisted smart wallet record, the
// authorization message and the replay-protection rules around them.
package wallet

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/AlexZinkM/smart-wallet/internal/contract"
	"github.com/AlexZinkM/smart-wallet/internal/secp256r1"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	// MaxAuthorities bounds the authorities list.
	MaxAuthorities = 5

	DiscriminatorSize = 8

	// Space is the allocated size of a record, discriminator included.
	Space = DiscriminatorSize +
		secp256r1.PublicKeySize + // creator
		4 + MaxAuthorities*secp256r1.PublicKeySize + // authorities
		8 + // id
		1 + // bump
		8 // nonce
)

// PrefixSeed is the domain-separation tag of wallet addresses.
var PrefixSeed = []byte("smart_wallet")

// Discriminator prefixes every serialized SmartWallet record.
var Discriminator = accountDiscriminator("SmartWallet")

// ErrInvalidDiscriminator is returned when decoding data that is not a
// SmartWallet record.
var ErrInvalidDiscriminator = errors.New("account data is not a smart wallet")

// PublicKey is a compressed secp256r1 public key.
type PublicKey [secp256r1.PublicKeySize]byte

func (k PublicKey) String() string {
	return fmt.Sprintf("%x", k[:])
}

// SmartWallet is the persistent record of one wallet.
type SmartWallet struct {
	Creator     PublicKey
	Authorities []PublicKey
	ID          uint64
	Bump        uint8
	Nonce       uint64
}

// New returns a fresh record for creator.
func New(creator PublicKey, id uint64, bump uint8) *SmartWallet {
	return &SmartWallet{
		Creator:     creator,
		Authorities: []PublicKey{},
		ID:          id,
		Bump:        bump,
	}
}

// IsAuthorized reports whether key may authorize operations: the creator or
// any registered authority.
func (w *SmartWallet) IsAuthorized(key PublicKey) bool {
	if key == w.Creator {
		return true
	}
	for _, a := range w.Authorities {
		if a == key {
			return true
		}
	}
	return false
}

// CheckCapacity fails with TooManyPubkey if adding n keys would exceed
// MaxAuthorities.
func (w *SmartWallet) CheckCapacity(n int) error {
	if len(w.Authorities)+n > MaxAuthorities {
		return contract.ErrTooManyPubkey
	}
	return nil
}

// AddAuthorities appends keys after a capacity check. Duplicates are kept.
func (w *SmartWallet) AddAuthorities(keys []PublicKey) error {
	if err := w.CheckCapacity(len(keys)); err != nil {
		return err
	}
	w.Authorities = append(w.Authorities, keys...)
	return nil
}

// Clone returns a deep copy.
func (w *SmartWallet) Clone() *SmartWallet {
	c := *w
	c.Authorities = append([]PublicKey{}, w.Authorities...)
	return &c
}

// Seeds returns the signer seeds proving authority over the wallet address.
func (w *SmartWallet) Seeds() [][]byte {
	return SignerSeeds(w.ID, w.Bump)
}

// Marshal serializes the record with its discriminator.
func (w *SmartWallet) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(Discriminator[:])
	if err := bin.NewBorshEncoder(buf).Encode(w); err != nil {
		return nil, fmt.Errorf("failed to encode smart wallet: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a record. Trailing bytes of the allocation are ignored.
func Unmarshal(data []byte) (*SmartWallet, error) {
	if len(data) < DiscriminatorSize || !bytes.Equal(data[:DiscriminatorSize], Discriminator[:]) {
		return nil, ErrInvalidDiscriminator
	}
	var w SmartWallet
	if err := bin.NewBorshDecoder(data[DiscriminatorSize:]).Decode(&w); err != nil {
		return nil, fmt.Errorf("failed to decode smart wallet: %w", err)
	}
	if len(w.Authorities) > MaxAuthorities {
		return nil, fmt.Errorf("corrupt smart wallet: %d authorities", len(w.Authorities))
	}
	if w.Authorities == nil {
		w.Authorities = []PublicKey{}
	}
	return &w, nil
}

// IDSeed is the little-endian encoding of id used in address derivation.
func IDSeed(id uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, id)
}

// SignerSeeds returns [prefix, id, bump].
func SignerSeeds(id uint64, bump uint8) [][]byte {
	return [][]byte{PrefixSeed, IDSeed(id), {bump}}
}

// DeriveAddress finds the wallet address and bump for id.
func DeriveAddress(programID solana.PublicKey, id uint64) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{PrefixSeed, IDSeed(id)}, programID)
}

// AddressFromSeeds reproduces the wallet address from id and bump.
func AddressFromSeeds(programID solana.PublicKey, id uint64, bump uint8) (solana.PublicKey, error) {
	return solana.CreateProgramAddress(SignerSeeds(id, bump), programID)
}

func accountDiscriminator(name string) [DiscriminatorSize]byte {
	var d [DiscriminatorSize]byte
	sum := sha256.Sum256([]byte("account:" + name))
	copy(d[:], sum[:DiscriminatorSize])
	return d
}
