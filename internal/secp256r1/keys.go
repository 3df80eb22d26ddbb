package secp256r1

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
)

var (
	curveOrder = elliptic.P256().Params().N
	halfOrder  = new(big.Int).Rsh(curveOrder, 1)
)

// GenerateKey creates a new P-256 authority key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// PrivateKeyFromBytes rebuilds a P-256 key from its 32-byte scalar.
func PrivateKeyFromBytes(d []byte) (*ecdsa.PrivateKey, error) {
	if len(d) != 32 {
		return nil, fmt.Errorf("invalid private key length: expected 32 bytes, got %d", len(d))
	}
	k := new(big.Int).SetBytes(d)
	if k.Sign() == 0 || k.Cmp(curveOrder) >= 0 {
		return nil, errors.New("invalid private key scalar")
	}
	priv := &ecdsa.PrivateKey{D: k}
	priv.PublicKey.Curve = elliptic.P256()
	priv.PublicKey.X, priv.PublicKey.Y = elliptic.P256().ScalarBaseMult(d)
	return priv, nil
}

// PrivateKeyBytes returns the 32-byte scalar of priv.
func PrivateKeyBytes(priv *ecdsa.PrivateKey) []byte {
	out := make([]byte, 32)
	return priv.D.FillBytes(out)
}

// CompressPublicKey returns the 33-byte SEC1 compressed form of pub.
func CompressPublicKey(pub *ecdsa.PublicKey) [PublicKeySize]byte {
	var out [PublicKeySize]byte
	copy(out[:], elliptic.MarshalCompressed(elliptic.P256(), pub.X, pub.Y))
	return out
}

// ParsePublicKey decodes a compressed public key.
func ParsePublicKey(compressed [PublicKeySize]byte) (*ecdsa.PublicKey, error) {
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), compressed[:])
	if x == nil {
		return nil, errors.New("invalid compressed secp256r1 public key")
	}
	return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil
}

// Sign signs sha256(msg) and returns r || s with s in the lower half of the
// curve order, which is the only form the verifier accepts.
func Sign(priv *ecdsa.PrivateKey, msg []byte) ([SignatureSize]byte, error) {
	digest := sha256.Sum256(msg)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return [SignatureSize]byte{}, fmt.Errorf("failed to sign message: %w", err)
	}
	return encodeSignature(r, s), nil
}

// NormalizeSignature pads r and s to 32 bytes each and flips a high s to
// n - s. raw is r || s where each half may be shorter than 32 bytes.
func NormalizeSignature(raw []byte) ([SignatureSize]byte, error) {
	if len(raw) == 0 || len(raw)%2 != 0 || len(raw) > SignatureSize {
		return [SignatureSize]byte{}, fmt.Errorf("invalid signature length %d", len(raw))
	}
	half := len(raw) / 2
	r := new(big.Int).SetBytes(raw[:half])
	s := new(big.Int).SetBytes(raw[half:])
	return encodeSignature(r, s), nil
}

// Verify checks a low-s signature over sha256(msg).
func Verify(pubkey [PublicKeySize]byte, msg []byte, sig [SignatureSize]byte) bool {
	pub, err := ParsePublicKey(pubkey)
	if err != nil {
		return false
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	if s.Cmp(halfOrder) > 0 {
		return false
	}
	digest := sha256.Sum256(msg)
	return ecdsa.Verify(pub, digest[:], r, s)
}

func encodeSignature(r, s *big.Int) [SignatureSize]byte {
	if s.Cmp(halfOrder) > 0 {
		s = new(big.Int).Sub(curveOrder, s)
	}
	var out [SignatureSize]byte
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out
}
