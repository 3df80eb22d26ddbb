package common

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/AlexZinkM/smart-wallet/internal/secp256r1"
	"github.com/AlexZinkM/smart-wallet/internal/wallet"
)

const (
	SOLDecimals = 9 // SOL has 9 decimals (lamports)
)

// LamportsToSOL converts lamports to SOL string without float precision loss
func LamportsToSOL(lamports uint64) string {
	return FormatAmount(lamports, SOLDecimals)
}

// FormatAmount converts integer base units to decimal string by inserting decimal point
// Example: FormatAmount(24981836, 9) = "0.024981836"
func FormatAmount(value uint64, decimals int) string {
	s := strconv.FormatUint(value, 10)
	if decimals == 0 {
		return s
	}

	// Pad with leading zeros if needed
	for len(s) <= decimals {
		s = "0" + s
	}

	pos := len(s) - decimals
	return s[:pos] + "." + s[pos:]
}

// ParseAmount converts decimal string to integer base units by removing decimal point.
// Digits past the token precision are rejected, not truncated.
// Example: ParseAmount("0.024981836", 9) = 24981836
func ParseAmount(s string, decimals int) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if hasDot && strings.Contains(frac, ".") {
		return 0, fmt.Errorf("invalid decimal format")
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return 0, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	n, err := strconv.ParseUint(whole+frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return n, nil
}

// decodeBytes accepts hex (optionally 0x-prefixed) or standard base64.
func decodeBytes(s string, size int) ([]byte, error) {
	s = strings.TrimSpace(s)
	if raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil && len(raw) == size {
		return raw, nil
	}
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil && len(raw) == size {
		return raw, nil
	}
	return nil, fmt.Errorf("expected %d bytes as hex or base64", size)
}

// ParsePublicKey decodes a compressed secp256r1 public key and checks that
// it lies on the curve.
func ParsePublicKey(s string) (wallet.PublicKey, error) {
	var key wallet.PublicKey
	raw, err := decodeBytes(s, secp256r1.PublicKeySize)
	if err != nil {
		return key, fmt.Errorf("invalid public key: %w", err)
	}
	copy(key[:], raw)
	if _, err := secp256r1.ParsePublicKey(key); err != nil {
		return key, fmt.Errorf("invalid public key: %w", err)
	}
	return key, nil
}

// ParsePublicKeys parses every key in keys.
func ParsePublicKeys(keys []string) ([]wallet.PublicKey, error) {
	out := make([]wallet.PublicKey, 0, len(keys))
	for i, s := range keys {
		key, err := ParsePublicKey(s)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		out = append(out, key)
	}
	return out, nil
}

// ParseSignature decodes a 64-byte r||s signature.
func ParseSignature(s string) ([secp256r1.SignatureSize]byte, error) {
	var sig [secp256r1.SignatureSize]byte
	raw, err := decodeBytes(s, secp256r1.SignatureSize)
	if err != nil {
		return sig, fmt.Errorf("invalid signature: %w", err)
	}
	copy(sig[:], raw)
	return sig, nil
}
