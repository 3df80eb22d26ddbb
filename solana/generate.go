package solana

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/AlexZinkM/smart-wallet/internal/crypto"
	"github.com/AlexZinkM/smart-wallet/internal/model"
	"github.com/AlexZinkM/smart-wallet/internal/secp256r1"

	"github.com/skip2/go-qrcode"
)

const (
	networkSecp256r1 = "secp256r1"
)

// IsFileExistsError checks if error means the keystore already exists
func IsFileExistsError(err error) bool {
	return errors.Is(err, crypto.ErrFileExists)
}

// GenerateKey generates a new secp256r1 authority key and saves it to .cwt file.
// Returns the compressed public key as hex on success.
// password must be []byte for security (caller should zero it after use)
func GenerateKey(filePath string, password []byte) (pubkey string, err error) {
	if filepath.Ext(filePath) != ".cwt" {
		return "", fmt.Errorf("file must have .cwt extension")
	}

	priv, err := secp256r1.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	scalar := secp256r1.PrivateKeyBytes(priv)
	defer clear(scalar)

	compressed := secp256r1.CompressPublicKey(&priv.PublicKey)
	pubkey = hex.EncodeToString(compressed[:])

	qrCode, err := generateQRCode(pubkey)
	if err != nil {
		return "", fmt.Errorf("failed to generate QR code: %w", err)
	}

	keyData := &model.KeyData{
		PrivateKey: scalar,
		CreatedAt:  time.Now().Format(time.RFC3339),
	}
	if err := crypto.EncryptKey(filePath, networkSecp256r1, pubkey, qrCode, keyData, password); err != nil {
		return "", fmt.Errorf("failed to encrypt key: %w", err)
	}
	return pubkey, nil
}

// generateQRCode generates QR code of text as base64 PNG
func generateQRCode(text string) (string, error) {
	qr, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}
	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate PNG: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
