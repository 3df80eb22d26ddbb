package model

// CWTFile represents .cwt keystore file structure
type CWTFile struct {
	Network    string `json:"network"`
	Address    string `json:"address"` // hex of the compressed secp256r1 public key
	QR         string `json:"QR"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"cipherText"`
}

// KeyData represents decrypted authority key data
type KeyData struct {
	PrivateKey []byte `json:"privateKey"` // 32-byte P-256 scalar (stored as base64 in JSON)
	CreatedAt  string `json:"createdAt"`
}

// SmartWalletResponse represents response for GET /wallet
type SmartWalletResponse struct {
	Address     string   `json:"address"`
	ID          uint64   `json:"id"`
	Bump        uint8    `json:"bump"`
	Creator     string   `json:"creator"`
	Authorities []string `json:"authorities"`
	Nonce       uint64   `json:"nonce"`
	SOL         string   `json:"sol"`
}

// WalletListResponse represents response for GET /wallet/by-creator
type WalletListResponse struct {
	Creator string                `json:"creator"`
	Wallets []SmartWalletResponse `json:"wallets"`
}
