package model

// InitRequest represents request for POST /wallet/init
type InitRequest struct {
	ID uint64 `json:"id"`
}

// TransferRequest represents request for POST /wallet/transfer.
// The token moves from the smart wallet's associated token account.
type TransferRequest struct {
	WalletID  uint64 `json:"walletId"`
	Mint      string `json:"mint" binding:"required"`
	ToAddress string `json:"toAddress" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Decimals  uint8  `json:"decimals"`
}

// AddAuthorityRequest represents request for POST /wallet/authorities
type AddAuthorityRequest struct {
	WalletID uint64   `json:"walletId"`
	Pubkeys  []string `json:"pubkeys" binding:"required"`
}

// SignedMemoRequest represents request for POST /wallet/memo/signed.
// The authorization is produced outside the keystore, e.g. by a passkey:
// Signature covers the 16 Message bytes returned by GET /wallet/message.
type SignedMemoRequest struct {
	WalletID  uint64 `json:"walletId"`
	Text      string `json:"text" binding:"required"`
	Pubkey    string `json:"pubkey" binding:"required"`    // compressed key, hex or base64
	Message   string `json:"message" binding:"required"`   // hex
	Signature string `json:"signature" binding:"required"` // r||s, hex or base64
}

// TxResponse represents response for operations that send a transaction
type TxResponse struct {
	TxID   string `json:"txId"`
	Wallet string `json:"wallet"`
}

// MessageResponse represents response for GET /wallet/message
type MessageResponse struct {
	Nonce     uint64 `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
	Bytes     string `json:"bytes"` // hex of the 16 signed bytes
}
