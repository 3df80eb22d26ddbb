package model

// GenerateResponse represents response for POST /key/generate
type GenerateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Pubkey  string `json:"pubkey,omitempty"`
}
