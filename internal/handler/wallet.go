package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/AlexZinkM/smart-wallet/internal/client"
	"github.com/AlexZinkM/smart-wallet/internal/contract"
	"github.com/AlexZinkM/smart-wallet/internal/crypto"
	"github.com/AlexZinkM/smart-wallet/internal/model"
	"github.com/AlexZinkM/smart-wallet/solana"

	"go.uber.org/zap"
)

// PasswordFunc returns a copy of the keystore password. The handler zeroes it after use.
type PasswordFunc func() ([]byte, error)

// SmartWalletHandler serves the smart wallet HTTP API
type SmartWalletHandler struct {
	svc      *solana.Service
	password PasswordFunc
	log      *zap.Logger
}

// NewSmartWalletHandler creates a new SmartWalletHandler
func NewSmartWalletHandler(svc *solana.Service, password PasswordFunc, log *zap.Logger) (*SmartWalletHandler, error) {
	if svc == nil {
		return nil, errors.New("service is required")
	}
	if svc.FilePath() == "" {
		return nil, errors.New("KEY_FILE_PATH not set")
	}
	return &SmartWalletHandler{svc: svc, password: password, log: log}, nil
}

// GenerateKey handles POST /key/generate
// @Summary      Generate authority key
// @Description  Generates a new secp256r1 authority key and saves it to the .cwt keystore
// @Tags         key
// @Produce      json
// @Success      200  {object}  model.GenerateResponse
// @Failure      409  {object}  model.ErrorResponse
// @Router       /key/generate [post]
func (h *SmartWalletHandler) GenerateKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. should be POST", http.StatusMethodNotAllowed)
		return
	}

	// Get password as []byte, use it, then zero it immediately
	passwordBytes, err := h.password()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}
	defer clear(passwordBytes)

	pubkey, err := solana.GenerateKey(h.svc.FilePath(), passwordBytes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.GenerateResponse{
		Success: true,
		Message: "Key generated successfully",
		Pubkey:  pubkey,
	})
}

// InitWallet handles POST /wallet/init
// @Summary      Create smart wallet
// @Description  Creates the smart wallet with the given id, owned by the keystore key
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        request  body      model.InitRequest  true  "Wallet id"
// @Success      200      {object}  model.TxResponse
// @Failure      400      {object}  model.ErrorResponse
// @Router       /wallet/init [post]
func (h *SmartWalletHandler) InitWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}

	resp, err := h.svc.InitWallet(r.Context(), req.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetWallet handles GET /wallet
// @Summary      Get smart wallet
// @Description  Gets the state of the smart wallet with the given id
// @Tags         wallet
// @Produce      json
// @Param        id   query     int  true  "Wallet id"
// @Success      200  {object}  model.SmartWalletResponse
// @Failure      404  {object}  model.ErrorResponse
// @Router       /wallet [get]
func (h *SmartWalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}
	id, ok := walletID(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.WalletInfo(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// WalletsByCreator handles GET /wallet/by-creator
// @Summary      List wallets by creator
// @Description  Lists smart wallets created by a key. Defaults to the keystore key
// @Tags         wallet
// @Produce      json
// @Param        creator  query     string  false  "Compressed public key, hex or base64"
// @Success      200      {object}  model.WalletListResponse
// @Router       /wallet/by-creator [get]
func (h *SmartWalletHandler) WalletsByCreator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	resp, err := h.svc.WalletsByCreator(r.Context(), r.URL.Query().Get("creator"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetMessage handles GET /wallet/message
// @Summary      Next authorization message
// @Description  Returns the nonce and timestamp the next authorization of the wallet signs
// @Tags         wallet
// @Produce      json
// @Param        id   query     int  true  "Wallet id"
// @Success      200  {object}  model.MessageResponse
// @Router       /wallet/message [get]
func (h *SmartWalletHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}
	id, ok := walletID(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.Message(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Transfer handles POST /wallet/transfer
// @Summary      Transfer tokens
// @Description  Sends SPL tokens from the smart wallet's token account
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        request  body      model.TransferRequest  true  "Transfer data"
// @Success      200      {object}  model.TxResponse
// @Failure      400      {object}  model.ErrorResponse
// @Router       /wallet/transfer [post]
func (h *SmartWalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}

	passwordBytes, err := h.password()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}
	defer clear(passwordBytes)

	resp, err := h.svc.Transfer(r.Context(), passwordBytes, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// MemoRequest represents request for POST /wallet/memo
type MemoRequest struct {
	WalletID uint64 `json:"walletId"`
	Text     string `json:"text"`
}

// Memo handles POST /wallet/memo
// @Summary      Write memo
// @Description  Records a memo signed by the smart wallet
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        request  body      MemoRequest  true  "Memo"
// @Success      200      {object}  model.TxResponse
// @Failure      400      {object}  model.ErrorResponse
// @Router       /wallet/memo [post]
func (h *SmartWalletHandler) Memo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req MemoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}

	passwordBytes, err := h.password()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}
	defer clear(passwordBytes)

	resp, err := h.svc.Memo(r.Context(), passwordBytes, req.WalletID, req.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SignedMemo handles POST /wallet/memo/signed
// @Summary      Write memo with external signature
// @Description  Records a memo authorized by a signature made outside the keystore, e.g. by a passkey. Sign the bytes from GET /wallet/message
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        request  body      model.SignedMemoRequest  true  "Memo and authorization"
// @Success      200      {object}  model.TxResponse
// @Failure      400      {object}  model.ErrorResponse
// @Router       /wallet/memo/signed [post]
func (h *SmartWalletHandler) SignedMemo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.SignedMemoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}

	resp, err := h.svc.MemoSigned(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddAuthorities handles POST /wallet/authorities
// @Summary      Add authorities
// @Description  Adds secp256r1 keys allowed to authorize operations of the wallet
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        request  body      model.AddAuthorityRequest  true  "Keys to add"
// @Success      200      {object}  model.TxResponse
// @Failure      400      {object}  model.ErrorResponse
// @Router       /wallet/authorities [post]
func (h *SmartWalletHandler) AddAuthorities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.AddAuthorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}

	passwordBytes, err := h.password()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}
	defer clear(passwordBytes)

	resp, err := h.svc.AddAuthorities(r.Context(), passwordBytes, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func walletID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid wallet id"})
		return 0, false
	}
	return id, true
}

// writeError maps service errors to HTTP statuses.
func (h *SmartWalletHandler) writeError(w http.ResponseWriter, err error) {
	resp := model.ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	if e, ok := contract.CodeOf(err); ok {
		status = http.StatusBadRequest
		resp.Code = e.Name
	} else {
		switch {
		case errors.Is(err, client.ErrWalletNotFound):
			status = http.StatusNotFound
		case errors.Is(err, crypto.ErrFileExists):
			status = http.StatusConflict
		case errors.Is(err, crypto.ErrInvalidPassword):
			status = http.StatusUnauthorized
		case errors.Is(err, solana.ErrInvalidAuthorization):
			status = http.StatusBadRequest
		}
	}

	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
	} else {
		h.log.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
