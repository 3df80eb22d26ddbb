package api

import (
	"net/http"

	_ "github.com/AlexZinkM/smart-wallet/docs"
	"github.com/AlexZinkM/smart-wallet/internal/handler"

	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRouter sets up router with handlers
func SetupRouter(h *handler.SmartWalletHandler) http.Handler {
	mux := http.NewServeMux()

	// Swagger UI
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	mux.HandleFunc("/key/generate", h.GenerateKey)

	// Smart wallet endpoints
	mux.HandleFunc("/wallet", h.GetWallet)
	mux.HandleFunc("/wallet/init", h.InitWallet)
	mux.HandleFunc("/wallet/by-creator", h.WalletsByCreator)
	mux.HandleFunc("/wallet/message", h.GetMessage)
	mux.HandleFunc("/wallet/transfer", h.Transfer)
	mux.HandleFunc("/wallet/memo", h.Memo)
	mux.HandleFunc("/wallet/memo/signed", h.SignedMemo)
	mux.HandleFunc("/wallet/authorities", h.AddAuthorities)

	return mux
}
