package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/practicum/wallet-ops/internal/gateway"
)

// RegisterWalletRoutes wires the wallet operation and balance endpoints.
func RegisterWalletRoutes(router fiber.Router, h *gateway.Handler) {
	router.Post("/wallet", h.ProcessOperation)
	router.Post("/wallets", h.CreateWallet)
	router.Get("/wallets/:walletId", h.GetBalance)
}
