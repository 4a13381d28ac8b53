package gateway

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/practicum/wallet-ops/internal/wallet"
)

// Handler exposes the gateway HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a gateway HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type operationRequest struct {
	WalletID string `json:"wallet_id"`
	Type     string `json:"operation_type"`
	Amount   int64  `json:"amount"`
	TrackID  string `json:"operation_track_id"`
}

type operationResponse struct {
	WalletID string `json:"wallet_id"`
	Amount   int64  `json:"amount"`
	Status   string `json:"status"`
}

// ProcessOperation admits a deposit or withdrawal. Accepted maps to 202:
// the balance mutation happens asynchronously in the ledger updater.
func (h *Handler) ProcessOperation(c *fiber.Ctx) error {
	var req operationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Submit(c.UserContext(), SubmitInput{
		WalletID: req.WalletID,
		Type:     wallet.OperationType(req.Type),
		Amount:   req.Amount,
		TrackID:  req.TrackID,
	})
	if err != nil {
		if errors.Is(err, ErrPublish) {
			return fiber.NewError(http.StatusServiceUnavailable, "operation could not be accepted")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	switch result.Outcome {
	case Accepted:
		return c.Status(http.StatusAccepted).JSON(operationResponse{
			WalletID: result.WalletID, Amount: result.Amount, Status: "SUCCESS",
		})
	case Denied:
		return c.Status(http.StatusUnprocessableEntity).JSON(operationResponse{
			WalletID: result.WalletID, Amount: result.Amount, Status: "DENIED",
		})
	default:
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	}
}

// GetBalance returns the wallet balance from the cache-aside read path.
func (h *Handler) GetBalance(c *fiber.Ctx) error {
	balance, err := h.service.GetBalance(c.UserContext(), c.Params("walletId"))
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"balance":  balance.Amount,
		"currency": balance.Currency,
	})
}

type createRequest struct {
	Currency       string `json:"currency"`
	InitialBalance int64  `json:"initial_balance"`
}

// CreateWallet provisions a wallet.
func (h *Handler) CreateWallet(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	w, err := h.service.CreateWallet(c.UserContext(), CreateInput{
		Currency:       req.Currency,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"wallet_id": w.ID,
		"balance":   w.Balance,
		"currency":  w.Currency,
	})
}
