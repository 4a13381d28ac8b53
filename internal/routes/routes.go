package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/practicum/wallet-ops/internal/cache"
	"github.com/practicum/wallet-ops/internal/event"
	"github.com/practicum/wallet-ops/internal/gateway"
	"github.com/practicum/wallet-ops/internal/middleware"
	"github.com/practicum/wallet-ops/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Store     wallet.Store
	Cache     cache.BalanceCache
	Publisher event.Publisher
	Logger    *slog.Logger
}

// Setup configures middlewares and all application routes. Component wiring
// is explicit constructor composition; nothing here depends on a framework
// object graph.
func Setup(app *fiber.App, d Deps) {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app)

	gatewaySvc := gateway.NewService(d.Store, d.Cache, d.Publisher, d.Logger)
	gatewayHandler := gateway.NewHandler(gatewaySvc)

	api := app.Group("/api/v1")
	RegisterWalletRoutes(api, gatewayHandler)
}
