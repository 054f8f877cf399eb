package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Checker-Finance/bondvault/internal/store"
)

func RegisterRoutes(app *fiber.App, nc *nats.Conn, st store.Store, handler *VaultHandler) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"nats":  "ok",
			"store": "ok",
		}
		status := "ok"
		code := fiber.StatusOK

		if nc == nil || !nc.IsConnected() {
			checks["nats"] = "disconnected"
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		} else if err := nc.FlushTimeout(1 * time.Second); err != nil {
			checks["nats"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.HealthCheck(healthCtx); err != nil {
			checks["store"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	// Public read surface
	v1 := app.Group("/api/v1")
	v1.Get("/products", handler.ListProductsHandler)
	v1.Get("/products/:id", handler.GetProductHandler)
	v1.Get("/products/:id/quote", handler.GetQuoteHandler)

	// Authenticated write surface. The vault enforces owner/admin rights; the
	// middleware only resolves which account is calling.
	writes := v1.Group("/", handler.Authenticate)
	writes.Post("/products", handler.CreateProductHandler)
	writes.Post("/products/:id/quote", handler.SetQuoteHandler)
	writes.Post("/products/:id/deposits", handler.DepositHandler)
	writes.Post("/products/:id/redemption", handler.FundRedemptionHandler)
	writes.Post("/products/:id/withdrawals", handler.WithdrawHandler)
	writes.Post("/products/:id/stop", handler.StopHandler)
	writes.Post("/products/:id/treasury", handler.SetTreasuryHandler)
	writes.Post("/products/:id/admin", handler.SetAdminHandler)
}
