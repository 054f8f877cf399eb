package api

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bondvault/internal/auth"
	"github.com/Checker-Finance/bondvault/internal/metrics"
	"github.com/Checker-Finance/bondvault/internal/vault"
	"github.com/Checker-Finance/bondvault/pkg/model"
)

// VaultService is the slice of the vault the HTTP surface drives.
type VaultService interface {
	InitializeProduct(ctx context.Context, caller model.Account, params model.ProductParams) (uint64, error)
	SetQuote(caller model.Account, id uint64, amount decimal.Decimal) error
	ReadQuote(id uint64) (decimal.Decimal, error)
	Deposit(ctx context.Context, caller model.Account, id uint64, amount, expectedQuote decimal.Decimal) (decimal.Decimal, error)
	SetTotalRedemption(ctx context.Context, caller model.Account, id uint64, amount decimal.Decimal) error
	Withdraw(ctx context.Context, caller model.Account, id uint64, shareAmount decimal.Decimal) (decimal.Decimal, error)
	SetContractStopped(caller model.Account, id uint64, stopped bool) error
	SetTreasury(caller model.Account, id uint64, treasury model.Account) error
	SetAdmin(caller model.Account, id uint64, admin model.Account) error
	GetProduct(id uint64) (model.Product, error)
	ListProducts() ([]model.Product, error)
	Now() int64
}

// VaultHandler handles HTTP API requests for vault operations.
type VaultHandler struct {
	logger   *zap.Logger
	service  VaultService
	resolver auth.Resolver
}

// NewVaultHandler creates a new VaultHandler.
func NewVaultHandler(logger *zap.Logger, service VaultService, resolver auth.Resolver) *VaultHandler {
	return &VaultHandler{
		logger:   logger,
		service:  service,
		resolver: resolver,
	}
}

const identityKey = "identity"

// Authenticate resolves the caller identity from the X-Client-ID and
// X-API-Key headers. The vault re-checks owner/admin rights itself; this
// middleware only establishes who is calling.
func (h *VaultHandler) Authenticate(c *fiber.Ctx) error {
	clientID := c.Get("X-Client-ID")
	apiKey := c.Get("X-API-Key")
	if clientID == "" || apiKey == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing X-Client-ID or X-API-Key header"})
	}

	id, err := h.resolver.Authenticate(c.Context(), clientID, apiKey)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid client credentials"})
		}
		h.logger.Error("api.auth_resolve_failed",
			zap.String("client", clientID),
			zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "identity resolution unavailable"})
	}

	c.Locals(identityKey, id)
	return c.Next()
}

func caller(c *fiber.Ctx) model.Account {
	if id, ok := c.Locals(identityKey).(auth.Identity); ok {
		return id.Account
	}
	return ""
}

// statusForError maps vault rejections onto HTTP statuses. Authorization
// failures are 403, unknown products 404, lifecycle and guard rejections 409,
// everything else is a 400.
func statusForError(err error) int {
	switch {
	case errors.Is(err, vault.ErrNotOwner), errors.Is(err, vault.ErrNotAdmin):
		return fiber.StatusForbidden
	case errors.Is(err, vault.ErrProductNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, vault.ErrProductStopped),
		errors.Is(err, vault.ErrOutsideWindow),
		errors.Is(err, vault.ErrNotMatured),
		errors.Is(err, vault.ErrRedemptionFunded),
		errors.Is(err, vault.ErrRedemptionNotFunded),
		errors.Is(err, vault.ErrQuoteLive),
		errors.Is(err, vault.ErrQuoteMismatch),
		errors.Is(err, vault.ErrQuoteExpired),
		errors.Is(err, vault.ErrReentrantCall):
		return fiber.StatusConflict
	default:
		return fiber.StatusBadRequest
	}
}

func (h *VaultHandler) fail(c *fiber.Ctx, op string, err error) error {
	metrics.IncVaultOp(op, "error")
	return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
}

func productID(c *fiber.Ctx) (uint64, error) {
	return strconv.ParseUint(c.Params("id"), 10, 64)
}

// CreateProductHandler registers a new fixed-yield product.
func (h *VaultHandler) CreateProductHandler(c *fiber.Ctx) error {
	start := time.Now()
	defer metrics.ObserveDuration(metrics.VaultOpDuration, start, "initialize_product")

	var req ProductCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	id, err := h.service.InitializeProduct(c.Context(), caller(c), model.ProductParams{
		Name:            req.Name,
		Symbol:          req.Symbol,
		UnderlyingAsset: model.Account(req.UnderlyingAsset),
		Admin:           model.Account(req.Admin),
		Treasury:        model.Account(req.Treasury),
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		QuotePeriod:     req.QuotePeriod,
		MinDeposit:      req.MinDeposit,
	})
	if err != nil {
		h.logger.Error("api.create_product.failed",
			zap.String("symbol", req.Symbol),
			zap.Error(err))
		return h.fail(c, "initialize_product", err)
	}

	p, err := h.service.GetProduct(id)
	if err != nil {
		return h.fail(c, "initialize_product", err)
	}

	if products, err := h.service.ListProducts(); err == nil {
		metrics.ProductsRegistered.Set(float64(len(products)))
	}
	metrics.IncVaultOp("initialize_product", "ok")

	return c.Status(fiber.StatusCreated).JSON(ProductCreateResponse{
		ProductID:    id,
		ShareAccount: string(p.ShareAccount),
	})
}

// ListProductsHandler returns all product snapshots.
func (h *VaultHandler) ListProductsHandler(c *fiber.Ctx) error {
	products, err := h.service.ListProducts()
	if err != nil {
		return h.fail(c, "list_products", err)
	}

	now := h.service.Now()
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p, now))
	}
	return c.JSON(out)
}

// GetProductHandler returns a single product snapshot.
func (h *VaultHandler) GetProductHandler(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	p, err := h.service.GetProduct(id)
	if err != nil {
		return h.fail(c, "get_product", err)
	}
	return c.JSON(toProductResponse(p, h.service.Now()))
}

// GetQuoteHandler returns the live quote, or zero once it has expired.
func (h *VaultHandler) GetQuoteHandler(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	quote, err := h.service.ReadQuote(id)
	if err != nil {
		return h.fail(c, "read_quote", err)
	}

	resp := QuoteResponse{ProductID: id, Quote: quote, Live: !quote.IsZero()}
	if resp.Live {
		if p, err := h.service.GetProduct(id); err == nil {
			resp.ExpiresAt = p.QuoteExpiration
		}
	}
	return c.JSON(resp)
}

// SetQuoteHandler reprices a product for the next quote window.
func (h *VaultHandler) SetQuoteHandler(c *fiber.Ctx) error {
	start := time.Now()
	defer metrics.ObserveDuration(metrics.VaultOpDuration, start, "set_quote")

	id, err := productID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	var req QuoteSetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.service.SetQuote(caller(c), id, req.Amount); err != nil {
		h.logger.Error("api.set_quote.failed",
			zap.Uint64("product_id", id),
			zap.Error(err))
		return h.fail(c, "set_quote", err)
	}

	metrics.IncVaultOp("set_quote", "ok")
	return c.SendStatus(fiber.StatusNoContent)
}

// DepositHandler converts underlying tokens into shares.
func (h *VaultHandler) DepositHandler(c *fiber.Ctx) error {
	start := time.Now()
	defer metrics.ObserveDuration(metrics.VaultOpDuration, start, "deposit")

	id, err := productID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	shares, err := h.service.Deposit(c.Context(), caller(c), id, req.Amount, req.ExpectedQuote)
	if err != nil {
		h.logger.Error("api.deposit.failed",
			zap.Uint64("product_id", id),
			zap.String("amount", req.Amount.String()),
			zap.Error(err))
		return h.fail(c, "deposit", err)
	}

	metrics.IncVaultOp("deposit", "ok")
	return c.Status(fiber.StatusCreated).JSON(DepositResponse{
		ProductID: id,
		Amount:    req.Amount,
		Shares:    shares,
	})
}

// FundRedemptionHandler moves the matured payout pool into custody.
func (h *VaultHandler) FundRedemptionHandler(c *fiber.Ctx) error {
	start := time.Now()
	defer metrics.ObserveDuration(metrics.VaultOpDuration, start, "fund_redemption")

	id, err := productID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	var req RedemptionFundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.service.SetTotalRedemption(c.Context(), caller(c), id, req.Amount); err != nil {
		h.logger.Error("api.fund_redemption.failed",
			zap.Uint64("product_id", id),
			zap.Error(err))
		return h.fail(c, "fund_redemption", err)
	}

	metrics.IncVaultOp("fund_redemption", "ok")
	return c.SendStatus(fiber.StatusNoContent)
}

// WithdrawHandler burns shares against the redemption pool.
func (h *VaultHandler) WithdrawHandler(c *fiber.Ctx) error {
	start := time.Now()
	defer metrics.ObserveDuration(metrics.VaultOpDuration, start, "withdraw")

	id, err := productID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	var req WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	payout, err := h.service.Withdraw(c.Context(), caller(c), id, req.Shares)
	if err != nil {
		h.logger.Error("api.withdraw.failed",
			zap.Uint64("product_id", id),
			zap.String("shares", req.Shares.String()),
			zap.Error(err))
		return h.fail(c, "withdraw", err)
	}

	metrics.IncVaultOp("withdraw", "ok")
	return c.JSON(WithdrawResponse{
		ProductID: id,
		Shares:    req.Shares,
		Payout:    payout,
	})
}

// StopHandler halts or resumes deposits for a product.
func (h *VaultHandler) StopHandler(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	var req StopRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.service.SetContractStopped(caller(c), id, *req.Stopped); err != nil {
		return h.fail(c, "set_stopped", err)
	}

	metrics.IncVaultOp("set_stopped", "ok")
	return c.SendStatus(fiber.StatusNoContent)
}

// SetTreasuryHandler reroutes future deposits to a new treasury account.
func (h *VaultHandler) SetTreasuryHandler(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	var req TreasuryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.service.SetTreasury(caller(c), id, model.Account(req.Treasury)); err != nil {
		return h.fail(c, "set_treasury", err)
	}

	metrics.IncVaultOp("set_treasury", "ok")
	return c.SendStatus(fiber.StatusNoContent)
}

// SetAdminHandler hands product administration to a new account.
func (h *VaultHandler) SetAdminHandler(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	var req AdminRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.service.SetAdmin(caller(c), id, model.Account(req.Admin)); err != nil {
		return h.fail(c, "set_admin", err)
	}

	metrics.IncVaultOp("set_admin", "ok")
	return c.SendStatus(fiber.StatusNoContent)
}
