package api

import (
	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/bondvault/pkg/model"
)

// ProductCreateResponse carries the id and share account of a new product.
type ProductCreateResponse struct {
	ProductID    uint64 `json:"productId"`
	ShareAccount string `json:"shareAccount"`
}

// QuoteResponse is the live-or-zero quote read surface.
type QuoteResponse struct {
	ProductID uint64          `json:"productId"`
	Quote     decimal.Decimal `json:"quote"`
	Live      bool            `json:"live"`
	ExpiresAt int64           `json:"expiresAt,omitempty"`
}

// DepositResponse reports the shares minted for a deposit.
type DepositResponse struct {
	ProductID uint64          `json:"productId"`
	Amount    decimal.Decimal `json:"amount"`
	Shares    decimal.Decimal `json:"shares"`
}

// WithdrawResponse reports the payout for a share redemption.
type WithdrawResponse struct {
	ProductID uint64          `json:"productId"`
	Shares    decimal.Decimal `json:"shares"`
	Payout    decimal.Decimal `json:"payout"`
}

// ProductResponse is the public product snapshot.
type ProductResponse struct {
	model.Product
	Matured bool `json:"matured"`
}

func toProductResponse(p model.Product, now int64) ProductResponse {
	return ProductResponse{Product: p, Matured: p.Matured(now)}
}
