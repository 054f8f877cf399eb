package api

import "github.com/shopspring/decimal"

// ProductCreateRequest is the payload to register a new fixed-yield product.
type ProductCreateRequest struct {
	Name            string          `json:"name" example:"Bond 2027"`
	Symbol          string          `json:"symbol" example:"BND27"`
	UnderlyingAsset string          `json:"underlyingAsset" example:"usdc"`
	Admin           string          `json:"admin" example:"product-admin"`
	Treasury        string          `json:"treasury" example:"product-treasury"`
	StartTime       int64           `json:"startTime" example:"1735689600"`
	EndTime         int64           `json:"endTime" example:"1767225600"`
	QuotePeriod     int64           `json:"quotePeriod" example:"3600"`
	MinDeposit      decimal.Decimal `json:"minDeposit"`
}

// QuoteSetRequest reprices a product for the next quote window.
type QuoteSetRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// DepositRequest converts underlying tokens into shares at the quoted rate.
type DepositRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	ExpectedQuote decimal.Decimal `json:"expectedQuote"`
}

// RedemptionFundRequest moves the matured payout pool into custody.
type RedemptionFundRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// WithdrawRequest burns shares against the redemption pool.
type WithdrawRequest struct {
	Shares decimal.Decimal `json:"shares"`
}

// StopRequest halts or resumes deposits. Stopped is a pointer so an absent
// field is rejected instead of silently resuming.
type StopRequest struct {
	Stopped *bool `json:"stopped"`
}

// TreasuryRequest reroutes future deposits to a new treasury account.
type TreasuryRequest struct {
	Treasury string `json:"treasury"`
}

// AdminRequest hands product administration to a new account.
type AdminRequest struct {
	Admin string `json:"admin"`
}
