package model

import (
	"github.com/shopspring/decimal"
)

// Account identifies a ledger account: an investor, a product admin, a
// treasury, a token account, or the vault's own custody account.
type Account string

// Product is one registered bond offering. All amount fields are integers at
// base units of their respective token, carried as decimals so conversions
// against 18-decimal quotes never overflow machine words.
type Product struct {
	ID              uint64  `json:"id"`
	UnderlyingAsset Account `json:"underlying_asset"`
	ShareAccount    Account `json:"share_account"`
	Admin           Account `json:"admin"`
	Treasury        Account `json:"treasury"`

	// Deposit window bounds, unix seconds, inclusive on both ends.
	StartTime int64 `json:"start_time"`
	EndTime   int64 `json:"end_time"`

	TotalShares         decimal.Decimal `json:"total_shares"`
	TotalDeposits       decimal.Decimal `json:"total_deposits"`
	AvailableRedemption decimal.Decimal `json:"available_redemption"`

	CurrentQuote    decimal.Decimal `json:"current_quote"`
	QuoteExpiration int64           `json:"quote_expiration"`
	QuotePeriod     int64           `json:"quote_period"`

	MinDeposit decimal.Decimal `json:"min_deposit"`

	Initialized bool `json:"initialized"`
	Stopped     bool `json:"stopped"`

	// Decimal precision of the underlying asset, captured at initialization.
	// Never exceeds LedgerPrecision.
	TokenDecimals uint8 `json:"token_decimals"`
}

// LedgerPrecision is the fixed internal precision all deposits are
// normalized to before share conversion.
const LedgerPrecision = 18

// PrecisionScale is 10^LedgerPrecision.
var PrecisionScale = decimal.New(1, LedgerPrecision)

// Matured reports whether the deposit window has closed at the given time.
func (p *Product) Matured(now int64) bool {
	return now > p.EndTime
}

// InWindow reports whether the given time falls inside the deposit window.
func (p *Product) InWindow(now int64) bool {
	return now >= p.StartTime && now <= p.EndTime
}

// LiveQuote returns the current quote if it has not expired at the given
// time, and zero otherwise. Zero means "no live price", never a valid price:
// zero quotes are rejected on write.
func (p *Product) LiveQuote(now int64) decimal.Decimal {
	if now <= p.QuoteExpiration {
		return p.CurrentQuote
	}
	return decimal.Zero
}

// ProductParams carries the operator-supplied fields for product
// registration. Counters, ids and the share account are assigned by the
// vault.
type ProductParams struct {
	Name            string          `json:"name"`
	Symbol          string          `json:"symbol"`
	UnderlyingAsset Account         `json:"underlying_asset"`
	Admin           Account         `json:"admin"`
	Treasury        Account         `json:"treasury"`
	StartTime       int64           `json:"start_time"`
	EndTime         int64           `json:"end_time"`
	QuotePeriod     int64           `json:"quote_period"`
	MinDeposit      decimal.Decimal `json:"min_deposit"`
}
