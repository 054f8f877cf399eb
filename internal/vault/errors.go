package vault

import "errors"

// Every failure surfaces as one of these named conditions so callers and
// tests can assert on cause with errors.Is. Nothing is retried internally and
// nothing is clamped: out-of-range inputs reject, never saturate.
var (
	// Authorization.
	ErrNotOwner = errors.New("vault: caller is not the registry owner")
	ErrNotAdmin = errors.New("vault: caller is not the product admin")

	// Existence.
	ErrProductNotFound = errors.New("vault: product not found")

	// Lifecycle.
	ErrProductStopped      = errors.New("vault: product is stopped")
	ErrOutsideWindow       = errors.New("vault: outside deposit window")
	ErrNotMatured          = errors.New("vault: product has not matured")
	ErrRedemptionFunded    = errors.New("vault: redemption pool already funded")
	ErrRedemptionNotFunded = errors.New("vault: redemption pool not funded")

	// Validation.
	ErrInvalidQuote     = errors.New("vault: quote must be a positive integer")
	ErrQuoteLive        = errors.New("vault: live quote cannot be overwritten before expiry")
	ErrQuoteMismatch    = errors.New("vault: expected quote does not match current quote")
	ErrQuoteExpired     = errors.New("vault: quote has expired")
	ErrBelowMinDeposit  = errors.New("vault: deposit below minimum")
	ErrDecimalsTooLarge = errors.New("vault: token decimals exceed ledger precision")
	ErrInvalidAmount    = errors.New("vault: amount must be a positive integer")
	ErrInvalidParams    = errors.New("vault: invalid product parameters")

	// Arithmetic / state.
	ErrNoShares           = errors.New("vault: no shares outstanding")
	ErrInsufficientShares = errors.New("vault: share amount exceeds outstanding supply")

	// Guard.
	ErrReentrantCall = errors.New("vault: reentrant call rejected")
)
