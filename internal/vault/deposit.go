package vault

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bondvault/internal/token"
	"github.com/Checker-Finance/bondvault/pkg/model"
)

// Deposit converts amount of the underlying asset into freshly minted shares
// at the current quote and returns the minted share amount.
//
// The asset moves caller -> treasury, shares mint to the caller, and the
// running totals advance, all as one atomic step: a failed transfer aborts
// with no state change. expectedQuote must equal the live quote exactly,
// which closes the front-run window on a repriced or stale quote.
func (v *Vault) Deposit(ctx context.Context, caller model.Account, id uint64, amount, expectedQuote decimal.Decimal) (decimal.Decimal, error) {
	if err := v.lockExclusive(); err != nil {
		return decimal.Zero, err
	}
	defer v.unlockExclusive()

	p, err := v.product(id)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.Sign() <= 0 || !amount.IsInteger() {
		return decimal.Zero, ErrInvalidAmount
	}
	if p.Stopped {
		return decimal.Zero, ErrProductStopped
	}
	now := v.clock.Now()
	if !p.InWindow(now) {
		return decimal.Zero, ErrOutsideWindow
	}
	if amount.LessThan(p.MinDeposit) {
		return decimal.Zero, ErrBelowMinDeposit
	}
	if !expectedQuote.Equal(p.CurrentQuote) || p.CurrentQuote.IsZero() {
		return decimal.Zero, ErrQuoteMismatch
	}
	if now > p.QuoteExpiration {
		return decimal.Zero, ErrQuoteExpired
	}

	// Normalize to 18-decimal precision, then price. Integer division
	// truncates toward zero: the investor never receives more shares than
	// the exact price implies.
	adjusted := amount.Mul(decimal.New(1, int32(model.LedgerPrecision-p.TokenDecimals)))
	shares, _ := adjusted.Mul(p.CurrentQuote).QuoRem(model.PrecisionScale, 0)

	asset, err := v.tokens.Asset(p.UnderlyingAsset)
	if err != nil {
		return decimal.Zero, fmt.Errorf("resolve underlying asset: %w", err)
	}

	// Mint before moving the deposit. The vault holds burn authority over
	// its own share token, so a failed asset transfer can always be unwound;
	// funds stranded at the treasury could not.
	var shareTok token.Shares
	if shares.Sign() > 0 {
		shareTok, err = v.tokens.Shares(p.ShareAccount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("resolve share account: %w", err)
		}
		if err := shareTok.Mint(ctx, v.account, caller, shares); err != nil {
			return decimal.Zero, fmt.Errorf("mint shares: %w", err)
		}
	}

	if err := asset.Transfer(ctx, caller, p.Treasury, amount); err != nil {
		if shareTok != nil {
			if berr := shareTok.Burn(ctx, v.account, caller, shares); berr != nil {
				v.logger.Error("vault.deposit.unwind_failed",
					zap.Uint64("product_id", id),
					zap.String("caller", string(caller)),
					zap.String("shares", shares.String()),
					zap.Error(berr))
			}
		}
		v.logger.Warn("vault.deposit.transfer_failed",
			zap.Uint64("product_id", id),
			zap.String("caller", string(caller)),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return decimal.Zero, fmt.Errorf("underlying asset transfer: %w", err)
	}

	p.TotalShares = p.TotalShares.Add(shares)
	p.TotalDeposits = p.TotalDeposits.Add(amount)

	v.logger.Info("vault.deposit",
		zap.Uint64("product_id", id),
		zap.String("caller", string(caller)),
		zap.String("amount", amount.String()),
		zap.String("shares", shares.String()))

	v.emit(model.LedgerEvent{
		Type:      model.EventDeposit,
		ProductID: id,
		Actor:     caller,
		Amount:    amount,
		Shares:    shares,
		Quote:     p.CurrentQuote,
	}, p)
	if shares.Sign() > 0 {
		v.emit(model.LedgerEvent{
			Type:      model.EventSharesMinted,
			ProductID: id,
			Account:   caller,
			Shares:    shares,
		}, p)
	}

	return shares, nil
}
