package vault

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bondvault/internal/token"
	"github.com/Checker-Finance/bondvault/pkg/model"
)

// SetTotalRedemption funds the product's redemption pool. Admin-only, only
// after maturity, and exactly once: the pool can only be set while it is
// zero. The amount is pulled from the admin into the vault's own custody.
//
// The amount is deliberately unchecked against TotalDeposits or any implied
// yield; the admin is trusted to fund terms consistently.
func (v *Vault) SetTotalRedemption(ctx context.Context, caller model.Account, id uint64, amount decimal.Decimal) error {
	if err := v.lockExclusive(); err != nil {
		return err
	}
	defer v.unlockExclusive()

	p, err := v.product(id)
	if err != nil {
		return err
	}
	if caller != p.Admin {
		return ErrNotAdmin
	}
	if amount.Sign() <= 0 || !amount.IsInteger() {
		return ErrInvalidAmount
	}
	if !p.Matured(v.clock.Now()) {
		return ErrNotMatured
	}
	if !p.AvailableRedemption.IsZero() {
		return ErrRedemptionFunded
	}

	asset, err := v.tokens.Asset(p.UnderlyingAsset)
	if err != nil {
		return fmt.Errorf("resolve underlying asset: %w", err)
	}
	if err := asset.Transfer(ctx, caller, v.account, amount); err != nil {
		return fmt.Errorf("pull redemption funding: %w", err)
	}

	p.AvailableRedemption = amount

	v.logger.Info("vault.redemption_funded",
		zap.Uint64("product_id", id),
		zap.String("amount", amount.String()))

	v.emit(model.LedgerEvent{
		Type:      model.EventRedemptionFunded,
		ProductID: id,
		Actor:     caller,
		Amount:    amount,
	}, p)

	return nil
}

// Withdraw exchanges shareAmount of the caller's shares for a pro-rata slice
// of the redemption pool. Available to any shareholder after maturity, even
// while the product is stopped: redemption rights survive an operator pause.
//
// The payout ratio uses the share supply before this redemption's shares are
// removed. Shares transfer in, the payout goes out, and only then are the
// shares burned and the totals advanced, so a failure at any step hands the
// caller's shares back. Truncating division means the residual rounding loss
// stays inside the pool, bounded by one unit per call.
func (v *Vault) Withdraw(ctx context.Context, caller model.Account, id uint64, shareAmount decimal.Decimal) (decimal.Decimal, error) {
	if err := v.lockExclusive(); err != nil {
		return decimal.Zero, err
	}
	defer v.unlockExclusive()

	p, err := v.product(id)
	if err != nil {
		return decimal.Zero, err
	}
	if shareAmount.Sign() <= 0 || !shareAmount.IsInteger() {
		return decimal.Zero, ErrInvalidAmount
	}
	if !p.Matured(v.clock.Now()) {
		return decimal.Zero, ErrNotMatured
	}
	if p.AvailableRedemption.Sign() <= 0 {
		return decimal.Zero, ErrRedemptionNotFunded
	}
	if p.TotalShares.Sign() <= 0 {
		return decimal.Zero, ErrNoShares
	}
	if shareAmount.GreaterThan(p.TotalShares) {
		return decimal.Zero, ErrInsufficientShares
	}

	shareTok, err := v.tokens.Shares(p.ShareAccount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("resolve share account: %w", err)
	}
	asset, err := v.tokens.Asset(p.UnderlyingAsset)
	if err != nil {
		return decimal.Zero, fmt.Errorf("resolve underlying asset: %w", err)
	}

	// Pull the shares in first; an insufficient share balance aborts before
	// any bookkeeping.
	if err := shareTok.Transfer(ctx, caller, v.account, shareAmount); err != nil {
		return decimal.Zero, fmt.Errorf("share transfer: %w", err)
	}

	payout, _ := p.AvailableRedemption.Mul(shareAmount).QuoRem(p.TotalShares, 0)

	// Deliver the payout while the shares sit intact at custody. The burn is
	// the only irreversible token call, so it goes last; any failure before
	// the totals advance unwinds to the pre-call balances.
	if payout.Sign() > 0 {
		if err := asset.Transfer(ctx, v.account, caller, payout); err != nil {
			v.returnShares(ctx, shareTok, caller, id, shareAmount)
			return decimal.Zero, fmt.Errorf("payout transfer: %w", err)
		}
	}

	if err := shareTok.Burn(ctx, v.account, v.account, shareAmount); err != nil {
		if payout.Sign() > 0 {
			if rerr := asset.Transfer(ctx, caller, v.account, payout); rerr != nil {
				v.logger.Error("vault.withdraw.unwind_failed",
					zap.Uint64("product_id", id),
					zap.String("caller", string(caller)),
					zap.String("payout", payout.String()),
					zap.Error(rerr))
			}
		}
		v.returnShares(ctx, shareTok, caller, id, shareAmount)
		return decimal.Zero, fmt.Errorf("burn shares: %w", err)
	}

	p.TotalShares = p.TotalShares.Sub(shareAmount)
	p.AvailableRedemption = p.AvailableRedemption.Sub(payout)

	v.logger.Info("vault.withdrawal",
		zap.Uint64("product_id", id),
		zap.String("caller", string(caller)),
		zap.String("shares", shareAmount.String()),
		zap.String("payout", payout.String()))

	v.emit(model.LedgerEvent{
		Type:      model.EventSharesBurned,
		ProductID: id,
		Account:   caller,
		Shares:    shareAmount,
	}, p)
	v.emit(model.LedgerEvent{
		Type:      model.EventWithdrawal,
		ProductID: id,
		Actor:     caller,
		Amount:    payout,
		Shares:    shareAmount,
	}, p)

	return payout, nil
}

// returnShares hands shares pulled into custody back to the caller after a
// later step in the same withdrawal failed.
func (v *Vault) returnShares(ctx context.Context, shareTok token.Shares, to model.Account, id uint64, amount decimal.Decimal) {
	if err := shareTok.Transfer(ctx, v.account, to, amount); err != nil {
		v.logger.Error("vault.withdraw.share_return_failed",
			zap.Uint64("product_id", id),
			zap.String("account", string(to)),
			zap.String("shares", amount.String()),
			zap.Error(err))
	}
}
