package vault

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bondvault/pkg/model"
)

// SetQuote stores a new price for the product and stamps its expiration at
// now + quotePeriod. A live (nonzero, unexpired) quote cannot be overwritten:
// the admin may not reprice against investors who already saw the old quote.
func (v *Vault) SetQuote(caller model.Account, id uint64, amount decimal.Decimal) error {
	if err := v.lock(); err != nil {
		return err
	}
	defer v.mu.Unlock()

	p, err := v.product(id)
	if err != nil {
		return err
	}
	if caller != p.Admin {
		return ErrNotAdmin
	}
	if amount.Sign() <= 0 || !amount.IsInteger() {
		return ErrInvalidQuote
	}

	now := v.clock.Now()
	if !p.CurrentQuote.IsZero() && now <= p.QuoteExpiration {
		return ErrQuoteLive
	}

	p.CurrentQuote = amount
	p.QuoteExpiration = now + p.QuotePeriod

	v.logger.Info("vault.quote_set",
		zap.Uint64("product_id", id),
		zap.String("quote", amount.String()),
		zap.Int64("expires_at", p.QuoteExpiration))

	v.emit(model.LedgerEvent{
		Type:            model.EventQuoteSet,
		ProductID:       id,
		Actor:           caller,
		Quote:           amount,
		QuoteExpiration: p.QuoteExpiration,
	}, p)

	return nil
}

// ReadQuote returns the product's live quote, or zero once it has expired.
// Zero means "no live price"; it is never a valid price since zero quotes
// are rejected on write.
func (v *Vault) ReadQuote(id uint64) (decimal.Decimal, error) {
	if err := v.lock(); err != nil {
		return decimal.Zero, err
	}
	defer v.mu.Unlock()

	p, err := v.product(id)
	if err != nil {
		return decimal.Zero, err
	}
	return p.LiveQuote(v.clock.Now()), nil
}
