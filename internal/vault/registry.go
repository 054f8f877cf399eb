package vault

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bondvault/pkg/model"
)

// InitializeProduct registers a new product and returns its assigned id.
// Only the registry owner may call this. A share account is requested from
// the issuance service with the vault as its sole mint/burn authority.
func (v *Vault) InitializeProduct(ctx context.Context, caller model.Account, params model.ProductParams) (uint64, error) {
	if err := v.lockExclusive(); err != nil {
		return 0, err
	}
	defer v.unlockExclusive()

	if caller != v.owner {
		return 0, ErrNotOwner
	}
	if err := validateParams(params); err != nil {
		return 0, err
	}

	asset, err := v.tokens.Asset(params.UnderlyingAsset)
	if err != nil {
		return 0, fmt.Errorf("resolve underlying asset %q: %w", params.UnderlyingAsset, err)
	}
	decimals, err := asset.Decimals(ctx)
	if err != nil {
		return 0, fmt.Errorf("read decimals of %q: %w", params.UnderlyingAsset, err)
	}
	if decimals > model.LedgerPrecision {
		return 0, ErrDecimalsTooLarge
	}

	shareAccount, err := v.issuer.CreateAccount(ctx, params.Name, params.Symbol, v.account)
	if err != nil {
		return 0, fmt.Errorf("create share account: %w", err)
	}

	p := &model.Product{
		ID:                  uint64(len(v.products)),
		UnderlyingAsset:     params.UnderlyingAsset,
		ShareAccount:        shareAccount,
		Admin:               params.Admin,
		Treasury:            params.Treasury,
		StartTime:           params.StartTime,
		EndTime:             params.EndTime,
		TotalShares:         decimal.Zero,
		TotalDeposits:       decimal.Zero,
		AvailableRedemption: decimal.Zero,
		CurrentQuote:        decimal.Zero,
		QuotePeriod:         params.QuotePeriod,
		MinDeposit:          params.MinDeposit,
		Initialized:         true,
		TokenDecimals:       decimals,
	}
	v.products = append(v.products, p)

	v.logger.Info("vault.product_initialized",
		zap.Uint64("product_id", p.ID),
		zap.String("underlying", string(p.UnderlyingAsset)),
		zap.String("share_account", string(p.ShareAccount)),
		zap.Int64("start_time", p.StartTime),
		zap.Int64("end_time", p.EndTime))

	v.emit(model.LedgerEvent{
		Type:         model.EventProductInitialized,
		ProductID:    p.ID,
		Actor:        caller,
		ShareAccount: p.ShareAccount,
		StartTime:    p.StartTime,
		EndTime:      p.EndTime,
	}, p)

	return p.ID, nil
}

func validateParams(params model.ProductParams) error {
	if params.UnderlyingAsset == "" || params.Admin == "" || params.Treasury == "" {
		return ErrInvalidParams
	}
	if params.EndTime < params.StartTime || params.QuotePeriod <= 0 {
		return ErrInvalidParams
	}
	if params.MinDeposit.Sign() < 0 || !params.MinDeposit.IsInteger() {
		return ErrInvalidParams
	}
	return nil
}

// GetProduct returns a copy of the product record.
func (v *Vault) GetProduct(id uint64) (model.Product, error) {
	if err := v.lock(); err != nil {
		return model.Product{}, err
	}
	defer v.mu.Unlock()

	p, err := v.product(id)
	if err != nil {
		return model.Product{}, err
	}
	return *p, nil
}

// ListProducts returns copies of every registered product in id order.
func (v *Vault) ListProducts() ([]model.Product, error) {
	if err := v.lock(); err != nil {
		return nil, err
	}
	defer v.mu.Unlock()

	out := make([]model.Product, len(v.products))
	for i, p := range v.products {
		out[i] = *p
	}
	return out, nil
}

// Now returns the current ledger time. Exposed for the read surface so
// clients can interpret window and expiry fields consistently.
func (v *Vault) Now() int64 { return v.clock.Now() }

// Restore rehydrates the registry from persisted snapshots at boot. Products
// must be dense and in id order; calling Restore on a non-empty registry is
// an error.
func (v *Vault) Restore(products []model.Product) error {
	if err := v.lock(); err != nil {
		return err
	}
	defer v.mu.Unlock()

	if len(v.products) != 0 {
		return fmt.Errorf("restore on non-empty registry (%d products)", len(v.products))
	}
	for i, p := range products {
		if p.ID != uint64(i) {
			return fmt.Errorf("restore: snapshot %d carries id %d, registry ids must be dense", i, p.ID)
		}
		cp := p
		v.products = append(v.products, &cp)
	}
	return nil
}
