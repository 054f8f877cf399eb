// Package token defines the external token collaborators the vault depends
// on: the underlying fungible asset, the per-product share token, and the
// issuance service that creates share accounts. The vault never assumes more
// than these interfaces; an in-memory implementation backs local deployments
// and tests.
package token

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/bondvault/pkg/model"
)

var (
	ErrUnknownToken        = errors.New("token: unknown token account")
	ErrNotTokenOwner       = errors.New("token: caller is not the token owner")
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrInvalidAmount       = errors.New("token: amount must be a positive integer")
)

// Asset is the standard fungible-token surface for the underlying asset.
type Asset interface {
	// Decimals returns the token's decimal precision.
	Decimals(ctx context.Context) (uint8, error)

	// Transfer moves amount from one account to another.
	Transfer(ctx context.Context, from, to model.Account, amount decimal.Decimal) error

	// BalanceOf returns the balance of the given account.
	BalanceOf(ctx context.Context, account model.Account) (decimal.Decimal, error)
}

// Shares is the mintable/burnable share token bound to one product.
// Mint and Burn are restricted to the owner recorded at creation; the owner
// identity is compared against caller on every privileged call.
type Shares interface {
	Mint(ctx context.Context, caller, to model.Account, amount decimal.Decimal) error
	Burn(ctx context.Context, caller, from model.Account, amount decimal.Decimal) error
	Transfer(ctx context.Context, from, to model.Account, amount decimal.Decimal) error
	BalanceOf(ctx context.Context, account model.Account) (decimal.Decimal, error)
	TotalSupply(ctx context.Context) (decimal.Decimal, error)
}

// Issuer creates share-token accounts. The returned account's mint/burn
// authority is bound to owner for the life of the token.
type Issuer interface {
	CreateAccount(ctx context.Context, name, symbol string, owner model.Account) (model.Account, error)
}

// Registry resolves token account identifiers to their interfaces.
type Registry interface {
	Asset(account model.Account) (Asset, error)
	Shares(account model.Account) (Shares, error)
}
