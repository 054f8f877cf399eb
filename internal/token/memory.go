package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/bondvault/pkg/model"
)

// Ledger is an in-memory token ledger implementing Issuer and Registry. It
// stands in for the external issuance service and asset networks in local
// deployments and tests.
type Ledger struct {
	mu      sync.Mutex
	tokens  map[model.Account]*memToken
	counter uint64
}

type memToken struct {
	name     string
	symbol   string
	decimals uint8
	owner    model.Account // zero for plain assets; set for share tokens
	balances map[model.Account]decimal.Decimal
	supply   decimal.Decimal
}

// NewLedger creates an empty in-memory token ledger.
func NewLedger() *Ledger {
	return &Ledger{tokens: make(map[model.Account]*memToken)}
}

// RegisterAsset registers a plain fungible asset with the given account id
// and decimal precision. Used to seed underlying assets.
func (l *Ledger) RegisterAsset(account model.Account, decimals uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens[account] = &memToken{
		name:     string(account),
		symbol:   string(account),
		decimals: decimals,
		balances: make(map[model.Account]decimal.Decimal),
	}
}

// Fund credits an account on the given asset. Seeding helper for local
// deployments and tests; real assets arrive funded from their own networks.
func (l *Ledger) Fund(asset, account model.Account, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	tok, ok := l.tokens[asset]
	if !ok {
		return ErrUnknownToken
	}
	tok.credit(account, amount)
	return nil
}

// CreateAccount creates a new mintable/burnable share token bound to owner.
func (l *Ledger) CreateAccount(_ context.Context, name, symbol string, owner model.Account) (model.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counter++
	account := model.Account(fmt.Sprintf("share-%s-%d", symbol, l.counter))
	l.tokens[account] = &memToken{
		name:     name,
		symbol:   symbol,
		decimals: model.LedgerPrecision,
		owner:    owner,
		balances: make(map[model.Account]decimal.Decimal),
	}
	return account, nil
}

// Asset resolves an asset token account.
func (l *Ledger) Asset(account model.Account) (Asset, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tokens[account]; !ok {
		return nil, ErrUnknownToken
	}
	return &handle{ledger: l, account: account}, nil
}

// Shares resolves a share token account.
func (l *Ledger) Shares(account model.Account) (Shares, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tokens[account]; !ok {
		return nil, ErrUnknownToken
	}
	return &handle{ledger: l, account: account}, nil
}

// handle is a view onto one token in the ledger satisfying both Asset and
// Shares.
type handle struct {
	ledger  *Ledger
	account model.Account
}

func (h *handle) token() (*memToken, error) {
	tok, ok := h.ledger.tokens[h.account]
	if !ok {
		return nil, ErrUnknownToken
	}
	return tok, nil
}

func (h *handle) Decimals(_ context.Context) (uint8, error) {
	h.ledger.mu.Lock()
	defer h.ledger.mu.Unlock()
	tok, err := h.token()
	if err != nil {
		return 0, err
	}
	return tok.decimals, nil
}

func (h *handle) BalanceOf(_ context.Context, account model.Account) (decimal.Decimal, error) {
	h.ledger.mu.Lock()
	defer h.ledger.mu.Unlock()
	tok, err := h.token()
	if err != nil {
		return decimal.Zero, err
	}
	return tok.balances[account], nil
}

func (h *handle) TotalSupply(_ context.Context) (decimal.Decimal, error) {
	h.ledger.mu.Lock()
	defer h.ledger.mu.Unlock()
	tok, err := h.token()
	if err != nil {
		return decimal.Zero, err
	}
	return tok.supply, nil
}

func (h *handle) Transfer(_ context.Context, from, to model.Account, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	h.ledger.mu.Lock()
	defer h.ledger.mu.Unlock()
	tok, err := h.token()
	if err != nil {
		return err
	}
	if tok.balances[from].LessThan(amount) {
		return fmt.Errorf("%w: account %s has %s, needs %s",
			ErrInsufficientBalance, from, tok.balances[from], amount)
	}
	tok.balances[from] = tok.balances[from].Sub(amount)
	tok.credit(to, amount)
	return nil
}

func (h *handle) Mint(_ context.Context, caller, to model.Account, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	h.ledger.mu.Lock()
	defer h.ledger.mu.Unlock()
	tok, err := h.token()
	if err != nil {
		return err
	}
	if caller != tok.owner {
		return ErrNotTokenOwner
	}
	tok.credit(to, amount)
	tok.supply = tok.supply.Add(amount)
	return nil
}

func (h *handle) Burn(_ context.Context, caller, from model.Account, amount decimal.Decimal) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	h.ledger.mu.Lock()
	defer h.ledger.mu.Unlock()
	tok, err := h.token()
	if err != nil {
		return err
	}
	if caller != tok.owner {
		return ErrNotTokenOwner
	}
	if tok.balances[from].LessThan(amount) {
		return fmt.Errorf("%w: account %s has %s, needs %s",
			ErrInsufficientBalance, from, tok.balances[from], amount)
	}
	tok.balances[from] = tok.balances[from].Sub(amount)
	tok.supply = tok.supply.Sub(amount)
	return nil
}

func (t *memToken) credit(account model.Account, amount decimal.Decimal) {
	t.balances[account] = t.balances[account].Add(amount)
}

func checkAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 || !amount.IsInteger() {
		return ErrInvalidAmount
	}
	return nil
}
