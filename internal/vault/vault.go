// Package vault implements the multi-tenant ledger for fixed-yield bond
// products: the product registry, the quote mechanism, deposit-to-share
// conversion, and post-maturity redemption settlement.
//
// Every state-changing operation executes to completion under an exclusive
// lock, so no two operations ever observe a torn intermediate state.
// Operations that perform external token transfers additionally hold a
// reentrancy flag for their full duration: an adversarial token that calls
// back into the vault mid-operation is rejected with ErrReentrantCall
// instead of observing a supply snapshot taken before bookkeeping finished.
package vault

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/bondvault/internal/token"
	"github.com/Checker-Finance/bondvault/pkg/model"
)

// EventSink receives a ledger event for every committed state mutation.
// Delivery is synchronous, in the ledger's total order.
type EventSink interface {
	Publish(model.LedgerEvent)
}

// Vault is the authoritative product ledger.
type Vault struct {
	mu      sync.Mutex
	entered atomic.Bool

	owner   model.Account
	account model.Account // custody account; owns share tokens, holds pools
	tokens  token.Registry
	issuer  token.Issuer
	clock   Clock
	sink    EventSink
	logger  *zap.Logger

	// Append-only registry. A product's id is its index; ids are dense and
	// assigned at creation. Access by id >= len(products) is ErrProductNotFound.
	products []*model.Product
}

// New constructs a vault. owner is the single identity allowed to register
// products; account is the vault's own custody identity, used as mint/burn
// authority on share tokens and as holder of funded redemption pools.
func New(owner, account model.Account, tokens token.Registry, issuer token.Issuer, clock Clock, sink EventSink, logger *zap.Logger) *Vault {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Vault{
		owner:   owner,
		account: account,
		tokens:  tokens,
		issuer:  issuer,
		clock:   clock,
		sink:    sink,
		logger:  logger,
	}
}

// Account returns the vault's custody account identity.
func (v *Vault) Account() model.Account { return v.account }

// lock serializes an operation with the ledger's total order. It fails
// instead of deadlocking when called from inside an external transfer
// callback on the same goroutine.
func (v *Vault) lock() error {
	if v.entered.Load() {
		return ErrReentrantCall
	}
	v.mu.Lock()
	return nil
}

// lockExclusive is lock plus the reentrancy flag, for operations that call
// out to token accounts before or after internal bookkeeping. Release with
// unlockExclusive.
func (v *Vault) lockExclusive() error {
	if err := v.lock(); err != nil {
		return err
	}
	if !v.entered.CompareAndSwap(false, true) {
		v.mu.Unlock()
		return ErrReentrantCall
	}
	return nil
}

func (v *Vault) unlockExclusive() {
	v.entered.Store(false)
	v.mu.Unlock()
}

// product returns the record for id. Must be called with the lock held.
func (v *Vault) product(id uint64) (*model.Product, error) {
	if id >= uint64(len(v.products)) {
		return nil, ErrProductNotFound
	}
	return v.products[id], nil
}

// emit publishes a ledger event carrying a snapshot of the product after the
// mutation committed. Must be called with the lock held; sinks must not call
// back into the vault.
func (v *Vault) emit(evt model.LedgerEvent, p *model.Product) {
	evt.Timestamp = time.Now().UTC()
	evt.LedgerTime = v.clock.Now()
	if p != nil {
		snapshot := *p
		evt.Snapshot = &snapshot
	}
	if v.sink != nil {
		v.sink.Publish(evt)
	}
}
