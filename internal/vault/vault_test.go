package vault

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bondvault/internal/token"
	"github.com/Checker-Finance/bondvault/pkg/model"
)

const (
	owner    = model.Account("registry-owner")
	custody  = model.Account("vault-custody")
	admin    = model.Account("product-admin")
	treasury = model.Account("product-treasury")
	alice    = model.Account("alice")
	bob      = model.Account("bob")
	usdc     = model.Account("usdc")
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// e18 returns v * 10^18.
func e18(v int64) decimal.Decimal { return decimal.New(v, 18) }

type manualClock struct{ now int64 }

func (c *manualClock) Now() int64 { return c.now }

type eventRecorder struct{ events []model.LedgerEvent }

func (r *eventRecorder) Publish(evt model.LedgerEvent) {
	r.events = append(r.events, evt)
}

func (r *eventRecorder) ofType(eventType string) []model.LedgerEvent {
	var out []model.LedgerEvent
	for _, evt := range r.events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

type fixture struct {
	vault  *Vault
	ledger *token.Ledger
	clock  *manualClock
	events *eventRecorder
}

// newFixture builds a vault over an in-memory token ledger with a 6-decimal
// underlying asset and the clock parked at t=1000.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger := token.NewLedger()
	ledger.RegisterAsset(usdc, 6)

	clock := &manualClock{now: 1000}
	events := &eventRecorder{}
	v := New(owner, custody, ledger, ledger, clock, events, zap.NewNop())

	return &fixture{vault: v, ledger: ledger, clock: clock, events: events}
}

// initProduct registers a product on the fixture's asset with the standard
// admin/treasury identities.
func (f *fixture) initProduct(t *testing.T, start, end, quotePeriod int64, minDeposit decimal.Decimal) uint64 {
	t.Helper()
	id, err := f.vault.InitializeProduct(context.Background(), owner, model.ProductParams{
		Name:            "Bond 2027",
		Symbol:          "BND27",
		UnderlyingAsset: usdc,
		Admin:           admin,
		Treasury:        treasury,
		StartTime:       start,
		EndTime:         end,
		QuotePeriod:     quotePeriod,
		MinDeposit:      minDeposit,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) fund(t *testing.T, account model.Account, amount decimal.Decimal) {
	t.Helper()
	require.NoError(t, f.ledger.Fund(usdc, account, amount))
}

func (f *fixture) assetBalance(t *testing.T, account model.Account) decimal.Decimal {
	t.Helper()
	asset, err := f.ledger.Asset(usdc)
	require.NoError(t, err)
	bal, err := asset.BalanceOf(context.Background(), account)
	require.NoError(t, err)
	return bal
}

func (f *fixture) shareBalance(t *testing.T, id uint64, account model.Account) decimal.Decimal {
	t.Helper()
	p, err := f.vault.GetProduct(id)
	require.NoError(t, err)
	shares, err := f.ledger.Shares(p.ShareAccount)
	require.NoError(t, err)
	bal, err := shares.BalanceOf(context.Background(), account)
	require.NoError(t, err)
	return bal
}

func (f *fixture) shareSupply(t *testing.T, id uint64) decimal.Decimal {
	t.Helper()
	p, err := f.vault.GetProduct(id)
	require.NoError(t, err)
	shares, err := f.ledger.Shares(p.ShareAccount)
	require.NoError(t, err)
	supply, err := shares.TotalSupply(context.Background())
	require.NoError(t, err)
	return supply
}
