package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/bondvault/pkg/model"
)

func TestSetContractStoppedAdminOnly(t *testing.T) {
	f := newFixture(t)
	id := f.initProduct(t, 1000, 2000, 600, dec(0))

	assert.ErrorIs(t, f.vault.SetContractStopped(alice, id, true), ErrNotAdmin)
	require.NoError(t, f.vault.SetContractStopped(admin, id, true))

	p, err := f.vault.GetProduct(id)
	require.NoError(t, err)
	assert.True(t, p.Stopped)

	events := f.events.ofType(model.EventStoppedChanged)
	require.Len(t, events, 1)
	assert.True(t, events[0].Stopped)
}

func TestSetTreasuryReroutesDeposits(t *testing.T) {
	f := newFixture(t)
	id := f.initProduct(t, 1000, 2000, 600, dec(0))
	f.clock.now = 1100
	require.NoError(t, f.vault.SetQuote(admin, id, dec(1)))
	f.fund(t, alice, dec(2_000_000))

	newTreasury := model.Account("treasury-2")
	assert.ErrorIs(t, f.vault.SetTreasury(alice, id, newTreasury), ErrNotAdmin)
	assert.ErrorIs(t, f.vault.SetTreasury(admin, id, ""), ErrInvalidParams)
	require.NoError(t, f.vault.SetTreasury(admin, id, newTreasury))

	_, err := f.vault.Deposit(context.Background(), alice, id, dec(1_000_000), dec(1))
	require.NoError(t, err)

	assert.True(t, f.assetBalance(t, newTreasury).Equal(dec(1_000_000)))
	assert.True(t, f.assetBalance(t, treasury).IsZero())

	events := f.events.ofType(model.EventTreasuryChanged)
	require.Len(t, events, 1)
	assert.Equal(t, newTreasury, events[0].Account)
}

func TestSetAdminTransfersControl(t *testing.T) {
	f := newFixture(t)
	id := f.initProduct(t, 1000, 2000, 600, dec(0))

	newAdmin := model.Account("admin-2")
	assert.ErrorIs(t, f.vault.SetAdmin(alice, id, newAdmin), ErrNotAdmin)
	assert.ErrorIs(t, f.vault.SetAdmin(admin, id, ""), ErrInvalidParams)
	require.NoError(t, f.vault.SetAdmin(admin, id, newAdmin))

	// The old admin loses quote rights, the new one gains them.
	f.clock.now = 1100
	assert.ErrorIs(t, f.vault.SetQuote(admin, id, dec(1)), ErrNotAdmin)
	require.NoError(t, f.vault.SetQuote(newAdmin, id, dec(1)))

	events := f.events.ofType(model.EventAdminChanged)
	require.Len(t, events, 1)
	assert.Equal(t, newAdmin, events[0].Account)
}

func TestAdminScopedPerProduct(t *testing.T) {
	f := newFixture(t)
	first := f.initProduct(t, 1000, 2000, 600, dec(0))

	otherAdmin := model.Account("other-admin")
	second, err := f.vault.InitializeProduct(context.Background(), owner, model.ProductParams{
		Name: "Bond B", Symbol: "BNDB", UnderlyingAsset: usdc,
		Admin: otherAdmin, Treasury: treasury,
		StartTime: 1000, EndTime: 2000, QuotePeriod: 600,
	})
	require.NoError(t, err)

	// Each admin only controls their own product.
	assert.ErrorIs(t, f.vault.SetContractStopped(otherAdmin, first, true), ErrNotAdmin)
	assert.ErrorIs(t, f.vault.SetContractStopped(admin, second, true), ErrNotAdmin)
	require.NoError(t, f.vault.SetContractStopped(admin, first, true))
	require.NoError(t, f.vault.SetContractStopped(otherAdmin, second, true))
}
