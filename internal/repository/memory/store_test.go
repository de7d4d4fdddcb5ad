package memory

import (
	"context"
	"testing"
	"time"

	"edu-ledger-service/internal/domain/entitlement"
	"edu-ledger-service/internal/domain/pricing"
	"edu-ledger-service/internal/domain/voucher"
	xerrors "edu-ledger-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveEntitlementChecksVersion(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.PutUser(entitlement.User{ID: "u1"})

	first, err := s.FindByID(ctx, "u1")
	require.NoError(t, err)
	second, err := s.FindByID(ctx, "u1")
	require.NoError(t, err)

	end := time.Now().Add(time.Hour)
	first.Entitlement = entitlement.Entitlement{Tier: entitlement.TierWeekly, Level: entitlement.LevelBasic, EndsAt: &end}
	entry := entitlement.HistoryEntry{ID: "h1", Tier: entitlement.TierWeekly}
	require.NoError(t, s.SaveEntitlement(ctx, first, &entry))
	assert.Equal(t, int64(1), first.Version)

	second.Entitlement = entitlement.Entitlement{Tier: entitlement.TierYearly, Level: entitlement.LevelUltra}
	err = s.SaveEntitlement(ctx, second, &entitlement.HistoryEntry{ID: "h2"})
	assert.ErrorIs(t, err, xerrors.ErrPersistenceConflict)

	stored, err := s.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierWeekly, stored.Entitlement.Tier)
	require.Len(t, stored.History, 1)
	assert.Equal(t, "h1", stored.History[0].ID)
}

func TestEnsureUserCreatesFreeUserOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.FindByID(ctx, "u1")
	assert.ErrorIs(t, err, xerrors.ErrUserNotFound)

	require.NoError(t, s.EnsureUser(ctx, "u1"))
	_, err = s.AddCredits(ctx, "u1", 40)
	require.NoError(t, err)
	require.NoError(t, s.EnsureUser(ctx, "u1"))

	u, err := s.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, entitlement.Free(), u.Entitlement)
	assert.Equal(t, int64(40), u.Credits, "an existing user is left alone")
	assert.Empty(t, u.History)
}

func TestFindByIDReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.PutUser(entitlement.User{ID: "u1", History: []entitlement.HistoryEntry{{ID: "h1"}}})

	u, err := s.FindByID(ctx, "u1")
	require.NoError(t, err)
	u.History[0].ID = "tampered"
	u.Credits = 1000

	again, err := s.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "h1", again.History[0].ID)
	assert.Zero(t, again.Credits)

	_, err = s.FindByID(ctx, "nobody")
	assert.ErrorIs(t, err, xerrors.ErrUserNotFound)
}

func TestAddCredits(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.PutUser(entitlement.User{ID: "u1", Credits: 5})

	balance, err := s.AddCredits(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(15), balance)

	_, err = s.AddCredits(ctx, "ghost", 10)
	assert.ErrorIs(t, err, xerrors.ErrUserNotFound)
}

func TestGiftCodes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	gc := voucher.NewGiftCode("CODE", voucher.CreditsReward(5), 1, "admin", time.Now())

	require.NoError(t, s.Create(ctx, gc))
	assert.ErrorIs(t, s.Create(ctx, gc), xerrors.ErrDuplicateEntry)

	exists, err := s.Exists(ctx, "CODE")
	require.NoError(t, err)
	assert.True(t, exists)

	redeemed, err := s.Redeem(ctx, "CODE", "u1")
	require.NoError(t, err)
	assert.True(t, redeemed.IsRedeemed)

	_, err = s.Redeem(ctx, "CODE", "u2")
	assert.ErrorIs(t, err, xerrors.ErrExhausted)

	_, err = s.Redeem(ctx, "MISSING", "u1")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	// the caller's copy is not shared with the store
	assert.Equal(t, 0, gc.UsedCount)
}

func TestPlansAndCache(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.UpsertPlans(ctx, []pricing.Plan{
		{Tier: entitlement.TierYearly, BasicPrice: 10},
		{Tier: entitlement.TierWeekly, BasicPrice: 1},
	}))
	plans, err := s.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, entitlement.TierWeekly, plans[0].Tier)

	table := pricing.Table{}
	table.Set(entitlement.TierWeekly, entitlement.LevelBasic, 1)
	cache := s.PricingCache()
	require.NoError(t, cache.Store(ctx, table))
	table.Set(entitlement.TierWeekly, entitlement.LevelBasic, 99)

	loaded, err := cache.Load(ctx)
	require.NoError(t, err)
	p, _ := loaded.Lookup(entitlement.TierWeekly, entitlement.LevelBasic)
	assert.Equal(t, float64(1), p)
}
