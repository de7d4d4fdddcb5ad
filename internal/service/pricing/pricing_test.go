package pricing

import (
	"context"
	"testing"

	"edu-ledger-service/internal/domain/entitlement"
	domain "edu-ledger-service/internal/domain/pricing"
	xerrors "edu-ledger-service/internal/pkg/errors"
	"edu-ledger-service/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func price(v float64) *float64 { return &v }

func sampleTable() domain.Table {
	t := domain.Table{}
	t.Set(entitlement.TierMonthly, entitlement.LevelBasic, 100)
	t.Set(entitlement.TierMonthly, entitlement.LevelUltra, 180)
	t.Set(entitlement.TierYearly, entitlement.LevelUltra, 1500)
	return t
}

func TestResolve(t *testing.T) {
	table := sampleTable()

	cases := []struct {
		name     string
		tier     entitlement.Tier
		level    entitlement.Level
		override *float64
		want     float64
	}{
		{"table price", entitlement.TierMonthly, entitlement.LevelUltra, nil, 180},
		{"override wins", entitlement.TierYearly, entitlement.LevelUltra, price(999), 999},
		{"zero override", entitlement.TierMonthly, entitlement.LevelBasic, price(0), 0},
		{"missing entry falls back", entitlement.TierWeekly, entitlement.LevelBasic, nil, 25},
		{"free is zero", entitlement.TierFree, "", price(50), 0},
		{"custom uses override", entitlement.TierCustom, entitlement.LevelBasic, price(42), 42},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Resolve(tc.tier, tc.level, table, tc.override, 25)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	_, err := Resolve(entitlement.TierCustom, entitlement.LevelBasic, sampleTable(), nil, 0)
	assert.ErrorIs(t, err, xerrors.ErrMissingPrice)

	_, err = Resolve("DAILY", entitlement.LevelBasic, sampleTable(), nil, 0)
	assert.ErrorIs(t, err, xerrors.ErrInvalidTier)

	_, err = Resolve(entitlement.TierMonthly, entitlement.LevelBasic, sampleTable(), price(-1), 0)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestResolveNilTable(t *testing.T) {
	got, err := Resolve(entitlement.TierMonthly, entitlement.LevelBasic, nil, nil, 7)
	require.NoError(t, err)
	assert.Equal(t, float64(7), got)
}

func TestProject(t *testing.T) {
	cache := sampleTable()
	plans := []domain.Plan{
		{Tier: entitlement.TierMonthly, BasicPrice: 110, UltraPrice: 190},
		{Tier: entitlement.TierWeekly, BasicPrice: 30, UltraPrice: 50},
		{Tier: entitlement.TierCustom, BasicPrice: 1, UltraPrice: 1},
	}

	out := Project(plans, cache)

	p, _ := out.Lookup(entitlement.TierMonthly, entitlement.LevelUltra)
	assert.Equal(t, float64(190), p)
	p, _ = out.Lookup(entitlement.TierWeekly, entitlement.LevelBasic)
	assert.Equal(t, float64(30), p)
	p, ok := out.Lookup(entitlement.TierYearly, entitlement.LevelUltra)
	assert.True(t, ok)
	assert.Equal(t, float64(1500), p)
	_, ok = out.Lookup(entitlement.TierCustom, entitlement.LevelBasic)
	assert.False(t, ok)

	// input cache is not modified
	p, _ = cache.Lookup(entitlement.TierMonthly, entitlement.LevelUltra)
	assert.Equal(t, float64(180), p)

	assert.Equal(t, out, Project(plans, out))
}

func TestPricingServiceUpdatePlans(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewPricingService(store, store.PricingCache(), zap.NewNop())

	res, err := svc.UpdatePlans(ctx, &domain.UpdatePlansRequest{Plans: []domain.PlanInput{
		{Tier: "monthly", Name: "Monthly", BasicPrice: 100, UltraPrice: 200},
		{Tier: "YEARLY", Name: "Yearly", BasicPrice: 900, UltraPrice: 1500},
	}})
	require.NoError(t, err)
	assert.Len(t, res.Plans, 2)

	table, err := svc.Table(ctx)
	require.NoError(t, err)
	p, ok := table.Lookup(entitlement.TierYearly, entitlement.LevelUltra)
	require.True(t, ok)
	assert.Equal(t, float64(1500), p)
}

func TestPricingServiceUpdatePlansRejects(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewPricingService(store, store.PricingCache(), zap.NewNop())

	_, err := svc.UpdatePlans(ctx, &domain.UpdatePlansRequest{Plans: []domain.PlanInput{{Tier: "CUSTOM"}}})
	assert.ErrorIs(t, err, xerrors.ErrInvalidTier)

	_, err = svc.UpdatePlans(ctx, &domain.UpdatePlansRequest{Plans: []domain.PlanInput{
		{Tier: "WEEKLY", BasicPrice: 1, UltraPrice: 2},
		{Tier: "weekly", BasicPrice: 1, UltraPrice: 2},
	}})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	plans, err := store.ListPlans(ctx)
	require.NoError(t, err)
	assert.Empty(t, plans)
}
