package duration

import (
	"math"
	"testing"
	"time"

	"edu-ledger-service/internal/domain/entitlement"
	xerrors "edu-ledger-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)

func TestCalculateFixedTiers(t *testing.T) {
	cases := map[entitlement.Tier]time.Duration{
		entitlement.TierWeekly:    7 * 24 * time.Hour,
		entitlement.TierMonthly:   30 * 24 * time.Hour,
		entitlement.TierQuarterly: 90 * 24 * time.Hour,
		entitlement.TierYearly:    365 * 24 * time.Hour,
	}

	for tier, offset := range cases {
		t.Run(string(tier), func(t *testing.T) {
			exp, err := Calculate(tier, nil, now)
			require.NoError(t, err)
			at, ok := exp.At()
			require.True(t, ok)
			assert.Equal(t, now.Add(offset), at)
		})
	}
}

func TestCalculateFreeAndLifetime(t *testing.T) {
	exp, err := Calculate(entitlement.TierFree, nil, now)
	require.NoError(t, err)
	assert.Equal(t, entitlement.ExpiryNone, exp.Kind())
	assert.Nil(t, exp.EndsAt())

	exp, err = Calculate(entitlement.TierLifetime, nil, now)
	require.NoError(t, err)
	assert.True(t, exp.IsLifetime())
	assert.Nil(t, exp.EndsAt())
}

func TestCalculateCustom(t *testing.T) {
	d := &entitlement.CustomDuration{Years: 1, Months: 2, Days: 3, Hours: 4, Minutes: 5, Seconds: 6}
	exp, err := Calculate(entitlement.TierCustom, d, now)
	require.NoError(t, err)

	want := now.Add(365*24*time.Hour + 60*24*time.Hour + 3*24*time.Hour + 4*time.Hour + 5*time.Minute + 6*time.Second)
	at, ok := exp.At()
	require.True(t, ok)
	assert.Equal(t, want, at)
}

func TestCalculateCustomRejectsBadDurations(t *testing.T) {
	_, err := Calculate(entitlement.TierCustom, nil, now)
	assert.ErrorIs(t, err, xerrors.ErrInvalidDuration)

	_, err = Calculate(entitlement.TierCustom, &entitlement.CustomDuration{}, now)
	assert.ErrorIs(t, err, xerrors.ErrInvalidDuration)

	_, err = Calculate(entitlement.TierCustom, &entitlement.CustomDuration{Days: 2, Hours: -1}, now)
	assert.ErrorIs(t, err, xerrors.ErrInvalidDuration)
}

func TestCalculateUnknownTier(t *testing.T) {
	_, err := Calculate("DAILY", nil, now)
	assert.ErrorIs(t, err, xerrors.ErrInvalidTier)
}

func TestCalculateIgnoresCustomForFixedTiers(t *testing.T) {
	exp, err := Calculate(entitlement.TierWeekly, &entitlement.CustomDuration{Days: 100}, now)
	require.NoError(t, err)
	at, _ := exp.At()
	assert.Equal(t, now.Add(7*24*time.Hour), at)
}

func TestCalculateCustomRejectsOverflow(t *testing.T) {
	tests := []struct {
		name   string
		custom entitlement.CustomDuration
	}{
		{"years past the duration range", entitlement.CustomDuration{Years: 300}},
		{"sum of parts past the range", entitlement.CustomDuration{Years: 200, Days: 40000}},
		{"huge seconds", entitlement.CustomDuration{Seconds: math.MaxInt}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			custom := tt.custom
			_, err := Calculate(entitlement.TierCustom, &custom, now)
			assert.ErrorIs(t, err, xerrors.ErrInvalidDuration)
		})
	}

	longest := entitlement.CustomDuration{Years: 290}
	expiry, err := Calculate(entitlement.TierCustom, &longest, now)
	require.NoError(t, err)
	at, ok := expiry.At()
	require.True(t, ok)
	assert.Equal(t, 290*365*24*time.Hour, at.Sub(now))
	assert.True(t, at.After(now))
}
