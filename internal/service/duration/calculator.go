// Package duration turns a tier selection into an entitlement expiry.
package duration

import (
	"fmt"
	"math"
	"time"

	"edu-ledger-service/internal/domain/entitlement"
	xerrors "edu-ledger-service/internal/pkg/errors"
)

const (
	Day   = 24 * time.Hour
	Month = 30 * Day
	Year  = 365 * Day
)

// fixedOffsets approximates calendar periods as fixed day counts so results
// do not depend on the month a grant starts in.
var fixedOffsets = map[entitlement.Tier]time.Duration{
	entitlement.TierWeekly:    7 * Day,
	entitlement.TierMonthly:   Month,
	entitlement.TierQuarterly: 90 * Day,
	entitlement.TierYearly:    Year,
}

// FixedOffset returns the window length of a fixed-length tier.
func FixedOffset(tier entitlement.Tier) (time.Duration, bool) {
	d, ok := fixedOffsets[tier]
	return d, ok
}

// Custom sums the six components of a custom duration. Each component must be
// non-negative, at least one must be positive and the sum must fit in a
// time.Duration (about 292 years).
func Custom(d entitlement.CustomDuration) (time.Duration, error) {
	parts := []struct {
		name  string
		value int
		unit  time.Duration
	}{
		{"years", d.Years, Year},
		{"months", d.Months, Month},
		{"days", d.Days, Day},
		{"hours", d.Hours, time.Hour},
		{"minutes", d.Minutes, time.Minute},
		{"seconds", d.Seconds, time.Second},
	}

	var total time.Duration
	for _, p := range parts {
		if p.value < 0 {
			return 0, fmt.Errorf("%w: %s must not be negative, got %d", xerrors.ErrInvalidDuration, p.name, p.value)
		}
		if time.Duration(p.value) > (math.MaxInt64-total)/p.unit {
			return 0, fmt.Errorf("%w: custom duration is too long", xerrors.ErrInvalidDuration)
		}
		total += time.Duration(p.value) * p.unit
	}
	if total == 0 {
		return 0, fmt.Errorf("%w: custom duration must be longer than zero", xerrors.ErrInvalidDuration)
	}
	return total, nil
}

// Calculate computes the expiry of a grant of tier starting at now. custom is
// only read for CUSTOM and must be non-nil there.
func Calculate(tier entitlement.Tier, custom *entitlement.CustomDuration, now time.Time) (entitlement.Expiry, error) {
	switch tier {
	case entitlement.TierFree:
		return entitlement.NoExpiry(), nil
	case entitlement.TierLifetime:
		return entitlement.Lifetime(), nil
	case entitlement.TierCustom:
		if custom == nil {
			return entitlement.Expiry{}, fmt.Errorf("%w: custom tier requires a duration", xerrors.ErrInvalidDuration)
		}
		d, err := Custom(*custom)
		if err != nil {
			return entitlement.Expiry{}, err
		}
		return entitlement.ExpiresAt(now.Add(d)), nil
	}

	offset, ok := fixedOffsets[tier]
	if !ok {
		return entitlement.Expiry{}, fmt.Errorf("%w: %q", xerrors.ErrInvalidTier, tier)
	}
	return entitlement.ExpiresAt(now.Add(offset)), nil
}
