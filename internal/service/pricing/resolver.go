// Package pricing resolves the price recorded for a grant and keeps the
// denormalized price table in step with the canonical plans.
package pricing

import (
	"fmt"

	"edu-ledger-service/internal/domain/entitlement"
	domain "edu-ledger-service/internal/domain/pricing"
	xerrors "edu-ledger-service/internal/pkg/errors"
)

// Resolve picks the price for a grant. An explicit override always wins.
// CUSTOM has no table entry and therefore requires an override. When the table
// lacks the tier/level pair the fallback is used so that a partially
// configured table never blocks a grant.
func Resolve(tier entitlement.Tier, level entitlement.Level, table domain.Table, override *float64, fallback float64) (float64, error) {
	if !tier.IsValid() {
		return 0, fmt.Errorf("%w: %q", xerrors.ErrInvalidTier, tier)
	}
	if override != nil && *override < 0 {
		return 0, fmt.Errorf("%w: price must not be negative", xerrors.ErrInvalidInput)
	}

	switch tier {
	case entitlement.TierFree:
		return 0, nil
	case entitlement.TierCustom:
		if override == nil {
			return 0, xerrors.ErrMissingPrice
		}
		return *override, nil
	}

	if override != nil {
		return *override, nil
	}
	if price, ok := table.Lookup(tier, level); ok {
		return price, nil
	}
	return fallback, nil
}
