package pricing

import (
	"edu-ledger-service/internal/domain/entitlement"
	domain "edu-ledger-service/internal/domain/pricing"
)

// Project copies the basic/ultra price of every known tier in plans over a
// copy of cache. Tiers absent from plans keep their cached entries, and
// applying the same plans twice gives the same table.
func Project(plans []domain.Plan, cache domain.Table) domain.Table {
	out := cache.Clone()
	for _, p := range plans {
		if !p.Tier.IsFixed() {
			continue
		}
		out.Set(p.Tier, entitlement.LevelBasic, p.BasicPrice)
		out.Set(p.Tier, entitlement.LevelUltra, p.UltraPrice)
	}
	return out
}
