// internal/domain/pricing/entity.go
package pricing

import (
	"time"

	"edu-ledger-service/internal/domain/entitlement"
)

// Table maps tier -> level -> price.
type Table map[entitlement.Tier]map[entitlement.Level]float64

func (t Table) Lookup(tier entitlement.Tier, level entitlement.Level) (float64, bool) {
	levels, ok := t[tier]
	if !ok {
		return 0, false
	}
	price, ok := levels[level]
	return price, ok
}

func (t Table) Set(tier entitlement.Tier, level entitlement.Level, price float64) {
	if t[tier] == nil {
		t[tier] = make(map[entitlement.Level]float64)
	}
	t[tier][level] = price
}

func (t Table) Clone() Table {
	out := make(Table, len(t))
	for tier, levels := range t {
		cp := make(map[entitlement.Level]float64, len(levels))
		for level, price := range levels {
			cp[level] = price
		}
		out[tier] = cp
	}
	return out
}

// Plan is one row of the admin-edited canonical plan table.
type Plan struct {
	Tier       entitlement.Tier `json:"tier"`
	Name       string           `json:"name"`
	BasicPrice float64          `json:"basic_price"`
	UltraPrice float64          `json:"ultra_price"`
	UpdatedAt  time.Time        `json:"updated_at"`
}
