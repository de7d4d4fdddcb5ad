// internal/repository/redis/pricing_cache.go
package redisrepo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"edu-ledger-service/internal/domain/entitlement"
	"edu-ledger-service/internal/domain/pricing"
	xerrors "edu-ledger-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

const pricingKey = "pricing:table"

// PricingCache keeps the denormalized price table in one Redis hash whose
// fields are "TIER:LEVEL".
type PricingCache struct {
	client *redis.Client
	key    string
}

func NewPricingCache(client *redis.Client) *PricingCache {
	return &PricingCache{client: client, key: pricingKey}
}

func (c *PricingCache) Load(ctx context.Context) (pricing.Table, error) {
	fields, err := c.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load pricing table: %v", xerrors.ErrStorageUnavailable, err)
	}

	table := pricing.Table{}
	for field, raw := range fields {
		tier, level, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cached price for %s: %w", field, err)
		}
		table.Set(entitlement.Tier(tier), entitlement.Level(level), price)
	}
	return table, nil
}

// Store replaces the hash atomically.
func (c *PricingCache) Store(ctx context.Context, t pricing.Table) error {
	values := make(map[string]interface{})
	for tier, levels := range t {
		for level, price := range levels {
			values[string(tier)+":"+string(level)] = strconv.FormatFloat(price, 'f', -1, 64)
		}
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.key)
	if len(values) > 0 {
		pipe.HSet(ctx, c.key, values)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: failed to store pricing table: %v", xerrors.ErrStorageUnavailable, err)
	}
	return nil
}
