// internal/repository/postgres/pricing_repo.go
package postgres

import (
	"context"
	"fmt"

	"edu-ledger-service/internal/domain/entitlement"
	"edu-ledger-service/internal/domain/pricing"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PricingRepository struct {
	db        *pgxpool.Pool
	dbWrapper *DB
}

func NewPricingRepository(db *pgxpool.Pool, dbWrapper *DB) *PricingRepository {
	return &PricingRepository{db: db, dbWrapper: dbWrapper}
}

// ListPlans returns the canonical plan rows ordered by tier
func (r *PricingRepository) ListPlans(ctx context.Context) ([]pricing.Plan, error) {
	query := `
		SELECT tier, name, basic_price, ultra_price, updated_at
		FROM subscription_plans
		ORDER BY tier
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, mapError(err, "list plans")
	}
	defer rows.Close()

	plans := []pricing.Plan{}
	for rows.Next() {
		var p pricing.Plan
		if err := rows.Scan(&p.Tier, &p.Name, &p.BasicPrice, &p.UltraPrice, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list plans")
	}
	return plans, nil
}

// UpsertPlans writes all plans in one transaction
func (r *PricingRepository) UpsertPlans(ctx context.Context, plans []pricing.Plan) error {
	tx, err := r.dbWrapper.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO subscription_plans (tier, name, basic_price, ultra_price, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tier) DO UPDATE
		SET name = EXCLUDED.name, basic_price = EXCLUDED.basic_price,
		    ultra_price = EXCLUDED.ultra_price, updated_at = EXCLUDED.updated_at
	`
	for _, p := range plans {
		if _, err := tx.Exec(ctx, query, p.Tier, p.Name, p.BasicPrice, p.UltraPrice, p.UpdatedAt); err != nil {
			return mapError(err, "upsert plan")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError(err, "commit plans")
	}
	return nil
}

// PricingCacheRepository keeps the denormalized price table in postgres for
// deployments running without Redis.
type PricingCacheRepository struct {
	db        *pgxpool.Pool
	dbWrapper *DB
}

func NewPricingCacheRepository(db *pgxpool.Pool, dbWrapper *DB) *PricingCacheRepository {
	return &PricingCacheRepository{db: db, dbWrapper: dbWrapper}
}

func (r *PricingCacheRepository) Load(ctx context.Context) (pricing.Table, error) {
	rows, err := r.db.Query(ctx, `SELECT tier, level, price FROM pricing_cache`)
	if err != nil {
		return nil, mapError(err, "load pricing cache")
	}
	defer rows.Close()

	table := pricing.Table{}
	for rows.Next() {
		var tier entitlement.Tier
		var level entitlement.Level
		var price float64
		if err := rows.Scan(&tier, &level, &price); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		table.Set(tier, level, price)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "load pricing cache")
	}
	return table, nil
}

// Store replaces the cached table wholesale.
func (r *PricingCacheRepository) Store(ctx context.Context, t pricing.Table) error {
	tx, err := r.dbWrapper.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM pricing_cache`); err != nil {
		return mapError(err, "clear pricing cache")
	}
	for tier, levels := range t {
		for level, price := range levels {
			_, err := tx.Exec(ctx,
				`INSERT INTO pricing_cache (tier, level, price) VALUES ($1, $2, $3)`,
				tier, level, price,
			)
			if err != nil {
				return mapError(err, "store price")
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError(err, "commit pricing cache")
	}
	return nil
}
