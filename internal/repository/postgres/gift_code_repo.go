// internal/repository/postgres/gift_code_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"edu-ledger-service/internal/domain/entitlement"
	"edu-ledger-service/internal/domain/voucher"
	xerrors "edu-ledger-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type GiftCodeRepository struct {
	db        *pgxpool.Pool
	dbWrapper *DB
}

func NewGiftCodeRepository(db *pgxpool.Pool, dbWrapper *DB) *GiftCodeRepository {
	return &GiftCodeRepository{db: db, dbWrapper: dbWrapper}
}

const giftCodeColumns = `
	code, type, amount, sub_tier, sub_level, created_at,
	max_uses, used_count, redeemed_by, is_redeemed, generated_by
`

// scanGiftCode is a helper to scan a single gift code row
func scanGiftCode(scanner interface {
	Scan(dest ...interface{}) error
}) (*voucher.GiftCode, error) {
	var gc voucher.GiftCode
	var amount *int64
	var subTier, subLevel *string
	var redeemedBy []string

	err := scanner.Scan(
		&gc.Code, &gc.Reward.Type, &amount, &subTier, &subLevel, &gc.CreatedAt,
		&gc.MaxUses, &gc.UsedCount, pq.Array(&redeemedBy), &gc.IsRedeemed, &gc.GeneratedBy,
	)
	if err != nil {
		return nil, err
	}

	switch gc.Reward.Type {
	case voucher.CodeTypeCredits:
		if amount == nil {
			return nil, fmt.Errorf("%w: credits code %s has no amount", xerrors.ErrInternal, gc.Code)
		}
		gc.Reward.Credits = &voucher.CreditReward{Amount: *amount}
	case voucher.CodeTypeSubscription:
		if subTier == nil || subLevel == nil {
			return nil, fmt.Errorf("%w: subscription code %s has no tier", xerrors.ErrInternal, gc.Code)
		}
		gc.Reward.Subscription = &voucher.SubscriptionReward{
			Tier:  entitlement.Tier(*subTier),
			Level: entitlement.Level(*subLevel),
		}
	}

	if redeemedBy == nil {
		redeemedBy = []string{}
	}
	gc.RedeemedBy = redeemedBy
	return &gc, nil
}

// Create inserts a new code. A taken code yields xerrors.ErrDuplicateEntry.
func (r *GiftCodeRepository) Create(ctx context.Context, gc *voucher.GiftCode) error {
	query := `
		INSERT INTO gift_codes (` + giftCodeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	var amount *int64
	var subTier, subLevel *string
	if gc.Reward.Credits != nil {
		amount = &gc.Reward.Credits.Amount
	}
	if gc.Reward.Subscription != nil {
		t, l := string(gc.Reward.Subscription.Tier), string(gc.Reward.Subscription.Level)
		subTier, subLevel = &t, &l
	}

	_, err := r.db.Exec(
		ctx, query,
		gc.Code, gc.Reward.Type, amount, subTier, subLevel, gc.CreatedAt,
		gc.MaxUses, gc.UsedCount, pq.Array(gc.RedeemedBy), gc.IsRedeemed, gc.GeneratedBy,
	)
	if err != nil {
		return mapError(err, "create gift code")
	}
	return nil
}

func (r *GiftCodeRepository) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM gift_codes WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, mapError(err, "check gift code")
	}
	return exists, nil
}

func (r *GiftCodeRepository) FindByCode(ctx context.Context, code string) (*voucher.GiftCode, error) {
	query := `SELECT ` + giftCodeColumns + ` FROM gift_codes WHERE code = $1`

	gc, err := scanGiftCode(r.db.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, mapError(err, "find gift code")
	}
	return gc, nil
}

// Redeem locks the code row, applies the redemption rules and writes the new
// usage in the same transaction.
func (r *GiftCodeRepository) Redeem(ctx context.Context, code, redeemerID string) (*voucher.GiftCode, error) {
	tx, err := r.dbWrapper.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + giftCodeColumns + ` FROM gift_codes WHERE code = $1 FOR UPDATE`

	gc, err := scanGiftCode(tx.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, mapError(err, "lock gift code")
	}

	previous := gc.UsedCount
	if err := gc.Redeem(redeemerID); err != nil {
		return nil, err
	}

	update := `
		UPDATE gift_codes
		SET used_count = $1, redeemed_by = $2, is_redeemed = $3
		WHERE code = $4 AND used_count = $5
	`
	result, err := tx.Exec(ctx, update, gc.UsedCount, pq.Array(gc.RedeemedBy), gc.IsRedeemed, gc.Code, previous)
	if err != nil {
		return nil, mapError(err, "update gift code")
	}
	if result.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: gift code %s changed during redemption", xerrors.ErrPersistenceConflict, code)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapError(err, "commit redemption")
	}
	return gc, nil
}
