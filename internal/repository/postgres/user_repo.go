// internal/repository/postgres/user_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"edu-ledger-service/internal/domain/entitlement"
	xerrors "edu-ledger-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db        *pgxpool.Pool
	dbWrapper *DB
}

func NewUserRepository(db *pgxpool.Pool, dbWrapper *DB) *UserRepository {
	return &UserRepository{db: db, dbWrapper: dbWrapper}
}

// EnsureUser inserts a FREE user row unless one already exists.
func (r *UserRepository) EnsureUser(ctx context.Context, userID string) error {
	query := `
		INSERT INTO users (id)
		VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return mapError(err, "ensure user")
	}
	return nil
}

// FindByID loads a user with its full history, newest entry first.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (*entitlement.User, error) {
	query := `
		SELECT id, name, credits, tier, level, ends_at, price, granted_by_admin,
		       custom_name, custom_duration, version, updated_at
		FROM users
		WHERE id = $1
	`

	var u entitlement.User
	var customName string
	var customDurationJSON []byte

	err := r.db.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.Name, &u.Credits, &u.Entitlement.Tier, &u.Entitlement.Level, &u.Entitlement.EndsAt,
		&u.Entitlement.Price, &u.Entitlement.GrantedByAdmin,
		&customName, &customDurationJSON, &u.Version, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, mapError(err, "find user")
	}

	if u.Entitlement.Tier == entitlement.TierCustom {
		plan := &entitlement.CustomPlan{Name: customName}
		if len(customDurationJSON) > 0 {
			if err := json.Unmarshal(customDurationJSON, &plan.Duration); err != nil {
				return nil, fmt.Errorf("failed to unmarshal custom_duration: %w", err)
			}
		}
		u.Entitlement.Custom = plan
	}

	history, err := r.listHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.History = history

	return &u, nil
}

func (r *UserRepository) listHistory(ctx context.Context, userID string) ([]entitlement.HistoryEntry, error) {
	query := `
		SELECT id, tier, level, start_date, end_date, duration_hours, price, original_price,
		       is_free, grant_source, granted_by, granted_by_name, custom_name
		FROM subscription_history
		WHERE user_id = $1
		ORDER BY seq DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, mapError(err, "list history")
	}
	defer rows.Close()

	history := []entitlement.HistoryEntry{}
	for rows.Next() {
		var e entitlement.HistoryEntry
		var endDate *time.Time

		if err := rows.Scan(
			&e.ID, &e.Tier, &e.Level, &e.StartDate, &endDate, &e.DurationHours, &e.Price, &e.OriginalPrice,
			&e.IsFree, &e.GrantSource, &e.GrantedBy, &e.GrantedByName, &e.CustomName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		// History never records FREE grants, so a missing end date is LIFETIME.
		if endDate == nil {
			e.EndDate = entitlement.Lifetime()
		} else {
			e.EndDate = entitlement.ExpiresAt(*endDate)
		}
		history = append(history, e)
	}

	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list history")
	}
	return history, nil
}

// SaveEntitlement writes the entitlement columns and the history entry in one
// transaction, guarded by the user's version.
func (r *UserRepository) SaveEntitlement(ctx context.Context, u *entitlement.User, entry *entitlement.HistoryEntry) error {
	tx, err := r.dbWrapper.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var customName string
	var customDurationJSON []byte
	if u.Entitlement.Custom != nil {
		customName = u.Entitlement.Custom.Name
		customDurationJSON, err = json.Marshal(u.Entitlement.Custom.Duration)
		if err != nil {
			return fmt.Errorf("failed to marshal custom_duration: %w", err)
		}
	}

	query := `
		UPDATE users
		SET tier = $1, level = $2, ends_at = $3, price = $4, granted_by_admin = $5,
		    custom_name = $6, custom_duration = $7, version = version + 1, updated_at = NOW()
		WHERE id = $8 AND version = $9
		RETURNING version, updated_at
	`

	e := u.Entitlement
	err = tx.QueryRow(
		ctx, query,
		e.Tier, e.Level, e.EndsAt, e.Price, e.GrantedByAdmin,
		customName, customDurationJSON, u.ID, u.Version,
	).Scan(&u.Version, &u.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		exists, existsErr := r.exists(ctx, tx, u.ID)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return xerrors.ErrUserNotFound
		}
		return fmt.Errorf("%w: user %s changed since it was read", xerrors.ErrPersistenceConflict, u.ID)
	}
	if err != nil {
		return mapError(err, "update entitlement")
	}

	if entry != nil {
		if err := r.insertHistory(ctx, tx, u.ID, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError(err, "commit entitlement")
	}
	return nil
}

func (r *UserRepository) insertHistory(ctx context.Context, tx pgx.Tx, userID string, e *entitlement.HistoryEntry) error {
	query := `
		INSERT INTO subscription_history (
			id, user_id, tier, level, start_date, end_date, duration_hours,
			price, original_price, is_free, grant_source, granted_by, granted_by_name, custom_name
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := tx.Exec(
		ctx, query,
		e.ID, userID, e.Tier, e.Level, e.StartDate, e.EndDate.EndsAt(), e.DurationHours,
		e.Price, e.OriginalPrice, e.IsFree, e.GrantSource, e.GrantedBy, e.GrantedByName, e.CustomName,
	)
	if err != nil {
		return mapError(err, "insert history entry")
	}
	return nil
}

func (r *UserRepository) exists(ctx context.Context, tx pgx.Tx, userID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, mapError(err, "check user")
	}
	return exists, nil
}

// AddCredits increments the balance in place. Entitlement writes never touch
// the credits column, so the version is left alone.
func (r *UserRepository) AddCredits(ctx context.Context, userID string, amount int64) (int64, error) {
	query := `
		UPDATE users
		SET credits = credits + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING credits
	`

	var balance int64
	err := r.db.QueryRow(ctx, query, amount, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, xerrors.ErrUserNotFound
	}
	if err != nil {
		return 0, mapError(err, "add credits")
	}
	return balance, nil
}
