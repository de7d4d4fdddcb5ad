// internal/repository/postgres/db.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	xerrors "edu-ledger-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	pool *pgxpool.Pool
}

func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

// BeginTx opens a serializable transaction.
func (db *DB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", xerrors.ErrStorageUnavailable, err)
	}
	return tx, nil
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Postgres SQLSTATE codes the repositories react to.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
)

// mapError translates driver errors into the ledger's error kinds.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return pgx.ErrNoRows
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %s: %s", xerrors.ErrPersistenceConflict, op, pgErr.Message)
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s: %s", xerrors.ErrDuplicateEntry, op, pgErr.Message)
		case codeCheckViolation:
			return fmt.Errorf("%w: %s: %s", xerrors.ErrInvalidInput, op, pgErr.Message)
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", xerrors.ErrStorageUnavailable, op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
