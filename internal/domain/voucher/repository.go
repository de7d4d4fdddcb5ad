// internal/domain/voucher/repository.go
package voucher

import "context"

type Repository interface {
	// Create stores a new code, returning xerrors.ErrDuplicateEntry if the
	// code already exists.
	Create(ctx context.Context, c *GiftCode) error
	Exists(ctx context.Context, code string) (bool, error)
	FindByCode(ctx context.Context, code string) (*GiftCode, error)

	// Redeem looks the code up, checks it and records the redemption as a
	// single atomic step keyed on the code. Rule violations come back as
	// xerrors.ErrNotFound, ErrAlreadyRedeemed or ErrExhausted; a lost race
	// as xerrors.ErrPersistenceConflict.
	Redeem(ctx context.Context, code, redeemerID string) (*GiftCode, error)
}
