// internal/domain/entitlement/repository.go
package entitlement

import "context"

type Repository interface {
	FindByID(ctx context.Context, userID string) (*User, error)

	// EnsureUser creates the user on the FREE tier if it does not exist yet.
	// Existing users are left untouched.
	EnsureUser(ctx context.Context, userID string) error

	// SaveEntitlement writes u.Entitlement and, when entry is non-nil, inserts
	// the history entry, as one write. It only succeeds if the stored version
	// still equals u.Version and returns xerrors.ErrPersistenceConflict
	// otherwise. On success u.Version is advanced.
	SaveEntitlement(ctx context.Context, u *User, entry *HistoryEntry) error

	// AddCredits atomically adds amount to the user's credit balance and
	// returns the new balance.
	AddCredits(ctx context.Context, userID string, amount int64) (int64, error)
}
