// internal/domain/pricing/repository.go
package pricing

import "context"

// Repository holds the canonical plan table.
type Repository interface {
	ListPlans(ctx context.Context) ([]Plan, error)
	UpsertPlans(ctx context.Context, plans []Plan) error
}

// Cache holds the denormalized tier/level price table read at grant time.
type Cache interface {
	Load(ctx context.Context) (Table, error)
	Store(ctx context.Context, t Table) error
}
