package pricing

import (
	"context"
	"fmt"
	"time"

	"edu-ledger-service/internal/domain/entitlement"
	domain "edu-ledger-service/internal/domain/pricing"
	xerrors "edu-ledger-service/internal/pkg/errors"

	"go.uber.org/zap"
)

type PricingService struct {
	plans  domain.Repository
	cache  domain.Cache
	clock  func() time.Time
	logger *zap.Logger
}

func NewPricingService(plans domain.Repository, cache domain.Cache, logger *zap.Logger) *PricingService {
	return &PricingService{
		plans:  plans,
		cache:  cache,
		clock:  time.Now,
		logger: logger,
	}
}

// Table returns the denormalized price table used at grant time.
func (s *PricingService) Table(ctx context.Context) (domain.Table, error) {
	t, err := s.cache.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing table: %w", err)
	}
	return t, nil
}

func (s *PricingService) ListPlans(ctx context.Context) (*domain.PlansResponse, error) {
	plans, err := s.plans.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	table, err := s.Table(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.PlansResponse{Plans: plans, Cache: table}, nil
}

// UpdatePlans saves edited plan rows and re-projects them into the cache.
func (s *PricingService) UpdatePlans(ctx context.Context, req *domain.UpdatePlansRequest) (*domain.PlansResponse, error) {
	now := s.clock()
	plans := make([]domain.Plan, 0, len(req.Plans))
	seen := make(map[entitlement.Tier]bool, len(req.Plans))
	for _, in := range req.Plans {
		tier, err := entitlement.ParseTier(in.Tier)
		if err != nil {
			return nil, err
		}
		if !tier.IsFixed() {
			return nil, fmt.Errorf("%w: %s has no plan price", xerrors.ErrInvalidTier, tier)
		}
		if seen[tier] {
			return nil, fmt.Errorf("%w: duplicate plan for %s", xerrors.ErrInvalidInput, tier)
		}
		if in.BasicPrice < 0 || in.UltraPrice < 0 {
			return nil, fmt.Errorf("%w: plan prices must not be negative", xerrors.ErrInvalidInput)
		}
		seen[tier] = true
		plans = append(plans, domain.Plan{
			Tier:       tier,
			Name:       in.Name,
			BasicPrice: in.BasicPrice,
			UltraPrice: in.UltraPrice,
			UpdatedAt:  now,
		})
	}

	if err := s.plans.UpsertPlans(ctx, plans); err != nil {
		return nil, fmt.Errorf("failed to save plans: %w", err)
	}

	if err := s.SyncCache(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("pricing plans updated", zap.Int("plans", len(plans)))
	return s.ListPlans(ctx)
}

// SyncCache projects the canonical plans into the cache.
func (s *PricingService) SyncCache(ctx context.Context) error {
	plans, err := s.plans.ListPlans(ctx)
	if err != nil {
		return fmt.Errorf("failed to list plans: %w", err)
	}
	current, err := s.cache.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pricing cache: %w", err)
	}
	if err := s.cache.Store(ctx, Project(plans, current)); err != nil {
		return fmt.Errorf("failed to store pricing cache: %w", err)
	}
	return nil
}
