// internal/service/voucher/redemption.go
package voucher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"edu-ledger-service/internal/domain/entitlement"
	domain "edu-ledger-service/internal/domain/voucher"
	xerrors "edu-ledger-service/internal/pkg/errors"
	entitlementsvc "edu-ledger-service/internal/service/entitlement"

	"go.uber.org/zap"
)

// EntitlementGranter grants subscription rewards in two steps so that
// everything that can fail on input is checked before a code is consumed.
type EntitlementGranter interface {
	Prepare(ctx context.Context, cmd entitlementsvc.GrantCommand) (*entitlementsvc.GrantPlan, error)
	Apply(ctx context.Context, userID string, plan *entitlementsvc.GrantPlan) (*entitlement.User, error)
}

type UserStore interface {
	EnsureUser(ctx context.Context, userID string) error
	AddCredits(ctx context.Context, userID string, amount int64) (int64, error)
}

// AttemptLimiter caps how often one redeemer may try codes. The counter is
// cleared after a successful redemption.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

type RedemptionService struct {
	codes       domain.Repository
	users       UserStore
	granter     EntitlementGranter
	limiter     AttemptLimiter
	maxAttempts int
	logger      *zap.Logger
}

// NewRedemptionService builds the redemption flow. limiter may be nil.
func NewRedemptionService(
	codes domain.Repository,
	users UserStore,
	granter EntitlementGranter,
	limiter AttemptLimiter,
	maxAttempts int,
	logger *zap.Logger,
) *RedemptionService {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &RedemptionService{
		codes:       codes,
		users:       users,
		granter:     granter,
		limiter:     limiter,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Redeem converts code into its reward for redeemerID. Every check that can
// fail on input runs before the code is consumed, so a refused redemption
// leaves every record untouched. Once the code has been consumed, a failure
// to apply the reward is reported as xerrors.ErrInconsistentState.
func (s *RedemptionService) Redeem(ctx context.Context, code, redeemerID string) (*domain.RedemptionResult, error) {
	code = strings.TrimSpace(code)
	redeemerID = strings.TrimSpace(redeemerID)
	if code == "" || redeemerID == "" {
		return nil, fmt.Errorf("%w: code and redeemer are required", xerrors.ErrInvalidInput)
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, redeemerID)
		if err != nil {
			s.logger.Warn("redemption limiter unavailable", zap.Error(err))
		} else if !allowed {
			return nil, xerrors.ErrRateLimited
		}
	}

	plan, err := s.prepare(ctx, code, redeemerID)
	if err != nil {
		if xerrors.IsRedemption(err) {
			s.logger.Info("redemption refused",
				zap.String("redeemer_id", redeemerID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	gc, err := s.consume(ctx, code, redeemerID)
	if err != nil {
		if xerrors.IsRedemption(err) {
			s.logger.Info("redemption refused",
				zap.String("redeemer_id", redeemerID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	result := &domain.RedemptionResult{
		Code:          gc.Code,
		Type:          gc.Reward.Type,
		UsesRemaining: gc.Remaining(),
	}

	switch gc.Reward.Type {
	case domain.CodeTypeCredits:
		balance, err := s.users.AddCredits(ctx, redeemerID, gc.Reward.Credits.Amount)
		if err != nil {
			return nil, s.inconsistent(gc, redeemerID, err)
		}
		result.CreditBalance = &balance

	case domain.CodeTypeSubscription:
		user, err := s.granter.Apply(ctx, redeemerID, plan)
		if err != nil {
			return nil, s.inconsistent(gc, redeemerID, err)
		}
		result.Entitlement = &user.Entitlement

	default:
		return nil, s.inconsistent(gc, redeemerID, fmt.Errorf("unknown reward type %q", gc.Reward.Type))
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, redeemerID); err != nil {
			s.logger.Warn("failed to reset redemption limiter", zap.String("redeemer_id", redeemerID), zap.Error(err))
		}
	}

	s.logger.Info("gift code redeemed",
		zap.String("code", gc.Code),
		zap.String("redeemer_id", redeemerID),
		zap.String("type", string(gc.Reward.Type)),
		zap.Int("used_count", gc.UsedCount),
		zap.Int("max_uses", gc.MaxUses),
	)
	return result, nil
}

// prepare checks the code against the redemption rules, makes sure the
// redeemer exists and, for subscription codes, resolves the grant. It writes
// nothing but the FREE user row. The rules are checked again under the
// code's lock by consume.
func (s *RedemptionService) prepare(ctx context.Context, code, redeemerID string) (*entitlementsvc.GrantPlan, error) {
	gc, err := s.codes.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := gc.CheckRedeemable(redeemerID); err != nil {
		return nil, err
	}

	if err := s.users.EnsureUser(ctx, redeemerID); err != nil {
		return nil, fmt.Errorf("failed to load redeemer: %w", err)
	}

	if gc.Reward.Type != domain.CodeTypeSubscription {
		return nil, nil
	}
	return s.granter.Prepare(ctx, entitlementsvc.GrantCommand{
		UserID: redeemerID,
		Tier:   gc.Reward.Subscription.Tier,
		Level:  gc.Reward.Subscription.Level,
		Mode:   entitlement.GrantModeFree,
		GrantedBy: &entitlementsvc.Admin{
			ID:   gc.GeneratedBy,
			Name: "gift code " + gc.Code,
		},
	})
}

// consume records the redemption on the code, retrying lost races.
func (s *RedemptionService) consume(ctx context.Context, code, redeemerID string) (*domain.GiftCode, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		gc, err := s.codes.Redeem(ctx, code, redeemerID)
		if err == nil {
			return gc, nil
		}
		if !errors.Is(err, xerrors.ErrPersistenceConflict) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn("gift code write conflict, retrying",
			zap.String("redeemer_id", redeemerID),
			zap.Int("attempt", attempt),
		)
	}
	return nil, fmt.Errorf("%w: redemption failed after %d attempts: %v", xerrors.ErrStorageUnavailable, s.maxAttempts, lastErr)
}

func (s *RedemptionService) inconsistent(gc *domain.GiftCode, redeemerID string, cause error) error {
	s.logger.Error("gift code consumed but reward not applied, manual reconciliation required",
		zap.String("code", gc.Code),
		zap.String("redeemer_id", redeemerID),
		zap.String("type", string(gc.Reward.Type)),
		zap.Int("used_count", gc.UsedCount),
		zap.Error(cause),
	)
	return fmt.Errorf("%w: code %s, redeemer %s: %v", xerrors.ErrInconsistentState, gc.Code, redeemerID, cause)
}

// GetCode returns a code's current state for audit.
func (s *RedemptionService) GetCode(ctx context.Context, code string) (*domain.GiftCode, error) {
	return s.codes.FindByCode(ctx, strings.TrimSpace(code))
}
