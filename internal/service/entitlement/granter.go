// internal/service/entitlement/granter.go
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "edu-ledger-service/internal/domain/entitlement"
	"edu-ledger-service/internal/domain/pricing"
	xerrors "edu-ledger-service/internal/pkg/errors"
	"edu-ledger-service/internal/service/duration"
	pricingsvc "edu-ledger-service/internal/service/pricing"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// PriceTableSource supplies the denormalized price table.
type PriceTableSource interface {
	Table(ctx context.Context) (pricing.Table, error)
}

// Admin identifies who performs a grant.
type Admin struct {
	ID       string
	Name     string
	SubAdmin bool
}

type GrantCommand struct {
	UserID         string
	Tier           domain.Tier
	Level          domain.Level
	Mode           domain.GrantMode
	PriceOverride  *float64
	CustomName     string
	CustomDuration *domain.CustomDuration
	GrantedBy      *Admin
}

// ParseGrantRequest converts the admin form into a command. The level is
// ignored for FREE so a stale form value cannot fail a downgrade.
func ParseGrantRequest(userID string, req *domain.GrantEntitlementRequest, by *Admin) (GrantCommand, error) {
	tier, err := domain.ParseTier(req.Tier)
	if err != nil {
		return GrantCommand{}, err
	}
	mode, err := domain.ParseGrantMode(req.Mode)
	if err != nil {
		return GrantCommand{}, err
	}

	cmd := GrantCommand{
		UserID:         userID,
		Tier:           tier,
		Mode:           mode,
		PriceOverride:  req.Price,
		CustomName:     strings.TrimSpace(req.CustomName),
		CustomDuration: req.CustomDuration,
		GrantedBy:      by,
	}
	if tier != domain.TierFree {
		if cmd.Level, err = domain.ParseLevel(req.Level); err != nil {
			return GrantCommand{}, err
		}
	}
	return cmd, nil
}

type GranterConfig struct {
	MaxAttempts  int
	DefaultPrice float64
	Clock        func() time.Time
	NewID        func() string
}

type Granter struct {
	users        domain.Repository
	prices       PriceTableSource
	maxAttempts  int
	defaultPrice float64
	clock        func() time.Time
	newID        func() string
	logger       *zap.Logger
}

func NewGranter(users domain.Repository, prices PriceTableSource, cfg GranterConfig, logger *zap.Logger) *Granter {
	g := &Granter{
		users:        users,
		prices:       prices,
		maxAttempts:  cfg.MaxAttempts,
		defaultPrice: cfg.DefaultPrice,
		clock:        cfg.Clock,
		newID:        cfg.NewID,
		logger:       logger,
	}
	if g.maxAttempts < 1 {
		g.maxAttempts = 3
	}
	if g.clock == nil {
		g.clock = time.Now
	}
	if g.newID == nil {
		g.newID = func() string { return ulid.Make().String() }
	}
	return g
}

// GrantPlan holds the fully resolved values of one grant.
type GrantPlan struct {
	Tier          domain.Tier
	Level         domain.Level
	Expiry        domain.Expiry
	Price         float64
	Mode          domain.GrantMode
	Now           time.Time
	EntryID       string
	GrantedBy     string
	GrantedByName string
	Custom        *domain.CustomPlan
}

// Build derives the new entitlement and its history entry. A FREE tier
// clears the entitlement and yields no entry.
func Build(p GrantPlan) (domain.Entitlement, *domain.HistoryEntry) {
	if p.Tier == domain.TierFree {
		return domain.Free(), nil
	}

	free := p.Mode == domain.GrantModeFree
	state := domain.Entitlement{
		Tier:           p.Tier,
		Level:          p.Level,
		EndsAt:         p.Expiry.EndsAt(),
		Price:          p.Price,
		GrantedByAdmin: free,
		Custom:         p.Custom,
	}

	collected := p.Price
	if free {
		collected = 0
	}
	entry := &domain.HistoryEntry{
		ID:            p.EntryID,
		Tier:          p.Tier,
		Level:         p.Level,
		StartDate:     p.Now,
		EndDate:       p.Expiry,
		DurationHours: domain.DurationHours(p.Now, p.Expiry),
		Price:         collected,
		OriginalPrice: p.Price,
		IsFree:        free,
		GrantSource:   p.Mode.Source(),
		GrantedBy:     p.GrantedBy,
		GrantedByName: p.GrantedByName,
	}
	if p.Custom != nil {
		entry.CustomName = p.Custom.Name
	}
	return state, entry
}

// Grant validates cmd, computes expiry and price, and writes the new
// entitlement together with one history entry. Nothing is written when
// validation fails.
func (g *Granter) Grant(ctx context.Context, cmd GrantCommand) (*domain.User, error) {
	plan, err := g.Prepare(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return g.Apply(ctx, cmd.UserID, plan)
}

// Prepare resolves everything a grant needs, including the price table, and
// writes nothing.
func (g *Granter) Prepare(ctx context.Context, cmd GrantCommand) (*GrantPlan, error) {
	plan, err := g.plan(ctx, cmd)
	if err != nil {
		g.logger.Warn("grant rejected",
			zap.String("user_id", cmd.UserID),
			zap.String("tier", string(cmd.Tier)),
			zap.Error(err),
		)
		return nil, err
	}
	return plan, nil
}

// Apply writes a prepared grant for userID, creating the user on FREE first
// if it is new. Lost write races are retried from a fresh read.
func (g *Granter) Apply(ctx context.Context, userID string, plan *GrantPlan) (*domain.User, error) {
	if err := g.users.EnsureUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	state, entry := Build(*plan)

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		user, err := g.users.FindByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load user: %w", err)
		}

		user.Entitlement = state
		if entry != nil {
			user.History = domain.Prepend(user.History, *entry)
		}

		err = g.users.SaveEntitlement(ctx, user, entry)
		if err == nil {
			g.logger.Info("entitlement granted",
				zap.String("user_id", user.ID),
				zap.String("tier", string(state.Tier)),
				zap.String("level", string(state.Level)),
				zap.String("mode", string(plan.Mode)),
				zap.String("ends", plan.Expiry.String()),
				zap.Float64("price", state.Price),
				zap.Int("attempt", attempt),
			)
			return user, nil
		}
		if !errors.Is(err, xerrors.ErrPersistenceConflict) {
			return nil, fmt.Errorf("failed to save entitlement: %w", err)
		}
		lastErr = err
		g.logger.Warn("entitlement write conflict, retrying",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt),
		)
	}

	return nil, fmt.Errorf("%w: entitlement write for user %s failed after %d attempts: %v",
		xerrors.ErrStorageUnavailable, userID, g.maxAttempts, lastErr)
}

func (g *Granter) plan(ctx context.Context, cmd GrantCommand) (*GrantPlan, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return nil, fmt.Errorf("%w: user id is required", xerrors.ErrInvalidInput)
	}
	if !cmd.Tier.IsValid() {
		return nil, fmt.Errorf("%w: %q", xerrors.ErrInvalidTier, cmd.Tier)
	}
	if cmd.Mode != domain.GrantModeFree && cmd.Mode != domain.GrantModePaid {
		return nil, fmt.Errorf("%w: unknown grant mode %q", xerrors.ErrInvalidInput, cmd.Mode)
	}
	if cmd.Tier != domain.TierFree && !cmd.Level.IsValid() {
		return nil, fmt.Errorf("%w: %q", xerrors.ErrInvalidLevel, cmd.Level)
	}
	if cmd.Tier != domain.TierCustom && (cmd.CustomDuration != nil || cmd.CustomName != "") {
		return nil, fmt.Errorf("%w: custom name and duration are only allowed for CUSTOM", xerrors.ErrInvalidInput)
	}

	var grantedBy, grantedByName string
	if cmd.GrantedBy != nil {
		grantedBy, grantedByName = cmd.GrantedBy.ID, cmd.GrantedBy.Name
		if cmd.GrantedBy.SubAdmin && cmd.Mode == domain.GrantModeFree && (grantedBy == "" || grantedByName == "") {
			return nil, fmt.Errorf("%w: sub-admin grants must name the granting admin", xerrors.ErrInvalidInput)
		}
	}

	now := g.clock()
	expiry, err := duration.Calculate(cmd.Tier, cmd.CustomDuration, now)
	if err != nil {
		return nil, err
	}

	var table pricing.Table
	if cmd.Tier.IsFixed() && cmd.PriceOverride == nil {
		table, err = g.prices.Table(ctx)
		if err != nil {
			return nil, err
		}
	}
	price, err := pricingsvc.Resolve(cmd.Tier, cmd.Level, table, cmd.PriceOverride, g.defaultPrice)
	if err != nil {
		return nil, err
	}

	plan := &GrantPlan{
		Tier:          cmd.Tier,
		Level:         cmd.Level,
		Expiry:        expiry,
		Price:         price,
		Mode:          cmd.Mode,
		Now:           now,
		EntryID:       g.newID(),
		GrantedBy:     grantedBy,
		GrantedByName: grantedByName,
	}
	if cmd.Tier == domain.TierFree {
		plan.Level = ""
	}
	if cmd.Tier == domain.TierCustom {
		plan.Custom = &domain.CustomPlan{Name: cmd.CustomName, Duration: *cmd.CustomDuration}
	}
	return plan, nil
}

// GetUser returns a user with history ordered for display.
func (g *Granter) GetUser(ctx context.Context, userID string) (*domain.UserResponse, error) {
	user, err := g.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.UserResponse{
		ID:          user.ID,
		Name:        user.Name,
		Credits:     user.Credits,
		Entitlement: user.Entitlement,
		Active:      user.Entitlement.IsActive(g.clock()),
		History:     domain.ByStartDesc(user.History),
	}, nil
}
