// internal/service/voucher/generator.go
package voucher

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"edu-ledger-service/internal/domain/entitlement"
	domain "edu-ledger-service/internal/domain/voucher"
	xerrors "edu-ledger-service/internal/pkg/errors"

	"go.uber.org/zap"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Bytes at or above this value are rejected so every symbol is equally likely.
const rejectAbove = 256 - 256%len(alphabet)

type GeneratorConfig struct {
	CodeLength int
	MaxBatch   int
	// MaxDraws bounds redraws per code after collisions.
	MaxDraws int
	Random   io.Reader
	Clock    func() time.Time
}

type Generator struct {
	codes      domain.Repository
	codeLength int
	maxBatch   int
	maxDraws   int
	random     io.Reader
	clock      func() time.Time
	logger     *zap.Logger
}

func NewGenerator(codes domain.Repository, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	g := &Generator{
		codes:      codes,
		codeLength: cfg.CodeLength,
		maxBatch:   cfg.MaxBatch,
		maxDraws:   cfg.MaxDraws,
		random:     cfg.Random,
		clock:      cfg.Clock,
		logger:     logger,
	}
	if g.codeLength <= 0 {
		g.codeLength = 20
	}
	if g.maxBatch <= 0 {
		g.maxBatch = 500
	}
	if g.maxDraws <= 0 {
		g.maxDraws = 10
	}
	if g.random == nil {
		g.random = rand.Reader
	}
	if g.clock == nil {
		g.clock = time.Now
	}
	return g
}

type GenerateCommand struct {
	Reward      domain.Reward
	Count       int
	MaxUses     int
	GeneratedBy string
}

// ParseGenerateRequest converts the admin form into a command.
func ParseGenerateRequest(req *domain.GenerateCodesRequest, generatedBy string) (GenerateCommand, error) {
	codeType, err := domain.ParseCodeType(req.Type)
	if err != nil {
		return GenerateCommand{}, err
	}

	var reward domain.Reward
	switch codeType {
	case domain.CodeTypeCredits:
		reward = domain.CreditsReward(req.Amount)
	case domain.CodeTypeSubscription:
		tier, err := entitlement.ParseTier(req.SubTier)
		if err != nil {
			return GenerateCommand{}, err
		}
		level, err := entitlement.ParseLevel(req.SubLevel)
		if err != nil {
			return GenerateCommand{}, err
		}
		reward = domain.SubscriptionRewardOf(tier, level)
	}

	return GenerateCommand{
		Reward:      reward,
		Count:       req.Count,
		MaxUses:     req.MaxUses,
		GeneratedBy: generatedBy,
	}, nil
}

// Generate mints cmd.Count codes sharing one reward and usage cap. Each code
// is checked for uniqueness against the store and the batch before it is
// written; a collision causes a redraw.
func (g *Generator) Generate(ctx context.Context, cmd GenerateCommand) ([]domain.GiftCode, error) {
	if err := cmd.Reward.Validate(); err != nil {
		return nil, err
	}
	if cmd.Count < 1 || cmd.Count > g.maxBatch {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", xerrors.ErrInvalidInput, g.maxBatch)
	}
	if cmd.MaxUses < 1 {
		return nil, fmt.Errorf("%w: max uses must be at least 1", xerrors.ErrInvalidInput)
	}

	now := g.clock()
	batch := make(map[string]struct{}, cmd.Count)
	created := make([]domain.GiftCode, 0, cmd.Count)

	for i := 0; i < cmd.Count; i++ {
		code, err := g.mint(ctx, cmd, batch, now)
		if err != nil {
			g.logger.Error("gift code batch aborted",
				zap.Int("created", len(created)),
				zap.Int("requested", cmd.Count),
				zap.Error(err),
			)
			return created, err
		}
		batch[code.Code] = struct{}{}
		created = append(created, *code)
	}

	g.logger.Info("gift codes generated",
		zap.String("type", string(cmd.Reward.Type)),
		zap.Int("count", len(created)),
		zap.Int("max_uses", cmd.MaxUses),
		zap.String("generated_by", cmd.GeneratedBy),
	)
	return created, nil
}

func (g *Generator) mint(ctx context.Context, cmd GenerateCommand, batch map[string]struct{}, now time.Time) (*domain.GiftCode, error) {
	for draw := 0; draw < g.maxDraws; draw++ {
		token, err := g.drawToken()
		if err != nil {
			return nil, fmt.Errorf("failed to draw gift code: %w", err)
		}
		if _, dup := batch[token]; dup {
			continue
		}
		exists, err := g.codes.Exists(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("failed to check gift code: %w", err)
		}
		if exists {
			g.logger.Warn("gift code collision, redrawing")
			continue
		}

		code := domain.NewGiftCode(token, cmd.Reward, cmd.MaxUses, cmd.GeneratedBy, now)
		err = g.codes.Create(ctx, code)
		if errors.Is(err, xerrors.ErrDuplicateEntry) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to store gift code: %w", err)
		}
		return code, nil
	}
	return nil, fmt.Errorf("failed to generate a unique gift code after %d attempts", g.maxDraws)
}

// drawToken reads uniformly random symbols from the configured source.
func (g *Generator) drawToken() (string, error) {
	out := make([]byte, 0, g.codeLength)
	buf := make([]byte, g.codeLength)
	for len(out) < g.codeLength {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= rejectAbove {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == g.codeLength {
				break
			}
		}
	}
	return string(out), nil
}
