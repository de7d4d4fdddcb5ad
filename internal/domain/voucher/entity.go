// internal/domain/voucher/entity.go
package voucher

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"edu-ledger-service/internal/domain/entitlement"
	xerrors "edu-ledger-service/internal/pkg/errors"
)

type CodeType string

const (
	CodeTypeCredits      CodeType = "CREDITS"
	CodeTypeSubscription CodeType = "SUBSCRIPTION"
)

func ParseCodeType(s string) (CodeType, error) {
	t := CodeType(strings.ToUpper(strings.TrimSpace(s)))
	if t != CodeTypeCredits && t != CodeTypeSubscription {
		return "", fmt.Errorf("%w: unknown code type %q", xerrors.ErrInvalidInput, s)
	}
	return t, nil
}

type CreditReward struct {
	Amount int64 `json:"amount"`
}

type SubscriptionReward struct {
	Tier  entitlement.Tier  `json:"sub_tier"`
	Level entitlement.Level `json:"sub_level"`
}

// Reward is what a code converts into. Exactly one field is set, matching Type.
type Reward struct {
	Type         CodeType            `json:"type"`
	Credits      *CreditReward       `json:"credits,omitempty"`
	Subscription *SubscriptionReward `json:"subscription,omitempty"`
}

func CreditsReward(amount int64) Reward {
	return Reward{Type: CodeTypeCredits, Credits: &CreditReward{Amount: amount}}
}

func SubscriptionRewardOf(tier entitlement.Tier, level entitlement.Level) Reward {
	return Reward{Type: CodeTypeSubscription, Subscription: &SubscriptionReward{Tier: tier, Level: level}}
}

func (r Reward) Validate() error {
	switch r.Type {
	case CodeTypeCredits:
		if r.Credits == nil || r.Subscription != nil {
			return fmt.Errorf("%w: credits code must carry only an amount", xerrors.ErrInvalidInput)
		}
		if r.Credits.Amount <= 0 {
			return fmt.Errorf("%w: credit amount must be positive", xerrors.ErrInvalidInput)
		}
	case CodeTypeSubscription:
		if r.Subscription == nil || r.Credits != nil {
			return fmt.Errorf("%w: subscription code must carry only a tier and level", xerrors.ErrInvalidInput)
		}
		if !r.Subscription.Tier.IsFixed() {
			return fmt.Errorf("%w: %q cannot be granted by a gift code", xerrors.ErrInvalidTier, r.Subscription.Tier)
		}
		if !r.Subscription.Level.IsValid() {
			return fmt.Errorf("%w: %q", xerrors.ErrInvalidLevel, r.Subscription.Level)
		}
	default:
		return fmt.Errorf("%w: unknown code type %q", xerrors.ErrInvalidInput, r.Type)
	}
	return nil
}

type GiftCode struct {
	Code        string    `json:"code"`
	Reward      Reward    `json:"reward"`
	CreatedAt   time.Time `json:"created_at"`
	MaxUses     int       `json:"max_uses"`
	UsedCount   int       `json:"used_count"`
	RedeemedBy  []string  `json:"redeemed_by"`
	IsRedeemed  bool      `json:"is_redeemed"`
	GeneratedBy string    `json:"generated_by"`
}

// NewGiftCode mints an unused code.
func NewGiftCode(code string, reward Reward, maxUses int, generatedBy string, now time.Time) *GiftCode {
	return &GiftCode{
		Code:        code,
		Reward:      reward,
		CreatedAt:   now,
		MaxUses:     maxUses,
		UsedCount:   0,
		RedeemedBy:  []string{},
		GeneratedBy: generatedBy,
	}
}

func (c *GiftCode) HasRedeemed(redeemerID string) bool {
	return slices.Contains(c.RedeemedBy, redeemerID)
}

func (c *GiftCode) Remaining() int {
	if c.UsedCount >= c.MaxUses {
		return 0
	}
	return c.MaxUses - c.UsedCount
}

// CheckRedeemable applies the redemption rules in order: a redeemer that
// already used the code is told so even when the code is also exhausted.
func (c *GiftCode) CheckRedeemable(redeemerID string) error {
	if c.HasRedeemed(redeemerID) {
		return xerrors.ErrAlreadyRedeemed
	}
	if c.UsedCount >= c.MaxUses {
		return xerrors.ErrExhausted
	}
	return nil
}

// Redeem checks and records one redemption. Callers must hold the code's
// lock or transaction for the whole call.
func (c *GiftCode) Redeem(redeemerID string) error {
	if err := c.CheckRedeemable(redeemerID); err != nil {
		return err
	}
	c.UsedCount++
	c.RedeemedBy = append(c.RedeemedBy, redeemerID)
	if c.UsedCount >= c.MaxUses {
		c.IsRedeemed = true
	}
	return nil
}

// Clone returns a deep copy safe to hand out of a store.
func (c *GiftCode) Clone() *GiftCode {
	out := *c
	out.RedeemedBy = slices.Clone(c.RedeemedBy)
	if out.RedeemedBy == nil {
		out.RedeemedBy = []string{}
	}
	if c.Reward.Credits != nil {
		cr := *c.Reward.Credits
		out.Reward.Credits = &cr
	}
	if c.Reward.Subscription != nil {
		sr := *c.Reward.Subscription
		out.Reward.Subscription = &sr
	}
	return &out
}
