// internal/domain/entitlement/entity.go
package entitlement

import (
	"fmt"
	"strings"
	"time"

	xerrors "edu-ledger-service/internal/pkg/errors"
)

type Tier string

const (
	TierFree      Tier = "FREE"
	TierWeekly    Tier = "WEEKLY"
	TierMonthly   Tier = "MONTHLY"
	TierQuarterly Tier = "QUARTERLY"
	TierYearly    Tier = "YEARLY"
	TierLifetime  Tier = "LIFETIME"
	TierCustom    Tier = "CUSTOM"
)

// Tiers lists every known tier in display order.
var Tiers = []Tier{TierFree, TierWeekly, TierMonthly, TierQuarterly, TierYearly, TierLifetime, TierCustom}

func (t Tier) IsValid() bool {
	switch t {
	case TierFree, TierWeekly, TierMonthly, TierQuarterly, TierYearly, TierLifetime, TierCustom:
		return true
	}
	return false
}

// IsFixed reports whether the tier has a fixed, table-priced duration.
func (t Tier) IsFixed() bool {
	switch t {
	case TierWeekly, TierMonthly, TierQuarterly, TierYearly, TierLifetime:
		return true
	}
	return false
}

func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", xerrors.ErrInvalidTier, s)
	}
	return t, nil
}

type Level string

const (
	LevelBasic Level = "BASIC"
	LevelUltra Level = "ULTRA"
)

var Levels = []Level{LevelBasic, LevelUltra}

func (l Level) IsValid() bool {
	return l == LevelBasic || l == LevelUltra
}

func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", fmt.Errorf("%w: %q", xerrors.ErrInvalidLevel, s)
	}
	return l, nil
}

// GrantMode decides provenance of a grant, never its duration.
type GrantMode string

const (
	GrantModeFree GrantMode = "FREE"
	GrantModePaid GrantMode = "PAID"
)

func ParseGrantMode(s string) (GrantMode, error) {
	m := GrantMode(strings.ToUpper(strings.TrimSpace(s)))
	if m != GrantModeFree && m != GrantModePaid {
		return "", fmt.Errorf("%w: unknown grant mode %q", xerrors.ErrInvalidInput, s)
	}
	return m, nil
}

type GrantSource string

const (
	GrantSourceAdmin    GrantSource = "ADMIN"
	GrantSourcePurchase GrantSource = "PURCHASE"
)

// Source maps a grant mode to the provenance recorded in history.
func (m GrantMode) Source() GrantSource {
	if m == GrantModeFree {
		return GrantSourceAdmin
	}
	return GrantSourcePurchase
}

// CustomDuration is the six-part length of a CUSTOM grant.
type CustomDuration struct {
	Years   int `json:"years"`
	Months  int `json:"months"`
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

func (d CustomDuration) IsZero() bool {
	return d == CustomDuration{}
}

// CustomPlan is only present on CUSTOM entitlements.
type CustomPlan struct {
	Name     string         `json:"name"`
	Duration CustomDuration `json:"duration"`
}

// Entitlement is the user's current access grant.
type Entitlement struct {
	Tier           Tier        `json:"tier"`
	Level          Level       `json:"level,omitempty"`
	EndsAt         *time.Time  `json:"ends_at,omitempty"`
	Price          float64     `json:"price"`
	GrantedByAdmin bool        `json:"granted_by_admin"`
	Custom         *CustomPlan `json:"custom,omitempty"`
}

// Free returns the default entitlement every user starts with.
func Free() Entitlement {
	return Entitlement{Tier: TierFree}
}

// IsActive reports whether the entitlement grants access at the given instant.
func (e Entitlement) IsActive(at time.Time) bool {
	switch {
	case e.Tier == TierFree:
		return false
	case e.EndsAt == nil:
		return true
	default:
		return at.Before(*e.EndsAt)
	}
}

// Validate checks the tier/level/custom invariants of a stored entitlement.
func (e Entitlement) Validate() error {
	if !e.Tier.IsValid() {
		return fmt.Errorf("%w: %q", xerrors.ErrInvalidTier, e.Tier)
	}
	if e.Tier == TierFree {
		if e.EndsAt != nil || e.Custom != nil {
			return fmt.Errorf("%w: free entitlement cannot carry an expiry or custom plan", xerrors.ErrInvalidInput)
		}
		return nil
	}
	if !e.Level.IsValid() {
		return fmt.Errorf("%w: %q", xerrors.ErrInvalidLevel, e.Level)
	}
	if (e.Tier == TierCustom) != (e.Custom != nil) {
		return fmt.Errorf("%w: custom plan must be set exactly for CUSTOM tier", xerrors.ErrInvalidInput)
	}
	if e.Tier == TierLifetime && e.EndsAt != nil {
		return fmt.Errorf("%w: lifetime entitlement cannot expire", xerrors.ErrInvalidInput)
	}
	return nil
}

// User is the slice of a user document the ledger reads and writes.
type User struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Credits     int64          `json:"credits"`
	Entitlement Entitlement    `json:"entitlement"`
	History     []HistoryEntry `json:"history"`
	Version     int64          `json:"version"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
