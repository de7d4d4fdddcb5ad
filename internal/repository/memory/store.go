// internal/repository/memory/store.go
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"edu-ledger-service/internal/domain/entitlement"
	"edu-ledger-service/internal/domain/pricing"
	"edu-ledger-service/internal/domain/voucher"
	xerrors "edu-ledger-service/internal/pkg/errors"
)

// Store is an in-process implementation of every ledger repository. It backs
// tests and single-node deployments started with STORE_DRIVER=memory.
type Store struct {
	mu    sync.RWMutex
	users map[string]*entitlement.User
	codes map[string]*codeSlot
	plans map[entitlement.Tier]pricing.Plan
	cache pricing.Table
	now   func() time.Time
}

// codeSlot serializes redemptions of one code without blocking the others.
type codeSlot struct {
	mu   sync.Mutex
	code *voucher.GiftCode
}

func NewStore() *Store {
	return &Store{
		users: make(map[string]*entitlement.User),
		codes: make(map[string]*codeSlot),
		plans: make(map[entitlement.Tier]pricing.Plan),
		cache: pricing.Table{},
		now:   time.Now,
	}
}

// PutUser registers a user. A user without a tier starts on FREE.
func (s *Store) PutUser(u entitlement.User) {
	if u.Entitlement.Tier == "" {
		u.Entitlement = entitlement.Free()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = cloneUser(&u)
}

func (s *Store) EnsureUser(ctx context.Context, userID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		s.users[userID] = &entitlement.User{
			ID:          userID,
			Entitlement: entitlement.Free(),
			History:     []entitlement.HistoryEntry{},
			UpdatedAt:   s.now(),
		}
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, userID string) (*entitlement.User, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, xerrors.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) SaveEntitlement(ctx context.Context, u *entitlement.User, entry *entitlement.HistoryEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[u.ID]
	if !ok {
		return xerrors.ErrUserNotFound
	}
	if stored.Version != u.Version {
		return fmt.Errorf("%w: user %s changed since it was read", xerrors.ErrPersistenceConflict, u.ID)
	}

	next := cloneUser(stored)
	next.Entitlement = cloneEntitlement(u.Entitlement)
	if entry != nil {
		next.History = entitlement.Prepend(stored.History, *entry)
	}
	next.Version++
	next.UpdatedAt = s.now()
	s.users[u.ID] = next

	u.Version = next.Version
	u.UpdatedAt = next.UpdatedAt
	return nil
}

func (s *Store) AddCredits(ctx context.Context, userID string, amount int64) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, xerrors.ErrUserNotFound
	}
	u.Credits += amount
	u.UpdatedAt = s.now()
	return u.Credits, nil
}

func (s *Store) Create(ctx context.Context, gc *voucher.GiftCode) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[gc.Code]; ok {
		return fmt.Errorf("%w: gift code %s", xerrors.ErrDuplicateEntry, gc.Code)
	}
	s.codes[gc.Code] = &codeSlot{code: gc.Clone()}
	return nil
}

func (s *Store) Exists(ctx context.Context, code string) (bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.codes[code]
	return ok, nil
}

func (s *Store) FindByCode(ctx context.Context, code string) (*voucher.GiftCode, error) {
	slot, err := s.slot(ctx, code)
	if err != nil {
		return nil, err
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.code.Clone(), nil
}

// Redeem applies the redemption rules under the code's lock. A failed check
// leaves the stored code untouched.
func (s *Store) Redeem(ctx context.Context, code, redeemerID string) (*voucher.GiftCode, error) {
	slot, err := s.slot(ctx, code)
	if err != nil {
		return nil, err
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()

	next := slot.code.Clone()
	if err := next.Redeem(redeemerID); err != nil {
		return nil, err
	}
	slot.code = next
	return next.Clone(), nil
}

func (s *Store) slot(ctx context.Context, code string) (*codeSlot, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.codes[code]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return slot, nil
}

func (s *Store) ListPlans(ctx context.Context) ([]pricing.Plan, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	plans := make([]pricing.Plan, 0, len(s.plans))
	for _, tier := range entitlement.Tiers {
		if p, ok := s.plans[tier]; ok {
			plans = append(plans, p)
		}
	}
	return plans, nil
}

func (s *Store) UpsertPlans(ctx context.Context, plans []pricing.Plan) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range plans {
		s.plans[p.Tier] = p
	}
	return nil
}

// PricingCache exposes the store's table as a pricing.Cache. It is a separate
// value because Store already has a Create/Exists surface for codes.
func (s *Store) PricingCache() pricing.Cache {
	return cacheView{s: s}
}

type cacheView struct {
	s *Store
}

func (c cacheView) Load(ctx context.Context) (pricing.Table, error) {
	_ = ctx
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return c.s.cache.Clone(), nil
}

func (c cacheView) Store(ctx context.Context, t pricing.Table) error {
	_ = ctx
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.cache = t.Clone()
	return nil
}

func cloneUser(u *entitlement.User) *entitlement.User {
	out := *u
	out.Entitlement = cloneEntitlement(u.Entitlement)
	out.History = slices.Clone(u.History)
	if out.History == nil {
		out.History = []entitlement.HistoryEntry{}
	}
	return &out
}

func cloneEntitlement(e entitlement.Entitlement) entitlement.Entitlement {
	if e.EndsAt != nil {
		t := *e.EndsAt
		e.EndsAt = &t
	}
	if e.Custom != nil {
		c := *e.Custom
		e.Custom = &c
	}
	return e
}
