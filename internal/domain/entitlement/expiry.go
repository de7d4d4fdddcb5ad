package entitlement

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// LifetimeMarker is how a never-ending grant is written in history.
const LifetimeMarker = "LIFETIME"

type ExpiryKind int

const (
	// ExpiryNone: no subscription window at all (FREE).
	ExpiryNone ExpiryKind = iota
	// ExpiryLifetime: subscribed, never expires.
	ExpiryLifetime
	// ExpiryAt: subscribed until an absolute instant.
	ExpiryAt
)

// Expiry is the outcome of a duration computation.
type Expiry struct {
	kind ExpiryKind
	at   time.Time
}

func NoExpiry() Expiry { return Expiry{kind: ExpiryNone} }

func Lifetime() Expiry { return Expiry{kind: ExpiryLifetime} }

func ExpiresAt(t time.Time) Expiry { return Expiry{kind: ExpiryAt, at: t} }

func (e Expiry) Kind() ExpiryKind { return e.kind }

func (e Expiry) IsLifetime() bool { return e.kind == ExpiryLifetime }

// At returns the expiry instant when the kind is ExpiryAt.
func (e Expiry) At() (time.Time, bool) {
	if e.kind != ExpiryAt {
		return time.Time{}, false
	}
	return e.at, true
}

// EndsAt is the value stored on an Entitlement: nil unless an instant is known.
func (e Expiry) EndsAt() *time.Time {
	if e.kind != ExpiryAt {
		return nil
	}
	t := e.at
	return &t
}

func (e Expiry) String() string {
	switch e.kind {
	case ExpiryLifetime:
		return LifetimeMarker
	case ExpiryAt:
		return e.at.Format(time.RFC3339)
	default:
		return "none"
	}
}

func (e Expiry) MarshalJSON() ([]byte, error) {
	switch e.kind {
	case ExpiryLifetime:
		return json.Marshal(LifetimeMarker)
	case ExpiryAt:
		return json.Marshal(e.at)
	default:
		return []byte("null"), nil
	}
}

func (e *Expiry) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*e = NoExpiry()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expiry must be a string or null: %w", err)
	}
	if s == LifetimeMarker {
		*e = Lifetime()
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid expiry %q: %w", s, err)
	}
	*e = ExpiresAt(t)
	return nil
}
