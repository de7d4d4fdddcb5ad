package entitlement

import (
	"sort"
	"time"
)

// UnboundedDurationHours is recorded as the duration of lifetime grants.
const UnboundedDurationHours int64 = 999999

// HistoryEntry records one grant. Entries are never edited once written.
type HistoryEntry struct {
	ID            string      `json:"id"`
	Tier          Tier        `json:"tier"`
	Level         Level       `json:"level"`
	StartDate     time.Time   `json:"start_date"`
	EndDate       Expiry      `json:"end_date"`
	DurationHours int64       `json:"duration_hours"`
	Price         float64     `json:"price"`
	OriginalPrice float64     `json:"original_price"`
	IsFree        bool        `json:"is_free"`
	GrantSource   GrantSource `json:"grant_source"`
	GrantedBy     string      `json:"granted_by,omitempty"`
	GrantedByName string      `json:"granted_by_name,omitempty"`
	CustomName    string      `json:"custom_name,omitempty"`
}

// DurationHours converts a grant window into whole hours.
func DurationHours(start time.Time, end Expiry) int64 {
	switch end.Kind() {
	case ExpiryLifetime:
		return UnboundedDurationHours
	case ExpiryAt:
		at, _ := end.At()
		return int64(at.Sub(start) / time.Hour)
	default:
		return 0
	}
}

// Prepend returns a new history with entry first. The input slice is left
// untouched so callers holding the old history never observe the change.
func Prepend(history []HistoryEntry, entry HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(history)+1)
	out = append(out, entry)
	return append(out, history...)
}

// ByStartDesc returns a display copy ordered by start date, newest first.
// Entries with equal start dates keep their insertion order.
func ByStartDesc(history []HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.After(out[j].StartDate)
	})
	return out
}
