// Package state implements the per-subject rolling-window state that makes
// streaming rules cheap to evaluate: a bounded, time-ordered sequence of
// recent transaction entries with lazy expiry.
package state

import (
	"time"

	"github.com/shopspring/decimal"

	"riskengine/internal/domain"
)

// MaxTxEntries bounds a single subject's in-memory history. It is a circuit
// breaker against pathological abuse, not a correctness device: once hit, the
// oldest entry is dropped and the subject's true 24h total may be
// under-counted. That trade is considered acceptable at this size.
const MaxTxEntries = 10_000

// UserState holds one subject's rolling transaction history. It is owned by
// exactly one actor; callers are expected to serialize access externally
// (the actor pool's per-actor mutex) except where noted.
type UserState struct {
	UserID     string          `json:"user_id"`
	Entries    []domain.TxEntry `json:"entries"`
	LastAccess time.Time       `json:"last_access"`
}

// New constructs an empty state for the given subject.
func New(userID string) *UserState {
	return &UserState{UserID: userID}
}

// AddTx appends an entry at the tail, dropping the oldest entry first if the
// state is already at capacity, and refreshes LastAccess.
func (s *UserState) AddTx(entry domain.TxEntry) {
	if len(s.Entries) >= MaxTxEntries {
		s.Entries = s.Entries[1:]
	}
	s.Entries = append(s.Entries, entry)
	s.LastAccess = entry.Timestamp
}

// PruneExpired removes the contiguous head prefix of entries that fell out of
// the rolling window as of now. It stops at the first non-expired entry and
// is safe to call opportunistically: a delayed call only wastes memory,
// because queries filter by cutoff independently.
func (s *UserState) PruneExpired(now time.Time) {
	cutoff := now.Add(-domain.RollingWindow)
	i := 0
	for i < len(s.Entries) && !s.Entries[i].Timestamp.After(cutoff) {
		i++
	}
	if i > 0 {
		s.Entries = s.Entries[i:]
	}
}

// RollingUSD24h sums usd_value over entries within the trailing 24h window,
// measured from now. It is a pure function of the current entries and does
// not require PruneExpired to have run first.
func (s *UserState) RollingUSD24h(now time.Time) decimal.Decimal {
	cutoff := now.Add(-domain.RollingWindow)
	total := decimal.Zero
	for _, e := range s.Entries {
		if e.Timestamp.After(cutoff) {
			total = total.Add(e.USDValue)
		}
	}
	return total
}

// CountSmallTx counts entries within the trailing 24h window whose usd_value
// is strictly below threshold.
func (s *UserState) CountSmallTx(now time.Time, threshold decimal.Decimal) int {
	cutoff := now.Add(-domain.RollingWindow)
	count := 0
	for _, e := range s.Entries {
		if e.Timestamp.After(cutoff) && e.USDValue.LessThan(threshold) {
			count++
		}
	}
	return count
}

// View binds a UserState to a fixed evaluation instant so it can satisfy
// domain.RollingState without rule code needing to thread "now" through every
// call. The engine constructs one View per request, after capturing now.
type View struct {
	state *UserState
	now   time.Time
}

// NewView binds state to the evaluation instant now.
func NewView(s *UserState, now time.Time) View {
	return View{state: s, now: now}
}

// RollingUSD24h implements domain.RollingState.
func (v View) RollingUSD24h() decimal.Decimal {
	return v.state.RollingUSD24h(v.now)
}

// CountSmallTx implements domain.RollingState.
func (v View) CountSmallTx(threshold decimal.Decimal) int {
	return v.state.CountSmallTx(v.now, threshold)
}

// Snapshot returns a deep-enough copy suitable for embedding in a durable
// snapshot document; the entry slice is copied so later mutation of the live
// state cannot corrupt an in-flight snapshot write.
func (s *UserState) Snapshot() *UserState {
	cp := &UserState{
		UserID:     s.UserID,
		LastAccess: s.LastAccess,
		Entries:    make([]domain.TxEntry, len(s.Entries)),
	}
	copy(cp.Entries, s.Entries)
	return cp
}
