package ratelimit

import (
	"sync"
	"time"
)

// Default budget values. The platform allows 60 requests per minute for
// authenticated clients; half of that leaves headroom for clock skew and
// for other consumers of the same credentials.
const (
	// DefaultRequestsPerMinute is the rolling-window ceiling.
	DefaultRequestsPerMinute = 30

	// DefaultDailyCeiling is the soft per-day ceiling. Staying well under
	// the provider's tolerance avoids IP-level blocking on scheduled runs.
	DefaultDailyCeiling = 1000

	// Window is the rolling window length.
	Window = time.Minute
)

// Budget tracks request counts in a rolling one-minute window and against a
// daily ceiling. Safe for concurrent use.
type Budget struct {
	mu sync.Mutex

	ceiling int
	window  time.Duration

	// stamps holds the issue times of requests inside the current window,
	// oldest first.
	stamps []time.Time

	dailyCeiling int
	day          time.Time // start of the UTC day dailyCount belongs to
	dailyCount   int

	// now is replaceable for tests.
	now func() time.Time
}

// Option configures a Budget.
type Option func(*Budget)

// WithCeiling sets the per-window request ceiling.
func WithCeiling(n int) Option {
	return func(b *Budget) {
		if n > 0 {
			b.ceiling = n
		}
	}
}

// WithDailyCeiling sets the per-day request ceiling. Zero disables the
// daily check.
func WithDailyCeiling(n int) Option {
	return func(b *Budget) {
		b.dailyCeiling = n
	}
}

// WithClock replaces the time source. Used by tests to drive the window
// deterministically.
func WithClock(now func() time.Time) Option {
	return func(b *Budget) {
		b.now = now
	}
}

// NewBudget creates a Budget with the default ceilings.
func NewBudget(opts ...Option) *Budget {
	b := &Budget{
		ceiling:      DefaultRequestsPerMinute,
		window:       Window,
		dailyCeiling: DefaultDailyCeiling,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// TryAcquire attempts to reserve one request slot. When allowed, the slot is
// consumed and counted immediately. When denied, waitHint is the minimum
// duration the caller must sleep before trying again; no request may be sent
// while denied.
func (b *Budget) TryAcquire() (allowed bool, waitHint time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now().UTC()
	b.expireLocked(now)
	b.rollDayLocked(now)

	if b.dailyCeiling > 0 && b.dailyCount >= b.dailyCeiling {
		// Next UTC midnight.
		return false, b.day.Add(24 * time.Hour).Sub(now)
	}

	if len(b.stamps) >= b.ceiling {
		// The oldest stamp leaving the window frees a slot.
		return false, b.stamps[0].Add(b.window).Sub(now)
	}

	b.stamps = append(b.stamps, now)
	b.dailyCount++
	return true, 0
}

// InWindow returns the number of requests counted in the current window.
func (b *Budget) InWindow() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked(b.now().UTC())
	return len(b.stamps)
}

// DailyUsage returns the UTC day start and the request count charged to it.
func (b *Budget) DailyUsage() (day time.Time, count int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollDayLocked(b.now().UTC())
	return b.day, b.dailyCount
}

// PrimeDailyUsage seeds the daily counter from persisted state so scheduled
// runs share one allowance. Counts from a previous UTC day are discarded.
func (b *Budget) PrimeDailyUsage(day time.Time, count int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	today := b.now().UTC().Truncate(24 * time.Hour)
	if day.UTC().Truncate(24 * time.Hour).Equal(today) {
		b.day = today
		b.dailyCount = count
	}
}

// expireLocked drops stamps that have left the rolling window.
func (b *Budget) expireLocked(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.stamps) && !b.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		b.stamps = append(b.stamps[:0], b.stamps[i:]...)
	}
}

// rollDayLocked resets the daily counter at UTC day boundaries.
func (b *Budget) rollDayLocked(now time.Time) {
	today := now.Truncate(24 * time.Hour)
	if !b.day.Equal(today) {
		b.day = today
		b.dailyCount = 0
	}
}
