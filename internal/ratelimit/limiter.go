package ratelimit

import (
	"sync"
	"time"
)

// Tier names a request class with its own fixed-window budget.
type Tier string

const (
	// TierBurst is the tight per-second guard applied to all
	// non-redirect routes.
	TierBurst Tier = "burst"
	// TierAPI covers general API traffic.
	TierAPI Tier = "api"
	// TierAuth covers authentication endpoints.
	TierAuth Tier = "auth"
	// TierCreate covers link creation.
	TierCreate Tier = "create"
	// TierRedirect covers the redirect path itself. It is configured far
	// more permissively than the other tiers so that redirects are never
	// starved by API or auth traffic.
	TierRedirect Tier = "redirect"
)

// Limit is a tier's fixed-window budget.
type Limit struct {
	Max    int
	Window time.Duration
}

// Decision is the outcome of a single rate-limit check. The limiter never
// errors; it only allows or limits.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type entry struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

// Limiter counts requests per (tier, key) in fixed, non-overlapping
// windows. Entries carry their own lock so a check never contends with
// checks for other keys or with the background sweep longer than one
// O(1) critical section.
type Limiter struct {
	tiers   map[Tier]Limit
	entries sync.Map // "tier:key" -> *entry

	now func() time.Time
}

func New(tiers map[Tier]Limit) *Limiter {
	return &Limiter{
		tiers: tiers,
		now:   time.Now,
	}
}

// Check records one request for the key within the tier and reports
// whether it is allowed. The window resets the first time a check occurs
// after it has elapsed. Unknown tiers are always allowed.
func (l *Limiter) Check(tier Tier, key string) Decision {
	limit, ok := l.tiers[tier]
	if !ok {
		return Decision{Allowed: true}
	}

	now := l.now()

	v, ok := l.entries.Load(string(tier) + ":" + key)
	if !ok {
		v, _ = l.entries.LoadOrStore(string(tier)+":"+key, &entry{windowStart: now})
	}
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()

	elapsed := now.Sub(e.windowStart)
	if elapsed >= limit.Window {
		e.count = 0
		e.windowStart = now
		elapsed = 0
	}

	if e.count < limit.Max {
		e.count++
		return Decision{
			Allowed:   true,
			Limit:     limit.Max,
			Remaining: limit.Max - e.count,
		}
	}

	return Decision{
		Allowed:    false,
		Limit:      limit.Max,
		Remaining:  0,
		RetryAfter: limit.Window - elapsed,
	}
}

// Sweep drops entries whose window age exceeds twice the tier's window
// duration. Entries with a still-active window are never removed.
func (l *Limiter) Sweep() {
	now := l.now()

	l.entries.Range(func(key, value any) bool {
		e := value.(*entry)

		tier, _, ok := cutTier(key.(string))
		if !ok {
			l.entries.Delete(key)
			return true
		}

		limit, ok := l.tiers[tier]
		if !ok {
			l.entries.Delete(key)
			return true
		}

		e.mu.Lock()
		stale := now.Sub(e.windowStart) > 2*limit.Window
		e.mu.Unlock()

		if stale {
			l.entries.Delete(key)
		}

		return true
	})
}

func cutTier(key string) (Tier, string, bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return Tier(key[:i]), key[i+1:], true
		}
	}
	return "", "", false
}
