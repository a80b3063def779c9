package models

import "time"

// Activity describes whether a link may be followed at a given instant.
type Activity string

const (
	ActivityActive       Activity = "active"
	ActivityScheduled    Activity = "scheduled"
	ActivityExpired      Activity = "expired"
	ActivityLimitReached Activity = "limit_reached"
)

// Link represents a short link and its associated metadata.
type Link struct {
	// ID is the unique identifier for the link record.
	ID int64
	// ShortCode is the code under which the link is resolved.
	ShortCode string
	// OriginalURL is the destination the short code redirects to.
	OriginalURL string
	// PasswordHash holds the bcrypt hash for password-protected links.
	PasswordHash *string
	// StartsAt delays activation of the link until the given time.
	StartsAt *time.Time
	// ExpiresAt deactivates the link after the given time.
	ExpiresAt *time.Time
	// MaxClicks caps the number of times the link may be followed.
	MaxClicks *int64
	// ClickCount tracks how many times the link has been followed.
	ClickCount int64
	// UserID is the owning user, if the link was created by an
	// authenticated user.
	UserID *int64
	// CreatedAt is the timestamp indicating when the link was created.
	CreatedAt time.Time
	// UpdatedAt is the timestamp indicating when the link was last updated.
	UpdatedAt time.Time
	// DeletedAt marks the link as soft-deleted when set.
	DeletedAt *time.Time
}

// HasPassword reports whether the link requires a password to follow.
func (l *Link) HasPassword() bool {
	return l.PasswordHash != nil && *l.PasswordHash != ""
}

// Activity evaluates the link's availability at the given instant.
// Scheduling takes priority over expiry, which takes priority over the
// click limit.
func (l *Link) Activity(now time.Time) Activity {
	if l.StartsAt != nil && now.Before(*l.StartsAt) {
		return ActivityScheduled
	}
	if l.ExpiresAt != nil && now.After(*l.ExpiresAt) {
		return ActivityExpired
	}
	if l.MaxClicks != nil && l.ClickCount >= *l.MaxClicks {
		return ActivityLimitReached
	}
	return ActivityActive
}

// CacheEligible reports whether a snapshot of the link may be cached.
// Password-protected and click-limited links require precise per-click
// state and must always be resolved against storage.
func (l *Link) CacheEligible() bool {
	return !l.HasPassword() && l.MaxClicks == nil
}

// Snapshot converts the link into its cacheable form.
func (l *Link) Snapshot() *LinkSnapshot {
	snap := &LinkSnapshot{
		ID:          l.ID,
		OriginalURL: l.OriginalURL,
		HasPassword: l.HasPassword(),
		MaxClicks:   l.MaxClicks,
		ClickCount:  l.ClickCount,
		UserID:      l.UserID,
	}

	if l.StartsAt != nil {
		v := l.StartsAt.Unix()
		snap.StartsAt = &v
	}
	if l.ExpiresAt != nil {
		v := l.ExpiresAt.Unix()
		snap.ExpiresAt = &v
	}

	return snap
}

// LinkSnapshot is the cached projection of a link used on the redirect
// hot path. Activity fields are stored as epoch seconds so the snapshot
// stays cheap to encode.
type LinkSnapshot struct {
	ID          int64  `json:"id"`
	OriginalURL string `json:"original_url"`
	HasPassword bool   `json:"has_password"`
	StartsAt    *int64 `json:"starts_at,omitempty"`
	ExpiresAt   *int64 `json:"expires_at,omitempty"`
	MaxClicks   *int64 `json:"max_clicks,omitempty"`
	ClickCount  int64  `json:"click_count"`
	UserID      *int64 `json:"user_id,omitempty"`
}

// CacheEligible mirrors Link.CacheEligible for snapshots read back from
// the cache, guarding against entries written by older versions.
func (s *LinkSnapshot) CacheEligible() bool {
	return !s.HasPassword && s.MaxClicks == nil
}

// Activity evaluates availability from the snapshot's fields.
func (s *LinkSnapshot) Activity(now time.Time) Activity {
	if s.StartsAt != nil && now.Unix() < *s.StartsAt {
		return ActivityScheduled
	}
	if s.ExpiresAt != nil && now.Unix() > *s.ExpiresAt {
		return ActivityExpired
	}
	if s.MaxClicks != nil && s.ClickCount >= *s.MaxClicks {
		return ActivityLimitReached
	}
	return ActivityActive
}
