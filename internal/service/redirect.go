package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vadimbarashkov/redirector/internal/broadcast"
	"github.com/vadimbarashkov/redirector/internal/clicks"
	"github.com/vadimbarashkov/redirector/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// RedirectRepository is the storage read contract of the redirect path.
type RedirectRepository interface {
	GetByShortCode(ctx context.Context, shortCode string) (*models.Link, error)
}

// LinkCache is the optional snapshot cache fronting link lookups. A
// disabled cache misses on every Get and absorbs every write; no
// implementation may propagate failures.
type LinkCache interface {
	Get(ctx context.Context, code string) (*models.LinkSnapshot, bool)
	Set(ctx context.Context, code string, snap *models.LinkSnapshot)
	Invalidate(ctx context.Context, code string)
}

// Enricher derives geo and client fields for a click record. It is a
// pure function; the default passes records through unchanged.
type Enricher interface {
	Enrich(rec models.ClickRecord) models.ClickRecord
}

// NopEnricher leaves click records unenriched.
type NopEnricher struct{}

func (NopEnricher) Enrich(rec models.ClickRecord) models.ClickRecord { return rec }

// Visit carries per-request data into a resolution.
type Visit struct {
	IP        string
	UserAgent string
	Referer   string
	// Password is the credential supplied via header, if any.
	Password string
}

// RedirectService resolves short codes to destinations. It composes the
// rate-limited hot path: cache lookup with storage fallback, activity
// and password gating, click buffering, and realtime broadcast. The
// buffer and hub are fire-and-forget from its perspective; their
// failures never fail a redirect.
type RedirectService struct {
	repo     RedirectRepository
	cache    LinkCache
	buffer   *clicks.Buffer
	flusher  *clicks.Flusher
	hub      *broadcast.Hub
	enricher Enricher

	now func() time.Time
}

func NewRedirectService(
	repo RedirectRepository,
	linkCache LinkCache,
	buffer *clicks.Buffer,
	flusher *clicks.Flusher,
	hub *broadcast.Hub,
	enricher Enricher,
) *RedirectService {
	if enricher == nil {
		enricher = NopEnricher{}
	}

	return &RedirectService{
		repo:     repo,
		cache:    linkCache,
		buffer:   buffer,
		flusher:  flusher,
		hub:      hub,
		enricher: enricher,
		now:      time.Now,
	}
}

// Resolve walks a single redirect: cache lookup, storage fallback,
// activity checks, password gate, then record-and-emit. It returns the
// destination URL, or database.ErrLinkNotFound, a LinkInactiveError,
// ErrPasswordRequired, or ErrPasswordIncorrect.
func (s *RedirectService) Resolve(ctx context.Context, shortCode string, visit Visit) (string, error) {
	const op = "service.RedirectService.Resolve"

	now := s.now()

	// Cached snapshots exist only for links without password or click
	// limit, so a hit needs no password gate and no precise counting.
	if snap, ok := s.cache.Get(ctx, shortCode); ok && snap.CacheEligible() {
		if activity := snap.Activity(now); activity != models.ActivityActive {
			return "", &LinkInactiveError{Reason: activity}
		}

		s.recordAndEmit(models.ClickEvent{
			LinkID:     snap.ID,
			ShortCode:  shortCode,
			UserID:     snap.UserID,
			ClickCount: snap.ClickCount + 1,
			Timestamp:  now,
		}, snap.ID, visit)

		return snap.OriginalURL, nil
	}

	link, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if link.CacheEligible() {
		s.cache.Set(ctx, shortCode, link.Snapshot())
	}

	if activity := link.Activity(now); activity != models.ActivityActive {
		return "", &LinkInactiveError{Reason: activity}
	}

	if link.HasPassword() {
		if visit.Password == "" {
			return "", ErrPasswordRequired
		}
		if bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(visit.Password)) != nil {
			return "", ErrPasswordIncorrect
		}
	}

	s.recordAndEmit(models.ClickEvent{
		LinkID:     link.ID,
		ShortCode:  shortCode,
		UserID:     link.UserID,
		ClickCount: link.ClickCount + 1,
		Timestamp:  now,
	}, link.ID, visit)

	// Click-limited and password-protected links are counted against the
	// database directly; drop any stale entry so future reads reflect it.
	if !link.CacheEligible() {
		s.cache.Invalidate(ctx, shortCode)
	}

	return link.OriginalURL, nil
}

// VerifyPassword resolves a password-protected link through the verify
// endpoint. On success the click is recorded exactly as on the redirect
// path and the destination URL is returned.
func (s *RedirectService) VerifyPassword(ctx context.Context, shortCode, password string, visit Visit) (string, error) {
	const op = "service.RedirectService.VerifyPassword"

	now := s.now()

	link, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if activity := link.Activity(now); activity != models.ActivityActive {
		return "", &LinkInactiveError{Reason: activity}
	}

	if link.HasPassword() {
		if bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(password)) != nil {
			return "", ErrPasswordIncorrect
		}
	}

	s.recordAndEmit(models.ClickEvent{
		LinkID:     link.ID,
		ShortCode:  shortCode,
		UserID:     link.UserID,
		ClickCount: link.ClickCount + 1,
		Timestamp:  now,
	}, link.ID, visit)

	s.cache.Invalidate(ctx, shortCode)

	return link.OriginalURL, nil
}

// recordAndEmit enqueues the click for the next flush and publishes the
// realtime event with the locally computed post-increment count. The
// broadcast count is optimistic and may drift from the stored counter
// until a flush lands; storage stays authoritative.
func (s *RedirectService) recordAndEmit(event models.ClickEvent, linkID int64, visit Visit) {
	rec := s.enricher.Enrich(models.ClickRecord{
		LinkID:    linkID,
		IP:        visit.IP,
		UserAgent: visit.UserAgent,
		Referer:   visit.Referer,
	})

	s.buffer.Add(rec)
	if s.buffer.ShouldFlush() && s.flusher != nil {
		s.flusher.Kick()
	}

	event.Country = rec.Country
	event.City = rec.City
	event.Device = rec.Device
	event.Browser = rec.Browser

	s.hub.Broadcast(event)
}
