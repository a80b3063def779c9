package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vadimbarashkov/redirector/internal/database"
	"github.com/vadimbarashkov/redirector/internal/models"
	"golang.org/x/crypto/bcrypt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// LinkRepository defines the storage contract for link management.
type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) (*models.Link, error)
	GetByShortCode(ctx context.Context, shortCode string) (*models.Link, error)
	Update(ctx context.Context, shortCode, originalURL string) (*models.Link, error)
	SoftDelete(ctx context.Context, shortCode string) error
}

// CreateLinkParams carries the optional constraints a link may be
// created with.
type CreateLinkParams struct {
	OriginalURL string
	Password    string
	StartsAt    *time.Time
	ExpiresAt   *time.Time
	MaxClicks   *int64
	UserID      *int64
}

// LinkService manages link records. Every mutation invalidates the
// link's cache entry so the redirect path never serves a stale snapshot
// past the mutation.
type LinkService struct {
	repo            LinkRepository
	cache           LinkCache
	shortCodeLength int
}

func NewLinkService(repo LinkRepository, linkCache LinkCache, shortCodeLength int) *LinkService {
	return &LinkService{
		repo:            repo,
		cache:           linkCache,
		shortCodeLength: shortCodeLength,
	}
}

// CreateLink generates a unique short code, hashes the password if one
// is given, and stores the link. Short code collisions are retried with
// a longer code up to a maximum number of attempts.
func (s *LinkService) CreateLink(ctx context.Context, params CreateLinkParams) (*models.Link, error) {
	const op = "service.LinkService.CreateLink"
	const maxRetries = 5

	link := &models.Link{
		OriginalURL: params.OriginalURL,
		StartsAt:    params.StartsAt,
		ExpiresAt:   params.ExpiresAt,
		MaxClicks:   params.MaxClicks,
		UserID:      params.UserID,
	}

	if params.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
		}
		h := string(hash)
		link.PasswordHash = &h
	}

	for i := 0; i < maxRetries; i++ {
		shortCode, err := gonanoid.New(s.shortCodeLength + i)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}
		link.ShortCode = shortCode

		created, err := s.repo.Create(ctx, link)
		if err != nil {
			if errors.Is(err, database.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to create link: %w", op, err)
		}

		return created, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// ModifyLink updates the destination URL of a link and drops its cache
// entry.
func (s *LinkService) ModifyLink(ctx context.Context, shortCode, originalURL string) (*models.Link, error) {
	const op = "service.LinkService.ModifyLink"

	link, err := s.repo.Update(ctx, shortCode, originalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to modify link: %w", op, err)
	}

	s.cache.Invalidate(ctx, shortCode)

	return link, nil
}

// DeleteLink soft-deletes a link and drops its cache entry.
func (s *LinkService) DeleteLink(ctx context.Context, shortCode string) error {
	const op = "service.LinkService.DeleteLink"

	if err := s.repo.SoftDelete(ctx, shortCode); err != nil {
		return fmt.Errorf("%s: failed to delete link: %w", op, err)
	}

	s.cache.Invalidate(ctx, shortCode)

	return nil
}
