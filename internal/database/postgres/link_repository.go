package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/redirector/internal/database"
	"github.com/vadimbarashkov/redirector/internal/models"
)

type linkRecord struct {
	ID           int64      `db:"id"`
	ShortCode    string     `db:"short_code"`
	OriginalURL  string     `db:"original_url"`
	PasswordHash *string    `db:"password_hash"`
	StartsAt     *time.Time `db:"starts_at"`
	ExpiresAt    *time.Time `db:"expires_at"`
	MaxClicks    *int64     `db:"max_clicks"`
	ClickCount   int64      `db:"click_count"`
	UserID       *int64     `db:"user_id"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at"`
}

func (r *linkRecord) ToLink() *models.Link {
	return &models.Link{
		ID:           r.ID,
		ShortCode:    r.ShortCode,
		OriginalURL:  r.OriginalURL,
		PasswordHash: r.PasswordHash,
		StartsAt:     r.StartsAt,
		ExpiresAt:    r.ExpiresAt,
		MaxClicks:    r.MaxClicks,
		ClickCount:   r.ClickCount,
		UserID:       r.UserID,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		DeletedAt:    r.DeletedAt,
	}
}

type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{
		db: db,
	}
}

func (r *LinkRepository) Create(ctx context.Context, link *models.Link) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.Create"

	rec := new(linkRecord)
	query := `INSERT INTO links(short_code, original_url, password_hash, starts_at, expires_at, max_clicks, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query,
		link.ShortCode, link.OriginalURL, link.PasswordHash,
		link.StartsAt, link.ExpiresAt, link.MaxClicks, link.UserID)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to create link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

func (r *LinkRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.GetByShortCode"

	rec := new(linkRecord)
	query := `SELECT * FROM links
		WHERE short_code = $1 AND deleted_at IS NULL`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

func (r *LinkRepository) Update(ctx context.Context, shortCode, originalURL string) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.Update"

	rec := new(linkRecord)
	query := `UPDATE links
		SET original_url = $1, updated_at = now()
		WHERE short_code = $2 AND deleted_at IS NULL
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, originalURL, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

func (r *LinkRepository) SoftDelete(ctx context.Context, shortCode string) error {
	const op = "database.postgres.LinkRepository.SoftDelete"

	query := `UPDATE links
		SET deleted_at = now()
		WHERE short_code = $1 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, shortCode)
	if err != nil {
		return fmt.Errorf("%s: failed to delete link record: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}

	return nil
}
