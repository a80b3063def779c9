package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/redirector/internal/models"
)

type clickRecord struct {
	LinkID    int64   `db:"link_id"`
	IP        string  `db:"ip"`
	UserAgent string  `db:"user_agent"`
	Referer   string  `db:"referer"`
	Country   string  `db:"country"`
	City      string  `db:"city"`
	Region    string  `db:"region"`
	Latitude  float64 `db:"latitude"`
	Longitude float64 `db:"longitude"`
	Device    string  `db:"device"`
	Browser   string  `db:"browser"`
	OS        string  `db:"os"`
}

func toClickRecord(rec models.ClickRecord) clickRecord {
	return clickRecord{
		LinkID:    rec.LinkID,
		IP:        rec.IP,
		UserAgent: rec.UserAgent,
		Referer:   rec.Referer,
		Country:   rec.Country,
		City:      rec.City,
		Region:    rec.Region,
		Latitude:  rec.Latitude,
		Longitude: rec.Longitude,
		Device:    rec.Device,
		Browser:   rec.Browser,
		OS:        rec.OS,
	}
}

// ClickRepository persists flushed click batches. It implements the
// click buffer's store contract: one multi-row insert for records and
// one counter update per link, keeping write amplification proportional
// to distinct links touched rather than raw click volume.
type ClickRepository struct {
	db *sqlx.DB
}

func NewClickRepository(db *sqlx.DB) *ClickRepository {
	return &ClickRepository{
		db: db,
	}
}

func (r *ClickRepository) InsertBatch(ctx context.Context, records []models.ClickRecord) error {
	const op = "database.postgres.ClickRepository.InsertBatch"

	if len(records) == 0 {
		return nil
	}

	recs := make([]clickRecord, len(records))
	for i, rec := range records {
		recs[i] = toClickRecord(rec)
	}

	query := `INSERT INTO clicks(link_id, ip, user_agent, referer, country, city, region, latitude, longitude, device, browser, os)
		VALUES (:link_id, :ip, :user_agent, :referer, :country, :city, :region, :latitude, :longitude, :device, :browser, :os)`

	if _, err := r.db.NamedExecContext(ctx, query, recs); err != nil {
		return fmt.Errorf("%s: failed to insert click batch: %w", op, err)
	}

	return nil
}

func (r *ClickRepository) IncrementClickCount(ctx context.Context, linkID, delta int64) error {
	const op = "database.postgres.ClickRepository.IncrementClickCount"

	query := `UPDATE links
		SET click_count = click_count + $1
		WHERE id = $2`

	if _, err := r.db.ExecContext(ctx, query, delta, linkID); err != nil {
		return fmt.Errorf("%s: failed to increment click count: %w", op, err)
	}

	return nil
}
