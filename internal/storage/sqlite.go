package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"freshrss_filter/internal/model"
	"freshrss_filter/migrations"
)

// Fixed-width so that lexical order matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var reviewColumns = []string{"item_id", "title", "url", "fingerprint", "is_ad", "confidence", "reason", "reviewed_at"}

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises
	// writers from concurrent pipeline workers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// HasReviewed reports whether a review exists for id.
func (s *SQLite) HasReviewed(ctx context.Context, id model.ItemID) (bool, error) {
	query, args, err := sq.Select("COUNT(*)").From("reviews").Where(sq.Eq{"item_id": string(id)}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("check review: %w", err)
	}
	return count > 0, nil
}

// SaveReview upserts a review.
func (s *SQLite) SaveReview(ctx context.Context, r model.Review) error {
	query, args, err := sq.Insert("reviews").
		Columns(reviewColumns...).
		Values(string(r.ItemID), r.Title, r.URL, r.Fingerprint, boolToInt(r.IsAd), r.Confidence, r.Reason,
			r.ReviewedAt.UTC().Format(timeLayout)).
		Suffix(upsertSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	return nil
}

const upsertSuffix = `ON CONFLICT (item_id) DO UPDATE SET
	title = excluded.title,
	url = excluded.url,
	fingerprint = excluded.fingerprint,
	is_ad = excluded.is_ad,
	confidence = excluded.confidence,
	reason = excluded.reason,
	reviewed_at = excluded.reviewed_at`

// GetReview returns the review for id or ErrNotFound.
func (s *SQLite) GetReview(ctx context.Context, id model.ItemID) (*model.Review, error) {
	query, args, err := sq.Select(reviewColumns...).From("reviews").Where(sq.Eq{"item_id": string(id)}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	r, err := scanReview(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReviews returns recent reviews, newest first.
func (s *SQLite) ListReviews(ctx context.Context, opts ListOptions) ([]model.Review, error) {
	b := sq.Select(reviewColumns...).From("reviews").
		OrderBy("reviewed_at DESC", "item_id").
		Limit(opts.limit())
	if opts.AdsOnly {
		b = b.Where(sq.Eq{"is_ad": 1})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reviews []model.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// CountReviews returns total and ad review counts.
func (s *SQLite) CountReviews(ctx context.Context) (Counts, error) {
	query, args, err := sq.Select("COUNT(*)", "COALESCE(SUM(is_ad), 0)").From("reviews").ToSql()
	if err != nil {
		return Counts{}, fmt.Errorf("build query: %w", err)
	}

	var c Counts
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&c.Total, &c.Ads); err != nil {
		return Counts{}, fmt.Errorf("count reviews: %w", err)
	}
	return c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanReview(row scannable) (model.Review, error) {
	var r model.Review
	var id, reviewed string
	var isAd int
	err := row.Scan(&id, &r.Title, &r.URL, &r.Fingerprint, &isAd, &r.Confidence, &r.Reason, &reviewed)
	if err != nil {
		return r, fmt.Errorf("scan review: %w", err)
	}
	r.ItemID = model.ItemID(id)
	r.IsAd = isAd == 1
	r.ReviewedAt, _ = time.Parse(timeLayout, reviewed)
	return r, nil
}
