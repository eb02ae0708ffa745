package storage

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"freshrss_filter/internal/model"
)

const postgresMaxConns = 5

const postgresSchema = `
CREATE TABLE IF NOT EXISTS reviews (
    item_id     TEXT PRIMARY KEY,
    title       TEXT NOT NULL DEFAULT '',
    url         TEXT NOT NULL DEFAULT '',
    fingerprint TEXT NOT NULL DEFAULT '',
    is_ad       BOOLEAN NOT NULL DEFAULT FALSE,
    confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
    reason      TEXT NOT NULL DEFAULT '',
    reviewed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reviews_reviewed_at ON reviews (reviewed_at);
CREATE INDEX IF NOT EXISTS idx_reviews_is_ad ON reviews (is_ad, reviewed_at);
`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Postgres implements Storage backed by a PostgreSQL pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and ensures the reviews table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = postgresMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// HasReviewed reports whether a review exists for id.
func (p *Postgres) HasReviewed(ctx context.Context, id model.ItemID) (bool, error) {
	query, args, err := psql.Select("COUNT(*)").From("reviews").Where(sq.Eq{"item_id": string(id)}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var count int
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("check review: %w", err)
	}
	return count > 0, nil
}

// SaveReview upserts a review.
func (p *Postgres) SaveReview(ctx context.Context, r model.Review) error {
	query, args, err := psql.Insert("reviews").
		Columns(reviewColumns...).
		Values(string(r.ItemID), r.Title, r.URL, r.Fingerprint, r.IsAd, r.Confidence, r.Reason, r.ReviewedAt.UTC()).
		Suffix(upsertSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	return nil
}

// GetReview returns the review for id or ErrNotFound.
func (p *Postgres) GetReview(ctx context.Context, id model.ItemID) (*model.Review, error) {
	query, args, err := psql.Select(reviewColumns...).From("reviews").Where(sq.Eq{"item_id": string(id)}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	r, err := scanPGReview(p.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReviews returns recent reviews, newest first.
func (p *Postgres) ListReviews(ctx context.Context, opts ListOptions) ([]model.Review, error) {
	b := psql.Select(reviewColumns...).From("reviews").
		OrderBy("reviewed_at DESC", "item_id").
		Limit(opts.limit())
	if opts.AdsOnly {
		b = b.Where(sq.Eq{"is_ad": true})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		r, err := scanPGReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// CountReviews returns total and ad review counts.
func (p *Postgres) CountReviews(ctx context.Context) (Counts, error) {
	query, args, err := psql.Select("COUNT(*)", "COUNT(*) FILTER (WHERE is_ad)").From("reviews").ToSql()
	if err != nil {
		return Counts{}, fmt.Errorf("build query: %w", err)
	}

	var c Counts
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&c.Total, &c.Ads); err != nil {
		return Counts{}, fmt.Errorf("count reviews: %w", err)
	}
	return c, nil
}

func scanPGReview(row pgx.Row) (model.Review, error) {
	var r model.Review
	var id string
	err := row.Scan(&id, &r.Title, &r.URL, &r.Fingerprint, &r.IsAd, &r.Confidence, &r.Reason, &r.ReviewedAt)
	if err != nil {
		return r, fmt.Errorf("scan review: %w", err)
	}
	r.ItemID = model.ItemID(id)
	r.ReviewedAt = r.ReviewedAt.UTC()
	return r, nil
}
