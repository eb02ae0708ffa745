// Package storage persists classification reviews.
package storage

import (
	"context"
	"errors"
	"fmt"

	"freshrss_filter/internal/config"
	"freshrss_filter/internal/model"
)

// ErrNotFound is returned when a review does not exist.
var ErrNotFound = errors.New("review not found")

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// ListOptions narrows ListReviews.
type ListOptions struct {
	AdsOnly bool
	Limit   int
}

func (o ListOptions) limit() uint64 {
	switch {
	case o.Limit <= 0:
		return defaultListLimit
	case o.Limit > maxListLimit:
		return maxListLimit
	}
	return uint64(o.Limit)
}

// Counts summarises the review table.
type Counts struct {
	Total int
	Ads   int
}

// Storage is the interface for all persistence operations.
type Storage interface {
	HasReviewed(ctx context.Context, id model.ItemID) (bool, error)
	// SaveReview inserts or replaces the review for r.ItemID.
	SaveReview(ctx context.Context, r model.Review) error
	GetReview(ctx context.Context, id model.ItemID) (*model.Review, error)
	// ListReviews returns the most recent reviews first.
	ListReviews(ctx context.Context, opts ListOptions) ([]model.Review, error)
	CountReviews(ctx context.Context) (Counts, error)

	Close() error
}

// Open creates the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Storage, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.Path)
	case "postgres":
		return NewPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
