// Package store persists the price-context cache.
package store

import (
	"context"

	"github.com/labmarket/pricewatch/internal/model"
)

// Key identifies a cache row. Components must already be normalized; the
// uniqueness invariant lives on the (brand, model, category) triple.
type Key struct {
	Brand    string
	Model    string
	Category string
}

// Store defines the persistence interface for the price cache. Expired rows
// are treated as absent: Get returns (nil, nil) for both missing and
// past-expiry entries.
type Store interface {
	GetPriceContext(ctx context.Context, key Key) (*model.PriceCacheEntry, error)
	UpsertPriceContext(ctx context.Context, entry model.PriceCacheEntry) error
	DeleteExpired(ctx context.Context) (int, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
