package storage

import (
	"context"
	"errors"

	"github.com/Ibino273/raspi-moto-scraper/models"
)

// ErrNotFound is returned by FindByNaturalKey and Update when no listing has the key.
var ErrNotFound = errors.New("storage: listing not found")

// ListingStore is the interface any listing persistence backend must satisfy.
type ListingStore interface {
	FindByNaturalKey(ctx context.Context, key string) (*models.Listing, error)
	Insert(ctx context.Context, l *models.Listing) error
	// Update applies a partial update; fields the patch does not carry keep
	// their stored value.
	Update(ctx context.Context, key string, patch models.ListingPatch) error
	Close() error
}

// RawDetailWriter is the interface for persisting unprocessed scraped data.
type RawDetailWriter interface {
	WriteRaw(detail models.RawDetail) error
	Close() error
}
