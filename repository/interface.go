package repository

import (
	"context"
	"errors"

	"listing-service/models"
)

var (
	// ErrNotFound is returned when no active listing has the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a versioned write kept losing races.
	ErrVersionConflict = errors.New("listing store changed concurrently, retries exhausted")
)

// ListingRepo defines the storage operations used by the listing service.
// Adapters only ever return active listings; Delete is a soft delete that
// hands back the listing as it was before deactivation.
type ListingRepo interface {
	Find(ctx context.Context, q models.ListingQuery) ([]*models.Listing, error)
	FindByID(ctx context.Context, id string) (*models.Listing, error)
	Create(ctx context.Context, listing *models.Listing) error
	Update(ctx context.Context, id string, update models.ListingUpdate) (*models.Listing, error)
	Delete(ctx context.Context, id string) (*models.Listing, error)
	Stats(ctx context.Context) (*models.ListingStats, error)
	Ping(ctx context.Context) error
	EnsureIndexes(ctx context.Context) error
}
