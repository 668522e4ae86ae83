package controllers

import (
	"context"
	"time"

	"listing-service/images"
	"listing-service/models"
	"listing-service/services"
)

// Default configuration values
const (
	DefaultCacheTTL       = 2 * time.Minute
	DefaultContextTimeout = 30 * time.Second
)

// ListingServiceAPI defines the listing operations the HTTP layer needs
type ListingServiceAPI interface {
	ListListings(ctx context.Context, q models.ListingQuery) ([]*models.Listing, error)
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	CreateListing(ctx context.Context, req services.ListingCreateRequest, img *images.Image) (*models.Listing, error)
	UpdateListing(ctx context.Context, id string, req services.ListingUpdateRequest) (*models.Listing, error)
	DeleteListing(ctx context.Context, id string) (*models.Listing, error)
	Stats(ctx context.Context) (*models.ListingStats, error)
	UploadImage(ctx context.Context, img *images.Image) (*images.UploadedImage, error)
	Health(ctx context.Context) services.HealthStatus
}
