package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"listing-service/common/logger"
	"listing-service/images"
	"listing-service/models"
	awspkg "listing-service/pkg/aws"
	"listing-service/repository"

	"go.uber.org/zap"
)

// CountRecorder records counter metrics.
type CountRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// healthTimeout bounds the storage ping behind the health endpoint.
const healthTimeout = 3 * time.Second

// ListingService validates input, hosts images and persists listings through
// whichever repository and image store it was built with.
type ListingService struct {
	repo        repository.ListingRepo
	images      images.Store
	validator   *ListingValidator
	events      EventPublisher
	metrics     CountRecorder
	backendName string
	now         func() time.Time
}

// Option customises a ListingService.
type Option func(*ListingService)

// WithEvents publishes listing changes through p.
func WithEvents(p EventPublisher) Option {
	return func(s *ListingService) { s.events = p }
}

// WithMetrics records business counters through m.
func WithMetrics(m CountRecorder) Option {
	return func(s *ListingService) { s.metrics = m }
}

func NewListingService(repo repository.ListingRepo, store images.Store, backendName string, opts ...Option) *ListingService {
	s := &ListingService{
		repo:        repo,
		images:      store,
		validator:   NewListingValidator(),
		backendName: backendName,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ListingService) ListListings(ctx context.Context, q models.ListingQuery) ([]*models.Listing, error) {
	listings, err := s.repo.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	if listings == nil {
		listings = []*models.Listing{}
	}
	return listings, nil
}

func (s *ListingService) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	return s.repo.FindByID(ctx, strings.TrimSpace(id))
}

// CreateListing validates req, hosts img (unless req carries an image URL)
// and stores the listing. A hosted image is removed again when the write fails.
func (s *ListingService) CreateListing(ctx context.Context, req ListingCreateRequest, img *images.Image) (*models.Listing, error) {
	req.Trim()
	if err := s.validator.Validate(&req); err != nil {
		return nil, err
	}
	price, err := ParsePrice(req.Price)
	if err != nil {
		return nil, err
	}
	hasPayload := img != nil && len(img.Data) > 0
	if !hasPayload && req.ImagePath == "" {
		return nil, &ValidationError{Field: "image", Message: MsgImageRequired}
	}

	listing := &models.Listing{
		Name:        req.Name,
		Price:       price,
		Seller:      req.Seller,
		WhatsApp:    req.WhatsApp,
		Condition:   models.Condition(req.Condition),
		Description: req.Description,
		ImagePath:   req.ImagePath,
		DateAdded:   s.now().UTC(),
		IsActive:    true,
	}
	if !hasPayload {
		listing.ImagePublicID = req.ImagePublicID
	}

	var uploaded *images.UploadedImage
	if hasPayload {
		if err := ValidateImage(img); err != nil {
			return nil, err
		}
		uploaded, err = s.images.Upload(ctx, *img)
		if err != nil {
			return nil, fmt.Errorf("upload image: %w", err)
		}
		listing.ImagePath = uploaded.URL
		listing.ImagePublicID = uploaded.PublicID
	}

	if err := s.repo.Create(ctx, listing); err != nil {
		if uploaded != nil {
			s.releaseImage(ctx, uploaded.PublicID)
		}
		return nil, fmt.Errorf("create listing: %w", err)
	}

	logger.Info(ctx, "Listing created", zap.String("id", listing.ID), zap.String("backend", s.backendName))
	s.publish(ctx, EventListingCreated, listing)
	s.count(ctx, awspkg.MetricListingsCreated)
	return listing, nil
}

// UpdateListing applies the provided fields. The merged listing must pass the
// same rules as a new one; id, dateAdded and isActive never change.
func (s *ListingService) UpdateListing(ctx context.Context, id string, req ListingUpdateRequest) (*models.Listing, error) {
	if req.IsEmpty() {
		return nil, &ValidationError{Message: MsgNothingToUpdate}
	}
	existing, err := s.repo.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}

	merged := ListingCreateRequest{
		Name:        existing.Name,
		Price:       fmt.Sprint(existing.Price),
		Seller:      existing.Seller,
		WhatsApp:    existing.WhatsApp,
		Condition:   string(existing.Condition),
		Description: existing.Description,
		ImagePath:   existing.ImagePath,
	}
	var update models.ListingUpdate
	set := func(dst *string, src *string) *string {
		if src == nil {
			return nil
		}
		v := strings.TrimSpace(*src)
		*dst = v
		return &v
	}
	update.Name = set(&merged.Name, req.Name)
	update.Seller = set(&merged.Seller, req.Seller)
	update.WhatsApp = set(&merged.WhatsApp, req.WhatsApp)
	update.Description = set(&merged.Description, req.Description)
	update.ImagePath = set(&merged.ImagePath, req.ImagePath)
	if cond := set(&merged.Condition, req.Condition); cond != nil {
		c := models.Condition(*cond)
		update.Condition = &c
	}
	set(&merged.Price, req.Price)

	if err := s.validator.Validate(&merged); err != nil {
		return nil, err
	}
	if update.ImagePath != nil && *update.ImagePath == "" {
		return nil, &ValidationError{Field: "imagePath", Message: "imagePath cannot be empty"}
	}
	if req.Price != nil {
		price, err := ParsePrice(merged.Price)
		if err != nil {
			return nil, err
		}
		update.Price = &price
	}
	update.ImagePublicID = imageHandleUpdate(existing, update.ImagePath, req.ImagePublicID)

	updated, err := s.repo.Update(ctx, existing.ID, update)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update listing %s: %w", id, err)
	}
	if existing.ImagePublicID != "" && existing.ImagePublicID != updated.ImagePublicID &&
		existing.ImagePath != updated.ImagePath {
		s.releaseImage(ctx, existing.ImagePublicID)
	}
	s.publish(ctx, EventListingUpdated, updated)
	return updated, nil
}

// imageHandleUpdate decides the stored image handle after an update. A new
// path without a handle clears it so delete never releases an image the
// listing no longer shows.
func imageHandleUpdate(existing *models.Listing, newPath, newID *string) *string {
	if newID != nil {
		v := strings.TrimSpace(*newID)
		return &v
	}
	if newPath != nil && *newPath != existing.ImagePath && existing.ImagePublicID != "" {
		cleared := ""
		return &cleared
	}
	return nil
}

// DeleteListing soft deletes the listing and releases its hosted image.
func (s *ListingService) DeleteListing(ctx context.Context, id string) (*models.Listing, error) {
	deleted, err := s.repo.Delete(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("delete listing %s: %w", id, err)
	}
	if deleted.ImagePublicID != "" {
		s.releaseImage(ctx, deleted.ImagePublicID)
	}
	deleted.IsActive = false

	logger.Info(ctx, "Listing deleted", zap.String("id", deleted.ID))
	s.publish(ctx, EventListingDeleted, deleted)
	s.count(ctx, awspkg.MetricListingsDeleted)
	return deleted, nil
}

func (s *ListingService) Stats(ctx context.Context) (*models.ListingStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stats: %w", err)
	}
	return stats, nil
}

// UploadImage hosts a standalone image.
func (s *ListingService) UploadImage(ctx context.Context, img *images.Image) (*images.UploadedImage, error) {
	if err := ValidateImage(img); err != nil {
		return nil, err
	}
	uploaded, err := s.images.Upload(ctx, *img)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	s.count(ctx, awspkg.MetricImageUploads)
	return uploaded, nil
}

// Health pings the storage backend with a short timeout.
func (s *ListingService) Health(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	status := HealthStatus{Backend: s.backendName, ImageStore: s.images.Name()}
	if err := s.repo.Ping(ctx); err != nil {
		status.Err = err
		return status
	}
	status.Connected = true
	return status
}

// releaseImage deletes a hosted image on a detached context so a cancelled
// request still cleans up.
func (s *ListingService) releaseImage(ctx context.Context, publicID string) {
	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.images.Delete(bgCtx, publicID); err != nil {
		logger.Warn(ctx, "Failed to release listing image", zap.String("publicId", publicID), zap.Error(err))
	}
}

func (s *ListingService) publish(ctx context.Context, eventType string, listing *models.Listing) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, eventType, listing); err != nil {
		logger.Warn(ctx, "Failed to publish listing event", zap.String("eventType", eventType), zap.Error(err))
	}
}

func (s *ListingService) count(ctx context.Context, metric string) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.RecordCount(ctx, metric, map[string]string{"Backend": s.backendName}); err != nil {
		logger.Warn(ctx, "Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}
