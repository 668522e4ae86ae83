package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"listing-service/models"
	"listing-service/pkg/gitstore"

	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds the read-modify-write loop of the file repository.
const DefaultMaxAttempts = 3

// FileStore is the versioned storage the file repository writes through.
type FileStore interface {
	Read(ctx context.Context, path string) (*gitstore.File, error)
	Write(ctx context.Context, path string, content []byte, sha, message string) (*gitstore.File, error)
	Ping(ctx context.Context) error
}

// GitHubFileRepository keeps every listing in one JSON array committed to a
// repository file. Each mutation re-reads the file and its SHA and writes back
// on that SHA; a conflicting commit restarts the cycle up to MaxAttempts times.
type GitHubFileRepository struct {
	store       FileStore
	path        string
	MaxAttempts int
	now         func() time.Time
}

func NewGitHubFileRepository(store FileStore, path string) *GitHubFileRepository {
	if path == "" {
		path = "data/products.json"
	}
	return &GitHubFileRepository{
		store:       store,
		path:        path,
		MaxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
}

// fileListing is the on-disk shape. A missing isActive means active, so files
// written before soft delete existed still load.
type fileListing struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Price         int       `json:"price"`
	Seller        string    `json:"seller"`
	WhatsApp      string    `json:"whatsapp"`
	Condition     string    `json:"condition"`
	Description   string    `json:"description"`
	ImagePath     string    `json:"imagePath"`
	ImagePublicID string    `json:"imagePublicId,omitempty"`
	DateAdded     time.Time `json:"dateAdded"`
	IsActive      *bool     `json:"isActive,omitempty"`
}

func (f *fileListing) active() bool {
	return f.IsActive == nil || *f.IsActive
}

func (f *fileListing) toModel() *models.Listing {
	return &models.Listing{
		ID:            strconv.FormatInt(f.ID, 10),
		Name:          f.Name,
		Price:         f.Price,
		Seller:        f.Seller,
		WhatsApp:      f.WhatsApp,
		Condition:     models.Condition(f.Condition),
		Description:   f.Description,
		ImagePath:     f.ImagePath,
		ImagePublicID: f.ImagePublicID,
		DateAdded:     f.DateAdded,
		IsActive:      f.active(),
	}
}

// load returns the current listings and the SHA they were read at. A missing
// or empty file is an empty store with no SHA.
func (r *GitHubFileRepository) load(ctx context.Context) ([]fileListing, string, error) {
	file, err := r.store.Read(ctx, r.path)
	if err != nil {
		if errors.Is(err, gitstore.ErrNotFound) {
			return []fileListing{}, "", nil
		}
		return nil, "", fmt.Errorf("read listings file: %w", err)
	}
	listings := []fileListing{}
	if len(file.Content) > 0 {
		if err := json.Unmarshal(file.Content, &listings); err != nil {
			return nil, "", fmt.Errorf("parse listings file %s: %w", r.path, err)
		}
	}
	return listings, file.SHA, nil
}

// mutate runs fn over a fresh copy of the file and commits the result on the
// SHA it was read at. Errors returned by fn abort without writing.
func (r *GitHubFileRepository) mutate(ctx context.Context, message string, fn func([]fileListing) ([]fileListing, error)) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		listings, sha, err := r.load(ctx)
		if err != nil {
			return err
		}
		updated, err := fn(listings)
		if err != nil {
			return err
		}
		body, err := json.MarshalIndent(updated, "", "  ")
		if err != nil {
			return fmt.Errorf("encode listings: %w", err)
		}
		_, err = r.store.Write(ctx, r.path, body, sha, message)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gitstore.ErrConflict) {
			return fmt.Errorf("write listings file: %w", err)
		}
		zap.L().Warn("Listings file changed during write, retrying",
			zap.String("path", r.path),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return ErrVersionConflict
}

func parseFileID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	return n, err == nil
}

func (r *GitHubFileRepository) Find(ctx context.Context, q models.ListingQuery) ([]*models.Listing, error) {
	listings, _, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	all := make([]*models.Listing, 0, len(listings))
	for i := range listings {
		all = append(all, listings[i].toModel())
	}
	return FilterListings(all, q), nil
}

func (r *GitHubFileRepository) FindByID(ctx context.Context, id string) (*models.Listing, error) {
	n, ok := parseFileID(id)
	if !ok {
		return nil, ErrNotFound
	}
	listings, _, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range listings {
		if listings[i].ID == n && listings[i].active() {
			return listings[i].toModel(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *GitHubFileRepository) Create(ctx context.Context, listing *models.Listing) error {
	var created fileListing
	err := r.mutate(ctx, "Add product: "+listing.Name, func(listings []fileListing) ([]fileListing, error) {
		id := r.now().UnixMilli()
		for i := range listings {
			if listings[i].ID >= id {
				id = listings[i].ID + 1
			}
		}
		active := listing.IsActive
		created = fileListing{
			ID:            id,
			Name:          listing.Name,
			Price:         listing.Price,
			Seller:        listing.Seller,
			WhatsApp:      listing.WhatsApp,
			Condition:     string(listing.Condition),
			Description:   listing.Description,
			ImagePath:     listing.ImagePath,
			ImagePublicID: listing.ImagePublicID,
			DateAdded:     listing.DateAdded,
			IsActive:      &active,
		}
		return append(listings, created), nil
	})
	if err != nil {
		return err
	}
	listing.ID = strconv.FormatInt(created.ID, 10)
	return nil
}

func (r *GitHubFileRepository) Update(ctx context.Context, id string, update models.ListingUpdate) (*models.Listing, error) {
	n, ok := parseFileID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var result *models.Listing
	err := r.mutate(ctx, "Update product: "+id, func(listings []fileListing) ([]fileListing, error) {
		for i := range listings {
			if listings[i].ID != n || !listings[i].active() {
				continue
			}
			l := listings[i].toModel()
			update.Apply(l)
			listings[i].Name = l.Name
			listings[i].Price = l.Price
			listings[i].Seller = l.Seller
			listings[i].WhatsApp = l.WhatsApp
			listings[i].Condition = string(l.Condition)
			listings[i].Description = l.Description
			listings[i].ImagePath = l.ImagePath
			listings[i].ImagePublicID = l.ImagePublicID
			result = l
			return listings, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete flags the entry inactive; the entry stays in the file.
func (r *GitHubFileRepository) Delete(ctx context.Context, id string) (*models.Listing, error) {
	n, ok := parseFileID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var before *models.Listing
	err := r.mutate(ctx, "Delete product: "+id, func(listings []fileListing) ([]fileListing, error) {
		for i := range listings {
			if listings[i].ID != n || !listings[i].active() {
				continue
			}
			before = listings[i].toModel()
			inactive := false
			listings[i].IsActive = &inactive
			return listings, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return before, nil
}

func (r *GitHubFileRepository) Stats(ctx context.Context) (*models.ListingStats, error) {
	listings, err := r.Find(ctx, models.ListingQuery{})
	if err != nil {
		return nil, err
	}
	return ComputeStats(listings), nil
}

func (r *GitHubFileRepository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func (r *GitHubFileRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}
