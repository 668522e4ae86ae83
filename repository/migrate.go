package repository

import (
	"context"
	"fmt"

	"listing-service/models"

	"go.uber.org/zap"
)

// MigrationResult counts what CopyListings did.
type MigrationResult struct {
	Copied int
	Failed int
}

// CopyListings writes every active listing of src into dst, oldest first.
// The target assigns fresh ids; every other field is carried over. A listing
// that fails to write is logged and skipped.
func CopyListings(ctx context.Context, src, dst ListingRepo, progress func(copied int)) (MigrationResult, error) {
	var res MigrationResult

	listings, err := src.Find(ctx, models.ListingQuery{Sort: models.SortNewest})
	if err != nil {
		return res, fmt.Errorf("read source listings: %w", err)
	}

	for i := len(listings) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		clone := *listings[i]
		sourceID := clone.ID
		clone.ID = ""
		clone.IsActive = true

		if err := dst.Create(ctx, &clone); err != nil {
			zap.L().Warn("Failed to copy listing", zap.String("sourceId", sourceID), zap.Error(err))
			res.Failed++
			continue
		}
		res.Copied++
		if progress != nil && res.Copied%100 == 0 {
			progress(res.Copied)
		}
	}
	return res, nil
}
