package repository

import (
	"math"
	"sort"
	"strings"

	"listing-service/models"
)

// MatchesQuery applies the listing filters in application code. Backends that
// cannot filter server side (DynamoDB scans, the repository file) share it.
func MatchesQuery(l *models.Listing, q models.ListingQuery) bool {
	if !l.IsActive {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		if !strings.Contains(strings.ToLower(l.Name), term) &&
			!strings.Contains(strings.ToLower(l.Description), term) &&
			!strings.Contains(strings.ToLower(l.Seller), term) {
			return false
		}
	}
	if q.MinPrice != nil && l.Price < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && l.Price > *q.MaxPrice {
		return false
	}
	if q.Condition != "" && l.Condition != q.Condition {
		return false
	}
	return true
}

// SortListings orders listings in place by the query's sort key. Ties fall
// back to id so the order is stable across calls.
func SortListings(listings []*models.Listing, sortKey string) {
	less := func(a, b *models.Listing) bool {
		if !a.DateAdded.Equal(b.DateAdded) {
			return a.DateAdded.After(b.DateAdded)
		}
		return a.ID > b.ID
	}
	switch (models.ListingQuery{Sort: sortKey}).NormalizedSort() {
	case models.SortPriceLow:
		less = func(a, b *models.Listing) bool {
			if a.Price != b.Price {
				return a.Price < b.Price
			}
			return a.ID < b.ID
		}
	case models.SortPriceHigh:
		less = func(a, b *models.Listing) bool {
			if a.Price != b.Price {
				return a.Price > b.Price
			}
			return a.ID < b.ID
		}
	case models.SortName:
		less = func(a, b *models.Listing) bool {
			if a.Name != b.Name {
				return a.Name < b.Name
			}
			return a.ID < b.ID
		}
	}
	sort.SliceStable(listings, func(i, j int) bool { return less(listings[i], listings[j]) })
}

// FilterListings returns the active listings matching q, sorted.
func FilterListings(listings []*models.Listing, q models.ListingQuery) []*models.Listing {
	out := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if MatchesQuery(l, q) {
			out = append(out, l)
		}
	}
	SortListings(out, q.Sort)
	return out
}

// ComputeStats summarises the active listings. The average price is rounded to
// the nearest whole unit.
func ComputeStats(listings []*models.Listing) *models.ListingStats {
	stats := &models.ListingStats{}
	sellers := make(map[string]struct{})
	var sum int64
	for _, l := range listings {
		if !l.IsActive {
			continue
		}
		stats.TotalProducts++
		sum += int64(l.Price)
		sellers[l.Seller] = struct{}{}
	}
	stats.TotalSellers = int64(len(sellers))
	if stats.TotalProducts > 0 {
		stats.AveragePrice = int64(math.Round(float64(sum) / float64(stats.TotalProducts)))
	}
	return stats
}
