package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"listing-service/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	ListingListCachePrefix  = "listings:v:"
	ListingStatsCachePrefix = "listings:stats:v:"
	CacheVersionKey         = "listings:version"
)

// CacheManager caches list and stats responses in Redis. Keys embed a version
// number; bumping it on every write orphans all older entries at once. A nil
// CacheManager, or one without a client, never hits.
type CacheManager struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewCacheManager(client *redis.Client) *CacheManager {
	if client == nil {
		return nil
	}
	return &CacheManager{
		redis: client,
		ttl:   DefaultCacheTTL,
	}
}

// GetListings looks up a cached listing query result. It also returns the
// cache version it read; results fetched after a miss must be stored under
// that version so a write that lands in between orphans them.
func (cm *CacheManager) GetListings(ctx context.Context, q models.ListingQuery) ([]*models.Listing, int64, bool) {
	if cm == nil {
		return nil, 0, false
	}
	version, err := cm.getCacheVersion(ctx)
	if err != nil {
		return nil, 0, false
	}

	cached, err := cm.redis.Get(ctx, listCacheKey(version, q)).Bytes()
	if err != nil {
		return nil, version, false
	}

	var listings []*models.Listing
	if err := json.Unmarshal(cached, &listings); err != nil {
		zap.L().Warn("Failed to unmarshal cached listings", zap.Error(err))
		return nil, version, false
	}
	return listings, version, true
}

// SetListingsAsync caches a listing query result under version in the background
func (cm *CacheManager) SetListingsAsync(version int64, q models.ListingQuery, listings []*models.Listing) {
	if cm == nil || version <= 0 {
		return
	}
	cm.setAsync(listCacheKey(version, q), listings)
}

// GetStats retrieves cached stats along with the version it read
func (cm *CacheManager) GetStats(ctx context.Context) (*models.ListingStats, int64, bool) {
	if cm == nil {
		return nil, 0, false
	}
	version, err := cm.getCacheVersion(ctx)
	if err != nil {
		return nil, 0, false
	}
	cached, err := cm.redis.Get(ctx, statsCacheKey(version)).Bytes()
	if err != nil {
		return nil, version, false
	}
	var stats models.ListingStats
	if err := json.Unmarshal(cached, &stats); err != nil {
		return nil, version, false
	}
	return &stats, version, true
}

// SetStatsAsync caches stats under version in the background
func (cm *CacheManager) SetStatsAsync(version int64, stats *models.ListingStats) {
	if cm == nil || version <= 0 {
		return
	}
	cm.setAsync(statsCacheKey(version), stats)
}

func (cm *CacheManager) setAsync(key string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		zap.L().Warn("Failed to marshal value for cache", zap.Error(err))
		return
	}
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := cm.redis.Set(bgCtx, key, payload, cm.ttl).Err(); err != nil {
			zap.L().Warn("Failed to write cache", zap.Error(err))
		}
	}()
}

// Invalidate drops every cached response by bumping the version
func (cm *CacheManager) Invalidate(ctx context.Context) {
	if cm == nil {
		return
	}
	newVersion, err := cm.redis.Incr(ctx, CacheVersionKey).Result()
	if err != nil {
		zap.L().Error("Failed to invalidate listing cache", zap.Error(err))
		return
	}
	zap.L().Debug("Listing cache invalidated", zap.Int64("new_version", newVersion))
}

// getCacheVersion reads the current version, creating it on first use.
func (cm *CacheManager) getCacheVersion(ctx context.Context) (int64, error) {
	ver, err := cm.redis.Get(ctx, CacheVersionKey).Int64()
	if err == nil && ver > 0 {
		return ver, nil
	}
	if err == redis.Nil {
		// SetNX so a concurrent Incr is never overwritten.
		if err := cm.redis.SetNX(ctx, CacheVersionKey, 1, 0).Err(); err != nil {
			return 0, fmt.Errorf("init cache version: %w", err)
		}
		return cm.redis.Get(ctx, CacheVersionKey).Int64()
	}
	if err != nil {
		return 0, fmt.Errorf("read cache version: %w", err)
	}
	return 0, fmt.Errorf("invalid cache version %d", ver)
}

func listCacheKey(version int64, q models.ListingQuery) string {
	return fmt.Sprintf("%s%d:q:%s:min:%s:max:%s:c:%s:s:%s",
		ListingListCachePrefix,
		version,
		q.Search,
		formatIntForCache(q.MinPrice),
		formatIntForCache(q.MaxPrice),
		q.Condition,
		q.NormalizedSort(),
	)
}

func statsCacheKey(version int64) string {
	return ListingStatsCachePrefix + strconv.FormatInt(version, 10)
}

func formatIntForCache(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}
