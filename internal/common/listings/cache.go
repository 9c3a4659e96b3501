// internal/common/listings/cache.go
package listings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/models"
)

func financialsKey(listingID string) string { return "listing:financials:" + listingID }
func analysisKey(listingID string) string   { return "listing:analysis:" + listingID }

// CachedStore is a read-through Redis cache in front of another Store. Cache
// failures are logged and never fail the call.
type CachedStore struct {
	next   Store
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedStore(next Store, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedStore {
	return &CachedStore{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "listing-cache"}),
	}
}

func (c *CachedStore) GetFinancials(ctx context.Context, listingID string) (*models.Listing, error) {
	var cached models.Listing
	if c.get(ctx, financialsKey(listingID), &cached) {
		return &cached, nil
	}

	listing, err := c.next.GetFinancials(ctx, listingID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, financialsKey(listingID), listing)
	return listing, nil
}

func (c *CachedStore) GetAnalysis(ctx context.Context, listingID string) (*models.ListingAnalysis, error) {
	var cached models.ListingAnalysis
	if c.get(ctx, analysisKey(listingID), &cached) {
		return &cached, nil
	}

	analysis, err := c.next.GetAnalysis(ctx, listingID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, analysisKey(listingID), analysis)
	return analysis, nil
}

// UpsertAnalysis writes through and drops the cached analysis.
func (c *CachedStore) UpsertAnalysis(ctx context.Context, a *models.ListingAnalysis) (bool, error) {
	created, err := c.next.UpsertAnalysis(ctx, a)
	if err != nil {
		return false, err
	}
	c.Invalidate(ctx, a.ListingID)
	return created, nil
}

// Invalidate drops every cached entry of a listing.
func (c *CachedStore) Invalidate(ctx context.Context, listingID string) {
	if err := c.redis.Del(ctx, financialsKey(listingID), analysisKey(listingID)).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", map[string]interface{}{
			"listingId": listingID,
			"error":     err.Error(),
		})
	}
}

func (c *CachedStore) get(ctx context.Context, key string, dest interface{}) bool {
	raw, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("cache entry corrupt, ignoring", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	return true
}

func (c *CachedStore) set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", map[string]interface{}{"key": key, "error": fmt.Sprint(err)})
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
