package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/white/crm-backend/internal/models"
)

// ErrCacheMiss is returned by Get when nothing is cached for the tenant
var ErrCacheMiss = errors.New("cache miss")

// StatsCache provides Redis caching for per-tenant activity stats
type StatsCache struct {
	client redis.Cmdable
	ttl    time.Duration
	now    func() time.Time
}

// NewStatsCache creates a stats cache. A non-positive ttl defaults to one minute.
func NewStatsCache(client redis.Cmdable, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StatsCache{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Get retrieves the tenant's stats from cache
// Returns ErrCacheMiss if nothing is cached
func (c *StatsCache) Get(ctx context.Context, tenantID string) (*models.ActivityStats, error) {
	val, err := c.client.Get(ctx, c.buildKey(tenantID)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	var stats models.ActivityStats
	if err := json.Unmarshal(val, &stats); err != nil {
		return nil, fmt.Errorf("failed to deserialize stats: %w", err)
	}
	return &stats, nil
}

// Set stores the tenant's stats. The entry expires after the TTL or at
// stats.FreshUntil, whichever is sooner; stats already past it are not cached.
func (c *StatsCache) Set(ctx context.Context, tenantID string, stats *models.ActivityStats) error {
	ttl := c.ttl
	if !stats.FreshUntil.IsZero() {
		left := stats.FreshUntil.Sub(c.now())
		if left <= 0 {
			return nil
		}
		if left < ttl {
			ttl = left
		}
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to serialize stats: %w", err)
	}
	if err := c.client.Set(ctx, c.buildKey(tenantID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Invalidate drops the tenant's cached stats after an activity mutation
func (c *StatsCache) Invalidate(ctx context.Context, tenantID string) error {
	if err := c.client.Del(ctx, c.buildKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}

// buildKey creates the Redis key for a tenant
// Format: activity_stats:{tenant_id}
func (c *StatsCache) buildKey(tenantID string) string {
	return fmt.Sprintf("activity_stats:%s", tenantID)
}
