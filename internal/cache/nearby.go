// Package cache keeps recently computed nearby pages in redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nitesh/nearby_news/pkg/models"
)

const (
	DefaultTTL = 30 * time.Second
	versionKey = "nearby:version"
)

// NearbyCache stores query pages under a key that embeds a generation
// counter. Invalidate bumps the counter, so pages computed before a write
// are never served after it.
type NearbyCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewNearbyCache(rdb *redis.Client, ttl time.Duration) *NearbyCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &NearbyCache{rdb: rdb, ttl: ttl}
}

// Key resolves the cache key for req at the current generation. Callers
// must compute the key before running the query and store under that key.
func (c *NearbyCache) Key(ctx context.Context, req models.QueryRequest) (string, error) {
	gen, err := c.rdb.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("cache: read version: %w", err)
	}
	return fmt.Sprintf("nearby:v%d:%s:%s:%s:%s:%d:%d",
		gen,
		strconv.FormatFloat(req.Point.Latitude, 'f', -1, 64),
		strconv.FormatFloat(req.Point.Longitude, 'f', -1, 64),
		strconv.FormatFloat(req.RadiusMeters, 'f', -1, 64),
		req.Sort,
		req.Page,
		req.Limit,
	), nil
}

// Get returns the cached page for key; ok is false on a miss.
func (c *NearbyCache) Get(ctx context.Context, key string) (*models.QueryResult, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}
	var res models.QueryResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("cache: decode: %w", err)
	}
	if res.Data == nil {
		res.Data = []models.NearbyNews{}
	}
	return &res, true, nil
}

// Set stores res until the cache TTL elapses or the first match in res
// expires, whichever comes first. Pages that are already stale are skipped.
func (c *NearbyCache) Set(ctx context.Context, key string, res *models.QueryResult, now time.Time) error {
	ttl := c.ttl
	if !res.ValidUntil.IsZero() {
		if left := res.ValidUntil.Sub(now); left < ttl {
			ttl = left
		}
	}
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}
	if err := c.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set: %w", err)
	}
	return nil
}

// Invalidate starts a new generation; older pages age out on their own.
func (c *NearbyCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("cache: bump version: %w", err)
	}
	return nil
}
