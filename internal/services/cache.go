package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached data
	CacheKeyPrefix = "cache:"
	// MinCacheTTL and MaxCacheTTL bound every entry's lifetime
	MinCacheTTL = time.Second
	MaxCacheTTL = 10 * time.Minute

	listingGenerationKey = CacheKeyPrefix + "listing:gen"
)

// CacheService stores JSON values in Redis. A nil client turns every call into
// a miss, so callers never need to check whether Redis is configured.
type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, ttl time.Duration) *CacheService {
	return &CacheService{client: client, ttl: clampTTL(ttl)}
}

func (c *CacheService) Enabled() bool { return c != nil && c.client != nil }

// Get retrieves a value from cache
func (c *CacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	val, err := c.client.Get(ctx, CacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores a value with the service's TTL (clamped)
func (c *CacheService) Set(ctx context.Context, key string, value any) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, CacheKeyPrefix+key, data, clampTTL(c.ttl)).Err()
}

// ListingGeneration returns the current listing cache generation. Listing
// keys embed it, so bumping it invalidates every cached listing at once.
func (c *CacheService) ListingGeneration(ctx context.Context) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	v, err := c.client.Get(ctx, listingGenerationKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

// InvalidateListings bumps the listing generation.
func (c *CacheService) InvalidateListings(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Incr(ctx, listingGenerationKey).Err()
}

// CacheKey generates a cache key for a specific resource
func CacheKey(resource string, identifier string) string {
	return fmt.Sprintf("%s:%s", resource, identifier)
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl < MinCacheTTL {
		return MinCacheTTL
	}
	if ttl > MaxCacheTTL {
		return MaxCacheTTL
	}
	return ttl
}
