package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "catalog:search:version"

// SearchCache caches part search results in Redis with versioned keys.
// Writes to the catalog bump the version instead of scanning for stale keys.
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSearchCache instantiates the cache helper.
func NewSearchCache(client *redis.Client, ttl time.Duration) *SearchCache {
	return &SearchCache{client: client, ttl: ttl}
}

func (c *SearchCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *SearchCache) buildKey(ctx context.Context, query string, limit int) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("catalog:search:%d:%d:%s", ver, limit, strings.ToLower(query)), nil
}

// Fetch loads cached results or populates the cache using the loader.
// A nil cache degrades to calling the loader directly.
func (c *SearchCache) Fetch(ctx context.Context, query string, limit int, loader func(context.Context) ([]Part, error)) ([]Part, error) {
	if loader == nil {
		return nil, errors.New("catalog: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key, err := c.buildKey(ctx, query, limit)
	if err != nil {
		return loader(ctx)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var parts []Part
		if err := json.Unmarshal(payload, &parts); err == nil {
			return parts, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return loader(ctx)
	}
	parts, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(parts)
	if err != nil {
		return nil, err
	}
	_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	return parts, nil
}

// Bump invalidates all cached search results by incrementing the version.
func (c *SearchCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
