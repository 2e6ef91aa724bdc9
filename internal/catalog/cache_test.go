package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *SearchCache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSearchCache(client, time.Minute)
}

func TestSearchCacheServesSecondLookupFromRedis(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) ([]Part, error) {
		calls++
		return []Part{{ID: 1, PartNumber: "KP-1001"}}, nil
	}

	first, err := cache.Fetch(ctx, "KP", 10, loader)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := cache.Fetch(ctx, "KP", 10, loader)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, calls)
}

func TestSearchCacheBumpInvalidates(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) ([]Part, error) {
		calls++
		return []Part{{ID: 1, PartNumber: "KP-1001"}}, nil
	}

	_, err := cache.Fetch(ctx, "KP", 10, loader)
	require.NoError(t, err)
	require.NoError(t, cache.Bump(ctx))
	_, err = cache.Fetch(ctx, "KP", 10, loader)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestSearchCacheNilDegradesToLoader(t *testing.T) {
	var cache *SearchCache
	parts, err := cache.Fetch(context.Background(), "KP", 10, func(context.Context) ([]Part, error) {
		return []Part{{ID: 2}}, nil
	})
	require.NoError(t, err)
	require.Len(t, parts, 1)
}
