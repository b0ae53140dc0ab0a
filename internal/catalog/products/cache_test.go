package products

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheFillsOnMissAndServesFromRedis(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	fills := 0
	fill := func(context.Context) ([]Product, int, error) {
		fills++
		return []Product{{ID: 1, SKU: "MUG-01", Name: "Mug", StockQuantity: 4, Status: "active"}}, 1, nil
	}

	list, total, err := cache.GetList(ctx, ListFilter{Limit: 10}, fill)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.Equal(t, 1, fills)

	list, total, err = cache.GetList(ctx, ListFilter{Limit: 10}, fill)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "Mug", list[0].Name)
	require.Equal(t, 1, fills, "second read must come from redis")
}

func TestCacheKeysVaryByFilter(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	fills := 0
	fill := func(context.Context) ([]Product, int, error) {
		fills++
		return nil, 0, nil
	}

	_, _, err := cache.GetList(ctx, ListFilter{Status: "active", Limit: 10}, fill)
	require.NoError(t, err)
	_, _, err = cache.GetList(ctx, ListFilter{Status: "out_of_stock", Limit: 10}, fill)
	require.NoError(t, err)
	require.Equal(t, 2, fills)
}

func TestCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	fills := 0
	fill := func(context.Context) ([]Product, int, error) {
		fills++
		return []Product{{ID: 1}}, 1, nil
	}

	_, _, err := cache.GetList(ctx, ListFilter{Limit: 5}, fill)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx))

	_, _, err = cache.GetList(ctx, ListFilter{Limit: 5}, fill)
	require.NoError(t, err)
	require.Equal(t, 2, fills, "invalidate must force a refill")
}
