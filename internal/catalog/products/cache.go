package products

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "catalog:products"

// Cache keeps serialized product listings in Redis. Concurrent misses for
// the same key collapse into one repository read via singleflight.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

type cachedList struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
}

func listKey(filter ListFilter) string {
	category := int64(0)
	if filter.CategoryID != nil {
		category = *filter.CategoryID
	}
	return fmt.Sprintf("%s:list:%d:%s:%d:%d", cacheKeyPrefix, category, filter.Status, filter.Limit, filter.Offset)
}

// GetList returns a cached listing, filling the cache through fill on miss.
func (c *Cache) GetList(ctx context.Context, filter ListFilter, fill func(context.Context) ([]Product, int, error)) ([]Product, int, error) {
	if c == nil || c.client == nil {
		return fill(ctx)
	}

	key := listKey(filter)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var entry cachedList
		if err := json.Unmarshal(raw, &entry); err == nil {
			return entry.Products, entry.Total, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		// Redis being down must not take the catalog down with it.
		return fill(ctx)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		list, total, err := fill(ctx)
		if err != nil {
			return nil, err
		}
		entry := cachedList{Products: list, Total: total}
		if data, err := json.Marshal(entry); err == nil {
			_ = c.client.Set(ctx, key, data, c.ttl).Err()
		}
		return entry, nil
	})
	if err != nil {
		return nil, 0, err
	}
	entry := v.(cachedList)
	return entry.Products, entry.Total, nil
}

// Invalidate drops all cached listings, called after stock or price writes.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
