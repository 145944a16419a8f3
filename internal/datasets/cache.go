package datasets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "userdash:datasets:"

// Cache keeps dataset snapshots in Redis. Each dataset has a version counter;
// bumping it orphans the cached snapshot, which then expires on its TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current version of a dataset, initialising when missing.
func (c *Cache) Version(ctx context.Context, dataset string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := keyPrefix + dataset + ":version"
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// FetchJSON loads the cached snapshot of dataset into dest, populating it
// with loader on a miss.
func (c *Cache) FetchJSON(ctx context.Context, dataset string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		return load(ctx, dest, loader, nil)
	}
	ver, err := c.Version(ctx, dataset)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%s:%d", keyPrefix, dataset, ver)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}
	return load(ctx, dest, loader, func(raw []byte) error {
		return c.client.Set(ctx, key, raw, c.ttl).Err()
	})
}

// Bump invalidates the cached snapshot of dataset.
func (c *Cache) Bump(ctx context.Context, dataset string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, keyPrefix+dataset+":version").Err()
}

func load(ctx context.Context, dest any, loader func(context.Context) (any, error), store func([]byte) error) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if store != nil {
		if err := store(raw); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}
