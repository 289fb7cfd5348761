package store

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const snapshotKey = "sla:snapshot"

// Cache keeps the latest Snapshot in Redis. All methods are no-ops on a nil
// Cache.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache returns a Cache; a nil client or non-positive ttl disables it.
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if rdb == nil || ttl <= 0 {
		return nil
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context) (Snapshot, bool, error) {
	if c == nil {
		return Snapshot{}, false, nil
	}
	b, err := c.rdb.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return Snapshot{}, false, err
	}
	return s, true, nil
}

func (c *Cache) Put(ctx context.Context, s Snapshot) error {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, snapshotKey, b, c.ttl).Err()
}

func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Del(ctx, snapshotKey).Err()
}
