package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// BlacklistCache is an advisory front for the blacklist store. The store
// stays authoritative: a cold or unreachable cache only costs a DB round
// trip, never correctness. Callers must tolerate a nil *BlacklistCache.
type BlacklistCache struct {
	client *redis.Client
}

func NewBlacklistCache(addr string) (*BlacklistCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &BlacklistCache{client: client}, nil
}

func key(jti string) string {
	return "blacklist:jti:" + jti
}

// Put records a revoked jti for the remainder of the token's lifetime.
// Failures are swallowed; the durable blacklist already has the entry.
func (c *BlacklistCache) Put(ctx context.Context, jti string, ttl time.Duration) {
	if c == nil || ttl <= 0 {
		return
	}
	c.client.Set(ctx, key(jti), 1, ttl)
}

// Contains returns true only on a confirmed cache hit. Any error is treated
// as a miss so the caller falls through to the store.
func (c *BlacklistCache) Contains(ctx context.Context, jti string) bool {
	if c == nil {
		return false
	}
	n, err := c.client.Exists(ctx, key(jti)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

func (c *BlacklistCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
