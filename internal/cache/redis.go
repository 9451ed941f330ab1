package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const suppressionKey = "kanon:suppressed"

// RedisCache stores the suppression set as one JSON value so readers never
// see a partially written set.
type RedisCache struct {
	rdb redis.Cmdable
	key string
	own *redis.Client
}

// NewRedisCache connects to addr and verifies the connection.
func NewRedisCache(ctx context.Context, addr, prefix string) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrapf(err, "cache: ping redis %s", addr)
	}

	c := NewRedisCacheWithClient(rdb, prefix)
	c.own = rdb
	return c, nil
}

// NewRedisCacheWithClient wraps an existing client. Close leaves it open.
func NewRedisCacheWithClient(rdb redis.Cmdable, prefix string) *RedisCache {
	return &RedisCache{rdb: rdb, key: prefix + suppressionKey}
}

func (c *RedisCache) Put(ctx context.Context, s *Suppression, ttl time.Duration) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "cache: encode suppression")
	}
	if err := c.rdb.Set(ctx, c.key, raw, ttl).Err(); err != nil {
		return eris.Wrap(err, "cache: store suppression")
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context) (*Suppression, error) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: load suppression")
	}
	var s Suppression
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, eris.Wrap(err, "cache: decode suppression")
	}
	return &s, nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Del(ctx, c.key).Err(); err != nil {
		return eris.Wrap(err, "cache: invalidate suppression")
	}
	return nil
}

func (c *RedisCache) Close() error {
	if c.own == nil {
		return nil
	}
	return c.own.Close()
}

var _ SuppressionCache = (*RedisCache)(nil)
