package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/stock-watchlist/internal/logging"
)

// ErrCacheMiss is returned by a Cache when the key is absent
var ErrCacheMiss = errors.New("cache miss")

// Cache stores serialized series by key
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache adapts a Redis client to Cache
type RedisCache struct {
	client redis.Cmdable
}

// NewRedisCache creates a Cache backed by client
func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns the cached value or ErrCacheMiss
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

// Set stores value for ttl
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// CachedSource serves provider series from a cache for up to one refresh
// interval. Synthetic series are never cached so a recovered provider is
// picked up on the next fetch.
type CachedSource struct {
	next   Source
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedSource wraps next with cache
func NewCachedSource(next Source, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedSource {
	return &CachedSource{next: next, cache: cache, ttl: ttl, logger: logging.OrDefault(logger)}
}

// Fetch returns the cached series for symbol or fetches a fresh one
func (c *CachedSource) Fetch(ctx context.Context, symbol string) Series {
	symbol = NormalizeSymbol(symbol)
	key := "quotes:" + symbol

	if b, err := c.cache.Get(ctx, key); err == nil {
		var s Series
		if err := json.Unmarshal(b, &s); err == nil && len(s.Points) > 0 {
			return s
		}
		c.logger.Warn("discarding unreadable cached series", "symbol", symbol)
	} else if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("quote cache read failed", "symbol", symbol, "error", err)
	}

	s := c.next.Fetch(ctx, symbol)
	if s.Synthetic || c.ttl <= 0 {
		return s
	}

	b, err := json.Marshal(s)
	if err != nil {
		c.logger.Warn("failed to encode series for cache", "symbol", symbol, "error", err)
		return s
	}
	if err := c.cache.Set(ctx, key, b, c.ttl); err != nil {
		c.logger.Warn("quote cache write failed", "symbol", symbol, "error", err)
	}
	return s
}
