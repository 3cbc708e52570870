package cache

import (
	"context"
	"errors"
	"time"

	applogger "CourtArb/pkg/logger"
)

// LayeredCache implements two-level cache (L1: Memory, L2: Redis).
// L2 is optional and never surfaces errors: any Redis failure is logged and
// the cache keeps serving from memory.
type LayeredCache struct {
	memCache   *MemoryCache
	redisCache *RedisCache
	logger     *applogger.Logger
}

// NewLayeredCache creates a layered cache. redisCache may be nil.
func NewLayeredCache(redisCache *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		Clock:         time.Now,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{
		memCache:   NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize), WithMemoryClock(cfg.Clock)),
		redisCache: redisCache,
		logger:     cfg.Logger,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.memCache.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	if lc.redisCache != nil {
		if err := lc.redisCache.Set(ctx, key, value, expiration); err != nil {
			lc.degraded("set", key, err)
		}
	}
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	// L1: Try memory first
	if err := lc.memCache.Get(ctx, key, dest); err == nil {
		return nil
	} else if !errors.Is(err, ErrCacheMiss) {
		return err
	}

	if lc.redisCache == nil {
		return ErrCacheMiss
	}

	// L2: Try Redis
	var raw []byte
	if err := lc.redisCache.Get(ctx, key, &raw); err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			lc.degraded("get", key, err)
		}
		return ErrCacheMiss
	}
	if err := decode(raw, dest); err != nil {
		return err
	}

	// Backfill L1 with the remaining L2 lifetime so expiry stays identical
	if ttl, err := lc.redisCache.TTL(ctx, key); err == nil {
		_ = lc.memCache.Set(ctx, key, raw, ttl)
	}
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.memCache.Delete(ctx, keys...)
	if lc.redisCache != nil {
		if err := lc.redisCache.Delete(ctx, keys...); err != nil {
			lc.degraded("delete", "", err)
		}
	}
	return nil
}

// Sweep drops expired L1 entries. Redis expires its own keys.
func (lc *LayeredCache) Sweep(now time.Time) int {
	return lc.memCache.Sweep(now)
}

// Close closes both cache layers.
func (lc *LayeredCache) Close() error {
	_ = lc.memCache.Close()
	if lc.redisCache != nil {
		return lc.redisCache.Close()
	}
	return nil
}

func (lc *LayeredCache) degraded(op, key string, err error) {
	if lc.logger == nil {
		return
	}
	lc.logger.Warn("cache backend degraded, serving from memory",
		applogger.String("op", op),
		applogger.String("key", key),
		applogger.Error(err),
	)
}
