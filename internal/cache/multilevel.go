package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type MultiLevelConfig struct {
	// L1TTL caps how long a value lives in process memory. Values copied
	// up from L2 get this TTL.
	L1TTL          time.Duration
	CircuitBreaker *CircuitBreakerConfig
}

// MultiLevelCache reads through an in-process cache into an optional
// shared one. L2 failures are logged and treated as misses. With
// EnableInvalidation, writes on one instance evict L1 on the others.
type MultiLevelCache struct {
	l1      *MemoryCache
	l2      Cache
	breaker *CircuitBreaker
	metrics *CacheMetrics
	l1TTL   time.Duration
	log     zerolog.Logger

	origin    string
	bus       *redis.Client
	pubsub    *redis.PubSub
	listening chan struct{}
}

func NewMultiLevelCache(l2 Cache, config MultiLevelConfig, log zerolog.Logger) *MultiLevelCache {
	if config.L1TTL <= 0 {
		config.L1TTL = 30 * time.Second
	}
	return &MultiLevelCache{
		l1:      NewMemoryCache(),
		l2:      l2,
		breaker: NewCircuitBreaker(config.CircuitBreaker),
		metrics: NewCacheMetrics(),
		l1TTL:   config.L1TTL,
		log:     log,
	}
}

func (c *MultiLevelCache) l1Expiry(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > c.l1TTL {
		return c.l1TTL
	}
	return ttl
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, c.l1Expiry(ttl)); err != nil {
		return err
	}
	c.metrics.RecordSet()

	if c.l2 == nil {
		return nil
	}
	err := c.breaker.Execute(func() error {
		return c.l2.Set(ctx, key, value, ttl)
	})
	if err != nil {
		c.l2Failed("set", key, err)
	}
	c.announce(ctx, invalidation{Key: key})
	return nil
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, dest interface{}) error {
	err := c.l1.Get(ctx, key, dest)
	if err == nil {
		c.metrics.RecordL1Hit()
		return nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		return err
	}

	if c.l2 == nil {
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	err = c.breaker.Execute(func() error {
		return c.l2.Get(ctx, key, dest)
	}, ErrCacheMiss)
	switch {
	case err == nil:
		c.metrics.RecordL2Hit()
		if setErr := c.l1.Set(ctx, key, dest, c.l1TTL); setErr != nil {
			c.log.Warn().Err(setErr).Str("key", key).Msg("failed to promote value to L1")
		}
		return nil
	case errors.Is(err, ErrCacheMiss):
		c.metrics.RecordMiss()
	default:
		c.metrics.RecordMiss()
		c.l2Failed("get", key, err)
	}
	return ErrCacheMiss
}

func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	_ = c.l1.Delete(ctx, key)
	c.metrics.RecordDelete()

	if c.l2 == nil {
		return nil
	}
	err := c.breaker.Execute(func() error {
		return c.l2.Delete(ctx, key)
	})
	c.announce(ctx, invalidation{Key: key})
	if err != nil {
		c.l2Failed("delete", key, err)
		return err
	}
	return nil
}

func (c *MultiLevelCache) DeletePattern(ctx context.Context, pattern string) error {
	if err := c.l1.DeletePattern(ctx, pattern); err != nil {
		return err
	}
	c.metrics.RecordDelete()

	if c.l2 == nil {
		return nil
	}
	err := c.breaker.Execute(func() error {
		return c.l2.DeletePattern(ctx, pattern)
	})
	c.announce(ctx, invalidation{Pattern: pattern})
	if err != nil {
		c.l2Failed("delete_pattern", pattern, err)
		return err
	}
	return nil
}

func (c *MultiLevelCache) Exists(ctx context.Context, key string) (bool, error) {
	if ok, _ := c.l1.Exists(ctx, key); ok {
		return true, nil
	}
	if c.l2 == nil {
		return false, nil
	}

	var found bool
	err := c.breaker.Execute(func() error {
		var err error
		found, err = c.l2.Exists(ctx, key)
		return err
	})
	if err != nil {
		c.l2Failed("exists", key, err)
		return false, nil
	}
	return found, nil
}

func (c *MultiLevelCache) l2Failed(op, key string, err error) {
	c.metrics.RecordError()
	if errors.Is(err, ErrCircuitBreakerOpen) {
		return
	}
	c.log.Warn().Err(err).Str("op", op).Str("key", key).Msg("second-level cache call failed")
}

func (c *MultiLevelCache) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"l1":      c.l1.Stats(),
		"metrics": c.metrics.Snapshot(),
	}
	if c.l2 != nil {
		stats["l2"] = c.l2.Stats()
		stats["circuit_breaker"] = c.breaker.GetStats()
	}
	return stats
}

func (c *MultiLevelCache) Health() error {
	if c.l2 == nil {
		return nil
	}
	if c.breaker.GetState() == CircuitBreakerOpen {
		return ErrCacheDown
	}
	return c.l2.Health()
}

func (c *MultiLevelCache) Close() error {
	c.stopInvalidation()
	_ = c.l1.Close()
	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}
