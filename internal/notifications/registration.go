package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRegistrationTTL is how long a registration lookup is trusted.
const DefaultRegistrationTTL = 24 * time.Hour

// ConfiguredChecker treats every number as registered when WhatsApp credentials are
// configured. There is no registry API; this is the documented approximation.
type ConfiguredChecker struct {
	Configured bool
}

// IsRegistered implements RegistrationChecker.
func (c ConfiguredChecker) IsRegistered(ctx context.Context, e164 string) (bool, error) {
	return c.Configured, nil
}

// RegistrationCache stores lookup results with a TTL.
type RegistrationCache interface {
	Get(ctx context.Context, e164 string) (registered bool, found bool, err error)
	Set(ctx context.Context, e164 string, registered bool, ttl time.Duration) error
}

// CachedChecker memoises an inner checker. Cache errors fall through to the inner checker.
type CachedChecker struct {
	inner  RegistrationChecker
	cache  RegistrationCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedChecker wraps inner. ttl <= 0 uses DefaultRegistrationTTL.
func NewCachedChecker(inner RegistrationChecker, cache RegistrationCache, ttl time.Duration, logger *zap.Logger) *CachedChecker {
	if ttl <= 0 {
		ttl = DefaultRegistrationTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedChecker{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

// IsRegistered implements RegistrationChecker.
func (c *CachedChecker) IsRegistered(ctx context.Context, e164 string) (bool, error) {
	registered, found, err := c.cache.Get(ctx, e164)
	if err != nil {
		c.logger.Warn("registration cache read failed", zap.Error(err))
	} else if found {
		return registered, nil
	}
	registered, err = c.inner.IsRegistered(ctx, e164)
	if err != nil {
		return false, err
	}
	if err := c.cache.Set(ctx, e164, registered, c.ttl); err != nil {
		c.logger.Warn("registration cache write failed", zap.Error(err))
	}
	return registered, nil
}

type memoEntry struct {
	registered bool
	expires    time.Time
}

// MemoryRegistrationCache is an in-process RegistrationCache.
type MemoryRegistrationCache struct {
	mu      sync.Mutex
	entries map[string]memoEntry
	now     func() time.Time
}

// NewMemoryRegistrationCache creates an empty in-process cache.
func NewMemoryRegistrationCache() *MemoryRegistrationCache {
	return &MemoryRegistrationCache{entries: make(map[string]memoEntry), now: time.Now}
}

// Get implements RegistrationCache.
func (m *MemoryRegistrationCache) Get(ctx context.Context, e164 string) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[e164]
	if !ok {
		return false, false, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, e164)
		return false, false, nil
	}
	return e.registered, true, nil
}

// Set implements RegistrationCache.
func (m *MemoryRegistrationCache) Set(ctx context.Context, e164 string, registered bool, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e164] = memoEntry{registered: registered, expires: m.now().Add(ttl)}
	return nil
}

// RedisRegistrationCache shares lookups across instances.
type RedisRegistrationCache struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisRegistrationCache creates a Redis-backed cache under keys "wa:registered:{e164}".
func NewRedisRegistrationCache(rdb redis.Cmdable) *RedisRegistrationCache {
	return &RedisRegistrationCache{rdb: rdb, prefix: "wa:registered:"}
}

// Get implements RegistrationCache.
func (r *RedisRegistrationCache) Get(ctx context.Context, e164 string) (bool, bool, error) {
	v, err := r.rdb.Get(ctx, r.prefix+e164).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return v == "1", true, nil
}

// Set implements RegistrationCache.
func (r *RedisRegistrationCache) Set(ctx context.Context, e164 string, registered bool, ttl time.Duration) error {
	v := "0"
	if registered {
		v = "1"
	}
	return r.rdb.Set(ctx, r.prefix+e164, v, ttl).Err()
}
