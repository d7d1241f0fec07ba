// Package cache is a read-through JSON cache for list views. Entries are keyed by
// {namespace}:v{version}:{logical-key}; invalidation bumps the namespace version so every
// prior entry is orphaned and left to expire by TTL. Backend errors always fail open.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/metrics"
)

const (
	// MinTTL is the floor applied after jitter.
	MinTTL = 30 * time.Second
	// jitterFraction bounds the random TTL spread to ±10%.
	jitterFraction = 0.10
)

// Backend is the key/value store behind the cache.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
}

// Cache is safe for concurrent use. A nil *Cache calls fetchers directly.
type Cache struct {
	backend   Backend
	memo      *VersionMemo
	namespace string
	logger    *zap.Logger
	metrics   *metrics.Metrics
	rnd       func() float64
}

// New creates a cache over backend. memo holds the namespace version in-process.
func New(backend Backend, memo *VersionMemo, namespace string, logger *zap.Logger, m *metrics.Metrics) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if memo == nil {
		memo = NewVersionMemo(0)
	}
	return &Cache{
		backend:   backend,
		memo:      memo,
		namespace: namespace,
		logger:    logger,
		metrics:   m,
		rnd:       rand.Float64,
	}
}

func (c *Cache) versionKey() string { return c.namespace + ":version" }

// Version returns the current namespace version, consulting the memo first.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if v, ok := c.memo.Get(c.namespace); ok {
		return v, nil
	}
	raw, ok, err := c.backend.Get(ctx, c.versionKey())
	if err != nil {
		return 0, err
	}
	var v int64
	if ok {
		if v, err = strconv.ParseInt(string(raw), 10, 64); err != nil {
			return 0, fmt.Errorf("parse cache version: %w", err)
		}
	}
	c.memo.Set(c.namespace, v)
	return v, nil
}

// BumpNamespaceVersion invalidates every entry in the namespace. Failures are logged only;
// racing bumps at worst cause one extra invalidation.
func (c *Cache) BumpNamespaceVersion(ctx context.Context) {
	if c == nil {
		return
	}
	v, err := c.backend.Incr(ctx, c.versionKey())
	if err != nil {
		c.memo.Forget(c.namespace)
		c.logger.Warn("cache version bump failed", zap.String("namespace", c.namespace), zap.Error(err))
		return
	}
	c.memo.Set(c.namespace, v)
}

func (c *Cache) compositeKey(version int64, key string) string {
	return c.namespace + ":v" + strconv.FormatInt(version, 10) + ":" + key
}

// jitter spreads ttl by up to ±10% and applies the MinTTL floor.
func (c *Cache) jitter(ttl time.Duration) time.Duration {
	delta := (c.rnd()*2 - 1) * jitterFraction * float64(ttl)
	out := ttl + time.Duration(delta)
	if out < MinTTL {
		return MinTTL
	}
	return out
}

// JSON reads key through the cache, calling fetch on a miss. Fetch errors are returned and
// never cached; cache errors are logged and bypassed.
func JSON[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	if c == nil {
		return fetch(ctx)
	}
	version, err := c.Version(ctx)
	if err != nil {
		c.failOpen("version", key, err)
		return fetch(ctx)
	}
	full := c.compositeKey(version, key)

	raw, ok, err := c.backend.Get(ctx, full)
	switch {
	case err != nil:
		c.failOpen("get", full, err)
		return fetch(ctx)
	case ok:
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			c.metrics.CacheLookup("hit")
			return v, nil
		}
		c.logger.Warn("cache entry undecodable", zap.String("key", full))
	}
	c.metrics.CacheLookup("miss")

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	if body, err := json.Marshal(v); err == nil {
		if err := c.backend.Set(ctx, full, body, c.jitter(ttl)); err != nil {
			c.failOpen("set", full, err)
		}
	}
	return v, nil
}

func (c *Cache) failOpen(op, key string, err error) {
	c.metrics.CacheLookup("error")
	c.logger.Warn("cache backend error, bypassing", zap.String("op", op), zap.String("key", key), zap.Error(err))
}

// Key builds a deterministic logical key from a prefix and query parameters: names sorted,
// values trimmed and lower-cased, empty values dropped.
func Key(prefix string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	vals := url.Values{}
	for _, k := range names {
		v := strings.ToLower(strings.TrimSpace(params[k]))
		if v == "" {
			continue
		}
		vals.Set(strings.ToLower(k), v)
	}
	if len(vals) == 0 {
		return prefix
	}
	return prefix + "?" + vals.Encode()
}
