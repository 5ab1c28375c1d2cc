// Package cache is a read-through TTL cache keyed by logical query
// identity. It shadows the primary store with a bounded lifetime and never
// owns source-of-truth data: any failure of the medium degrades to a direct
// compute instead of failing the request.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// TTL policy per query class.
const (
	TTLStats     = 300 * time.Second
	TTLOrders    = 60 * time.Second
	TTLAnalytics = 180 * time.Second
)

type Source string

const (
	SourceHit      Source = "hit"
	SourceMiss     Source = "miss"
	SourceDegraded Source = "degraded"
)

// Outcome reports how a GetOrCompute call was served. Degraded carries the
// medium error when Source is SourceDegraded; it is never propagated to the
// caller's error return.
type Outcome struct {
	Source   Source
	Degraded error
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Medium is the storage behind the cache. The default is an in-process LRU,
// which cannot fail, but the layer is written against the interface so the
// degradation contract stays testable.
type Medium interface {
	Get(key string) (any, bool, error)
	Add(key string, value any) error
	Keys() ([]string, error)
	Remove(key string) error
}

type lruMedium struct {
	c *lru.Cache[string, any]
}

func (m lruMedium) Get(key string) (any, bool, error) {
	v, ok := m.c.Get(key)
	return v, ok, nil
}

func (m lruMedium) Add(key string, value any) error {
	m.c.Add(key, value)
	return nil
}

func (m lruMedium) Keys() ([]string, error) { return m.c.Keys(), nil }

func (m lruMedium) Remove(key string) error {
	m.c.Remove(key)
	return nil
}

type Cache struct {
	medium Medium
	logger *zap.Logger
	now    func() time.Time
}

func New(size int, logger *zap.Logger) (*Cache, error) {
	c, err := lru.New[string, any](size)
	if err != nil {
		return nil, err
	}
	return NewWithMedium(lruMedium{c}, logger), nil
}

func NewWithMedium(m Medium, logger *zap.Logger) *Cache {
	return &Cache{
		medium: m,
		logger: logger,
		now:    time.Now,
	}
}

// Key derives a deterministic cache key from a query class and the
// serialized request parameters.
func Key(class string, params any) string {
	if params == nil {
		return class
	}
	b, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:%v", class, params)
	}
	return class + ":" + string(b)
}

// GetOrCompute returns the cached value for key if present and unexpired,
// otherwise invokes fn, stores the result with the given TTL and returns it.
// Medium failures are swallowed: the call degrades to invoking fn directly.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, Outcome, error) {
	var zero T

	v, ok, err := c.medium.Get(key)
	if err != nil {
		c.logger.Warn("cache degraded, computing directly",
			zap.String("key", key),
			zap.Error(err),
		)
		got, ferr := fn(ctx)
		return got, Outcome{Source: SourceDegraded, Degraded: err}, ferr
	}
	if ok {
		if e, isEntry := v.(entry); isEntry && c.now().Before(e.expiresAt) {
			if typed, isT := e.value.(T); isT {
				return typed, Outcome{Source: SourceHit}, nil
			}
		}
	}

	got, ferr := fn(ctx)
	if ferr != nil {
		return zero, Outcome{Source: SourceMiss}, ferr
	}
	if err := c.medium.Add(key, entry{value: got, expiresAt: c.now().Add(ttl)}); err != nil {
		c.logger.Warn("cache store failed, result served uncached",
			zap.String("key", key),
			zap.Error(err),
		)
		return got, Outcome{Source: SourceDegraded, Degraded: err}, nil
	}
	return got, Outcome{Source: SourceMiss}, nil
}

// Invalidate removes every entry whose key starts with prefix and returns
// the number removed. Calling it with no matching entries is a no-op.
// Best-effort: medium failures are logged, never propagated.
func (c *Cache) Invalidate(prefix string) int {
	keys, err := c.medium.Keys()
	if err != nil {
		c.logger.Warn("cache invalidation skipped",
			zap.String("prefix", prefix),
			zap.Error(err),
		)
		return 0
	}
	removed := 0
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if err := c.medium.Remove(k); err != nil {
			c.logger.Warn("cache key removal failed",
				zap.String("key", k),
				zap.Error(err),
			)
			continue
		}
		removed++
	}
	return removed
}

// Healthy probes the medium with a short-lived round trip.
func (c *Cache) Healthy() bool {
	const probe = "health:check"
	if err := c.medium.Add(probe, entry{value: "ok", expiresAt: c.now().Add(10 * time.Second)}); err != nil {
		return false
	}
	v, ok, err := c.medium.Get(probe)
	if err != nil || !ok {
		return false
	}
	e, isEntry := v.(entry)
	return isEntry && e.value == "ok"
}
