// Package cache is a namespaced read-through / invalidate-on-write layer
// over a TTL key/value store. Two namespaces share one store: document
// lookups (long TTL) and search result pages (short TTL). Absent results
// are never cached, so a transient not-found can become valid later without
// waiting out a TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/docsearch-io/docsearch/pkg/metrics"
	pkgredis "github.com/docsearch-io/docsearch/pkg/redis"
	"golang.org/x/sync/singleflight"
)

// Cache namespaces. The prefixes keep the two key spaces disjoint on the
// shared store.
const (
	NamespaceDocuments = "documents"
	NamespaceSearch    = "search"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is the key/value contract the cache needs. TTL enforcement is the
// store's responsibility.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// redisStore adapts pkg/redis.Client to the Store contract, translating
// the client's nil error into ErrMiss.
type redisStore struct {
	client *pkgredis.Client
}

func (s redisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (s redisStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl)
}

func (s redisStore) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...)
}

// NewRedisStore wraps a Redis client as a cache Store.
func NewRedisStore(client *pkgredis.Client) Store {
	return redisStore{client: client}
}

// Cache wraps a Store with namespacing, miss accounting, and singleflight
// deduplication of concurrent fills. Store failures degrade to misses:
// the cache never makes a read path fail.
type Cache struct {
	store   Store
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a Cache over the given store. metrics may be nil.
func New(store Store, m *metrics.Metrics) *Cache {
	return &Cache{
		store:   store,
		metrics: m,
		logger:  slog.Default().With("component", "cache"),
	}
}

// Get returns the cached value for (namespace, key), reporting whether it
// was present.
func (c *Cache) Get(ctx context.Context, namespace, key string) (string, bool) {
	full := namespace + ":" + key
	val, err := c.store.Get(ctx, full)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Error("cache get failed", "key", full, "error", err)
		}
		c.miss(namespace)
		return "", false
	}
	c.hit(namespace)
	return val, true
}

// Put stores a value under (namespace, key). Empty values are never cached.
func (c *Cache) Put(ctx context.Context, namespace, key, value string, ttl time.Duration) {
	if value == "" {
		return
	}
	full := namespace + ":" + key
	if err := c.store.Set(ctx, full, value, ttl); err != nil {
		c.logger.Error("cache set failed", "key", full, "error", err)
	}
}

// Invalidate removes the entry for (namespace, key).
func (c *Cache) Invalidate(ctx context.Context, namespace, key string) {
	full := namespace + ":" + key
	if err := c.store.Del(ctx, full); err != nil {
		c.logger.Error("cache invalidate failed", "key", full, "error", err)
	}
}

// GetOrCompute returns the cached value or computes, caches, and returns a
// fresh one. Concurrent callers for the same key share a single compute.
// The boolean reports whether the value came from cache.
func (c *Cache) GetOrCompute(
	ctx context.Context,
	namespace, key string,
	ttl time.Duration,
	computeFn func() (string, error),
) (string, bool, error) {
	if val, ok := c.Get(ctx, namespace, key); ok {
		return val, true, nil
	}
	full := namespace + ":" + key
	val, err, _ := c.group.Do(full, func() (interface{}, error) {
		if cached, ok := c.Get(ctx, namespace, key); ok {
			return cached, nil
		}
		fresh, err := computeFn()
		if err != nil {
			return "", err
		}
		c.Put(ctx, namespace, key, fresh, ttl)
		return fresh, nil
	})
	if err != nil {
		return "", false, err
	}
	return val.(string), false, nil
}

// Stats returns cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) hit(namespace string) {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(namespace).Inc()
	}
}

func (c *Cache) miss(namespace string) {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(namespace).Inc()
	}
}

// DocumentKey builds the document-namespace key for an (id, tenant) pair.
func DocumentKey(id, tenantID string) string {
	return id + ":" + tenantID
}

// SearchKey builds the search-namespace key. Tenant, normalized query text,
// page, and page size all feed the key so that distinct tenants or queries
// can never collide.
func SearchKey(tenantID, query string, page, size int) string {
	normalized := normalizeQuery(query)
	raw := fmt.Sprintf("%s|page=%d|size=%d", normalized, page, size)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s:%x", tenantID, hash[:16])
}

// normalizeQuery collapses case and whitespace so trivially different
// spellings of the same query share a cache entry.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
