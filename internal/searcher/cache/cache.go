// Package cache memoises search results. Keys include the index
// fingerprint, so publishing a new index makes every older entry
// unreachable without an explicit flush.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

const keyPrefix = "search:"

// ComputeFunc produces a result on a cache miss. The context it receives
// is detached from any single caller's cancellation, since the result is
// shared by every request waiting on the same key.
type ComputeFunc func(ctx context.Context) (*executor.SearchResult, error)

// ResultCache is implemented by QueryCache and LocalCache. Cached results
// are shared between callers and must not be modified.
type ResultCache interface {
	GetOrCompute(ctx context.Context, fingerprint, normalizedQuery string, limit int, compute ComputeFunc) (*executor.SearchResult, bool, error)
	Invalidate(ctx context.Context, fingerprint string) error
	Stats() (hits, misses int64)
}

// QueryCache stores results in Redis, shared by every searcher replica.
// Redis calls go through a circuit breaker; while it is open every lookup
// is a miss and nothing is stored.
type QueryCache struct {
	client  *pkgredis.Client
	breaker *resilience.CircuitBreaker
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a Redis-backed cache. m may be nil.
func New(client *pkgredis.Client, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return NewWithBreaker(client, ttl, m, resilience.CircuitBreakerConfig{})
}

// NewWithBreaker is New with explicit circuit breaker settings.
func NewWithBreaker(client *pkgredis.Client, ttl time.Duration, m *metrics.Metrics, cb resilience.CircuitBreakerConfig) *QueryCache {
	if m != nil {
		cb.OnStateChange = func(_, to resilience.State) {
			if to == resilience.StateClosed {
				m.CacheBreakerOpen.Set(0)
			} else {
				m.CacheBreakerOpen.Set(1)
			}
		}
	}
	return &QueryCache{
		client:  client,
		breaker: resilience.NewCircuitBreaker("redis-cache", cb),
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	var (
		data  []byte
		found bool
	)
	err := c.breaker.Execute(func() error {
		var err error
		data, found, err = c.client.Get(ctx, key)
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	if !found {
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &result, true
}

func (c *QueryCache) set(ctx context.Context, key string, result *executor.SearchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or computes and stores it.
// Concurrent misses for the same key share one computation. Redis failures
// degrade to computing directly.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	fingerprint, normalizedQuery string,
	limit int,
	compute ComputeFunc,
) (*executor.SearchResult, bool, error) {
	key := BuildKey(fingerprint, normalizedQuery, limit)
	if result, ok := c.get(ctx, key); ok {
		c.hit()
		c.logger.Debug("cache hit", "query", normalizedQuery, "key", key)
		return result, true, nil
	}
	shared := context.WithoutCancel(ctx)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.fill(shared, key, compute)
	})
	if err != nil {
		c.miss()
		return nil, false, err
	}
	f := val.(flight)
	if f.hit {
		c.hit()
	} else {
		c.miss()
	}
	return f.result, f.hit, nil
}

// fill runs once per key under singleflight. Another replica or an earlier
// flight may have stored the key since the caller's lookup.
func (c *QueryCache) fill(ctx context.Context, key string, compute ComputeFunc) (flight, error) {
	if result, ok := c.get(ctx, key); ok {
		return flight{result: result, hit: true}, nil
	}
	result, err := compute(ctx)
	if err != nil {
		return flight{}, err
	}
	c.set(ctx, key, result)
	return flight{result: result}, nil
}

// flight is what a singleflight call hands back to every waiter.
type flight struct {
	result *executor.SearchResult
	hit    bool
}

// Invalidate deletes entries cached for any index other than fingerprint.
// Pass "" to delete everything.
func (c *QueryCache) Invalidate(ctx context.Context, fingerprint string) error {
	live := keyPrefix + shortFingerprint(fingerprint) + ":"
	deleted, err := c.client.DeleteMatching(ctx, keyPrefix+"*", func(key string) bool {
		return fingerprint != "" && strings.HasPrefix(key, live)
	})
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted, "kept_fingerprint", shortFingerprint(fingerprint))
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState reports whether Redis is currently being bypassed.
func (c *QueryCache) BreakerState() resilience.State {
	return c.breaker.State()
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey derives the cache key for a query against one index.
func BuildKey(fingerprint, normalizedQuery string, limit int) string {
	raw := fmt.Sprintf("%s:limit=%d", normalizedQuery, limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, shortFingerprint(fingerprint), hash[:16])
}

func shortFingerprint(fp string) string {
	if len(fp) > 16 {
		return fp[:16]
	}
	return fp
}
