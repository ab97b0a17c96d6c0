package cache

import (
	"context"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

const DefaultLocalSize = 1024

// LocalCache keeps results in process memory, for deployments without Redis.
type LocalCache struct {
	entries *lru.Cache[string, *executor.SearchResult]
	group   singleflight.Group
	metrics *metrics.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewLocal returns an LRU cache holding up to size results. m may be nil.
func NewLocal(size int, m *metrics.Metrics) *LocalCache {
	if size <= 0 {
		size = DefaultLocalSize
	}
	entries, _ := lru.New[string, *executor.SearchResult](size)
	return &LocalCache{entries: entries, metrics: m}
}

func (c *LocalCache) GetOrCompute(
	ctx context.Context,
	fingerprint, normalizedQuery string,
	limit int,
	compute ComputeFunc,
) (*executor.SearchResult, bool, error) {
	key := BuildKey(fingerprint, normalizedQuery, limit)
	if result, ok := c.entries.Get(key); ok {
		c.hit()
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

func (c *LocalCache) fill(ctx context.Context, key string, compute ComputeFunc) (flight, error) {
	if result, ok := c.entries.Get(key); ok {
		return flight{result: result, hit: true}, nil
	}
	result, err := compute(ctx)
	if err != nil {
		return flight{}, err
	}
	c.entries.Add(key, result)
	return flight{result: result}, nil
}

func (c *LocalCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *LocalCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// Invalidate drops entries cached for any index other than fingerprint.
// Pass "" to drop everything.
func (c *LocalCache) Invalidate(ctx context.Context, fingerprint string) error {
	if fingerprint == "" {
		c.entries.Purge()
		return nil
	}
	live := keyPrefix + shortFingerprint(fingerprint) + ":"
	for _, key := range c.entries.Keys() {
		if !strings.HasPrefix(key, live) {
			c.entries.Remove(key)
		}
	}
	return nil
}

// Purge drops every entry.
func (c *LocalCache) Purge() {
	c.entries.Purge()
}

func (c *LocalCache) Len() int {
	return c.entries.Len()
}

func (c *LocalCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
