package evidence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mercator-hq/greenlight/pkg/subject"
)

// CacheConfig contains configuration for the evidence cache.
type CacheConfig struct {
	// TTL is how long a fetched record set stays fresh. Kept short so
	// decisions track live data while bursts of identical lookups collapse
	// into one fetch. Default: 5s
	TTL time.Duration `yaml:"ttl"`
}

// DefaultCacheConfig returns the default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 5 * time.Second}
}

// Observer receives cache and fetch events for metrics reporting.
// A nil observer is valid and ignored.
type Observer interface {
	// CacheHit records a cache hit for the named store.
	CacheHit(store string)

	// CacheMiss records a cache miss for the named store.
	CacheMiss(store string)

	// FetchCompleted records the outcome ("ok" or "error") of one
	// underlying store fetch.
	FetchCompleted(store, result string)
}

// cacheEntry holds one fetched record set and its fetch time.
type cacheEntry struct {
	value     any
	fetchedAt time.Time
}

// resultsValue is the cached payload for the results store.
type resultsValue struct {
	results   []TestResult
	truncated bool
}

// Cache is a read-through, short-TTL cache over the evidence clients with
// in-flight de-duplication: concurrent misses for one key share a single
// underlying fetch. Errors are never cached, so a failed fetch is retried
// on the next miss.
//
// The underlying fetch runs on a context detached from any single caller;
// one caller cancelling its wait does not cancel the fetch other callers
// share. Each waiter still honors its own context.
type Cache struct {
	results ResultsClient
	waivers WaiversClient
	ttl     time.Duration
	obs     Observer
	logger  *slog.Logger

	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache creates a cache over the given clients. obs may be nil.
func NewCache(results ResultsClient, waivers WaiversClient, cfg CacheConfig, obs Observer, logger *slog.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig().TTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		results: results,
		waivers: waivers,
		ttl:     cfg.TTL,
		obs:     obs,
		logger:  logger.With("component", "evidence.cache"),
		entries: make(map[string]cacheEntry),
	}
}

// Results returns the subject's test results, from cache when fresh.
func (c *Cache) Results(ctx context.Context, sub subject.Subject) ([]TestResult, bool, error) {
	v, err := c.lookup(ctx, StoreResults, sub, func(ctx context.Context) (any, error) {
		results, truncated, err := c.results.FetchResults(ctx, sub.References())
		if err != nil {
			return nil, err
		}
		return resultsValue{results: results, truncated: truncated}, nil
	})
	if err != nil {
		return nil, false, err
	}
	rv := v.(resultsValue)
	return rv.results, rv.truncated, nil
}

// Waivers returns the subject's waivers, from cache when fresh.
func (c *Cache) Waivers(ctx context.Context, sub subject.Subject) ([]Waiver, error) {
	v, err := c.lookup(ctx, StoreWaivers, sub, func(ctx context.Context) (any, error) {
		return c.waivers.FetchWaivers(ctx, sub.References())
	})
	if err != nil {
		return nil, err
	}
	return v.([]Waiver), nil
}

// Len returns the number of live cache entries. Expired entries may still
// be counted until the next lookup evicts them.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// lookup implements the read-through path for one store.
func (c *Cache) lookup(ctx context.Context, store string, sub subject.Subject, fetch func(context.Context) (any, error)) (any, error) {
	key := store + "|" + sub.CanonicalKey()

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && time.Since(entry.fetchedAt) < c.ttl {
		c.mu.Unlock()
		c.observeHit(store)
		return entry.value, nil
	}
	if ok {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	c.observeMiss(store)

	// The fetch is shared by every waiter for this key, so it must not die
	// with whichever caller happened to start it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		value, err := fetch(fetchCtx)
		if err != nil {
			c.observeFetch(store, "error")
			return nil, err
		}
		c.observeFetch(store, "ok")
		c.mu.Lock()
		c.entries[key] = cacheEntry{value: value, fetchedAt: time.Now()}
		c.mu.Unlock()
		return value, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val, nil
	}
}

func (c *Cache) observeHit(store string) {
	if c.obs != nil {
		c.obs.CacheHit(store)
	}
}

func (c *Cache) observeMiss(store string) {
	if c.obs != nil {
		c.obs.CacheMiss(store)
	}
}

func (c *Cache) observeFetch(store, result string) {
	if c.obs != nil {
		c.obs.FetchCompleted(store, result)
	}
}
