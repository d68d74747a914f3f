package mapbox

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
	"golang.org/x/sync/singleflight"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache. Keys are
// coordinates rounded to three decimals (about 100 m), so aftershocks in one
// sequence share a lookup. Concurrent misses for one key share a single
// upstream request.
type CachedGeocoder struct {
	inner    domain.Geocoder
	cache    *lruCache
	inflight singleflight.Group
	metrics  *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, ttl time.Duration, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache(maxEntries, ttl),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := fmt.Sprintf("rev:%.3f,%.3f", lat, lon)
	if result, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	v, err, _ := c.inflight.Do(key, func() (any, error) {
		result, err := c.inner.ReverseGeocode(ctx, lat, lon)
		if err != nil {
			return result, err
		}
		// Only cache non-empty results so transient "not found" responses can be retried.
		if result.FormattedAddress != "" {
			c.cache.put(key, result)
		}
		return result, nil
	})
	return v.(domain.GeocodingResult), err
}

// lruCache is a TTL-bound LRU of geocoding results, most recent at the front.
type lruCache struct {
	mu    sync.Mutex
	cap   int
	ttl   time.Duration
	now   func() time.Time
	ll    *list.List
	items map[string]*list.Element
}

type cacheEntry struct {
	key   string
	value domain.GeocodingResult
	exp   time.Time
}

func newLRUCache(maxEntries int, ttl time.Duration) *lruCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &lruCache{
		cap:   maxEntries,
		ttl:   ttl,
		now:   time.Now,
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) (domain.GeocodingResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return domain.GeocodingResult{}, false
	}
	en := el.Value.(*cacheEntry)
	if !c.now().Before(en.exp) {
		c.ll.Remove(el)
		delete(c.items, key)
		return domain.GeocodingResult{}, false
	}
	c.ll.MoveToFront(el)
	return en.value, true
}

func (c *lruCache) put(key string, value domain.GeocodingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	exp := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		en := el.Value.(*cacheEntry)
		en.value = value
		en.exp = exp
		c.ll.MoveToFront(el)
		return
	}

	c.items[key] = c.ll.PushFront(&cacheEntry{key: key, value: value, exp: exp})
	for c.ll.Len() > c.cap {
		tail := c.ll.Back()
		c.ll.Remove(tail)
		delete(c.items, tail.Value.(*cacheEntry).key)
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
