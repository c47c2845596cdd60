package cache

import (
	"sync"
	"time"

	"github.com/fgrzl/resourcekit/internal/clock"
)

type item struct {
	value   any
	expires time.Time
}

// ExpiringCache is a small TTL cache used by the stores to skip redundant
// inventory writes. Entries are evicted lazily on Get and by a sweeper.
type ExpiringCache struct {
	mu        sync.Mutex
	items     map[string]item
	ttl       time.Duration
	clock     clock.Clock
	ticker    *clock.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

func NewExpiringCache(ttl, cleanupInterval time.Duration) *ExpiringCache {
	return NewExpiringCacheWithClock(ttl, cleanupInterval, clock.Real())
}

func NewExpiringCacheWithClock(ttl, cleanupInterval time.Duration, c clock.Clock) *ExpiringCache {
	cache := &ExpiringCache{
		items:  make(map[string]item),
		ttl:    ttl,
		clock:  c,
		ticker: c.NewTicker(cleanupInterval),
		done:   make(chan struct{}),
	}
	go cache.sweep()
	return cache
}

func (c *ExpiringCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(it.expires) {
		delete(c.items, key)
		return nil, false
	}
	return it.value, true
}

func (c *ExpiringCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item{value: value, expires: c.clock.Now().Add(c.ttl)}
}

func (c *ExpiringCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *ExpiringCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *ExpiringCache) Close() {
	c.closeOnce.Do(func() {
		c.ticker.Stop()
		close(c.done)
	})
}

func (c *ExpiringCache) sweep() {
	for {
		select {
		case <-c.done:
			return
		case <-c.ticker.C:
			c.evictExpired()
		}
	}
}

func (c *ExpiringCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	for key, it := range c.items {
		if !now.Before(it.expires) {
			delete(c.items, key)
		}
	}
}
