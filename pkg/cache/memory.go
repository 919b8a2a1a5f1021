package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-memory LRU cache with TTL support.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]*list.Element
	lru   *list.List
	cfg   Config
	stats Stats

	stopOnce sync.Once
	stopCh   chan struct{}
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an in-memory LRU cache and starts its sweeper.
func NewMemoryCache(cfg Config) *MemoryCache {
	def := DefaultConfig()
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = def.MaxSize
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	c := &MemoryCache{
		items:  make(map[string]*list.Element),
		lru:    list.New(),
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Get retrieves a value by key.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, ErrNotFound
	}

	e := elem.Value.(*entry)
	if e.expired(time.Now()) {
		c.remove(elem)
		c.stats.Misses++
		c.stats.Expirations++
		return nil, ErrNotFound
	}

	c.lru.MoveToFront(elem)
	c.stats.Hits++
	return e.value, nil
}

// Set stores a value, evicting least recently used entries to make room.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := &entry{key: key, value: value}
	if c.cfg.MaxSizeBytes > 0 && e.size() > c.cfg.MaxSizeBytes {
		return ErrValueTooLarge
	}
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
	for c.full(e.size()) {
		c.remove(c.lru.Back())
		c.stats.Evictions++
	}

	c.items[key] = c.lru.PushFront(e)
	c.stats.Size++
	c.stats.SizeBytes += e.size()
	c.stats.Sets++
	return nil
}

// Delete removes a key from the cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return ErrNotFound
	}
	c.remove(elem)
	return nil
}

// Stats returns a snapshot of the cache counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close stops the sweeper. The cache stays usable.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

func (c *MemoryCache) full(incoming int64) bool {
	if c.lru.Len() == 0 {
		return false
	}
	if c.stats.Size >= c.cfg.MaxSize {
		return true
	}
	return c.cfg.MaxSizeBytes > 0 && c.stats.SizeBytes+incoming > c.cfg.MaxSizeBytes
}

// remove must be called with c.mu held.
func (c *MemoryCache) remove(elem *list.Element) {
	e := elem.Value.(*entry)
	delete(c.items, e.key)
	c.lru.Remove(elem)
	c.stats.Size--
	c.stats.SizeBytes -= e.size()
}

func (c *MemoryCache) sweepLoop() {
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep(time.Now())
		case <-c.stopCh:
			return
		}
	}
}

func (c *MemoryCache) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*entry).expired(now) {
			c.remove(elem)
			c.stats.Expirations++
		}
		elem = prev
	}
}
