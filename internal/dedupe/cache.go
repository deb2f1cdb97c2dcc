// ABOUTME: Thread-safe TTL cache of recorded responses keyed by idempotency key.
// ABOUTME: Lets the HTTP API replay a repeated request instead of applying it twice.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// Response is what was sent for a request the first time it was handled.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// cacheEntry stores the response, timestamp and list element for a cached key.
type cacheEntry struct {
	response  Response
	timestamp time.Time
	element   *list.Element
}

// Cache provides a thread-safe, TTL-based, size-limited store of responses.
// Uses a doubly-linked list to maintain insertion order for O(1) eviction.
// A zero TTL or size disables it: Put does nothing and Get always misses.
type Cache struct {
	mu      sync.RWMutex
	seen    map[string]*cacheEntry
	order   *list.List // List of keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a new response cache with the specified TTL and maximum size.
// A background goroutine periodically cleans up expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns the response recorded under key if it has not expired.
func (c *Cache) Get(key string) (Response, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.seen[key]
	if !ok || time.Since(entry.timestamp) >= c.ttl {
		return Response{}, false
	}
	return entry.response, true
}

// Put records resp under key. If the cache is at capacity, the oldest entry is
// evicted to make room.
func (c *Cache) Put(key string, resp Response) {
	if c.ttl <= 0 || c.maxSize <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	body := append([]byte(nil), resp.Body...)
	resp.Body = body

	// If key already exists, replace and move to back
	if entry, exists := c.seen[key]; exists {
		entry.response = resp
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &cacheEntry{
		response:  resp,
		timestamp: now,
		element:   elem,
	}
}

// Len returns the number of entries, expired ones included until cleanup runs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.seen)
}

// evictOldest removes the oldest entry from the cache.
// Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.seen {
		if now.Sub(entry.timestamp) >= c.ttl {
			c.order.Remove(entry.element)
			delete(c.seen, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
