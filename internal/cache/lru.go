package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// LRUCache holds computed forecasts keyed by request. Capacity is bounded by
// entry count, evicting the least recently read entry, and every entry also
// expires after a fixed TTL so a missed invalidation heals on its own.
//
// Keys are expected to start with a per-family prefix; DeletePrefix drops a
// whole family after its occurrences change.
type LRUCache[T any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	byKey    map[string]*list.Element
	recency  *list.List // front is most recently used
	now      func() time.Time
}

type entry[T any] struct {
	key     string
	value   T
	expires time.Time
}

// NewLRUCache returns an empty cache. A capacity below one is raised to one.
func NewLRUCache[T any](capacity int, ttl time.Duration) *LRUCache[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRUCache[T]{
		capacity: capacity,
		ttl:      ttl,
		byKey:    make(map[string]*list.Element),
		recency:  list.New(),
		now:      time.Now,
	}
}

// Get returns the cached forecast for key. Expired entries count as misses
// and are dropped on the spot.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	el, ok := c.byKey[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[T])
	if c.now().After(e.expires) {
		c.unlink(el)
		return zero, false
	}
	c.recency.MoveToFront(el)
	return e.value, true
}

// Set stores value under key with a fresh TTL.
func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{key: key, value: value, expires: c.now().Add(c.ttl)}
	if el, ok := c.byKey[key]; ok {
		el.Value = e
		c.recency.MoveToFront(el)
		return
	}
	c.byKey[key] = c.recency.PushFront(e)
	if c.recency.Len() > c.capacity {
		c.unlink(c.recency.Back())
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byKey[key]; ok {
		c.unlink(el)
	}
}

// DeletePrefix drops every entry whose key starts with prefix, typically all
// forecasts of one family.
func (c *LRUCache[T]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, el := range c.byKey {
		if strings.HasPrefix(key, prefix) {
			c.unlink(el)
			n++
		}
	}
	return n
}

// unlink must be called with mu held.
func (c *LRUCache[T]) unlink(el *list.Element) {
	delete(c.byKey, el.Value.(*entry[T]).key)
	c.recency.Remove(el)
}

// CleanExpired sweeps expired forecasts; the Manager calls it periodically.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for el := c.recency.Front(); el != nil; {
		next := el.Next()
		if now.After(el.Value.(*entry[T]).expires) {
			c.unlink(el)
			n++
		}
		el = next
	}
	return n
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}
