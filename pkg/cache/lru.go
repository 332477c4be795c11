// Package cache provides a bounded, thread-safe LRU cache whose entries
// expire after a fixed time to live.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
}

// LRU evicts the least recently used entry once capacity is exceeded and
// treats entries older than the TTL as missing.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	items    map[K]*list.Element
	order    *list.List
}

// Option configures an LRU.
type Option func(*lruOptions)

type lruOptions struct {
	now func() time.Time
}

// WithNow replaces the time source used for expiry.
func WithNow(now func() time.Time) Option {
	return func(o *lruOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates a cache holding at most capacity entries for ttl each.
// A non-positive ttl disables expiry. It panics if capacity is not positive.
func New[K comparable, V any](capacity int, ttl time.Duration, opts ...Option) *LRU[K, V] {
	if capacity <= 0 {
		panic("cache: capacity must be positive")
	}
	o := lruOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &LRU[K, V]{
		capacity: capacity,
		ttl:      ttl,
		now:      o.now,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the live value for key and marks it recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := elem.Value.(*entry[K, V])
	if c.ttl > 0 && !c.now().Before(e.expires) {
		c.remove(elem)
		return zero, false
	}
	c.order.MoveToFront(elem)
	return e.value, true
}

// Put stores value under key, refreshing its expiry.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry[K, V])
		e.value = value
		e.expires = expires
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, expires: expires})
	if c.order.Len() > c.capacity {
		c.remove(c.order.Back())
	}
}

// Remove drops key and reports whether it was present.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if ok {
		c.remove(elem)
	}
	return ok
}

// Len counts stored entries, expired ones included until they are touched.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge removes every entry.
func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.items)
	c.order.Init()
}

// Must be called with lock held.
func (c *LRU[K, V]) remove(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*entry[K, V]).key)
}
