package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/quotakit/pkg/cache"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestLRU(t *testing.T) {
	t.Parallel()

	t.Run("put and get", func(t *testing.T) {
		t.Parallel()
		c := cache.New[string, int](3, 0)
		c.Put("a", 1)
		c.Put("b", 2)

		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)

		_, ok = c.Get("missing")
		assert.False(t, ok)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		t.Parallel()
		c := cache.New[string, int](2, 0)
		c.Put("a", 1)
		c.Put("b", 2)
		c.Get("a")
		c.Put("c", 3)

		_, ok := c.Get("b")
		assert.False(t, ok)
		_, ok = c.Get("a")
		assert.True(t, ok)
		_, ok = c.Get("c")
		assert.True(t, ok)
	})

	t.Run("entries expire after ttl", func(t *testing.T) {
		t.Parallel()
		clock := &fakeNow{t: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}
		c := cache.New[string, int](2, time.Minute, cache.WithNow(clock.Now))
		c.Put("a", 1)

		clock.Advance(59 * time.Second)
		_, ok := c.Get("a")
		assert.True(t, ok)

		clock.Advance(time.Second)
		_, ok = c.Get("a")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("put refreshes expiry", func(t *testing.T) {
		t.Parallel()
		clock := &fakeNow{t: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}
		c := cache.New[string, int](2, time.Minute, cache.WithNow(clock.Now))
		c.Put("a", 1)
		clock.Advance(50 * time.Second)
		c.Put("a", 2)
		clock.Advance(50 * time.Second)

		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 2, v)
	})

	t.Run("remove and purge", func(t *testing.T) {
		t.Parallel()
		c := cache.New[string, int](3, 0)
		c.Put("a", 1)
		c.Put("b", 2)

		assert.True(t, c.Remove("a"))
		assert.False(t, c.Remove("a"))

		c.Purge()
		assert.Equal(t, 0, c.Len())
	})

	t.Run("panics on non-positive capacity", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { cache.New[string, int](0, 0) })
	})
}
