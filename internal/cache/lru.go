package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// LRUCache is a bounded map whose entries also expire after a TTL.
type LRUCache[K comparable, V any] struct {
	mu    sync.Mutex
	limit int
	ttl   time.Duration
	index map[K]*list.Element
	order *list.List // front is most recently used
	now   func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

type entry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
}

type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

// NewLRUCache holds at most limit entries (at least one), each for ttl.
func NewLRUCache[K comparable, V any](limit int, ttl time.Duration) *LRUCache[K, V] {
	return &LRUCache[K, V]{
		limit: max(limit, 1),
		ttl:   ttl,
		index: make(map[K]*list.Element),
		order: list.New(),
		now:   time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (c *LRUCache[K, V]) WithClock(now func() time.Time) *LRUCache[K, V] {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		e := el.Value.(*entry[K, V])
		if !c.now().After(e.expires) {
			c.order.MoveToFront(el)
			c.hits.Add(1)
			return e.value, true
		}
		c.drop(el)
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

func (c *LRUCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[K, V]{key: key, value: value, expires: c.now().Add(c.ttl)}
	if el, ok := c.index[key]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(e)
	for c.order.Len() > c.limit {
		c.drop(c.order.Back())
	}
}

func (c *LRUCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.drop(el)
	}
}

// DeleteFunc removes every entry whose key matches and returns how many went.
func (c *LRUCache[K, V]) DeleteFunc(match func(K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropWhere(func(e *entry[K, V]) bool { return match(e.key) })
}

// CleanExpired removes expired entries and returns how many went.
func (c *LRUCache[K, V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	return c.dropWhere(func(e *entry[K, V]) bool { return now.After(e.expires) })
}

func (c *LRUCache[K, V]) dropWhere(match func(*entry[K, V]) bool) int {
	n := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if match(el.Value.(*entry[K, V])) {
			c.drop(el)
			n++
		}
		el = next
	}
	return n
}

func (c *LRUCache[K, V]) drop(el *list.Element) {
	delete(c.index, el.Value.(*entry[K, V]).key)
	c.order.Remove(el)
}

func (c *LRUCache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRUCache[K, V]) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: c.Size()}
}
