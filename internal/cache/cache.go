// Package cache provides a capacity-bounded in-memory key/value store
// with least-recently-used eviction.
package cache

import (
	"container/list"
	"sync"
)

// DefaultCapacity is the entry-count bound used when none is given.
const DefaultCapacity = 100

// Options configures a Cache. Capacity bounds the entry count. If Cost is
// set, MaxCost additionally bounds the sum of per-entry costs (for example
// total image bytes); entries are evicted until both bounds hold.
type Options[V any] struct {
	Capacity int
	MaxCost  int64
	Cost     func(V) int64
}

type entry[K comparable, V any] struct {
	key   K
	value V
	cost  int64
}

// Cache is a bounded LRU map. All methods are safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	capacity  int
	maxCost   int64
	costFn    func(V) int64
	totalCost int64
	order     *list.List // front = most recently used
	items     map[K]*list.Element
}

// New creates a cache bounded to capacity entries. A capacity of zero or
// less falls back to DefaultCapacity.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	return NewWithOptions[K, V](Options[V]{Capacity: capacity})
}

// NewWithOptions creates a cache with explicit bounds.
func NewWithOptions[K comparable, V any](opts Options[V]) *Cache[K, V] {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	return &Cache[K, V]{
		capacity: opts.Capacity,
		maxCost:  opts.MaxCost,
		costFn:   opts.Cost,
		order:    list.New(),
		items:    make(map[K]*list.Element),
	}
}

// Get returns the cached value for key. A miss is not an error; the second
// return value reports whether the key was present. A hit marks the entry
// as most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry[K, V]).value, true
}

// Set stores value under key, evicting least-recently-used entries as
// needed to stay within the configured bounds.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cost := int64(0)
	if c.costFn != nil {
		cost = c.costFn(value)
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		c.totalCost += cost - e.cost
		e.value = value
		e.cost = cost
		c.order.MoveToFront(el)
		c.evict()
		return
	}

	el := c.order.PushFront(&entry[K, V]{key: key, value: value, cost: cost})
	c.items[key] = el
	c.totalCost += cost
	c.evict()
}

// Remove deletes key if present.
func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Clear drops all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[K]*list.Element)
	c.totalCost = 0
}

// Keys returns the cached keys from most to least recently used.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}

// Len returns the current entry count.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[K, V]) evict() {
	for len(c.items) > c.capacity || (c.maxCost > 0 && c.totalCost > c.maxCost) {
		oldest := c.order.Back()
		if oldest == nil {
			return
		}
		c.removeElement(oldest)
	}
}

func (c *Cache[K, V]) removeElement(el *list.Element) {
	e := el.Value.(*entry[K, V])
	c.order.Remove(el)
	delete(c.items, e.key)
	c.totalCost -= e.cost
}
