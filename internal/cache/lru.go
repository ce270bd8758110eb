// Package cache provides a bounded least-recently-used cache.
//
// Recency is tracked by access: both Add and Get move an entry to the front.
// When an Add leaves the cache holding more than its maximum size, the single
// entry at the back is evicted before Add returns.
package cache

import (
	"container/list"
	"errors"
	"sync"
)

var (
	ErrInvalidCapacity   = errors.New("cache: max size and initial capacity must be positive")
	ErrInvalidLoadFactor = errors.New("cache: load factor must be in (0, 1]")
)

type entry[K comparable, V any] struct {
	key   K
	value V
}

// LRU is safe for concurrent use. Every public method runs as one short
// critical section; values are stored and returned by copy.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List // front is most recently used
	index   map[K]*list.Element
}

// New creates an LRU holding at most maxSize entries.
// initialCapacity and loadFactor only size the index up front.
func New[K comparable, V any](maxSize, initialCapacity int, loadFactor float64) (*LRU[K, V], error) {
	if maxSize <= 0 || initialCapacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if loadFactor <= 0 || loadFactor > 1 {
		return nil, ErrInvalidLoadFactor
	}

	hint := int(float64(initialCapacity) * loadFactor)
	if hint > maxSize {
		hint = maxSize
	}

	return &LRU[K, V]{
		maxSize: maxSize,
		order:   list.New(),
		index:   make(map[K]*list.Element, hint),
	}, nil
}

// Add stores value under key and marks it most recently used.
func (c *LRU[K, V]) Add(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		el.Value.(*entry[K, V]).value = value
		c.order.MoveToFront(el)
		return
	}

	c.index[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
	if c.order.Len() > c.maxSize {
		c.removeElement(c.order.Back())
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry[K, V]).value, true
}

// Invalidate drops key. Absent keys are ignored.
func (c *LRU[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.removeElement(el)
	}
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns the cached keys from most to least recently used.
// It does not change recency.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}

func (c *LRU[K, V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.index, el.Value.(*entry[K, V]).key)
}
