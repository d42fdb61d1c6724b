package cache

import (
	"sync"

	"github.com/ashpect/webserv/pkg/errs"
)

// nilIndex terminates the recency list.
const nilIndex int32 = -1

// LRUOption is a functional option for building an LRU cache
type LRUOption[K comparable, V any] func(*LRU[K, V])

// slot is one arena cell. prev/next are arena indices, not pointers, so a
// removed or reordered entry never leaves a dangling reference behind.
type slot[K comparable, V any] struct {
	key   K
	value V
	prev  int32
	next  int32
	used  bool
}

// LRU is a bounded least-recently-used cache.
//
// Entries live in an arena addressed by stable int32 indices; the map points
// at arena slots and the slots form a doubly linked list, head = MRU and
// tail = LRU. Freed slots are recycled through a free list.
//
// Every operation runs under mu, so an LRU may be shared between goroutines.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]int32
	slots    []slot[K, V]
	free     []int32
	head     int32
	tail     int32

	metrics Metrics
	onEvict func(K, V)
}

// WithMetrics wires hit/miss/evict/size signals.
func WithMetrics[K comparable, V any](m Metrics) LRUOption[K, V] {
	return func(c *LRU[K, V]) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithOnEvict registers a callback invoked, under the cache lock, for every
// entry dropped to make room. Explicit Remove does not trigger it.
func WithOnEvict[K comparable, V any](fn func(K, V)) LRUOption[K, V] {
	return func(c *LRU[K, V]) {
		c.onEvict = fn
	}
}

// New creates an LRU cache holding at most capacity entries.
// A capacity of zero yields a cache that is permanently empty; a negative
// capacity is a configuration error.
func New[K comparable, V any](capacity int, opts ...LRUOption[K, V]) (*LRU[K, V], error) {
	if capacity < 0 {
		return nil, errs.Configf("cache.New", "capacity must be >= 0, got %d", capacity)
	}

	c := &LRU[K, V]{
		capacity: capacity,
		items:    make(map[K]int32, capacity),
		slots:    make([]slot[K, V], 0, capacity),
		head:     nilIndex,
		tail:     nilIndex,
		metrics:  NoopMetrics{},
	}

	for _, o := range opts {
		o(c)
	}
	return c, nil
}

var _ Cache[string, []byte] = (*LRU[string, []byte])(nil)
