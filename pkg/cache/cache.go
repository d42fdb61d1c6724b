package cache

// Cache is a bounded key/value store with LRU eviction.
type Cache[K comparable, V any] interface {
	// Get returns the value for key and true if present, marking it most recently used.
	// A miss does not mutate the cache.
	Get(key K) (V, bool)

	// Put stores value for key. An existing key is updated in place and promoted;
	// a new key evicts at most one least recently used entry when the cache is full.
	Put(key K, value V)

	// Remove deletes key and reports whether it was present.
	Remove(key K) bool

	// Len returns the number of entries currently stored.
	Len() int

	// Cap returns the fixed capacity.
	Cap() int
}
