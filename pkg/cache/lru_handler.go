package cache

// Len returns the number of stored entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Cap returns the capacity fixed at construction.
func (c *LRU[K, V]) Cap() int { return c.capacity }

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.items[key]
	if !ok {
		c.metrics.Miss()
		var zero V
		return zero, false
	}

	c.moveToFront(idx)
	c.metrics.Hit()
	return c.slots[idx].value, true
}

// Peek returns the value for key without touching recency order.
func (c *LRU[K, V]) Peek(key K) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	return c.slots[idx].value, true
}

// Put inserts or updates key.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity == 0 {
		return
	}

	// update if it's existing
	if idx, ok := c.items[key]; ok {
		c.slots[idx].value = value
		c.moveToFront(idx)
		return
	}

	// full: drop exactly one entry, the tail
	if len(c.items) >= c.capacity {
		c.evictTail()
	}

	idx := c.alloc()
	s := &c.slots[idx]
	s.key = key
	s.value = value
	s.used = true
	c.pushFront(idx)
	c.items[key] = idx
	c.metrics.Size(len(c.items))
}

// Remove deletes key if present.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.items[key]
	if !ok {
		return false
	}
	c.unlink(idx)
	delete(c.items, key)
	c.release(idx)
	c.metrics.Size(len(c.items))
	return true
}

// Keys returns the keys ordered from most to least recently used.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]K, 0, len(c.items))
	for i := c.head; i != nilIndex; i = c.slots[i].next {
		out = append(out, c.slots[i].key)
	}
	return out
}

// -------------------- internals (mu held) --------------------

func (c *LRU[K, V]) alloc() int32 {
	if n := len(c.free); n > 0 {
		idx := c.free[n-1]
		c.free = c.free[:n-1]
		return idx
	}
	c.slots = append(c.slots, slot[K, V]{prev: nilIndex, next: nilIndex})
	return int32(len(c.slots) - 1)
}

// release clears the slot so its key/value can be collected and recycles it.
func (c *LRU[K, V]) release(idx int32) {
	c.slots[idx] = slot[K, V]{prev: nilIndex, next: nilIndex}
	c.free = append(c.free, idx)
}

func (c *LRU[K, V]) pushFront(idx int32) {
	s := &c.slots[idx]
	s.prev = nilIndex
	s.next = c.head
	if c.head != nilIndex {
		c.slots[c.head].prev = idx
	}
	c.head = idx
	if c.tail == nilIndex {
		c.tail = idx
	}
}

func (c *LRU[K, V]) unlink(idx int32) {
	s := &c.slots[idx]
	if s.prev != nilIndex {
		c.slots[s.prev].next = s.next
	} else {
		c.head = s.next
	}
	if s.next != nilIndex {
		c.slots[s.next].prev = s.prev
	} else {
		c.tail = s.prev
	}
	s.prev, s.next = nilIndex, nilIndex
}

func (c *LRU[K, V]) moveToFront(idx int32) {
	if c.head == idx {
		return
	}
	c.unlink(idx)
	c.pushFront(idx)
}

func (c *LRU[K, V]) evictTail() {
	idx := c.tail
	if idx == nilIndex {
		return
	}
	s := c.slots[idx]
	c.unlink(idx)
	delete(c.items, s.key)
	c.release(idx)
	c.metrics.Evict()
	if c.onEvict != nil {
		c.onEvict(s.key, s.value)
	}
}
