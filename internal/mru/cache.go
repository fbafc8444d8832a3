package mru

// Cache is a generic, count-bounded MRU cache: Set/Get touch recency,
// Evict trims the tail once Count() exceeds maxCapacity. It is the backing
// store for the in-process memory engine (engine.Memory) — record storage
// there has no size-based eviction of its own; any capacity bound that
// applies is the eviction subsystem's, not the engine's.
type Cache[TK comparable, TV any] struct {
	lookup      map[TK]*entry[TK, TV]
	dll         *DoublyLinkedList[TK]
	maxCapacity int
}

type entry[TK comparable, TV any] struct {
	value TV
	node  *Node[TK]
}

// NewCache creates a cache. maxCapacity <= 0 means unbounded.
func NewCache[TK comparable, TV any](maxCapacity int) *Cache[TK, TV] {
	return &Cache[TK, TV]{
		lookup:      make(map[TK]*entry[TK, TV]),
		dll:         NewDoublyLinkedList[TK](),
		maxCapacity: maxCapacity,
	}
}

// Set inserts or updates key with value, marking it most-recently-used.
func (c *Cache[TK, TV]) Set(key TK, value TV) {
	if e, ok := c.lookup[key]; ok {
		e.value = value
		e.node = c.dll.MoveToHead(e.node)
		return
	}
	n := c.dll.AddToHead(key)
	c.lookup[key] = &entry[TK, TV]{value: value, node: n}
	c.evict()
}

// Get looks up key, marking it most-recently-used on a hit.
func (c *Cache[TK, TV]) Get(key TK) (TV, bool) {
	var zero TV
	e, ok := c.lookup[key]
	if !ok {
		return zero, false
	}
	e.node = c.dll.MoveToHead(e.node)
	return e.value, true
}

// Delete removes key if present, reporting whether it existed.
func (c *Cache[TK, TV]) Delete(key TK) bool {
	e, ok := c.lookup[key]
	if !ok {
		return false
	}
	c.dll.Delete(e.node)
	delete(c.lookup, key)
	return true
}

// Has reports whether key is present without affecting recency.
func (c *Cache[TK, TV]) Has(key TK) bool {
	_, ok := c.lookup[key]
	return ok
}

// Count returns the number of entries currently stored.
func (c *Cache[TK, TV]) Count() int {
	return len(c.lookup)
}

// Keys returns a snapshot of all keys currently stored, in no particular order.
func (c *Cache[TK, TV]) Keys() []TK {
	keys := make([]TK, 0, len(c.lookup))
	for k := range c.lookup {
		keys = append(keys, k)
	}
	return keys
}

// Clear empties the cache.
func (c *Cache[TK, TV]) Clear() {
	c.lookup = make(map[TK]*entry[TK, TV])
	c.dll = NewDoublyLinkedList[TK]()
}

func (c *Cache[TK, TV]) evict() {
	if c.maxCapacity <= 0 {
		return
	}
	for c.dll.Count() > c.maxCapacity {
		k, ok := c.dll.DeleteFromTail()
		if !ok {
			return
		}
		delete(c.lookup, k)
	}
}
