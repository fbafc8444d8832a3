package eviction

import (
	"sync"

	"github.com/cachify/cachify/internal/mru"
)

// ContentStore is the size-bounded LRU content cache for file bytes
// (spec.md §4.4 "Size-bounded LRU (file content only)"). It generalizes
// the teacher's count-bounded doubly linked list MRU into a byte-bounded
// one: admission that would violate maxTotalSize evicts least-recently-used
// entries (oldest lastAccessedAt; ties by insertion order, which is exactly
// what walking the tail of the recency list gives for free) until
// admissible.
type ContentStore struct {
	mu           sync.Mutex
	dll          *mru.DoublyLinkedList[string]
	lookup       map[string]*contentEntry
	maxFileSize  int64
	maxTotalSize int64
	totalSize    int64
	// OnEvict is invoked (outside the store's own lock) for every ref evicted
	// by LRU pressure, so the owning manager can flip isCached to false.
	OnEvict func(ref string)
}

type contentEntry struct {
	data []byte
	node *mru.Node[string]
}

// NewContentStore creates a content store bounded by maxFileSize per entry
// and maxTotalSize summed across all entries.
func NewContentStore(maxFileSize, maxTotalSize int64) *ContentStore {
	return &ContentStore{
		dll:          mru.NewDoublyLinkedList[string](),
		lookup:       make(map[string]*contentEntry),
		maxFileSize:  maxFileSize,
		maxTotalSize: maxTotalSize,
	}
}

// Admit stores data under ref, evicting LRU entries as needed to satisfy
// maxTotalSize. It returns admitted=false (not an error, spec.md §4.4/§7
// Capacity) when data alone exceeds maxFileSize; the caller must stream
// from disk on every read in that case.
func (c *ContentStore) Admit(ref string, data []byte) (admitted bool) {
	size := int64(len(data))
	if c.maxFileSize > 0 && size > c.maxFileSize {
		return false
	}
	c.mu.Lock()

	if e, ok := c.lookup[ref]; ok {
		c.totalSize -= int64(len(e.data))
		e.data = data
		e.node = c.dll.MoveToHead(e.node)
		c.totalSize += size
	} else {
		n := c.dll.AddToHead(ref)
		c.lookup[ref] = &contentEntry{data: data, node: n}
		c.totalSize += size
	}

	var evicted []string
	for c.maxTotalSize > 0 && c.totalSize > c.maxTotalSize {
		tailNode := c.dll.Tail()
		if tailNode == nil {
			break
		}
		k := tailNode.Data
		e := c.lookup[k]
		if e == nil {
			break
		}
		c.dll.Delete(e.node)
		delete(c.lookup, k)
		c.totalSize -= int64(len(e.data))
		evicted = append(evicted, k)
	}
	c.mu.Unlock()

	// Called synchronously, outside the lock, so the caller observes every
	// eviction's effect (e.g. rec.IsCached flipped false) before Admit
	// returns; a fire-and-forget goroutine here could race a subsequent
	// re-admission of the same ref and clear it right after.
	if c.OnEvict != nil {
		for _, k := range evicted {
			if k == ref {
				continue
			}
			c.OnEvict(k)
		}
	}
	return true
}

// Get returns ref's content, touching recency on a hit.
func (c *ContentStore) Get(ref string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookup[ref]
	if !ok {
		return nil, false
	}
	e.node = c.dll.MoveToHead(e.node)
	return e.data, true
}

// Remove evicts ref unconditionally (e.g. TTL-keep firing, or record removal).
func (c *ContentStore) Remove(ref string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookup[ref]
	if !ok {
		return false
	}
	c.dll.Delete(e.node)
	delete(c.lookup, ref)
	c.totalSize -= int64(len(e.data))
	return true
}

// Has reports whether ref is currently resident, without affecting recency.
func (c *ContentStore) Has(ref string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookup[ref]
	return ok
}

// Count returns the number of resident content entries.
func (c *ContentStore) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lookup)
}

// TotalSize returns the current sum of resident content sizes.
func (c *ContentStore) TotalSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalSize
}

// Clear empties the store without invoking OnEvict.
func (c *ContentStore) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dll = mru.NewDoublyLinkedList[string]()
	c.lookup = make(map[string]*contentEntry)
	c.totalSize = 0
}
