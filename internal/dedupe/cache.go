// ABOUTME: TTL cache for inbound event ids so redelivered events are processed once.
// ABOUTME: Insertion-ordered list gives O(1) expiry and size-bound eviction.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

const (
	// DefaultTTL covers the event platform's retry horizon with margin.
	DefaultTTL = 10 * time.Minute

	// DefaultMaxEntries bounds memory if expiry alone can't keep up.
	DefaultMaxEntries = 10000
)

type entry struct {
	id       string
	expireAt time.Time
}

// Cache answers "have I seen this event id recently". Safe for concurrent
// use. Entries expire after the TTL; when the cache is full the oldest
// entry is evicted. The list is insertion-ordered and TTLs are uniform, so
// the front is always the next to expire.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// New creates a cache. Non-positive ttl or maxEntries fall back to the
// defaults.
func New(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// CheckAndMark reports whether id is new, and marks it seen. The check and
// the mark are one atomic step so concurrent deliveries of the same event
// race to a single winner.
func (c *Cache) CheckAndMark(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.expire(now)

	if el, ok := c.entries[id]; ok {
		if el.Value.(*entry).expireAt.After(now) {
			return false
		}
		// Expired but not yet swept; treat as new
		c.remove(el)
	}

	if c.order.Len() >= c.maxEntries {
		if oldest := c.order.Front(); oldest != nil {
			c.remove(oldest)
		}
	}

	c.entries[id] = c.order.PushBack(&entry{id: id, expireAt: now.Add(c.ttl)})
	return true
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expire(c.now())
	return c.order.Len()
}

func (c *Cache) expire(now time.Time) {
	for {
		front := c.order.Front()
		if front == nil || front.Value.(*entry).expireAt.After(now) {
			return
		}
		c.remove(front)
	}
}

func (c *Cache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*entry).id)
}
