package asset

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheBytes is the byte budget NewCache uses for a non-positive
// limit.
const DefaultCacheBytes = 32 << 20

// Cache is a Loader that keeps recently loaded assets in memory, up to a
// byte budget, evicting the least recently used first. An asset larger
// than the whole budget is returned but not kept.
//
// Cache is safe for concurrent use. Concurrent loads of the same missing
// name share one call to the underlying loader.
type Cache struct {
	next   Loader
	limit  int
	flight singleflight.Group

	mu      sync.Mutex
	entries map[string]*cacheEntry
	lru     lruList
	size    int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type cacheEntry struct {
	data []byte
	node *lruNode
}

// NewCache wraps next with a cache of at most limit bytes.
func NewCache(next Loader, limit int) *Cache {
	if limit <= 0 {
		limit = DefaultCacheBytes
	}
	return &Cache{next: next, limit: limit, entries: make(map[string]*cacheEntry)}
}

// Load returns the cached bytes of name or loads them with the wrapped
// loader. Callers must not modify the returned slice.
func (c *Cache) Load(ctx context.Context, name string) ([]byte, error) {
	if data, ok := c.lookup(name); ok {
		c.hits.Add(1)
		return data, nil
	}
	c.misses.Add(1)

	for {
		ch := c.flight.DoChan(name, func() (any, error) {
			if data, ok := c.lookup(name); ok {
				return data, nil
			}
			data, err := c.next.Load(ctx, name)
			if err != nil {
				return nil, err
			}
			c.put(name, data)
			return data, nil
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err == nil {
				return res.Val.([]byte), nil
			}
			// another caller's context ended the shared load
			if res.Shared && ctx.Err() == nil &&
				(errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded)) {
				continue
			}
			return nil, res.Err
		}
	}
}

func (c *Cache) lookup(name string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(e.node)
	return e.data, true
}

func (c *Cache) put(name string, data []byte) {
	if len(data) > c.limit {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[name]; ok {
		c.size -= len(e.data)
		e.data = data
		c.size += len(data)
		c.lru.MoveToFront(e.node)
	} else {
		c.entries[name] = &cacheEntry{data: data, node: c.lru.PushFront(name)}
		c.size += len(data)
	}
	for c.size > c.limit {
		oldest, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
		c.size -= len(c.entries[oldest].data)
		delete(c.entries, oldest)
		c.evictions.Add(1)
	}
}

// CacheStats are the counters of a Cache.
type CacheStats struct {
	Entries   int
	Bytes     int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	entries, size := len(c.entries), c.size
	c.mu.Unlock()
	return CacheStats{
		Entries:   entries,
		Bytes:     size,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// lruNode is a node of lruList; it carries the key so the oldest entry
// can be deleted from the map.
type lruNode struct {
	key        string
	prev, next *lruNode
}

// lruList is a doubly linked list with the most recently used node at
// the head. It is not safe for concurrent use.
type lruList struct {
	head, tail *lruNode
}

func (l *lruList) PushFront(key string) *lruNode {
	n := &lruNode{key: key}
	l.linkFront(n)
	return n
}

func (l *lruList) MoveToFront(n *lruNode) {
	if n == l.head {
		return
	}
	l.unlink(n)
	l.linkFront(n)
}

func (l *lruList) RemoveOldest() (string, bool) {
	if l.tail == nil {
		return "", false
	}
	n := l.tail
	l.unlink(n)
	return n.key, true
}

func (l *lruList) linkFront(n *lruNode) {
	n.prev, n.next = nil, l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *lruList) unlink(n *lruNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
