// Package cache holds the prepared-statement cache used per connection handle
// and the result store behind the builder's Cache option.
package cache

import (
	"container/list"
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
)

// DefaultStmtCapacity is the default number of prepared statements kept per handle.
const DefaultStmtCapacity = 256

// Preparer is satisfied by *sql.DB and *sql.Conn.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// StmtCache keeps prepared statements keyed by their positional SQL, evicting
// the least recently used one when full. One cache belongs to one handle.
//
// A statement handed out by Acquire stays open until it is released, even if
// it is evicted or the cache is cleared in the meantime.
type StmtCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type stmtEntry struct {
	query   string
	stmt    *sql.Stmt
	refs    int  // Acquire calls not yet released
	retired bool // no longer in the cache; closed at refs == 0
}

// NewStmtCache creates a cache holding at most capacity statements.
// A non-positive capacity selects DefaultStmtCapacity.
func NewStmtCache(capacity int) *StmtCache {
	if capacity <= 0 {
		capacity = DefaultStmtCapacity
	}
	return &StmtCache{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Acquire returns the cached statement for query, preparing it on p first if
// needed, and a release func to call once the statement has run. The lock is
// not held while preparing; a concurrent preparation of the same query keeps
// the first statement and closes the second.
func (c *StmtCache) Acquire(ctx context.Context, p Preparer, query string) (*sql.Stmt, func(), error) {
	if e, ok := c.get(query); ok {
		return e.stmt, c.releaser(e), nil
	}

	stmt, err := p.PrepareContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	e := c.put(query, stmt)
	return e.stmt, c.releaser(e), nil
}

func (c *StmtCache) releaser(e *stmtEntry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			e.refs--
			done := e.retired && e.refs == 0
			c.mu.Unlock()
			if done {
				_ = e.stmt.Close()
			}
		})
	}
}

// retire must be called with the lock held.
func (c *StmtCache) retire(e *stmtEntry) {
	e.retired = true
	if e.refs == 0 {
		_ = e.stmt.Close()
	}
}

func (c *StmtCache) get(query string) (*stmtEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[query]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.order.MoveToFront(elem)
	c.hits.Add(1)
	e := elem.Value.(*stmtEntry)
	e.refs++
	return e, true
}

func (c *StmtCache) put(query string, stmt *sql.Stmt) *stmtEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[query]; ok {
		_ = stmt.Close()
		c.order.MoveToFront(elem)
		e := elem.Value.(*stmtEntry)
		e.refs++
		return e
	}

	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}
	e := &stmtEntry{query: query, stmt: stmt, refs: 1}
	c.items[query] = c.order.PushFront(e)
	return e
}

// evictOldest must be called with the lock held.
func (c *StmtCache) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	entry := elem.Value.(*stmtEntry)
	delete(c.items, entry.query)
	c.retire(entry)
	c.evictions.Add(1)
}

// Clear drops every cached statement, closing those not in use. The handle
// is reconnecting or closing.
func (c *StmtCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		c.retire(elem.Value.(*stmtEntry))
	}
	c.items = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}

// StmtStats reports cache usage.
type StmtStats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s StmtStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns a snapshot of the cache counters.
func (c *StmtCache) Stats() StmtStats {
	c.mu.Lock()
	size := c.order.Len()
	c.mu.Unlock()

	return StmtStats{
		Size:      size,
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
