// Package cache holds fetched feed bodies keyed by source URL.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Entry is one fetched feed body.
type Entry struct {
	Body      []byte
	SourceURL string
	FetchedAt time.Time
}

// Age reports how old the entry is at now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Cache maps feed URLs to entries with a per-key TTL. It holds at most
// maxEntries entries, evicting the least recently used one on overflow.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	ll         *list.List
	items      map[string]*list.Element
	now        func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache. maxEntries <= 0 means unbounded.
func New(ttl time.Duration, maxEntries int, opts ...Option) *Cache {
	c := &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the entry for url if one exists and is younger than the TTL.
// Expired entries are dropped on access.
func (c *Cache) Get(url string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[url]
	if !ok {
		return Entry{}, false
	}

	entry := el.Value.(Entry)
	if entry.SourceURL != url || entry.Age(c.now()) >= c.ttl {
		c.removeElement(el)
		return Entry{}, false
	}

	c.ll.MoveToFront(el)
	return entry, true
}

// Set stores body for url, replacing any previous entry, and returns the
// stored entry.
func (c *Cache) Set(url string, body []byte) Entry {
	entry := Entry{
		Body:      body,
		SourceURL: url,
		FetchedAt: c.now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[url]; ok {
		el.Value = entry
		c.ll.MoveToFront(el)
		return entry
	}

	c.items[url] = c.ll.PushFront(entry)
	if c.maxEntries > 0 && c.ll.Len() > c.maxEntries {
		if oldest := c.ll.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
	return entry
}

// Delete drops the entry for url.
func (c *Cache) Delete(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[url]; ok {
		c.removeElement(el)
	}
}

// Reset drops every entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[string]*list.Element)
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *Cache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(Entry).SourceURL)
}
