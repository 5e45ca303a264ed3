package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// LRU is a bounded cache meant to be shared across sessions.
// The least recently used entries are evicted once size is reached.
type LRU struct {
	entries *lru.Cache
}

// NewLRU returns a shared cache holding at most size entries.
func NewLRU(size int) (*LRU, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("espalier: create lru cache: %w", err)
	}
	return &LRU{entries: c}, nil
}

// Get returns the instance stored under key and marks it recently used.
func (c *LRU) Get(key Key) (any, bool) {
	return c.entries.Get(key)
}

// Set stores value under key.
func (c *LRU) Set(key Key, value any) {
	c.entries.Add(key, value)
}

// Delete removes key.
func (c *LRU) Delete(key Key) {
	c.entries.Remove(key)
}

// Len returns the number of entries.
func (c *LRU) Len() int {
	return c.entries.Len()
}

// Purge removes every entry.
func (c *LRU) Purge() {
	c.entries.Purge()
}
