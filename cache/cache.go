// Package cache provides identity maps for materialized entities.
//
// A session cache lives for one decode or resolve call and never evicts. A shared
// cache is passed explicitly by callers that want entities reused across calls.
package cache

import (
	"sync"

	"github.com/jacentio/espalier/document"
	"github.com/jacentio/espalier/internal/shard"
)

// DefaultShards is the number of lock stripes used by New.
const DefaultShards = 16

// Key identifies a materialized entity by collection and identifier.
type Key struct {
	Collection string
	ID         string
}

// KeyOf builds the key for id stored in collection.
func KeyOf(collection string, id document.Value) Key {
	return Key{Collection: collection, ID: id.Key()}
}

func (k Key) String() string { return k.Collection + "|" + k.ID }

// Cache maps keys to materialized instances.
// Implementations must be safe for concurrent use; racing Sets keep the last write.
type Cache interface {
	Get(key Key) (any, bool)
	Set(key Key, value any)
	Delete(key Key)
	Len() int
}

type stripe struct {
	mu      sync.RWMutex
	entries map[Key]any
}

// Map is an unbounded cache striped across shards.
type Map struct {
	stripes []*stripe
}

// New returns an empty session cache.
func New() *Map {
	return NewSharded(DefaultShards)
}

// NewSharded returns an empty cache split into numShards lock stripes.
func NewSharded(numShards int) *Map {
	numShards = shard.Clamp(numShards)
	m := &Map{stripes: make([]*stripe, numShards)}
	for i := range m.stripes {
		m.stripes[i] = &stripe{entries: make(map[Key]any)}
	}
	return m
}

func (m *Map) stripe(key Key) *stripe {
	return m.stripes[shard.Index(key.String(), len(m.stripes))]
}

// Get returns the instance stored under key.
func (m *Map) Get(key Key) (any, bool) {
	s := m.stripe(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

// Set stores value under key, replacing any previous entry.
func (m *Map) Set(key Key, value any) {
	s := m.stripe(key)
	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()
}

// Delete removes key.
func (m *Map) Delete(key Key) {
	s := m.stripe(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Len returns the number of entries.
func (m *Map) Len() int {
	n := 0
	for _, s := range m.stripes {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}
