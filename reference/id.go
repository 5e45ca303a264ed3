package reference

import (
	"github.com/jacentio/espalier/cache"
	"github.com/jacentio/espalier/document"
)

// ID is a stored identifier. A typed ID also names the collection it lives in.
type ID struct {
	Origin string
	Value  document.Value
}

// NewID returns a bare identifier.
func NewID(v document.Value) ID {
	return ID{Value: v}
}

// NewTypedID returns an identifier qualified with its origin collection.
// It panics if origin is empty.
func NewTypedID(origin string, v document.Value) ID {
	if origin == "" {
		panic("espalier: typed identifier requires an origin")
	}
	return ID{Origin: origin, Value: v}
}

// Typed reports whether the identifier carries an origin.
func (id ID) Typed() bool { return id.Origin != "" }

// Collection returns the origin, or def for bare identifiers.
func (id ID) Collection(def string) string {
	if id.Origin != "" {
		return id.Origin
	}
	return def
}

// Key returns the cache key of the identifier, using def for bare identifiers.
func (id ID) Key(def string) cache.Key {
	return cache.KeyOf(id.Collection(def), id.Value)
}

func (id ID) String() string {
	if id.Origin != "" {
		return id.Origin + "#" + id.Value.GoString()
	}
	return id.Value.GoString()
}
