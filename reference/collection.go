package reference

import (
	"fmt"
	"reflect"

	"github.com/jacentio/espalier/cache"
	"github.com/jacentio/espalier/document"
)

// Element is one member of a collection reference: either an identifier to
// resolve or a value that was stored embedded.
type Element struct {
	ID       ID
	Value    reflect.Value
	Embedded bool
}

// IDElement returns an element to be resolved from id.
func IDElement(id ID) Element { return Element{ID: id} }

// EmbeddedElement returns an element that is already materialized.
func EmbeddedElement(v reflect.Value, id ID) Element {
	return Element{ID: id, Value: v, Embedded: true}
}

// batch resolves elements, issuing at most one FindMany per collection for
// identifiers not already cached. The result holds one entry per element;
// entries that could not be fetched are invalid.
func batch(s *Session, target Target, elems []Element) ([]reflect.Value, error) {
	out := make([]reflect.Value, len(elems))

	type group struct {
		ids  []document.Value
		seen map[cache.Key]bool
	}
	groups := make(map[string]*group)
	var order []string

	for i, e := range elems {
		if e.Embedded {
			out[i] = e.Value
			continue
		}
		collection := e.ID.Collection(target.Collection)
		if collection == "" {
			return nil, fmt.Errorf("%w: identifier %s has no collection", ErrMissingReference, e.ID)
		}
		key := e.ID.Key(target.Collection)
		if v, ok := s.cached(key, target.Type); ok {
			out[i] = v
			continue
		}
		if s.resolving(key) {
			return nil, fmt.Errorf("%w: %s", ErrCircularReference, key)
		}
		g, ok := groups[collection]
		if !ok {
			g = &group{seen: make(map[cache.Key]bool)}
			groups[collection] = g
			order = append(order, collection)
		}
		if !g.seen[key] {
			g.seen[key] = true
			g.ids = append(g.ids, e.ID.Value)
		}
	}
	if len(order) == 0 {
		return out, nil
	}
	if s.finder == nil {
		return nil, ErrNoFinder
	}

	found := make(map[cache.Key]reflect.Value)
	for _, collection := range order {
		g := groups[collection]
		keys := make([]cache.Key, 0, len(g.seen))
		for k := range g.seen {
			keys = append(keys, k)
		}
		docs, err := s.finder.FindMany(s.ctx, collection, g.ids)
		if err != nil {
			return nil, fmt.Errorf("fetch %d from %s: %w", len(g.ids), collection, err)
		}
		inner := s.within(keys...)
		for _, doc := range docs {
			v, err := s.materializer.Materialize(inner, collection, doc, target.Type)
			if err != nil {
				return nil, fmt.Errorf("materialize from %s: %w", collection, err)
			}
			id, err := s.materializer.IdentifierOf(v)
			if err != nil {
				return nil, fmt.Errorf("identify entity from %s: %w", collection, err)
			}
			key := cache.KeyOf(collection, id)
			s.cache.Set(key, v.Interface())
			found[key] = v
		}
		if len(docs) < len(g.ids) {
			s.logger.Debug("batch fetch returned fewer entities than requested",
				"collection", collection,
				"requested", len(g.ids),
				"found", len(docs),
			)
		}
	}

	for i, e := range elems {
		if out[i].IsValid() {
			continue
		}
		v, ok := found[e.ID.Key(target.Collection)]
		if !ok {
			continue
		}
		a, ok := Adapt(v, target.Type)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not %s", ErrTypeMismatch, v.Type(), target.Type)
		}
		out[i] = a
	}
	return out, nil
}

func elementIDs(elems []Element) []ID {
	ids := make([]ID, 0, len(elems))
	for _, e := range elems {
		ids = append(ids, e.ID)
	}
	return ids
}

// List refers to an ordered sequence of entities. Duplicates are kept.
type List struct {
	session   *Session
	target    Target
	sliceType reflect.Type
	elems     []Element
	opts      Options
	res       resolution
}

// NewList returns an unresolved list handle producing values of sliceType.
func NewList(s *Session, target Target, sliceType reflect.Type, elems []Element, opts Options) *List {
	h := &List{session: s, target: target, sliceType: sliceType, elems: elems, opts: opts}
	h.res.resolver = h.fetch
	return h
}

// Resolve implements Handle. Unfetchable entries are left out of the result.
func (h *List) Resolve() (reflect.Value, error) { return h.res.resolve() }

// Resolved implements Handle.
func (h *List) Resolved() bool { return h.res.resolved() }

// IDs implements Handle.
func (h *List) IDs() []ID { return elementIDs(h.elems) }

// Stored implements Handle.
func (h *List) Stored() document.Value { return h.opts.Stored }

func (h *List) fetch() (reflect.Value, error) {
	vals, err := batch(h.session, h.target, h.elems)
	if err != nil {
		return reflect.Value{}, err
	}
	return assemble(h.sliceType, vals)
}

func assemble(sliceType reflect.Type, vals []reflect.Value) (reflect.Value, error) {
	out := reflect.MakeSlice(sliceType, 0, len(vals))
	elem := sliceType.Elem()
	for _, v := range vals {
		if !v.IsValid() {
			continue
		}
		a, ok := Adapt(v, elem)
		if !ok {
			return reflect.Value{}, fmt.Errorf("%w: %s is not %s", ErrTypeMismatch, v.Type(), elem)
		}
		out = reflect.Append(out, a)
	}
	return out, nil
}

// Set refers to a collection of distinct entities in first-occurrence order.
type Set struct {
	List
}

// NewSet returns an unresolved set handle. Elements with equal identifiers are
// collapsed to the first occurrence.
func NewSet(s *Session, target Target, sliceType reflect.Type, elems []Element, opts Options) *Set {
	seen := make(map[cache.Key]bool, len(elems))
	unique := make([]Element, 0, len(elems))
	for _, e := range elems {
		if e.Embedded && e.ID.Value.IsNull() {
			unique = append(unique, e)
			continue
		}
		k := e.ID.Key(target.Collection)
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, e)
	}
	h := &Set{List: List{session: s, target: target, sliceType: sliceType, elems: unique, opts: opts}}
	h.res.resolver = h.fetch
	return h
}

// MapEntry is one key of a map reference with its element.
type MapEntry struct {
	Key     reflect.Value
	Element Element
}

// Map refers to entities keyed by declared key values.
type Map struct {
	session *Session
	target  Target
	mapType reflect.Type
	entries []MapEntry
	opts    Options
	res     resolution
}

// NewMap returns an unresolved map handle producing values of mapType. Keys
// must already be of the declared key type.
func NewMap(s *Session, target Target, mapType reflect.Type, entries []MapEntry, opts Options) *Map {
	h := &Map{session: s, target: target, mapType: mapType, entries: entries, opts: opts}
	h.res.resolver = h.fetch
	return h
}

// Resolve implements Handle. Keys whose entity cannot be fetched are left out.
func (h *Map) Resolve() (reflect.Value, error) { return h.res.resolve() }

// Resolved implements Handle.
func (h *Map) Resolved() bool { return h.res.resolved() }

// IDs implements Handle.
func (h *Map) IDs() []ID {
	ids := make([]ID, 0, len(h.entries))
	for _, e := range h.entries {
		ids = append(ids, e.Element.ID)
	}
	return ids
}

// Entries returns the keys with their elements in stored order.
func (h *Map) Entries() []MapEntry { return h.entries }

// Stored implements Handle.
func (h *Map) Stored() document.Value { return h.opts.Stored }

func (h *Map) fetch() (reflect.Value, error) {
	elems := make([]Element, len(h.entries))
	for i, e := range h.entries {
		elems[i] = e.Element
	}
	vals, err := batch(h.session, h.target, elems)
	if err != nil {
		return reflect.Value{}, err
	}

	out := reflect.MakeMapWithSize(h.mapType, len(vals))
	elem := h.mapType.Elem()
	for i, v := range vals {
		if !v.IsValid() {
			continue
		}
		a, ok := Adapt(v, elem)
		if !ok {
			return reflect.Value{}, fmt.Errorf("%w: %s is not %s", ErrTypeMismatch, v.Type(), elem)
		}
		out.SetMapIndex(h.entries[i].Key, a)
	}
	return out, nil
}
