package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/jacentio/espalier/document"
	"github.com/jacentio/espalier/reference"
)

// encodeReference reduces a reference property to its stored identifiers.
//
// A Ref that was never resolved is written back as it was read, so encoding a
// decoded entity does not fetch anything.
func (m *Mapper) encodeReference(ec *EncodeContext, p *Property, v reflect.Value) (document.Value, error) {
	shape := refShape(p)
	if isRefType(p.Type) {
		val, h, resolved := v.Interface().(reference.Inspector).Inspect()
		if !resolved {
			return m.encodeHandle(p, shape, h)
		}
		if !val.IsValid() {
			return document.Null(), nil
		}
		v = val
	}

	switch shape.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return document.Null(), nil
		}
		elem := shape.Elem()
		out := make([]document.Value, 0, v.Len())
		seen := make(map[string]bool, v.Len())
		for i := 0; i < v.Len(); i++ {
			id, err := m.encodeIdentity(p, v.Index(i), elem)
			if err != nil {
				if m.tolerates(p, err) {
					continue
				}
				return document.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			if p.Ref.Set {
				k := id.Key()
				if seen[k] {
					continue
				}
				seen[k] = true
			}
			out = append(out, id)
		}
		return document.Array(out...), nil

	case reflect.Map:
		if v.IsNil() {
			return document.Null(), nil
		}
		type entry struct {
			name  string
			value reflect.Value
		}
		entries := make([]entry, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			name, err := formatKey(iter.Key())
			if err != nil {
				return document.Value{}, err
			}
			entries = append(entries, entry{name: name, value: iter.Value()})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

		d := document.New()
		for _, e := range entries {
			id, err := m.encodeIdentity(p, e.value, shape.Elem())
			if err != nil {
				if m.tolerates(p, err) {
					continue
				}
				return document.Value{}, fmt.Errorf("key %q: %w", e.name, err)
			}
			d.Set(e.name, id)
		}
		return document.Doc(d), nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return document.Null(), nil
		}
	}
	id, err := m.encodeIdentity(p, v, shape)
	if err != nil {
		if m.tolerates(p, err) {
			return document.Null(), nil
		}
		return document.Value{}, err
	}
	return id, nil
}

func (m *Mapper) tolerates(p *Property, err error) bool {
	if !p.Ref.IgnoreMissing || !errors.Is(err, ErrUnresolvedReference) {
		return false
	}
	m.logger.Warn("omitting reference without identifier",
		"property", p.Name,
		"error", err,
	)
	return true
}

// encodeIdentity returns the stored identifier of the entity v declared as
// type declared. It is typed when the entity's collection differs from the
// one the declared type implies.
func (m *Mapper) encodeIdentity(p *Property, v reflect.Value, declared reflect.Type) (document.Value, error) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return document.Value{}, fmt.Errorf("%w: nil %s", ErrUnresolvedReference, declared)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return document.Value{}, fmt.Errorf("%w: %s is not an entity", ErrMapping, v.Type())
	}
	d, err := m.Describe(v.Type())
	if err != nil {
		return document.Value{}, err
	}
	id, err := m.IdentifierOf(v)
	if err != nil {
		return document.Value{}, err
	}
	if id.IsNull() {
		return document.Value{}, fmt.Errorf("%w: %s", ErrUnresolvedReference, d.Name)
	}
	if p.Ref.Typed || indirectType(declared).Kind() == reflect.Interface || d.Collection != m.collectionFor(declared) {
		return m.typedID(d.Collection, id), nil
	}
	return id, nil
}

func (m *Mapper) typedID(origin string, id document.Value) document.Value {
	return document.Doc(document.New(
		document.Field{Name: m.config.OriginField, Value: document.String(origin)},
		document.Field{Name: m.config.IDField, Value: id},
	))
}

func (m *Mapper) encodeID(p *Property, id reference.ID, declared reflect.Type) document.Value {
	collection := m.collectionFor(declared)
	origin := id.Collection(collection)
	if origin != "" && (p.Ref.Typed || origin != collection) {
		return m.typedID(origin, id.Value)
	}
	return id.Value
}

// encodeHandle writes the identifiers of an unresolved handle.
func (m *Mapper) encodeHandle(p *Property, shape reflect.Type, h reference.Handle) (document.Value, error) {
	if h == nil {
		return document.Null(), nil
	}
	if stored := h.Stored(); !stored.IsNull() {
		return stored, nil
	}
	switch shape.Kind() {
	case reflect.Slice:
		ids := h.IDs()
		out := make([]document.Value, 0, len(ids))
		for _, id := range ids {
			out = append(out, m.encodeID(p, id, shape.Elem()))
		}
		return document.Array(out...), nil
	case reflect.Map:
		mh, ok := h.(*reference.Map)
		if !ok {
			return document.Value{}, fmt.Errorf("%w: %T cannot be stored as a map", ErrMapping, h)
		}
		d := document.New()
		for _, e := range mh.Entries() {
			name, err := formatKey(e.Key)
			if err != nil {
				return document.Value{}, err
			}
			d.Set(name, m.encodeID(p, e.Element.ID, shape.Elem()))
		}
		return document.Doc(d), nil
	}
	ids := h.IDs()
	if len(ids) == 0 {
		return document.Null(), nil
	}
	return m.encodeID(p, ids[0], shape), nil
}

// decodeReference turns a stored reference into a handle. Lazy properties are
// bound to the unresolved handle; all others are resolved before assignment.
func (m *Mapper) decodeReference(dc *DecodeContext, p *Property, v document.Value) (reflect.Value, error) {
	shape := refShape(p)
	s := dc.session
	if p.Ref.Lazy {
		s = s.Detached()
	}
	opts := reference.Options{IgnoreMissing: p.Ref.IgnoreMissing, Stored: v}

	var h reference.Handle
	switch shape.Kind() {
	case reflect.Slice:
		elem := shape.Elem()
		target := reference.Target{Type: elem, Collection: m.collectionFor(elem)}
		stored, err := v.AsArray()
		if err != nil {
			stored = []document.Value{v}
		}
		elems := make([]reference.Element, 0, len(stored))
		for i, sv := range stored {
			if sv.IsNull() {
				continue
			}
			e, err := m.classify(dc, sv, elem)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			elems = append(elems, e)
		}
		if p.Ref.Set {
			h = reference.NewSet(s, target, shape, elems, opts)
		} else {
			h = reference.NewList(s, target, shape, elems, opts)
		}

	case reflect.Map:
		elem := shape.Elem()
		target := reference.Target{Type: elem, Collection: m.collectionFor(elem)}
		d, err := v.AsDocument()
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %s stored for %s", ErrMapping, v.Kind(), shape)
		}
		entries := make([]reference.MapEntry, 0, d.Len())
		for _, f := range d.Fields() {
			if f.Value.IsNull() {
				continue
			}
			k, err := parseKey(f.Name, shape.Key())
			if err != nil {
				return reflect.Value{}, err
			}
			e, err := m.classify(dc, f.Value, elem)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %q: %w", f.Name, err)
			}
			entries = append(entries, reference.MapEntry{Key: k, Element: e})
		}
		h = reference.NewMap(s, target, shape, entries, opts)

	default:
		e, err := m.classify(dc, v, shape)
		if err != nil {
			return reflect.Value{}, err
		}
		if e.Embedded {
			h = reference.NewResolvedSingle(e.Value, e.ID, opts)
		} else {
			target := reference.Target{Type: shape, Collection: m.collectionFor(shape)}
			h = reference.NewSingle(s, target, e.ID, opts)
		}
	}

	out := reflect.New(p.Type)
	if isRefType(p.Type) {
		b := out.Interface().(reference.Binder)
		if p.Ref.Lazy {
			b.Bind(h)
			return out.Elem(), nil
		}
		val, err := h.Resolve()
		if err != nil {
			return reflect.Value{}, err
		}
		if err := b.BindResolved(val); err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %w", ErrMapping, err)
		}
		return out.Elem(), nil
	}

	val, err := h.Resolve()
	if err != nil {
		return reflect.Value{}, err
	}
	if !val.IsValid() {
		return out.Elem(), nil
	}
	a, ok := reference.Adapt(val, p.Type)
	if !ok {
		return reflect.Value{}, fmt.Errorf("%w: cannot assign %s to %s", ErrMapping, val.Type(), p.Type)
	}
	return a, nil
}

// classify reads one stored reference element: a typed identifier document,
// an embedded document carrying a type tag, or a bare identifier.
func (m *Mapper) classify(dc *DecodeContext, v document.Value, elem reflect.Type) (reference.Element, error) {
	switch v.Kind() {
	case document.KindArray:
		return reference.Element{}, fmt.Errorf("%w: nested array stored for reference to %s", ErrMapping, elem)
	case document.KindDocument:
	default:
		return reference.IDElement(reference.NewID(v)), nil
	}

	d, _ := v.AsDocument()
	if !d.Has(m.config.DiscriminatorKey) {
		origin, ok := d.Get(m.config.OriginField)
		if !ok {
			return reference.IDElement(reference.NewID(v)), nil
		}
		o, err := origin.AsString()
		if err != nil || o == "" {
			return reference.Element{}, fmt.Errorf("%w: typed identifier has no origin", ErrMapping)
		}
		id, ok := d.Get(m.config.IDField)
		if !ok || id.IsNull() {
			return reference.Element{}, fmt.Errorf("%w: typed identifier has no %q", ErrMapping, m.config.IDField)
		}
		return reference.IDElement(reference.NewTypedID(o, id)), nil
	}

	p, err := m.decodeEntity(dc, d, elem, nil)
	if err != nil {
		return reference.Element{}, err
	}
	id, err := m.IdentifierOf(p)
	if err != nil {
		id = document.Null()
	}
	return reference.EmbeddedElement(p, reference.NewID(id)), nil
}
