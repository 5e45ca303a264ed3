package mapping

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/espalier/document"
)

type stringCodec struct{}

func (stringCodec) Decode(_ *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	s, err := v.AsString()
	if err != nil {
		return reflect.Value{}, mismatch(v, t)
	}
	return reflect.ValueOf(s).Convert(t), nil
}

func (stringCodec) Encode(_ *EncodeContext, v reflect.Value) (document.Value, error) {
	return document.String(v.String()), nil
}

type boolCodec struct{}

func (boolCodec) Decode(_ *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	b, err := v.AsBool()
	if err != nil {
		return reflect.Value{}, mismatch(v, t)
	}
	return reflect.ValueOf(b).Convert(t), nil
}

func (boolCodec) Encode(_ *EncodeContext, v reflect.Value) (document.Value, error) {
	return document.Bool(v.Bool()), nil
}

type intCodec struct{}

func (intCodec) Decode(_ *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	i, err := v.AsInt()
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %w", mismatch(v, t), err)
	}
	out := reflect.New(t).Elem()
	if out.OverflowInt(i) {
		return reflect.Value{}, fmt.Errorf("%w: %d overflows %s", ErrMapping, i, t)
	}
	out.SetInt(i)
	return out, nil
}

func (intCodec) Encode(_ *EncodeContext, v reflect.Value) (document.Value, error) {
	return document.Int(v.Int()), nil
}

type uintCodec struct{}

func (uintCodec) Decode(_ *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	u, err := v.AsUint()
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %w", mismatch(v, t), err)
	}
	out := reflect.New(t).Elem()
	if out.OverflowUint(u) {
		return reflect.Value{}, fmt.Errorf("%w: %d overflows %s", ErrMapping, u, t)
	}
	out.SetUint(u)
	return out, nil
}

func (uintCodec) Encode(_ *EncodeContext, v reflect.Value) (document.Value, error) {
	return document.Uint(v.Uint()), nil
}

type floatCodec struct{}

func (floatCodec) Decode(_ *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	f, err := v.AsFloat()
	if err != nil {
		return reflect.Value{}, mismatch(v, t)
	}
	out := reflect.New(t).Elem()
	if out.OverflowFloat(f) {
		return reflect.Value{}, fmt.Errorf("%w: %g overflows %s", ErrMapping, f, t)
	}
	out.SetFloat(f)
	return out, nil
}

func (floatCodec) Encode(_ *EncodeContext, v reflect.Value) (document.Value, error) {
	return document.Float(v.Float()), nil
}

// timeCodec stores instants as RFC 3339 strings in UTC.
type timeCodec struct{}

func (timeCodec) Decode(_ *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	s, err := v.AsString()
	if err != nil {
		return reflect.Value{}, mismatch(v, t)
	}
	tm, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %w", mismatch(v, t), err)
	}
	return reflect.ValueOf(tm), nil
}

func (timeCodec) Encode(_ *EncodeContext, v reflect.Value) (document.Value, error) {
	tm := v.Interface().(time.Time)
	return document.String(tm.UTC().Format(time.RFC3339Nano)), nil
}

// durationCodec stores durations as nanoseconds.
type durationCodec struct{}

func (durationCodec) Decode(_ *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	i, err := v.AsInt()
	if err != nil {
		return reflect.Value{}, mismatch(v, t)
	}
	return reflect.ValueOf(time.Duration(i)), nil
}

func (durationCodec) Encode(_ *EncodeContext, v reflect.Value) (document.Value, error) {
	return document.Int(v.Int()), nil
}

type uuidCodec struct{}

func (uuidCodec) Decode(_ *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	switch v.Kind() {
	case document.KindString:
		s, _ := v.AsString()
		id, err := uuid.Parse(s)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %w", ErrMapping, err)
		}
		return reflect.ValueOf(id), nil
	case document.KindBinary:
		b, _ := v.AsBinary()
		id, err := uuid.FromBytes(b)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %w", ErrMapping, err)
		}
		return reflect.ValueOf(id), nil
	}
	return reflect.Value{}, mismatch(v, t)
}

func (uuidCodec) Encode(_ *EncodeContext, v reflect.Value) (document.Value, error) {
	return document.String(v.Interface().(uuid.UUID).String()), nil
}

type bytesCodec struct{}

func (bytesCodec) Decode(_ *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	b, err := v.AsBinary()
	if err != nil {
		return reflect.Value{}, mismatch(v, t)
	}
	return reflect.ValueOf(append([]byte(nil), b...)).Convert(t), nil
}

func (bytesCodec) Encode(_ *EncodeContext, v reflect.Value) (document.Value, error) {
	return document.Binary(v.Bytes()), nil
}

// textCodec handles types with MarshalText and UnmarshalText.
type textCodec struct{}

func (textCodec) Decode(_ *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	s, err := v.AsString()
	if err != nil {
		return reflect.Value{}, mismatch(v, t)
	}
	p := reflect.New(t)
	if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %s: %w", ErrMapping, t, err)
	}
	return p.Elem(), nil
}

func (textCodec) Encode(_ *EncodeContext, v reflect.Value) (document.Value, error) {
	b, err := v.Interface().(encoding.TextMarshaler).MarshalText()
	if err != nil {
		return document.Value{}, fmt.Errorf("%w: %s: %w", ErrMapping, v.Type(), err)
	}
	return document.String(string(b)), nil
}

// rawValueCodec passes document.Value fields through unchanged.
type rawValueCodec struct{}

func (rawValueCodec) Decode(_ *DecodeContext, v document.Value, _ reflect.Type) (reflect.Value, error) {
	return reflect.ValueOf(v), nil
}

func (rawValueCodec) Encode(_ *EncodeContext, v reflect.Value) (document.Value, error) {
	return v.Interface().(document.Value), nil
}

type rawDocumentCodec struct{}

func (rawDocumentCodec) Decode(_ *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	d, err := v.AsDocument()
	if err != nil {
		return reflect.Value{}, mismatch(v, t)
	}
	return reflect.ValueOf(d.Clone()), nil
}

func (rawDocumentCodec) Encode(_ *EncodeContext, v reflect.Value) (document.Value, error) {
	return document.Doc(v.Interface().(*document.Document)), nil
}

type pointerCodec struct{}

func (pointerCodec) Decode(dc *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	inner, err := dc.Decode(v, t.Elem())
	if err != nil {
		return reflect.Value{}, err
	}
	p := reflect.New(t.Elem())
	p.Elem().Set(inner)
	return p, nil
}

func (pointerCodec) Encode(ec *EncodeContext, v reflect.Value) (document.Value, error) {
	return ec.Encode(v.Elem())
}

type sliceCodec struct{}

func (sliceCodec) Decode(dc *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	elems, err := v.AsArray()
	if err != nil {
		return reflect.Value{}, mismatch(v, t)
	}
	out := reflect.MakeSlice(t, len(elems), len(elems))
	for i, e := range elems {
		ev, err := dc.Decode(e, t.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(ev)
	}
	return out, nil
}

func (sliceCodec) Encode(ec *EncodeContext, v reflect.Value) (document.Value, error) {
	return encodeElements(ec, v)
}

type arrayCodec struct{}

func (arrayCodec) Decode(dc *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	elems, err := v.AsArray()
	if err != nil {
		return reflect.Value{}, mismatch(v, t)
	}
	if len(elems) > t.Len() {
		return reflect.Value{}, fmt.Errorf("%w: %d elements stored for %s", ErrMapping, len(elems), t)
	}
	out := reflect.New(t).Elem()
	for i, e := range elems {
		ev, err := dc.Decode(e, t.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(ev)
	}
	return out, nil
}

func (arrayCodec) Encode(ec *EncodeContext, v reflect.Value) (document.Value, error) {
	return encodeElements(ec, v)
}

func encodeElements(ec *EncodeContext, v reflect.Value) (document.Value, error) {
	out := make([]document.Value, v.Len())
	for i := range out {
		ev, err := ec.Encode(v.Index(i))
		if err != nil {
			return document.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = ev
	}
	return document.Array(out...), nil
}

// mapCodec stores maps as documents keyed by the string form of each key.
type mapCodec struct{}

func (mapCodec) Decode(dc *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	d, err := v.AsDocument()
	if err != nil {
		return reflect.Value{}, mismatch(v, t)
	}
	out := reflect.MakeMapWithSize(t, d.Len())
	for _, f := range d.Fields() {
		k, err := parseKey(f.Name, t.Key())
		if err != nil {
			return reflect.Value{}, err
		}
		ev, err := dc.Decode(f.Value, t.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("key %q: %w", f.Name, err)
		}
		out.SetMapIndex(k, ev)
	}
	return out, nil
}

func (mapCodec) Encode(ec *EncodeContext, v reflect.Value) (document.Value, error) {
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
		ev, err := ec.Encode(e.value)
		if err != nil {
			return document.Value{}, fmt.Errorf("key %q: %w", e.name, err)
		}
		d.Set(e.name, ev)
	}
	return document.Doc(d), nil
}

type structCodec struct{}

func (structCodec) Decode(dc *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	d, err := v.AsDocument()
	if err != nil {
		return reflect.Value{}, mismatch(v, t)
	}
	p, err := dc.mapper.decodeEntity(dc, d, t, nil)
	if err != nil {
		return reflect.Value{}, err
	}
	return p.Elem(), nil
}

func (structCodec) Encode(ec *EncodeContext, v reflect.Value) (document.Value, error) {
	d, err := ec.mapper.encodeStruct(ec, v, false)
	if err != nil {
		return document.Value{}, err
	}
	return document.Doc(d), nil
}

// interfaceCodec decodes documents carrying a type tag into the registered
// type and everything else into its natural Go shape. Non-empty interfaces
// require a type tag.
type interfaceCodec struct{}

func (interfaceCodec) Decode(dc *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	if d, err := v.AsDocument(); err == nil {
		if d.Has(dc.mapper.config.DiscriminatorKey) || t.NumMethod() > 0 {
			p, err := dc.mapper.decodeEntity(dc, d, t, nil)
			if err != nil {
				return reflect.Value{}, err
			}
			return adaptInterface(p, t)
		}
	}
	if t.NumMethod() > 0 {
		return reflect.Value{}, fmt.Errorf("%w: %s stored for %s", ErrMapping, v.Kind(), t)
	}
	out := reflect.New(t).Elem()
	if generic := v.Interface(); generic != nil {
		out.Set(reflect.ValueOf(generic))
	}
	return out, nil
}

func (interfaceCodec) Encode(ec *EncodeContext, v reflect.Value) (document.Value, error) {
	concrete := v.Elem()
	st := indirectType(concrete.Type())
	if st.Kind() == reflect.Struct && !isRefType(st) {
		d, err := ec.mapper.Describe(st)
		if err != nil {
			return document.Value{}, err
		}
		if !d.UseDiscriminator && v.Type().NumMethod() > 0 {
			return document.Value{}, fmt.Errorf("%w: %s is stored in %s without a discriminator and could not be decoded; register it", ErrMapping, st, v.Type())
		}
		for concrete.Kind() == reflect.Pointer {
			if concrete.IsNil() {
				return document.Null(), nil
			}
			concrete = concrete.Elem()
		}
		doc, err := ec.mapper.encodeStruct(ec, concrete, d.UseDiscriminator)
		if err != nil {
			return document.Value{}, err
		}
		return document.Doc(doc), nil
	}
	switch concrete.Interface().(type) {
	case map[string]any, []any:
		return document.ValueOf(concrete.Interface())
	}
	return ec.Encode(concrete)
}

// adaptInterface returns the decoded entity pointer p as a value of interface t,
// preferring the pointer when both implement it.
func adaptInterface(p reflect.Value, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	switch {
	case p.Type().Implements(t):
		out.Set(p)
	case p.Elem().Type().Implements(t):
		out.Set(p.Elem())
	default:
		return reflect.Value{}, fmt.Errorf("%w: %s does not implement %s", ErrMapping, p.Type(), t)
	}
	return out, nil
}

// EnumCodec returns a codec storing values of T by name. Decoding an unknown
// name or encoding an unnamed value fails with ErrMapping.
func EnumCodec[T comparable](names map[T]string) Codec {
	c := enumCodec[T]{names: names, values: make(map[string]T, len(names))}
	for v, n := range names {
		c.values[n] = v
	}
	return c
}

// RegisterEnum registers EnumCodec(names) as the codec for T.
func RegisterEnum[T comparable](m *Mapper, names map[T]string) {
	m.RegisterCodec(reflect.TypeOf((*T)(nil)).Elem(), EnumCodec(names))
}

type enumCodec[T comparable] struct {
	names  map[T]string
	values map[string]T
}

func (c enumCodec[T]) Decode(_ *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	s, err := v.AsString()
	if err != nil {
		return reflect.Value{}, mismatch(v, t)
	}
	e, ok := c.values[s]
	if !ok {
		return reflect.Value{}, fmt.Errorf("%w: %q is not a %s", ErrMapping, s, t)
	}
	return reflect.ValueOf(e), nil
}

func (c enumCodec[T]) Encode(_ *EncodeContext, v reflect.Value) (document.Value, error) {
	n, ok := c.names[v.Interface().(T)]
	if !ok {
		return document.Value{}, fmt.Errorf("%w: %v has no name in %s", ErrMapping, v.Interface(), v.Type())
	}
	return document.String(n), nil
}
