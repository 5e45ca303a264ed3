package mapping

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jacentio/espalier/cache"
	"github.com/jacentio/espalier/document"
	"github.com/jacentio/espalier/reference"
)

// DecodeOption configures a single Decode call.
type DecodeOption func(*decodeOptions)

type decodeOptions struct {
	cache  cache.Cache
	finder reference.Finder
}

// WithCache shares c as the entity cache of the decode instead of a fresh one.
func WithCache(c cache.Cache) DecodeOption {
	return func(o *decodeOptions) { o.cache = c }
}

// WithFinder resolves references through f instead of the Mapper's finder.
func WithFinder(f reference.Finder) DecodeOption {
	return func(o *decodeOptions) { o.finder = f }
}

// NewSession returns a reference session backed by the Mapper.
func (m *Mapper) NewSession(ctx context.Context, opts ...DecodeOption) *reference.Session {
	o := decodeOptions{finder: m.finder}
	for _, opt := range opts {
		opt(&o)
	}
	return reference.NewSession(ctx, o.finder, m, o.cache, m.logger)
}

// Decode decodes doc into target, which must be a non-nil pointer. The pointed
// to type may be a struct, a pointer to a struct, or an interface implemented
// by registered types.
//
// Each call gets a fresh entity cache unless WithCache is given.
func (m *Mapper) Decode(ctx context.Context, doc *document.Document, target any, opts ...DecodeOption) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: decode target must be a non-nil pointer, got %T", ErrMapping, target)
	}
	return m.decodeInto(m.NewSession(ctx, opts...), doc, rv.Elem())
}

// DecodeAs decodes doc into a new T.
func DecodeAs[T any](ctx context.Context, m *Mapper, doc *document.Document, opts ...DecodeOption) (T, error) {
	var out T
	err := m.Decode(ctx, doc, &out, opts...)
	return out, err
}

// DecodeWith decodes doc into target within an existing session.
func (m *Mapper) DecodeWith(s *reference.Session, doc *document.Document, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: decode target must be a non-nil pointer, got %T", ErrMapping, target)
	}
	return m.decodeInto(s, doc, rv.Elem())
}

func (m *Mapper) decodeInto(s *reference.Session, doc *document.Document, dst reflect.Value) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrMapping)
	}
	dc := &DecodeContext{mapper: m, session: s}
	p, err := m.decodeEntity(dc, doc, dst.Type(), nil)
	if err != nil {
		return err
	}
	var out reflect.Value
	if dst.Kind() == reflect.Interface {
		out, err = adaptInterface(p, dst.Type())
		if err != nil {
			return err
		}
	} else {
		var ok bool
		if out, ok = reference.Adapt(p, dst.Type()); !ok {
			return fmt.Errorf("%w: cannot assign %s to %s", ErrMapping, p.Type(), dst.Type())
		}
	}
	dst.Set(out)
	return nil
}

// Materialize implements reference.Materializer. A document without a type tag
// fetched for an interface hint is decoded as the type registered for its
// collection.
func (m *Mapper) Materialize(s *reference.Session, collection string, doc *document.Document, hint reflect.Type) (reflect.Value, error) {
	fallback, _ := m.TypeForCollection(collection)
	dc := &DecodeContext{mapper: m, session: s}
	return m.decodeEntity(dc, doc, hint, fallback)
}

// IdentifierOf implements reference.Materializer. It returns the null value
// for entities whose identifier is unset.
func (m *Mapper) IdentifierOf(v reflect.Value) (document.Value, error) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return document.Null(), nil
		}
		v = v.Elem()
	}
	d, err := m.Describe(v.Type())
	if err != nil {
		return document.Value{}, err
	}
	if d.ID == nil {
		return document.Value{}, fmt.Errorf("%w: %s has no identifier property", ErrMapping, d.Type)
	}
	f, ok := fieldOf(v, d.ID.index)
	if !ok || f.IsZero() {
		return document.Null(), nil
	}
	ec := &EncodeContext{mapper: m}
	return ec.Encode(f)
}

// SetIdentifier assigns id, converted to the identifier property's type, to
// entity. entity must be a non-nil pointer to a struct.
func (m *Mapper) SetIdentifier(entity any, id any) error {
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: cannot set identifier on %T", ErrMapping, entity)
	}
	d, err := m.Describe(v.Type())
	if err != nil {
		return err
	}
	if d.ID == nil {
		return fmt.Errorf("%w: %s has no identifier property", ErrMapping, d.Type)
	}
	cv, err := Convert(id, d.ID.Type)
	if err != nil {
		return err
	}
	return newInstanceOf(v).set(d.ID, cv)
}

// decodeEntity decodes doc into a new instance of the concrete type selected
// for hint and returns a pointer to it.
func (m *Mapper) decodeEntity(dc *DecodeContext, doc *document.Document, hint, fallback reflect.Type) (reflect.Value, error) {
	r := document.NewReader(doc)
	concrete, err := m.selectType(r, hint, fallback)
	if err != nil {
		return reflect.Value{}, err
	}
	d, err := m.Describe(concrete)
	if err != nil {
		return reflect.Value{}, err
	}

	inst := newInstance(d)
	key := m.config.DiscriminatorKey
	haveID := false
	for r.Next() {
		name := r.Name()
		if name == key {
			continue
		}
		p := d.Property(name)
		if p == nil {
			continue
		}
		v := r.Value()
		if v.IsNull() {
			continue
		}
		fv, err := m.decodeProperty(dc, p, v)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%s.%s: %w", d.Name, p.Name, err)
		}
		if err := inst.set(p, fv); err != nil {
			return reflect.Value{}, fmt.Errorf("%s.%s: %w", d.Name, p.Name, err)
		}
		if p == d.ID {
			haveID = true
		}
	}
	if d.Registered && d.ID != nil && !haveID {
		return reflect.Value{}, fmt.Errorf("%w: %s: missing identifier %q", ErrMapping, d.Name, d.ID.MappedName)
	}

	out := inst.finish()
	if pl, ok := out.Interface().(PostLoader); ok {
		if err := pl.PostLoad(); err != nil {
			return reflect.Value{}, fmt.Errorf("%s: post load: %w", d.Name, err)
		}
	}
	return out, nil
}

// decodeProperty decodes one stored value. On a shape mismatch the value is
// decoded generically and converted to the declared type.
func (m *Mapper) decodeProperty(dc *DecodeContext, p *Property, v document.Value) (reflect.Value, error) {
	if p.Ref != nil {
		return m.decodeReference(dc, p, v)
	}
	out, err := dc.Decode(v, p.Type)
	if err == nil || !errors.Is(err, ErrShapeMismatch) {
		return out, err
	}
	converted, cerr := Convert(v.Interface(), p.Type)
	if cerr != nil {
		return reflect.Value{}, fmt.Errorf("%w: %w (%v)", ErrConversion, err, cerr)
	}
	m.logger.Debug("converted mismatched value",
		"property", p.Name,
		"stored", v.Kind().String(),
		"declared", p.Type.String(),
	)
	return converted, nil
}

// instance assigns decoded values into a new struct by field index path.
type instance struct {
	ptr reflect.Value
}

func newInstance(d *Descriptor) *instance {
	return &instance{ptr: reflect.New(d.Type)}
}

func newInstanceOf(ptr reflect.Value) *instance {
	return &instance{ptr: ptr}
}

func (in *instance) set(p *Property, v reflect.Value) error {
	f := in.ptr.Elem()
	for i, x := range p.index {
		if i > 0 && f.Kind() == reflect.Pointer {
			if f.IsNil() {
				f.Set(reflect.New(f.Type().Elem()))
			}
			f = f.Elem()
		}
		f = f.Field(x)
	}
	a, ok := reference.Adapt(v, p.Type)
	if !ok {
		return fmt.Errorf("%w: cannot assign %s to %s", ErrMapping, v.Type(), p.Type)
	}
	f.Set(a)
	return nil
}

func (in *instance) finish() reflect.Value { return in.ptr }

// fieldOf walks an index path, reporting false at a nil embedded pointer.
func fieldOf(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}
