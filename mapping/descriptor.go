package mapping

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/jacentio/espalier/reference"
)

// TagName is the struct tag read by the mapper.
//
//	type Order struct {
//	    ID       string                   `doc:"id,id"`
//	    Customer reference.Ref[*Customer] `doc:"customer,ref,lazy"`
//	    Lines    []Line                   `doc:",omitempty"`
//	    Scratch  string                   `doc:"-"`
//	}
const TagName = "doc"

// RefSpec holds the reference options of a property.
type RefSpec struct {
	// Lazy defers resolution until the reference is first used. Requires a Ref field.
	Lazy bool
	// IgnoreMissing tolerates missing identifiers on encode and missing entities on decode.
	IgnoreMissing bool
	// Typed always stores identifiers qualified with their collection.
	Typed bool
	// Set deduplicates collection references by identifier.
	Set bool
}

// Property describes one mapped field.
type Property struct {
	// Name is the Go field name.
	Name string
	// MappedName is the stored field name.
	MappedName string
	// Type is the declared Go type.
	Type reflect.Type
	// Params are the generic parameters of Type: the element of a slice or array,
	// the key and element of a map, T of a Ref[T].
	Params []reflect.Type
	// Nullable reports whether the declared type has a nil value.
	Nullable bool
	// OmitEmpty skips zero values on encode.
	OmitEmpty bool
	// Ref is non-nil for relationship properties.
	Ref *RefSpec

	index []int
}

// IsReference reports whether the property holds a relationship.
func (p *Property) IsReference() bool { return p.Ref != nil }

// Descriptor is the immutable structural description of a mapped struct type.
type Descriptor struct {
	// Type is the struct type.
	Type reflect.Type
	// Name is the Go type name.
	Name string
	// Collection is where entities of the type are stored.
	Collection string
	// Properties lists mapped fields in declaration order, embedded fields flattened.
	Properties []*Property
	// ID is the identifier property, if any.
	ID *Property
	// UseDiscriminator writes and checks the type tag.
	UseDiscriminator bool
	// DiscriminatorValue is the stored type tag.
	DiscriminatorValue string
	// Super describes the first embedded struct, whose fields are inherited.
	Super *Descriptor
	// Registered reports whether the type was registered as an entity.
	Registered bool

	byName   map[string]*Property
	idTagged bool
}

// Property returns the property stored under mappedName, or nil.
func (d *Descriptor) Property(mappedName string) *Property {
	return d.byName[mappedName]
}

var (
	refInspectorType = reflect.TypeOf((*reference.Inspector)(nil)).Elem()
	refBinderType    = reflect.TypeOf((*reference.Binder)(nil)).Elem()
)

// isRefType reports whether t is a reference.Ref instantiation.
func isRefType(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t.Implements(refInspectorType) && reflect.PointerTo(t).Implements(refBinderType)
}

// refElem returns T of a Ref[T].
func refElem(t reflect.Type) reflect.Type {
	return reflect.Zero(t).Interface().(reference.Inspector).ElemType()
}

type tagInfo struct {
	name          string
	skip          bool
	id            bool
	omitEmpty     bool
	ref           bool
	lazy          bool
	ignoreMissing bool
	typed         bool
	set           bool
}

func parseTag(tag string) (tagInfo, error) {
	var info tagInfo
	if tag == "-" {
		info.skip = true
		return info, nil
	}
	parts := strings.Split(tag, ",")
	info.name = strings.TrimSpace(parts[0])
	for _, opt := range parts[1:] {
		switch strings.TrimSpace(opt) {
		case "id":
			info.id = true
		case "omitempty":
			info.omitEmpty = true
		case "ref":
			info.ref = true
		case "lazy":
			info.lazy = true
		case "ignoreMissing":
			info.ignoreMissing = true
		case "typed":
			info.typed = true
		case "set":
			info.set = true
		case "":
		default:
			return info, fmt.Errorf("unknown tag option %q", opt)
		}
	}
	if !info.ref && (info.lazy || info.ignoreMissing || info.typed || info.set) {
		return info, fmt.Errorf("reference options require \"ref\"")
	}
	return info, nil
}

// describe builds the descriptor of struct type t.
func (m *Mapper) describe(t reflect.Type) (*Descriptor, error) {
	d := &Descriptor{
		Type:               t,
		Name:               t.Name(),
		Collection:         t.Name(),
		DiscriminatorValue: t.Name(),
		byName:             make(map[string]*Property),
	}
	if err := m.collect(d, t, nil, 0); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMapping, t, err)
	}
	for _, p := range d.Properties {
		if p.MappedName == m.config.DiscriminatorKey {
			return nil, fmt.Errorf("%w: %s: field %s clashes with discriminator key %q", ErrMapping, t, p.Name, p.MappedName)
		}
	}
	return d, nil
}

// collect appends the properties of t, flattening embedded structs.
func (m *Mapper) collect(d *Descriptor, t reflect.Type, index []int, depth int) error {
	if depth > 8 {
		return fmt.Errorf("embedding too deep")
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		info, err := parseTag(f.Tag.Get(TagName))
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		if info.skip {
			continue
		}
		path := append(append([]int(nil), index...), i)

		ft := f.Type
		if f.Anonymous && info.name == "" {
			et := ft
			if et.Kind() == reflect.Pointer {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct && !isRefType(et) {
				if !f.IsExported() && ft.Kind() == reflect.Pointer {
					continue
				}
				if depth == 0 && d.Super == nil {
					super, err := m.Describe(et)
					if err != nil {
						return err
					}
					d.Super = super
				}
				if err := m.collect(d, et, path, depth+1); err != nil {
					return err
				}
				continue
			}
		}
		if !f.IsExported() {
			continue
		}

		p := &Property{
			Name:       f.Name,
			MappedName: info.name,
			Type:       ft,
			OmitEmpty:  info.omitEmpty,
			index:      path,
		}
		if p.MappedName == "" {
			p.MappedName = m.config.Naming.Apply(f.Name)
		}
		switch ft.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
			p.Nullable = true
		}
		switch {
		case isRefType(ft):
			p.Params = []reflect.Type{refElem(ft)}
			p.Nullable = true
		case ft.Kind() == reflect.Slice || ft.Kind() == reflect.Array:
			p.Params = []reflect.Type{ft.Elem()}
		case ft.Kind() == reflect.Map:
			p.Params = []reflect.Type{ft.Key(), ft.Elem()}
		}

		if info.ref || isRefType(ft) {
			p.Ref = &RefSpec{
				Lazy:          info.lazy,
				IgnoreMissing: info.ignoreMissing,
				Typed:         info.typed,
				Set:           info.set,
			}
			if err := validateReference(p); err != nil {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
		}

		if _, dup := d.byName[p.MappedName]; dup {
			return fmt.Errorf("field %s: duplicate stored name %q", f.Name, p.MappedName)
		}
		d.byName[p.MappedName] = p
		d.Properties = append(d.Properties, p)

		switch {
		case info.id:
			if d.idTagged {
				return fmt.Errorf("field %s: second id property", f.Name)
			}
			d.ID, d.idTagged = p, true
		case d.ID == nil && f.Name == "ID":
			d.ID = p
		}
		if d.ID == p && p.Ref != nil {
			return fmt.Errorf("field %s: id cannot be a reference", f.Name)
		}
	}
	return nil
}

// refShape returns the shape a reference property resolves to.
func refShape(p *Property) reflect.Type {
	if isRefType(p.Type) {
		return p.Params[0]
	}
	return p.Type
}

func validateReference(p *Property) error {
	if p.Ref.Lazy && !isRefType(p.Type) {
		return fmt.Errorf("lazy reference must be declared as reference.Ref")
	}
	shape := refShape(p)
	switch shape.Kind() {
	case reflect.Array:
		return fmt.Errorf("array references are not supported, use a slice")
	case reflect.Slice:
		if shape.Elem().Kind() == reflect.Uint8 {
			return fmt.Errorf("byte slices cannot be references")
		}
		if isRefType(shape.Elem()) {
			return fmt.Errorf("nested references are not supported")
		}
	case reflect.Map:
		if isRefType(shape.Elem()) {
			return fmt.Errorf("nested references are not supported")
		}
		if p.Ref.Set {
			return fmt.Errorf("set option applies to slices only")
		}
	default:
		if p.Ref.Set {
			return fmt.Errorf("set option applies to slices only")
		}
	}
	return nil
}
