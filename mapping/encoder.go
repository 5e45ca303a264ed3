package mapping

import (
	"fmt"
	"reflect"

	"github.com/jacentio/espalier/document"
)

// Encode encodes entity, a struct or a pointer to one, into a document.
//
// The type tag is written first for polymorphic types, followed by the
// properties in declaration order. PrePersist runs before anything is read.
func (m *Mapper) Encode(entity any) (*document.Document, error) {
	if pp, ok := entity.(PrePersister); ok {
		if err := pp.PrePersist(); err != nil {
			return nil, fmt.Errorf("pre persist: %w", err)
		}
	}
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: cannot encode nil %T", ErrMapping, entity)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: cannot encode %T, expected a struct", ErrMapping, entity)
	}
	d, err := m.Describe(v.Type())
	if err != nil {
		return nil, err
	}
	return m.encodeStruct(&EncodeContext{mapper: m}, v, d.UseDiscriminator)
}

// EncodeValue encodes a single value with the codec registered for its type.
func (m *Mapper) EncodeValue(v any) (document.Value, error) {
	return (&EncodeContext{mapper: m}).Encode(reflect.ValueOf(v))
}

// encodeStruct writes the properties of struct value v. A nested struct only
// carries its type tag when tagged is set or its type is polymorphic.
func (m *Mapper) encodeStruct(ec *EncodeContext, v reflect.Value, tagged bool) (*document.Document, error) {
	d, err := m.Describe(v.Type())
	if err != nil {
		return nil, err
	}
	w := document.NewWriter()
	if tagged || d.UseDiscriminator {
		w.Write(m.config.DiscriminatorKey, document.String(d.DiscriminatorValue))
	}
	for _, p := range d.Properties {
		fv, ok := fieldOf(v, p.index)
		if !ok {
			continue
		}
		if p.OmitEmpty && fv.IsZero() {
			continue
		}
		var out document.Value
		if p.Ref != nil {
			out, err = m.encodeReference(ec, p, fv)
		} else {
			out, err = ec.Encode(fv)
		}
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", d.Name, p.Name, err)
		}
		if p.OmitEmpty && out.IsNull() {
			continue
		}
		w.WriteName(p.MappedName)
		if err := w.WriteValue(out); err != nil {
			return nil, err
		}
	}
	return w.Document()
}
