package mapping

import (
	"encoding"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/espalier/document"
	"github.com/jacentio/espalier/reference"
)

// Codec converts values of one Go type to and from document values.
//
// Decode is never called with a null value, and Encode is never called with a
// nil pointer, slice, map or interface. Decode returns an error wrapping
// ErrShapeMismatch when the stored value has the wrong kind; the decoder then
// retries the property with a best-effort conversion.
type Codec interface {
	Decode(dc *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error)
	Encode(ec *EncodeContext, v reflect.Value) (document.Value, error)
}

// DecodeContext is passed to codecs during decode.
type DecodeContext struct {
	mapper  *Mapper
	session *reference.Session
}

// Mapper returns the mapper running the decode.
func (dc *DecodeContext) Mapper() *Mapper { return dc.mapper }

// Session returns the reference session of the decode.
func (dc *DecodeContext) Session() *reference.Session { return dc.session }

// Decode decodes v as type t using the codec registered for t.
func (dc *DecodeContext) Decode(v document.Value, t reflect.Type) (reflect.Value, error) {
	if v.IsNull() {
		return reflect.Zero(t), nil
	}
	c, err := dc.mapper.CodecFor(t)
	if err != nil {
		return reflect.Value{}, err
	}
	return c.Decode(dc, v, t)
}

// EncodeContext is passed to codecs during encode.
type EncodeContext struct {
	mapper *Mapper
}

// Mapper returns the mapper running the encode.
func (ec *EncodeContext) Mapper() *Mapper { return ec.mapper }

// Encode encodes v using the codec registered for its type.
func (ec *EncodeContext) Encode(v reflect.Value) (document.Value, error) {
	if !v.IsValid() {
		return document.Null(), nil
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		if v.IsNil() {
			return document.Null(), nil
		}
	}
	c, err := ec.mapper.CodecFor(v.Type())
	if err != nil {
		return document.Value{}, err
	}
	return c.Encode(ec, v)
}

var (
	timeType          = reflect.TypeOf(time.Time{})
	durationType      = reflect.TypeOf(time.Duration(0))
	uuidType          = reflect.TypeOf(uuid.UUID{})
	valueType         = reflect.TypeOf(document.Value{})
	documentPtrType   = reflect.TypeOf((*document.Document)(nil))
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// builtins are matched by exact type before falling back to the kind.
var builtins = map[reflect.Type]Codec{
	timeType:        timeCodec{},
	durationType:    durationCodec{},
	uuidType:        uuidCodec{},
	valueType:       rawValueCodec{},
	documentPtrType: rawDocumentCodec{},
}

// CodecFor returns the codec for t. Codecs registered with RegisterCodec take
// precedence over built-ins.
func (m *Mapper) CodecFor(t reflect.Type) (Codec, error) {
	if c, ok := m.resolved.Load(t); ok {
		return c.(Codec), nil
	}
	c, err := m.lookupCodec(t)
	if err != nil {
		return nil, err
	}
	actual, _ := m.resolved.LoadOrStore(t, c)
	return actual.(Codec), nil
}

func (m *Mapper) lookupCodec(t reflect.Type) (Codec, error) {
	if c, ok := m.codecs.Load(t); ok {
		return c.(Codec), nil
	}
	if c, ok := builtins[t]; ok {
		return c, nil
	}
	if isRefType(t) {
		return nil, fmt.Errorf("%w: %s can only be used as a struct field", ErrMapping, t)
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return bytesCodec{}, nil
	}
	if t.Implements(textMarshalerType) && reflect.PointerTo(t).Implements(textUnmarshalType) {
		return textCodec{}, nil
	}

	switch t.Kind() {
	case reflect.String:
		return stringCodec{}, nil
	case reflect.Bool:
		return boolCodec{}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return intCodec{}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return uintCodec{}, nil
	case reflect.Float32, reflect.Float64:
		return floatCodec{}, nil
	case reflect.Pointer:
		return pointerCodec{}, nil
	case reflect.Slice:
		return sliceCodec{}, nil
	case reflect.Array:
		return arrayCodec{}, nil
	case reflect.Map:
		if err := checkKeyType(t.Key()); err != nil {
			return nil, err
		}
		return mapCodec{}, nil
	case reflect.Struct:
		return structCodec{}, nil
	case reflect.Interface:
		return interfaceCodec{}, nil
	}
	return nil, fmt.Errorf("%w: no codec for %s", ErrMapping, t)
}

func mismatch(v document.Value, t reflect.Type) error {
	return fmt.Errorf("%w: %s stored for %s", ErrShapeMismatch, v.Kind(), t)
}
