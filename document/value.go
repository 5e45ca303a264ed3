// Package document provides the schema-less document model used by the mapper.
//
// A [Document] is an ordered list of named [Value]s. Values are scalars, nested
// documents, arrays, or null. Documents convert to and from DynamoDB items so the
// same tree can be read from a table, decoded into a typed entity, and written back.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// ErrKind is returned when a Value is read as a kind it does not hold.
var ErrKind = errors.New("espalier: value kind mismatch")

// Kind identifies the shape held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindBinary
	KindDocument
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindBinary:
		return "binary"
	case KindDocument:
		return "document"
	case KindArray:
		return "array"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is an immutable document value. The zero Value is null.
//
// Numbers keep their decimal text so integers wider than float64 survive a round trip.
type Value struct {
	kind Kind
	str  string
	b    bool
	bin  []byte
	doc  *Document
	arr  []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integer number value.
func Int(i int64) Value { return Value{kind: KindNumber, str: strconv.FormatInt(i, 10)} }

// Uint returns an unsigned integer number value.
func Uint(u uint64) Value { return Value{kind: KindNumber, str: strconv.FormatUint(u, 10)} }

// Float returns a floating point number value.
func Float(f float64) Value {
	return Value{kind: KindNumber, str: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Number returns a number value from its decimal text. It fails if text is not a number.
func Number(text string) (Value, error) {
	if _, ok := new(big.Float).SetString(text); !ok {
		return Value{}, fmt.Errorf("%w: %q is not a number", ErrKind, text)
	}
	return Value{kind: KindNumber, str: text}, nil
}

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Binary returns a binary value. The slice is not copied.
func Binary(b []byte) Value { return Value{kind: KindBinary, bin: b} }

// Doc returns a value holding a nested document. A nil document is null.
func Doc(d *Document) Value {
	if d == nil {
		return Null()
	}
	return Value{kind: KindDocument, doc: d}
}

// Array returns a value holding an ordered sequence of values.
func Array(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{kind: KindArray, arr: vs}
}

// Kind returns the shape held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) mismatch(want Kind) error {
	return fmt.Errorf("%w: want %s, have %s", ErrKind, want, v.kind)
}

// AsString returns the string held by v.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", v.mismatch(KindString)
	}
	return v.str, nil
}

// NumberText returns the decimal text of a number value.
func (v Value) NumberText() (string, error) {
	if v.kind != KindNumber {
		return "", v.mismatch(KindNumber)
	}
	return v.str, nil
}

// AsInt returns the number held by v as an int64. Fractional numbers fail.
func (v Value) AsInt() (int64, error) {
	if v.kind != KindNumber {
		return 0, v.mismatch(KindNumber)
	}
	i, err := strconv.ParseInt(v.str, 10, 64)
	if err == nil {
		return i, nil
	}
	f, ferr := strconv.ParseFloat(v.str, 64)
	if ferr != nil || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%w: %s is not an int64", ErrKind, v.str)
	}
	return int64(f), nil
}

// AsUint returns the number held by v as a uint64.
func (v Value) AsUint() (uint64, error) {
	if v.kind != KindNumber {
		return 0, v.mismatch(KindNumber)
	}
	u, err := strconv.ParseUint(v.str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not a uint64", ErrKind, v.str)
	}
	return u, nil
}

// AsFloat returns the number held by v as a float64.
func (v Value) AsFloat() (float64, error) {
	if v.kind != KindNumber {
		return 0, v.mismatch(KindNumber)
	}
	f, err := strconv.ParseFloat(v.str, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not a float64", ErrKind, v.str)
	}
	return f, nil
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, v.mismatch(KindBool)
	}
	return v.b, nil
}

// AsBinary returns the bytes held by v.
func (v Value) AsBinary() ([]byte, error) {
	if v.kind != KindBinary {
		return nil, v.mismatch(KindBinary)
	}
	return v.bin, nil
}

// AsDocument returns the nested document held by v.
func (v Value) AsDocument() (*Document, error) {
	if v.kind != KindDocument {
		return nil, v.mismatch(KindDocument)
	}
	return v.doc, nil
}

// AsArray returns the elements held by v.
func (v Value) AsArray() ([]Value, error) {
	if v.kind != KindArray {
		return nil, v.mismatch(KindArray)
	}
	return v.arr, nil
}

// Interface returns v in its natural Go shape: nil, string, int64 or float64, bool,
// []byte, map[string]any, or []any.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if i, err := strconv.ParseInt(v.str, 10, 64); err == nil {
			return i
		}
		f, _ := strconv.ParseFloat(v.str, 64)
		return f
	case KindBool:
		return v.b
	case KindBinary:
		return v.bin
	case KindDocument:
		m := make(map[string]any, v.doc.Len())
		for _, f := range v.doc.fields {
			m[f.Name] = f.Value.Interface()
		}
		return m
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal reports structural equality. Numbers compare by numeric value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		if v.str == o.str {
			return true
		}
		a, aok := new(big.Rat).SetString(v.str)
		b, bok := new(big.Rat).SetString(o.str)
		return aok && bok && a.Cmp(b) == 0
	case KindBool:
		return v.b == o.b
	case KindBinary:
		return bytes.Equal(v.bin, o.bin)
	case KindDocument:
		return v.doc.Equal(o.doc)
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Key returns a canonical string for v. Values that are Equal share a Key.
func (v Value) Key() string {
	var sb strings.Builder
	v.writeKey(&sb)
	return sb.String()
}

func (v Value) writeKey(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindString:
		sb.WriteString("s:")
		sb.WriteString(v.str)
	case KindNumber:
		sb.WriteString("n:")
		if r, ok := new(big.Rat).SetString(v.str); ok {
			sb.WriteString(r.RatString())
		} else {
			sb.WriteString(v.str)
		}
	case KindBool:
		sb.WriteString("b:")
		sb.WriteString(strconv.FormatBool(v.b))
	case KindBinary:
		sb.WriteString("x:")
		fmt.Fprintf(sb, "%x", v.bin)
	case KindDocument:
		sb.WriteString("{")
		for i, f := range v.doc.fields {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(strconv.Quote(f.Name))
			sb.WriteString("=")
			f.Value.writeKey(sb)
		}
		sb.WriteString("}")
	case KindArray:
		sb.WriteString("[")
		for i, e := range v.arr {
			if i > 0 {
				sb.WriteString(",")
			}
			e.writeKey(sb)
		}
		sb.WriteString("]")
	}
}

// Text returns the storage form of a scalar used for map keys and identifiers.
// Strings are returned as-is; numbers and booleans as their text.
func (v Value) Text() (string, error) {
	switch v.kind {
	case KindString, KindNumber:
		return v.str, nil
	case KindBool:
		return strconv.FormatBool(v.b), nil
	default:
		return "", fmt.Errorf("%w: %s has no text form", ErrKind, v.kind)
	}
}

// GoString renders v for debugging.
func (v Value) GoString() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindNumber:
		return v.str
	default:
		return v.Key()
	}
}
