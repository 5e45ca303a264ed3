package mapping

import (
	"encoding"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cast"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Convert converts v, a value in its natural Go shape (as returned by
// document.Value.Interface), to type t.
//
// Supported conversions: strings to and from numbers and booleans, strings to
// time.Time and time.Duration, numbers to time.Time as unix milliseconds,
// numeric widening and narrowing without loss, []any to slices and arrays,
// map[string]any to maps, and a single value to a one-element slice.
func Convert(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	out, err := convert(rv, t)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %T to %s: %w", ErrConversion, v, t, err)
	}
	return out, nil
}

var errUnsupported = errors.New("unsupported conversion")

func convert(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	for rv.Kind() == reflect.Interface && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Interface {
		return reflect.Zero(t), nil
	}
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	switch t {
	case timeType:
		return toTime(rv)
	case durationType:
		if rv.Kind() == reflect.String {
			d, err := cast.ToDurationE(strings.TrimSpace(rv.String()))
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(d), nil
		}
	}
	if rv.Kind() == reflect.String && reflect.PointerTo(t).Implements(textUnmarshalType) {
		p := reflect.New(t)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(rv.String())); err != nil {
			return reflect.Value{}, err
		}
		return p.Elem(), nil
	}

	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Pointer:
		inner, err := convert(rv, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, nil

	case reflect.String:
		s, err := toString(rv)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetString(s)
		return out, nil

	case reflect.Bool:
		b, err := toBool(rv)
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetBool(b)
		return out, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := toInt(rv)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowInt(i) {
			return reflect.Value{}, fmt.Errorf("%d overflows", i)
		}
		out.SetInt(i)
		return out, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, err := toUint(rv)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowUint(u) {
			return reflect.Value{}, fmt.Errorf("%d overflows", u)
		}
		out.SetUint(u)
		return out, nil

	case reflect.Float32, reflect.Float64:
		f, err := toFloat(rv)
		if err != nil {
			return reflect.Value{}, err
		}
		if out.OverflowFloat(f) {
			return reflect.Value{}, fmt.Errorf("%g overflows", f)
		}
		out.SetFloat(f)
		return out, nil

	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && rv.Kind() == reflect.String {
			return reflect.ValueOf([]byte(rv.String())).Convert(t), nil
		}
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			ev, err := convert(rv, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.Append(reflect.MakeSlice(t, 0, 1), ev), nil
		}
		s := reflect.MakeSlice(t, rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev, err := convert(rv.Index(i), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			s.Index(i).Set(ev)
		}
		return s, nil

	case reflect.Array:
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			break
		}
		if rv.Len() > t.Len() {
			return reflect.Value{}, fmt.Errorf("%d elements do not fit", rv.Len())
		}
		for i := 0; i < rv.Len(); i++ {
			ev, err := convert(rv.Index(i), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(ev)
		}
		return out, nil

	case reflect.Map:
		if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := reflect.MakeMapWithSize(t, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k, err := parseKey(iter.Key().String(), t.Key())
			if err != nil {
				return reflect.Value{}, err
			}
			ev, err := convert(iter.Value(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %q: %w", iter.Key().String(), err)
			}
			m.SetMapIndex(k, ev)
		}
		return m, nil

	case reflect.Interface:
		if rv.Type().Implements(t) {
			out.Set(rv)
			return out, nil
		}
	}

	if rv.Kind() == t.Kind() && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, errUnsupported
}

// scalar returns the builtin value behind a named scalar type, so cast sees
// string, bool, int64, uint64 or float64 rather than the named type.
func scalar(rv reflect.Value) (any, bool) {
	switch rv.Kind() {
	case reflect.String:
		return strings.TrimSpace(rv.String()), true
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return nil, false
}

// radixPrefixed reports whether cast would read s with a base other than ten,
// as it does for "0x1f" and "010".
func radixPrefixed(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.' && s[1] != 'e' && s[1] != 'E'
}

func toString(rv reflect.Value) (string, error) {
	if rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	if v, ok := scalar(rv); ok {
		return cast.ToStringE(v)
	}
	if tm, ok := rv.Interface().(time.Time); ok {
		return tm.UTC().Format(time.RFC3339Nano), nil
	}
	if tm, ok := rv.Interface().(encoding.TextMarshaler); ok {
		b, err := tm.MarshalText()
		return string(b), err
	}
	if b, ok := rv.Interface().([]byte); ok {
		return string(b), nil
	}
	return "", errUnsupported
}

func toBool(rv reflect.Value) (bool, error) {
	v, ok := scalar(rv)
	if !ok {
		return false, errUnsupported
	}
	switch v.(type) {
	case bool, string:
		return cast.ToBoolE(v)
	}
	f, err := toFloat(rv)
	if err != nil {
		return false, err
	}
	switch f {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%g is not a boolean", f)
}

func toInt(rv reflect.Value) (int64, error) {
	v, ok := scalar(rv)
	if !ok {
		return 0, errUnsupported
	}
	switch n := v.(type) {
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows", n)
		}
	case float64:
		if n != math.Trunc(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, fmt.Errorf("%g is not an integer", n)
		}
	case string:
		if !radixPrefixed(n) {
			if i, err := cast.ToInt64E(n); err == nil {
				return i, nil
			}
		}
		f, err := cast.ToFloat64E(n)
		if err != nil {
			return 0, err
		}
		return toInt(reflect.ValueOf(f))
	}
	return cast.ToInt64E(v)
}

func toUint(rv reflect.Value) (uint64, error) {
	v, ok := scalar(rv)
	if !ok {
		return 0, errUnsupported
	}
	switch n := v.(type) {
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("%d overflows", n)
		}
	case float64:
		if n != math.Trunc(n) || n >= math.MaxUint64 || n < 0 {
			return 0, fmt.Errorf("%g is not an unsigned integer", n)
		}
	case string:
		if !radixPrefixed(n) && !strings.HasPrefix(n, "-") {
			if u, err := cast.ToUint64E(n); err == nil {
				return u, nil
			}
		}
		f, err := cast.ToFloat64E(n)
		if err != nil {
			return 0, err
		}
		return toUint(reflect.ValueOf(f))
	}
	return cast.ToUint64E(v)
}

func toFloat(rv reflect.Value) (float64, error) {
	v, ok := scalar(rv)
	if !ok {
		return 0, errUnsupported
	}
	return cast.ToFloat64E(v)
}

func toTime(rv reflect.Value) (reflect.Value, error) {
	switch rv.Kind() {
	case reflect.String:
		s := strings.TrimSpace(rv.String())
		for _, layout := range timeLayouts {
			if tm, err := time.Parse(layout, s); err == nil {
				return reflect.ValueOf(tm), nil
			}
		}
		if ms, err := toInt(rv); err == nil {
			return reflect.ValueOf(time.UnixMilli(ms).UTC()), nil
		}
		return reflect.Value{}, fmt.Errorf("%q is not a time", s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		ms, err := toInt(rv)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(time.UnixMilli(ms).UTC()), nil
	}
	return reflect.Value{}, errUnsupported
}

// checkKeyType reports whether map keys of type t have a string form.
func checkKeyType(t reflect.Type) error {
	if reflect.PointerTo(t).Implements(textUnmarshalType) && t.Implements(textMarshalerType) {
		return nil
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil
	}
	return fmt.Errorf("%w: map key type %s has no string form", ErrMapping, t)
}

// formatKey returns the stored form of a map key.
func formatKey(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	s, err := toString(k)
	if err != nil {
		return "", fmt.Errorf("%w: map key %s: %w", ErrMapping, k.Type(), err)
	}
	return s, nil
}

// parseKey converts a stored map key back to the declared key type.
func parseKey(s string, t reflect.Type) (reflect.Value, error) {
	if t.Kind() == reflect.String {
		return reflect.ValueOf(s).Convert(t), nil
	}
	k, err := convert(reflect.ValueOf(s), t)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: map key %q as %s: %w", ErrMapping, s, t, err)
	}
	return k, nil
}
