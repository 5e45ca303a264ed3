package reference

import (
	"fmt"
	"reflect"
	"sync"
)

type refState[T any] struct {
	mu       sync.Mutex
	handle   Handle
	value    T
	resolved bool
	absent   bool
	err      error
}

// Ref is a relationship to T that is either resolved or deferred.
//
// A deferred Ref resolves its handle exactly once, on the first call to Get,
// MustGet, String, or Equal. Copies of a Ref share resolution state.
// The zero Ref is resolved and absent.
type Ref[T any] struct {
	s *refState[T]
}

// To returns a resolved reference to v.
func To[T any](v T) Ref[T] {
	return Ref[T]{s: &refState[T]{value: v, resolved: true}}
}

// Deferred returns a reference resolved through h on first access.
func Deferred[T any](h Handle) Ref[T] {
	return Ref[T]{s: &refState[T]{handle: h}}
}

// Get resolves the reference if needed and returns its value. An absent
// reference returns the zero T and no error.
func (r Ref[T]) Get() (T, error) {
	var zero T
	if r.s == nil {
		return zero, nil
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.resolved {
		s.resolveLocked()
	}
	return s.value, s.err
}

func (s *refState[T]) resolveLocked() {
	s.resolved = true
	v, err := s.handle.Resolve()
	if err != nil {
		s.err = err
		return
	}
	if !v.IsValid() {
		s.absent = true
		return
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	a, ok := Adapt(v, t)
	if !ok {
		s.err = fmt.Errorf("%w: %s is not %s", ErrTypeMismatch, v.Type(), t)
		return
	}
	s.value = a.Interface().(T)
}

// MustGet is like Get but panics on error.
func (r Ref[T]) MustGet() T {
	v, err := r.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// IsResolved reports whether the value is available without fetching.
func (r Ref[T]) IsResolved() bool {
	if r.s == nil {
		return true
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.resolved
}

// IsAbsent reports whether the reference resolved to nothing. It does not
// trigger resolution.
func (r Ref[T]) IsAbsent() bool {
	if r.s == nil {
		return true
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.absent
}

// IDs returns the identifiers of a deferred reference without resolving it.
func (r Ref[T]) IDs() []ID {
	if r.s == nil || r.s.handle == nil {
		return nil
	}
	return r.s.handle.IDs()
}

// String resolves the reference and formats its value.
func (r Ref[T]) String() string {
	v, err := r.Get()
	if err != nil {
		return fmt.Sprintf("<unresolved reference: %v>", err)
	}
	if r.IsAbsent() {
		return "<absent>"
	}
	return fmt.Sprint(v)
}

// Equal resolves both references and compares their values deeply.
func (r Ref[T]) Equal(o Ref[T]) bool {
	a, aerr := r.Get()
	b, berr := o.Get()
	if aerr != nil || berr != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// Bind makes r a deferred reference over h. It is used by codecs that
// populate struct fields they did not construct.
func (r *Ref[T]) Bind(h Handle) {
	r.s = &refState[T]{handle: h}
}

// BindResolved makes r a resolved reference holding v. An invalid v makes it absent.
func (r *Ref[T]) BindResolved(v reflect.Value) error {
	if !v.IsValid() {
		r.s = &refState[T]{resolved: true, absent: true}
		return nil
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	a, ok := Adapt(v, t)
	if !ok {
		return fmt.Errorf("%w: %s is not %s", ErrTypeMismatch, v.Type(), t)
	}
	r.s = &refState[T]{value: a.Interface().(T), resolved: true}
	return nil
}

// Inspect reports the state of r for encoding. When resolved it returns the
// value; otherwise it returns the handle. Inspect never triggers resolution.
func (r Ref[T]) Inspect() (value reflect.Value, handle Handle, resolved bool) {
	if r.s == nil {
		return reflect.Value{}, nil, true
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.resolved && r.s.err == nil {
		if r.s.absent {
			return reflect.Value{}, r.s.handle, true
		}
		return reflect.ValueOf(&r.s.value).Elem(), r.s.handle, true
	}
	return reflect.Value{}, r.s.handle, false
}

// ElemType returns T.
func (r Ref[T]) ElemType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Binder is implemented by *Ref[T].
type Binder interface {
	Bind(h Handle)
	BindResolved(v reflect.Value) error
	ElemType() reflect.Type
}

// Inspector is implemented by Ref[T].
type Inspector interface {
	Inspect() (value reflect.Value, handle Handle, resolved bool)
	ElemType() reflect.Type
}
