package reference

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/jacentio/espalier/document"
)

// Handle is a resolvable relationship.
type Handle interface {
	// Resolve returns the resolved value. Only the first call does any work;
	// later calls return the same value and error. An invalid reflect.Value
	// means the reference resolved to nothing.
	Resolve() (reflect.Value, error)

	// IDs returns the identifiers the handle refers to.
	IDs() []ID

	// Resolved reports whether Resolve has completed.
	Resolved() bool

	// Stored returns the shape the handle was decoded from.
	Stored() document.Value
}

// resolution holds the once-only outcome shared by every handle variant.
type resolution struct {
	mu       sync.Mutex
	done     bool
	value    reflect.Value
	err      error
	resolver func() (reflect.Value, error)
}

func (r *resolution) resolve() (reflect.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.done {
		r.value, r.err = r.resolver()
		r.done = true
	}
	return r.value, r.err
}

func (r *resolution) resolved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Single refers to one entity.
type Single struct {
	session *Session
	target  Target
	id      ID
	opts    Options
	res     resolution
}

// NewSingle returns an unresolved handle for id.
func NewSingle(s *Session, target Target, id ID, opts Options) *Single {
	h := &Single{session: s, target: target, id: id, opts: opts}
	h.res.resolver = h.fetch
	return h
}

// NewResolvedSingle returns a handle that already holds v, as for references
// stored by value instead of by identifier.
func NewResolvedSingle(v reflect.Value, id ID, opts Options) *Single {
	h := &Single{id: id, opts: opts}
	h.res.done = true
	h.res.value = v
	return h
}

// Resolve implements Handle.
func (h *Single) Resolve() (reflect.Value, error) { return h.res.resolve() }

// Resolved implements Handle.
func (h *Single) Resolved() bool { return h.res.resolved() }

// IDs implements Handle.
func (h *Single) IDs() []ID { return []ID{h.id} }

// ID returns the identifier.
func (h *Single) ID() ID { return h.id }

// Stored implements Handle.
func (h *Single) Stored() document.Value { return h.opts.Stored }

func (h *Single) fetch() (reflect.Value, error) {
	s := h.session
	collection := h.id.Collection(h.target.Collection)
	if collection == "" {
		return reflect.Value{}, fmt.Errorf("%w: identifier %s has no collection", ErrMissingReference, h.id)
	}
	key := h.id.Key(h.target.Collection)

	if v, ok := s.cached(key, h.target.Type); ok {
		return v, nil
	}
	if s.resolving(key) {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrCircularReference, key)
	}
	if s.finder == nil {
		return reflect.Value{}, ErrNoFinder
	}

	doc, err := s.finder.FindOne(s.ctx, collection, h.id.Value)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("fetch %s: %w", key, err)
	}
	if doc == nil {
		if h.opts.IgnoreMissing {
			s.logger.Warn("referenced entity not found",
				"collection", collection,
				"id", h.id.String(),
			)
			return reflect.Value{}, nil
		}
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrMissingReference, key)
	}

	v, err := s.materializer.Materialize(s.within(key), collection, doc, h.target.Type)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("materialize %s: %w", key, err)
	}
	s.cache.Set(key, v.Interface())

	out, ok := Adapt(v, h.target.Type)
	if !ok {
		return reflect.Value{}, fmt.Errorf("%w: %s is not %s", ErrTypeMismatch, v.Type(), h.target.Type)
	}
	return out, nil
}
