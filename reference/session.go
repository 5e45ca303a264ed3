package reference

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/jacentio/espalier/cache"
	"github.com/jacentio/espalier/document"
)

// Finder fetches stored documents by identifier.
type Finder interface {
	// FindOne returns the document stored under id, or nil if there is none.
	FindOne(ctx context.Context, collection string, id document.Value) (*document.Document, error)

	// FindMany returns the documents stored under ids. Order is not guaranteed
	// and missing documents are omitted.
	FindMany(ctx context.Context, collection string, ids []document.Value) ([]*document.Document, error)
}

// Materializer turns fetched documents into typed instances.
type Materializer interface {
	// Materialize decodes doc, fetched from collection, into a value assignable to hint.
	Materialize(s *Session, collection string, doc *document.Document, hint reflect.Type) (reflect.Value, error)

	// IdentifierOf returns the identifier of a materialized value.
	IdentifierOf(v reflect.Value) (document.Value, error)
}

// Target describes what a handle resolves to.
type Target struct {
	// Type is the declared type of one resolved element (e.g. *Customer).
	Type reflect.Type

	// Collection is where bare identifiers are looked up. Empty when the
	// declared type does not determine a collection.
	Collection string
}

// Options tunes a handle.
type Options struct {
	// IgnoreMissing resolves unfetchable single references to the absent value
	// instead of failing with ErrMissingReference.
	IgnoreMissing bool

	// Stored is the shape the reference was decoded from. It is written back
	// unchanged when an unresolved reference is encoded.
	Stored document.Value
}

// chain records identifiers being eagerly resolved by the current call stack.
type chain struct {
	keys   []cache.Key
	parent *chain
}

func (c *chain) contains(k cache.Key) bool {
	for ; c != nil; c = c.parent {
		for _, ck := range c.keys {
			if ck == k {
				return true
			}
		}
	}
	return false
}

// Session is the scope of one decode or resolve call.
// It owns the entity cache and the collaborators handles resolve through.
type Session struct {
	ctx          context.Context
	finder       Finder
	materializer Materializer
	cache        cache.Cache
	logger       *slog.Logger
	chain        *chain
}

// NewSession creates a session. A nil cache gets a fresh session cache and a nil
// logger falls back to slog.Default.
func NewSession(ctx context.Context, finder Finder, m Materializer, c cache.Cache, logger *slog.Logger) *Session {
	if ctx == nil {
		ctx = context.Background()
	}
	if c == nil {
		c = cache.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		ctx:          ctx,
		finder:       finder,
		materializer: m,
		cache:        c,
		logger:       logger,
	}
}

// Context returns the context fetches run under.
func (s *Session) Context() context.Context { return s.ctx }

// Cache returns the session's entity cache.
func (s *Session) Cache() cache.Cache { return s.cache }

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Detached returns a session sharing collaborators and cache but with no
// resolution in progress. Lazy handles use it since they resolve later.
func (s *Session) Detached() *Session {
	d := *s
	d.chain = nil
	return &d
}

func (s *Session) within(keys ...cache.Key) *Session {
	d := *s
	d.chain = &chain{keys: keys, parent: s.chain}
	return &d
}

func (s *Session) resolving(k cache.Key) bool {
	return s.chain.contains(k)
}

// cached returns the cached instance for key adapted to t.
func (s *Session) cached(key cache.Key, t reflect.Type) (reflect.Value, bool) {
	v, ok := s.cache.Get(key)
	if !ok || v == nil {
		return reflect.Value{}, false
	}
	return Adapt(reflect.ValueOf(v), t)
}

// Adapt returns v as a value of type t, dereferencing or taking a copy's
// address when only pointer-ness differs. It reports false when v cannot fit t.
func Adapt(v reflect.Value, t reflect.Type) (reflect.Value, bool) {
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	if v.Type().AssignableTo(t) {
		return v, true
	}
	if v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Type().AssignableTo(t) {
		return v.Elem(), true
	}
	if t.Kind() == reflect.Pointer && v.Type().AssignableTo(t.Elem()) {
		p := reflect.New(t.Elem())
		p.Elem().Set(v)
		return p, true
	}
	if v.Kind() == reflect.Interface && !v.IsNil() {
		return Adapt(v.Elem(), t)
	}
	return reflect.Value{}, false
}
