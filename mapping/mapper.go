package mapping

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/jacentio/espalier/reference"
)

// Mapper converts between entities and documents.
//
// Types and codecs must be registered before the Mapper is used concurrently.
// After that every lookup is lock-free.
type Mapper struct {
	config Config
	finder reference.Finder
	logger *slog.Logger

	descriptors    sync.Map // reflect.Type -> *Descriptor
	codecs         sync.Map // reflect.Type -> Codec, user registered
	resolved       sync.Map // reflect.Type -> Codec, lookup cache
	discriminators sync.Map // string -> reflect.Type
	collections    sync.Map // string -> reflect.Type
}

// New creates a Mapper. The finder is used to resolve references during decode
// and may be nil if no document holds references.
func New(finder reference.Finder, cfg Config) *Mapper {
	cfg.validate()
	return &Mapper{
		config: cfg,
		finder: finder,
		logger: cfg.Logger,
	}
}

// Config returns the configuration the Mapper was created with.
func (m *Mapper) Config() Config { return m.config }

// Register registers the type of proto as an entity.
//
// The collection defaults to the type name and can be set with a TableName
// method or WithCollection. The discriminator value defaults to the type name
// and can be set with an EntityType method or WithDiscriminator.
func (m *Mapper) Register(proto any, opts ...EntityOption) error {
	t := indirectType(reflect.TypeOf(proto))
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("%w: cannot register %T, expected a struct", ErrMapping, proto)
	}

	var settings entitySettings
	inst := reflect.New(t).Interface()
	if tn, ok := inst.(Tabler); ok {
		settings.collection = tn.TableName()
	}
	if et, ok := inst.(Typed); ok {
		settings.discriminator = et.EntityType()
	}
	for _, opt := range opts {
		opt(&settings)
	}

	d, err := m.describe(t)
	if err != nil {
		return err
	}
	d.Registered = true
	d.UseDiscriminator = !settings.noDiscriminator
	if settings.collection != "" {
		d.Collection = settings.collection
	}
	if settings.discriminator != "" {
		d.DiscriminatorValue = settings.discriminator
	}

	if d.UseDiscriminator {
		if prev, loaded := m.discriminators.LoadOrStore(d.DiscriminatorValue, t); loaded && prev.(reflect.Type) != t {
			return fmt.Errorf("%w: %q is used by %s and %s", ErrAmbiguousDiscriminator, d.DiscriminatorValue, prev, t)
		}
	}
	m.collections.LoadOrStore(d.Collection, t)
	m.descriptors.Store(t, d)

	m.logger.Debug("registered entity type",
		"type", t.String(),
		"collection", d.Collection,
		"discriminator", d.DiscriminatorValue,
		"polymorphic", d.UseDiscriminator,
	)
	return nil
}

// MustRegister is like Register but panics on error.
func (m *Mapper) MustRegister(proto any, opts ...EntityOption) {
	if err := m.Register(proto, opts...); err != nil {
		panic(err)
	}
}

// RegisterCodec makes c the codec for values of exactly type t, shadowing any
// built-in codec.
func (m *Mapper) RegisterCodec(t reflect.Type, c Codec) {
	m.codecs.Store(t, c)
	m.resolved.Delete(t)
}

// Describe returns the descriptor of t, which must be a struct or a pointer to
// one. Unregistered types are described on first use.
func (m *Mapper) Describe(t reflect.Type) (*Descriptor, error) {
	t = indirectType(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v is not a struct", ErrMapping, t)
	}
	if d, ok := m.descriptors.Load(t); ok {
		return d.(*Descriptor), nil
	}
	d, err := m.describe(t)
	if err != nil {
		return nil, err
	}
	actual, _ := m.descriptors.LoadOrStore(t, d)
	return actual.(*Descriptor), nil
}

// DiscriminatorKeyFor returns the discriminator field name if documents of t
// carry a type tag.
func (m *Mapper) DiscriminatorKeyFor(t reflect.Type) (string, bool) {
	d, err := m.Describe(t)
	if err != nil || !d.UseDiscriminator {
		return "", false
	}
	return m.config.DiscriminatorKey, true
}

// TypeForCollection returns the first type registered for a collection.
func (m *Mapper) TypeForCollection(name string) (reflect.Type, bool) {
	t, ok := m.collections.Load(name)
	if !ok {
		return nil, false
	}
	return t.(reflect.Type), true
}

// CollectionOf returns the collection entities of t are stored in.
func (m *Mapper) CollectionOf(t reflect.Type) (string, error) {
	d, err := m.Describe(t)
	if err != nil {
		return "", err
	}
	return d.Collection, nil
}

// collectionFor returns the collection a reference element type points at, or
// "" when the type does not determine one.
func (m *Mapper) collectionFor(t reflect.Type) string {
	t = indirectType(t)
	if t.Kind() != reflect.Struct {
		return ""
	}
	d, err := m.Describe(t)
	if err != nil {
		return ""
	}
	return d.Collection
}

func indirectType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
