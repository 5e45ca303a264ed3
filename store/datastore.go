package store

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/jacentio/espalier/cache"
	"github.com/jacentio/espalier/document"
	"github.com/jacentio/espalier/mapping"
)

// Datastore saves and loads mapped entities. References of loaded entities
// resolve through the underlying Store.
type Datastore struct {
	store  *Store
	mapper *mapping.Mapper
	cache  cache.Cache
}

// NewDatastore creates a Datastore. A non-nil cache is shared by every Load
// and kept coherent by Save and Delete; with nil each Load gets its own.
func NewDatastore(s *Store, m *mapping.Mapper, c cache.Cache) *Datastore {
	return &Datastore{store: s, mapper: m, cache: c}
}

// Store returns the underlying Store.
func (d *Datastore) Store() *Store { return d.store }

// Mapper returns the entity mapper.
func (d *Datastore) Mapper() *mapping.Mapper { return d.mapper }

// Save encodes entity and writes it to its collection. An entity with an unset
// identifier gets a random UUID first, so entity must then be a pointer.
func (d *Datastore) Save(ctx context.Context, entity any) error {
	collection, err := d.mapper.CollectionOf(reflect.TypeOf(entity))
	if err != nil {
		return err
	}
	id, err := d.mapper.IdentifierOf(reflect.ValueOf(entity))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoIdentifier, err)
	}
	if id.IsNull() {
		if err := d.mapper.SetIdentifier(entity, uuid.NewString()); err != nil {
			return fmt.Errorf("%w: %w", ErrNoIdentifier, err)
		}
		if id, err = d.mapper.IdentifierOf(reflect.ValueOf(entity)); err != nil {
			return err
		}
	}

	doc, err := d.mapper.Encode(entity)
	if err != nil {
		return fmt.Errorf("encode %s: %w", collection, err)
	}
	if err := d.store.Put(ctx, collection, doc); err != nil {
		return err
	}
	d.evict(collection, id)
	return nil
}

// Load fetches the entity stored under id in target's collection and decodes
// it into target, a pointer to a registered type. It returns ErrNotFound when
// the item is missing or deleted.
func (d *Datastore) Load(ctx context.Context, id any, target any) error {
	collection, err := d.mapper.CollectionOf(reflect.TypeOf(target))
	if err != nil {
		return err
	}
	idv, err := d.mapper.EncodeValue(id)
	if err != nil {
		return fmt.Errorf("encode identifier: %w", err)
	}
	doc, err := d.store.FindOne(ctx, collection, idv)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: %s %s", ErrNotFound, collection, idv.Key())
	}
	return d.mapper.Decode(ctx, doc, target,
		mapping.WithFinder(d.store),
		mapping.WithCache(d.cache),
	)
}

// Delete removes entity from its collection.
func (d *Datastore) Delete(ctx context.Context, entity any) error {
	collection, err := d.mapper.CollectionOf(reflect.TypeOf(entity))
	if err != nil {
		return err
	}
	id, err := d.mapper.IdentifierOf(reflect.ValueOf(entity))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoIdentifier, err)
	}
	if id.IsNull() {
		return fmt.Errorf("%w: %s", ErrNoIdentifier, collection)
	}
	if err := d.store.Delete(ctx, collection, id); err != nil {
		return err
	}
	d.evict(collection, id)
	return nil
}

func (d *Datastore) evict(collection string, id document.Value) {
	if d.cache != nil {
		d.cache.Delete(cache.KeyOf(collection, id))
	}
}
