package mapping

import (
	"fmt"
	"reflect"

	"github.com/jacentio/espalier/document"
)

// TypeForDiscriminator returns the type registered under a stored type tag.
func (m *Mapper) TypeForDiscriminator(tag string) (reflect.Type, error) {
	t, ok := m.discriminators.Load(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDiscriminator, tag)
	}
	return t.(reflect.Type), nil
}

// selectType picks the concrete struct type to decode the document under r
// into. The reader is rewound to where it was on return.
//
// An interface hint needs a type tag or a fallback type; a struct hint only
// checks the tag if its type is polymorphic.
func (m *Mapper) selectType(r *document.Reader, hint, fallback reflect.Type) (reflect.Type, error) {
	base := indirectType(hint)
	key := m.config.DiscriminatorKey

	polymorphic := base.Kind() == reflect.Interface
	if !polymorphic {
		if _, ok := m.DiscriminatorKeyFor(base); !ok {
			return base, nil
		}
	}

	mark := r.Mark()
	tagValue, found := r.Find(key)
	r.Reset(mark)

	if !found || tagValue.IsNull() {
		if base.Kind() != reflect.Interface {
			return base, nil
		}
		if fallback != nil {
			return fallback, nil
		}
		return nil, fmt.Errorf("%w: no %q field to select a concrete type for %s", ErrMapping, key, hint)
	}
	tag, err := tagValue.AsString()
	if err != nil {
		return nil, fmt.Errorf("%w: %q field: %w", ErrMapping, key, err)
	}
	concrete, err := m.TypeForDiscriminator(tag)
	if err != nil {
		return nil, err
	}

	switch base.Kind() {
	case reflect.Interface:
		if !concrete.Implements(base) && !reflect.PointerTo(concrete).Implements(base) {
			return nil, fmt.Errorf("%w: %q names %s which does not implement %s", ErrMapping, tag, concrete, base)
		}
	default:
		if concrete != base {
			return nil, fmt.Errorf("%w: %q names %s, expected %s", ErrMapping, tag, concrete, base)
		}
	}
	m.logger.Debug("selected type from discriminator",
		"discriminator", tag,
		"type", concrete.String(),
	)
	return concrete, nil
}
