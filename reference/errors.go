package reference

import "errors"

var (
	// ErrMissingReference is returned when a referenced entity cannot be fetched.
	ErrMissingReference = errors.New("espalier: referenced entity not found")

	// ErrCircularReference is returned when eager resolution revisits an identifier it is resolving.
	ErrCircularReference = errors.New("espalier: circular reference detected")

	// ErrNoFinder is returned when a reference must be fetched but no finder is configured.
	ErrNoFinder = errors.New("espalier: no finder configured")

	// ErrTypeMismatch is returned when a resolved value is not assignable to the declared type.
	ErrTypeMismatch = errors.New("espalier: resolved value has wrong type")
)
