package store

import "errors"

var (
	// ErrNotFound is returned when an entity doesn't exist or is deleted (has TTL <= now).
	ErrNotFound = errors.New("espalier: entity not found")

	// ErrNoIdentifier is returned when saving or deleting an entity whose
	// identifier cannot be determined.
	ErrNoIdentifier = errors.New("espalier: entity has no identifier")

	// ErrUnprocessedKeys is returned when BatchGetItem keeps returning unprocessed
	// keys after all retries.
	ErrUnprocessedKeys = errors.New("espalier: batch get left unprocessed keys")
)
