package mapping

import (
	"errors"

	"github.com/jacentio/espalier/reference"
)

var (
	// ErrUnknownDiscriminator is returned when a stored type tag names no registered type.
	ErrUnknownDiscriminator = errors.New("espalier: unknown discriminator")

	// ErrAmbiguousDiscriminator is returned when a type tag is registered for two types.
	ErrAmbiguousDiscriminator = errors.New("espalier: discriminator already registered")

	// ErrMapping is returned when a value cannot be assigned to its declared property,
	// or when a type cannot be mapped at all.
	ErrMapping = errors.New("espalier: mapping failed")

	// ErrShapeMismatch is returned by codecs when a stored value has a different
	// shape than the declared type. The decoder falls back to conversion on it.
	ErrShapeMismatch = errors.New("espalier: stored shape does not match declared type")

	// ErrConversion is returned when the fallback conversion of a mismatched value fails.
	ErrConversion = errors.New("espalier: conversion failed")

	// ErrUnresolvedReference is returned when encoding a reference to an entity
	// that has no identifier.
	ErrUnresolvedReference = errors.New("espalier: referenced entity has no identifier")

	// ErrMissingReference is returned when a referenced entity cannot be fetched.
	ErrMissingReference = reference.ErrMissingReference

	// ErrCircularReference is returned when eager references form a cycle.
	ErrCircularReference = reference.ErrCircularReference
)
