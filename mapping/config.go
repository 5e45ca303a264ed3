package mapping

import (
	"log/slog"

	"github.com/stoewer/go-strcase"
)

// NamingStrategy derives stored field names from Go field names.
type NamingStrategy int

const (
	// LowerCamel maps CustomerID to customerId and ID to id.
	LowerCamel NamingStrategy = iota
	// Identity keeps the Go field name.
	Identity
	// Snake maps CustomerID to customer_id.
	Snake
)

// Apply returns the stored name for a Go field name.
func (n NamingStrategy) Apply(name string) string {
	switch n {
	case Identity:
		return name
	case Snake:
		return strcase.SnakeCase(name)
	default:
		return strcase.LowerCamelCase(name)
	}
}

// Config holds configuration for the Mapper.
type Config struct {
	// DiscriminatorKey is the stored field naming a document's concrete type.
	// Default: "_t"
	DiscriminatorKey string

	// OriginField is the field of a typed identifier naming its collection.
	// Default: "origin"
	OriginField string

	// IDField is the field of a typed identifier holding the identifier.
	// Default: "id"
	IDField string

	// Naming derives stored names for fields without an explicit tag name.
	// Default: LowerCamel
	Naming NamingStrategy

	// Logger receives debug output from decoding and warnings from tolerated failures.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns the default mapper configuration.
func DefaultConfig() Config {
	return Config{
		DiscriminatorKey: "_t",
		OriginField:      "origin",
		IDField:          "id",
		Naming:           LowerCamel,
		Logger:           slog.Default(),
	}
}

// validate fills unset values with defaults.
func (c *Config) validate() {
	if c.DiscriminatorKey == "" {
		c.DiscriminatorKey = "_t"
	}
	if c.OriginField == "" {
		c.OriginField = "origin"
	}
	if c.IDField == "" {
		c.IDField = "id"
	}
	if c.OriginField == c.IDField {
		c.OriginField, c.IDField = "origin", "id"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
