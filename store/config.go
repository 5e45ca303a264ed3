package store

import "time"

// Config holds configuration for the Store.
type Config struct {
	// IDAttribute is the partition key attribute of every table.
	// Default: "id"
	IDAttribute string

	// TablePrefix is prepended to collection names to form table names.
	// Default: "" (collection names are table names)
	TablePrefix string

	// MaxBatchSize is the number of keys sent per BatchGetItem request.
	// Default: 100
	// Max: 100 (DynamoDB limit)
	MaxBatchSize int

	// MaxUnprocessedRetries bounds how often unprocessed keys of a batch are
	// requested again before FindMany fails.
	// Default: 3
	MaxUnprocessedRetries int

	// RetryBackoff is the wait before the first retry of unprocessed keys.
	// It doubles on every further retry.
	// Default: 50ms
	RetryBackoff time.Duration

	// SoftDelete makes Delete set the TTL attribute to now instead of removing
	// the item. Soft deleted items are treated as absent by all reads.
	// Default: false
	SoftDelete bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		IDAttribute:           "id",
		MaxBatchSize:          100,
		MaxUnprocessedRetries: 3,
		RetryBackoff:          50 * time.Millisecond,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.IDAttribute == "" {
		c.IDAttribute = "id"
	}
	if c.MaxBatchSize < 1 || c.MaxBatchSize > 100 {
		c.MaxBatchSize = 100
	}
	if c.MaxUnprocessedRetries < 0 {
		c.MaxUnprocessedRetries = 0
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	}
}
