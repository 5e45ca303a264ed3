package mapping

// Tabler is implemented by entities that name their own collection.
type Tabler interface {
	// TableName returns the collection (DynamoDB table) the entity is stored in.
	TableName() string
}

// Typed is implemented by entities that name their own discriminator value.
type Typed interface {
	// EntityType returns the stored type tag (e.g. "studio").
	EntityType() string
}

// PostLoader is implemented by entities that finish initialization after decode.
type PostLoader interface {
	PostLoad() error
}

// PrePersister is implemented by entities that prepare themselves before encode.
type PrePersister interface {
	PrePersist() error
}

// EntityOption configures a type at registration.
type EntityOption func(*entitySettings)

type entitySettings struct {
	collection      string
	discriminator   string
	noDiscriminator bool
}

// WithCollection sets the collection the type is stored in.
func WithCollection(name string) EntityOption {
	return func(s *entitySettings) { s.collection = name }
}

// WithDiscriminator sets the stored type tag.
func WithDiscriminator(value string) EntityOption {
	return func(s *entitySettings) { s.discriminator = value }
}

// WithoutDiscriminator disables writing and checking the type tag for the type.
// The type can then not be decoded through an interface.
func WithoutDiscriminator() EntityOption {
	return func(s *entitySettings) { s.noDiscriminator = true }
}
