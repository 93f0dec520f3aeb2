package types

import "context"

// Reserved metadata keys. They carry the private prefix so they never collide
// with field names chosen by schema authors.
const (
	MetaPrefix = "smart-cf-"

	// RepeatMultipleDataKey stores the row partition of multi-value fields
	// that live in repeatable groups, as one structured value.
	RepeatMultipleDataKey = MetaPrefix + "repeat-multiple-data"
)

// MetaStore is the flat, multi-valued key/value store the engine reads and
// writes. Values for a key keep insertion order. Implementations return
// ErrNotFound from Entity when the entity cannot be loaded.
type MetaStore interface {
	// Entity loads the entity descriptor.
	Entity(ctx context.Context, ref EntityRef) (*Entity, error)

	// Values returns every raw value stored under key, in store order.
	// An absent key yields an empty slice.
	Values(ctx context.Context, ref EntityRef, key string) ([]string, error)

	// Structured returns the single structured value stored under key, or
	// nil when absent. The bytes are returned exactly as persisted.
	Structured(ctx context.Context, ref EntityRef, key string) ([]byte, error)

	// ReplaceValues removes every value under key and stores values in order.
	ReplaceValues(ctx context.Context, ref EntityRef, key string, values []string) error

	// RemoveValues removes every value under key.
	RemoveValues(ctx context.Context, ref EntityRef, key string) error

	// SetStructured replaces the value under key with one structured value.
	SetStructured(ctx context.Context, ref EntityRef, key string, value []byte) error
}

// MetaWriter is the lower-level write surface used to seed entities and
// append individual values, the way content editors add metadata one row at
// a time.
type MetaWriter interface {
	// PutEntity creates or replaces an entity descriptor.
	PutEntity(ctx context.Context, e *Entity) error

	// AddValue appends one value under key.
	AddValue(ctx context.Context, ref EntityRef, key, value string) error
}

// Store is a MetaStore that can also be seeded.
type Store interface {
	MetaStore
	MetaWriter
}

// SchemaSource supplies the schemas defined outside of code (for example in
// definition files). The resolver filters them with their Applicability.
type SchemaSource interface {
	Schemas(ctx context.Context) ([]*Schema, error)
}

// ContributionRequest is handed to every Contributor during resolution.
// Accumulated holds the schemas resolved so far, in order.
type ContributionRequest struct {
	Target      Target
	Accumulated []*Schema
}

// Contributor registers schemas from code. Contributors decide for
// themselves whether they apply to the request; returned schemas are
// appended after the accumulated ones.
type Contributor interface {
	ContributeSchemas(ctx context.Context, req ContributionRequest) ([]*Schema, error)
}

// ContributorFunc adapts a function to the Contributor interface.
type ContributorFunc func(ctx context.Context, req ContributionRequest) ([]*Schema, error)

// ContributeSchemas calls f.
func (f ContributorFunc) ContributeSchemas(ctx context.Context, req ContributionRequest) ([]*Schema, error) {
	return f(ctx, req)
}
