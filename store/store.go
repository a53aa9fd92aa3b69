// Package store defines the document persistence contract that mantle binds
// model types to. A single Store holds every model type's documents in one
// physical collection; types are told apart by a discriminator field that the
// mapping layer injects. Backends: gedb (embedded), SQLite, Postgres and
// MongoDB.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// IDField is the name of the identity field inside stored documents.
const IDField = "_id"

// DefaultDiscriminator is the default name of the type discriminator field.
const DefaultDiscriminator = "_type"

var (
	// ErrNoDocument is returned by FindOne when no document matches the query.
	ErrNoDocument = errors.New("store: no document matches query")

	// ErrDuplicateID is returned by Insert when a document with the same
	// identity already exists.
	ErrDuplicateID = errors.New("store: duplicate document id")

	// ErrImmutableID is returned by Update when the update would change a
	// document's identity.
	ErrImmutableID = errors.New("store: document id cannot be modified")

	// ErrUnknownOperator is returned by Update when an operator payload uses
	// an operator the backend does not support.
	ErrUnknownOperator = errors.New("store: unknown update operator")
)

// UpdateOperators is the fixed set of operator keys that mark an update
// payload as a partial update. Any other payload is a full replacement.
var UpdateOperators = []string{"$set", "$unset", "$inc", "$push", "$pop", "$addToSet", "$pull", "$each"}

// IsOperatorUpdate reports whether the update contains at least one
// recognized operator key.
func IsOperatorUpdate(update bson.M) bool {
	for _, op := range UpdateOperators {
		if _, ok := update[op]; ok {
			return true
		}
	}
	return false
}

// UpdateOptions controls how many documents an update touches.
type UpdateOptions struct {
	// Multi updates every matching document instead of the first one.
	Multi bool `json:"multi,omitempty"`

	// Upsert inserts a new document when nothing matches.
	Upsert bool `json:"upsert,omitempty"`
}

// RemoveOptions controls how many documents a remove touches.
type RemoveOptions struct {
	// Multi removes every matching document instead of the first one.
	Multi bool `json:"multi,omitempty"`
}

// IndexSpec describes a single-field index.
type IndexSpec struct {
	Field  string `json:"field"`
	Sparse bool   `json:"sparse,omitempty"`
	Unique bool   `json:"unique,omitempty"`
}

// DiscriminatorAware is implemented by backends that read the
// discriminator field themselves, to fill a type column or derive identity
// prefixes. bridge.Bind hands them the field it binds with so the two
// never disagree.
type DiscriminatorAware interface {
	SetDiscriminator(field string)
}

// Store is the document persistence interface. Every method blocks until
// the backend completes; values and errors are returned unmodified.
type Store interface {
	// Insert persists a new document and returns it with its identity
	// assigned. A caller-provided _id is kept.
	Insert(ctx context.Context, doc bson.M) (bson.M, error)

	// FindOne returns the first document matching the query, or
	// ErrNoDocument.
	FindOne(ctx context.Context, query bson.M) (bson.M, error)

	// Find returns all documents matching the query in store order.
	Find(ctx context.Context, query bson.M) ([]bson.M, error)

	// Count returns the number of documents matching the query.
	Count(ctx context.Context, query bson.M) (int64, error)

	// Update applies update to matching documents and returns how many
	// were modified. Operator payloads are applied in place, any other
	// payload replaces the matched document (keeping its _id).
	Update(ctx context.Context, query, update bson.M, opts UpdateOptions) (int64, error)

	// Remove deletes matching documents and returns how many were removed.
	Remove(ctx context.Context, query bson.M, opts RemoveOptions) (int64, error)

	// EnsureIndex creates the index if it does not already exist.
	EnsureIndex(ctx context.Context, spec IndexSpec) error

	// Migrate prepares the backend's physical schema.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
