package mantle

import "context"

// Model is embedded in every mapped struct. Inline it so the identity is
// stored at the top level of the document:
//
//	type User struct {
//		mantle.Model `bson:",inline"`
//		Name string `bson:"name"`
//	}
type Model struct {
	// ID is empty until the instance is saved, then immutable.
	ID string `bson:"id,omitempty" json:"id,omitempty"`
}

// Identity returns the instance identity, or "" if unsaved.
func (m *Model) Identity() string { return m.ID }

// SetIdentity is called by mantle when the store assigns an identity.
func (m *Model) SetIdentity(id string) { m.ID = id }

// Persistable is implemented by pointers to structs embedding Model.
type Persistable interface {
	Identity() string
	SetIdentity(id string)
}

// Validatable is implemented by models that check their own attributes.
// Return a *ValidationError for per-field detail; any other error is
// wrapped into one.
type Validatable interface {
	Validate(ctx context.Context) error
}
