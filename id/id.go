// Package id defines the TypeID-based identities that mantle stores assign
// to documents.
//
// Identities are K-sortable (UUIDv7-based), globally unique, and URL-safe
// in the format "prefix_suffix". The prefix is derived from the owning
// model type's name when it forms a valid TypeID prefix, and falls back to
// "doc" otherwise. Callers must treat identities as opaque strings.
package id

import (
	"fmt"
	"strings"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the kind of document encoded in a TypeID.
type Prefix string

// PrefixDocument is the fallback prefix for documents whose type name does
// not form a valid TypeID prefix.
const PrefixDocument Prefix = "doc"

// maxPrefixLen is the TypeID limit on prefix length.
const maxPrefixLen = 63

// ID wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// NewDocumentID generates a new identity for a document owned by the named
// model type. An empty or unusable type name yields a "doc" prefix.
func NewDocumentID(typeName string) ID {
	return New(PrefixFor(typeName))
}

// PrefixFor maps a model type name onto a TypeID prefix: lowercase ASCII
// letters and underscores, starting and ending with a letter.
func PrefixFor(typeName string) Prefix {
	var b strings.Builder
	for _, r := range strings.ToLower(typeName) {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == ' ':
			b.WriteByte('_')
		}
	}
	p := strings.Trim(b.String(), "_")
	if p == "" || len(p) > maxPrefixLen {
		return PrefixDocument
	}
	return Prefix(p)
}

// Parse parses a TypeID string (e.g., "user_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}
