package mantle

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/mantle/validation"
)

var (
	// ErrNotConfigured is returned when a type has no store bound.
	ErrNotConfigured = errors.New("mantle: no store bound")

	// ErrNotFound is returned when a single-result lookup matches nothing.
	ErrNotFound = errors.New("mantle: document not found")

	// ErrValidation is returned when an instance fails validation.
	ErrValidation = validation.ErrInvalid

	// ErrHook is returned when a lifecycle listener fails.
	ErrHook = errors.New("mantle: lifecycle hook failed")

	// ErrImmutableField is returned when an update tries to change the
	// identity or the discriminator.
	ErrImmutableField = errors.New("mantle: immutable field")

	// ErrUnsaved is returned when an instance operation needs an identity
	// the instance does not have yet.
	ErrUnsaved = errors.New("mantle: instance has not been saved")

	// ErrTypeRegistered is returned when a type name is defined twice on one engine.
	ErrTypeRegistered = errors.New("mantle: type already registered")
)

// ConfigurationError names the type that was used without a bound store.
type ConfigurationError struct {
	Type string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("mantle: type %q has no store bound", e.Type)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrNotConfigured }

// NotFoundError is returned by Get, FindOne and Reload when no document
// matches. ID is set for identity lookups, Query otherwise.
type NotFoundError struct {
	Type  string
	ID    string
	Query bson.M
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("mantle: %s %s: not found", e.Type, e.ID)
	}
	return fmt.Sprintf("mantle: %s: no document matches %v", e.Type, e.Query)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError carries per-field violation detail.
type ValidationError = validation.Error

// Stage identifies which side of the mutation a hook ran on.
type Stage string

const (
	StagePre  Stage = "pre"
	StagePost Stage = "post"
)

// HookError is returned when a lifecycle listener fails. A failure in the
// pre stage means nothing was written; a failure in the post stage means
// the mutation was committed and is not rolled back. Committed reports
// which case applies.
type HookError struct {
	Type     string
	Event    Event
	Stage    Stage
	Listener string
	Cause    error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("mantle: %s: %s listener %q: %v", e.Type, e.Event, e.Listener, e.Cause)
}

func (e *HookError) Unwrap() error { return e.Cause }

func (e *HookError) Is(target error) bool { return target == ErrHook }

// Committed reports whether the store mutation had already been applied
// when the listener failed.
func (e *HookError) Committed() bool { return e.Stage == StagePost }

// CommittedError is returned when a mutation was written but a step after
// the write failed, such as reloading the instance or validating it again.
// The write is not rolled back.
type CommittedError struct {
	Type  string
	Op    string
	Cause error
}

func (e *CommittedError) Error() string {
	return fmt.Sprintf("mantle: %s: %s committed: %v", e.Type, e.Op, e.Cause)
}

func (e *CommittedError) Unwrap() error { return e.Cause }

// Committed always reports true.
func (e *CommittedError) Committed() bool { return true }

// ImmutableFieldError is returned before any store call when an update
// would change an instance's identity or the discriminator that records
// its type.
type ImmutableFieldError struct {
	Type  string
	Field string
}

func (e *ImmutableFieldError) Error() string {
	return fmt.Sprintf("mantle: %s: field %q is immutable", e.Type, e.Field)
}

func (e *ImmutableFieldError) Is(target error) bool { return target == ErrImmutableField }
