// Package validation checks model structs against their `validate` tags
// using go-playground/validator. Violations are reported per field, keyed
// by the field's stored (bson) name.
package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is matched by every *Error.
var ErrInvalid = errors.New("mantle: validation failed")

// Violation describes one failed constraint.
type Violation struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Error is returned when a struct fails validation.
type Error struct {
	Type       string      `json:"type,omitempty"`
	Violations []Violation `json:"violations"`

	// Cause is set when the failure came from a custom validator rather
	// than from struct tags.
	Cause error `json:"-"`
}

func (e *Error) Error() string {
	if len(e.Violations) == 0 {
		return ErrInvalid.Error()
	}
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	prefix := "mantle: validation failed"
	if e.Type != "" {
		prefix = fmt.Sprintf("mantle: %s: validation failed", e.Type)
	}
	return prefix + ": " + strings.Join(msgs, "; ")
}

func (e *Error) Is(target error) bool { return target == ErrInvalid }

func (e *Error) Unwrap() error { return e.Cause }

// Wrap converts an arbitrary validator failure into an *Error for typeName.
// Existing *Error values are tagged with the type and returned as is.
func Wrap(typeName string, err error) error {
	if err == nil {
		return nil
	}
	var verr *Error
	if errors.As(err, &verr) {
		if verr.Type == "" {
			verr.Type = typeName
		}
		return verr
	}
	return &Error{
		Type:       typeName,
		Violations: []Violation{{Tag: "custom", Message: err.Error()}},
		Cause:      err,
	}
}

// Field returns the violation for field, if any.
func (e *Error) Field(field string) (Violation, bool) {
	for _, v := range e.Violations {
		if v.Field == field {
			return v, true
		}
	}
	return Violation{}, false
}

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(bsonName)
	})
	return validate
}

// bsonName reports a field under the name it is stored with.
func bsonName(f reflect.StructField) string {
	tag := f.Tag.Get("bson")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// Struct validates v, which must be a struct or a pointer to one. It
// returns nil or an *Error.
func Struct(ctx context.Context, v any) error {
	err := instance().StructCtx(ctx, v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("mantle: validate: %w", err)
	}
	out := &Error{Violations: make([]Violation, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Violations = append(out.Violations, Violation{
			Field:   fieldPath(fe.Namespace()),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe),
		})
	}
	return out
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func message(fe validator.FieldError) string {
	field := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
