package mantle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/mantle/bridge"
	"github.com/xraph/mantle/validation"
)

// Event names a lifecycle point listeners can attach to.
type Event string

const (
	PreSave    Event = "pre:save"
	PostSave   Event = "post:save"
	PreRemove  Event = "pre:remove"
	PostRemove Event = "post:remove"
	PreUpdate  Event = "pre:update"
	PostUpdate Event = "post:update"
)

type listener[T any] struct {
	name string
	fn   func(context.Context, T) error
}

type typeConfig[T any] struct {
	bridge       *bridge.Bridge
	validateTags bool
	listeners    map[Event][]listener[T]
}

// TypeOption configures a type at definition time.
type TypeOption[T any] func(*typeConfig[T])

// Hook registers a listener for event. Listeners of one event run in the
// order they were given. name identifies the listener in errors and logs.
func Hook[T any](event Event, name string, fn func(context.Context, T) error) TypeOption[T] {
	return func(c *typeConfig[T]) {
		c.listeners[event] = append(c.listeners[event], listener[T]{name: name, fn: fn})
	}
}

// WithTypeBridge binds the type to its own store instead of the engine's.
func WithTypeBridge[T any](b *bridge.Bridge) TypeOption[T] {
	return func(c *typeConfig[T]) { c.bridge = b }
}

// ValidateTags gives the type the validation capability using the
// struct's `validate` tags. Types implementing Validatable ignore it.
func ValidateTags[T any]() TypeOption[T] {
	return func(c *typeConfig[T]) { c.validateTags = true }
}

// Type is a mapped model type. U is the struct, T its pointer.
type Type[U any, T interface {
	*U
	Persistable
}] struct {
	name      string
	engine    *Engine
	bridge    *bridge.Bridge
	listeners map[Event][]listener[T]
	validate  func(context.Context, T) error
	logger    *slog.Logger
}

// Define registers a model type named name on e. The name is the
// discriminator value of every document the type writes.
func Define[U any, T interface {
	*U
	Persistable
}](e *Engine, name string, opts ...TypeOption[T]) (*Type[U, T], error) {
	if e == nil {
		return nil, errors.New("mantle: define: nil engine")
	}
	if name == "" {
		return nil, errors.New("mantle: define: empty type name")
	}
	cfg := &typeConfig[T]{listeners: make(map[Event][]listener[T])}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := e.register(name); err != nil {
		return nil, fmt.Errorf("mantle: define: %w", err)
	}

	t := &Type[U, T]{
		name:      name,
		engine:    e,
		bridge:    cfg.bridge,
		listeners: cfg.listeners,
		logger:    e.logger.With(slog.String("type", name)),
	}
	t.validate = validatorFor[U, T](name, cfg.validateTags)
	return t, nil
}

// MustDefine is like Define but panics on error.
func MustDefine[U any, T interface {
	*U
	Persistable
}](e *Engine, name string, opts ...TypeOption[T]) *Type[U, T] {
	t, err := Define[U, T](e, name, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// validatorFor picks the validation capability once. Without one,
// validation always succeeds.
func validatorFor[U any, T interface {
	*U
	Persistable
}](name string, tags bool) func(context.Context, T) error {
	if _, ok := any(T(new(U))).(Validatable); ok {
		return func(ctx context.Context, inst T) error {
			return validation.Wrap(name, any(inst).(Validatable).Validate(ctx))
		}
	}
	if tags {
		return func(ctx context.Context, inst T) error {
			return validation.Wrap(name, validation.Struct(ctx, inst))
		}
	}
	return func(context.Context, T) error { return nil }
}

// Name returns the type name.
func (t *Type[U, T]) Name() string { return t.name }

// Engine returns the engine the type was defined on.
func (t *Type[U, T]) Engine() *Engine { return t.engine }

// bound resolves the store the type operates on.
func (t *Type[U, T]) bound() (*bridge.Bridge, error) {
	if t.bridge != nil {
		return t.bridge, nil
	}
	if t.engine.bridge != nil {
		return t.engine.bridge, nil
	}
	return nil, &ConfigurationError{Type: t.name}
}
