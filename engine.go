// Package mantle is an active-record style persistence layer. Model
// structs of many types share one document collection; each document
// carries a hidden discriminator naming its type.
//
// A type is defined once against an Engine:
//
//	users, err := mantle.Define[User](eng, "User",
//		mantle.Hook(mantle.PreSave, "stamp", func(ctx context.Context, u *User) error {
//			u.Updated = time.Now()
//			return nil
//		}),
//	)
//
// and then provides Save, Get, Find, FindOne, Count, Update,
// UpdateInstance, Reload and Remove.
package mantle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/xraph/mantle/bridge"
	"github.com/xraph/mantle/plugin"
	"github.com/xraph/mantle/store"
)

// Engine owns the bound store, the plugin registry and the set of defined
// types. It is safe for concurrent use once constructed.
type Engine struct {
	store   store.Store
	bridge  *bridge.Bridge
	cache   Cache
	plugins *plugin.Registry
	logger  *slog.Logger
	config  Config

	mu    sync.RWMutex
	types map[string]struct{}
}

// NewEngine creates a new mantle engine with the given options. When a
// store is given it is bound here; an engine without a store is valid,
// but every operation on its types fails with a ConfigurationError until
// a type is given its own bridge.
func NewEngine(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
		types:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.bridge == nil && e.store != nil {
		bindOpts := []bridge.Option{
			bridge.WithLogger(e.logger),
			bridge.WithDiscriminator(e.config.discriminator()),
		}
		if !e.config.autoMigrate() {
			bindOpts = append(bindOpts, bridge.WithoutMigrate())
		}
		b, err := bridge.Bind(ctx, e.store, bindOpts...)
		if err != nil {
			return nil, fmt.Errorf("mantle: bind store: %w", err)
		}
		e.bridge = b
	}
	if e.bridge != nil {
		e.store = e.bridge.Store()
	}
	return e, nil
}

// Bridge returns the bound store handle (may be nil).
func (e *Engine) Bridge() *bridge.Bridge { return e.bridge }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Types returns the names of all defined types, sorted.
func (e *Engine) Types() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.types))
	for n := range e.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Start verifies the bound store is reachable.
func (e *Engine) Start(ctx context.Context) error {
	if e.bridge == nil {
		return nil
	}
	if err := e.bridge.Ping(ctx); err != nil {
		return fmt.Errorf("mantle: start: %w", err)
	}
	return nil
}

// Stop notifies plugins of shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// Close closes the bound store.
func (e *Engine) Close() error {
	if e.bridge == nil {
		return nil
	}
	return e.bridge.Close()
}

func (e *Engine) register(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.types[name]; ok {
		return fmt.Errorf("%w: %s", ErrTypeRegistered, name)
	}
	e.types[name] = struct{}{}
	return nil
}

func (e *Engine) operationFailed(ctx context.Context, typeName, op string, err error) {
	if e.plugins != nil && err != nil {
		e.plugins.EmitOperationFailed(ctx, typeName, op, err)
	}
}
