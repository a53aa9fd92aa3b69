package mantle

import (
	"log/slog"

	"github.com/xraph/mantle/bridge"
	"github.com/xraph/mantle/plugin"
	"github.com/xraph/mantle/store"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the document store. NewEngine binds it through
// bridge.Bind, which runs migrations and ensures the discriminator index.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithBridge sets an already bound store.
func WithBridge(b *bridge.Bridge) Option { return func(e *Engine) { e.bridge = b } }

// WithCache sets the document read cache.
func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithPlugin registers a plugin with the engine.
func WithPlugin(x plugin.Plugin) Option {
	return func(e *Engine) {
		if e.plugins == nil {
			e.plugins = plugin.NewRegistry(e.logger)
		}
		e.plugins.Register(x)
	}
}

// ──────────────────────────────────────────────────
// Update options
// ──────────────────────────────────────────────────

// UpdateOption adjusts a single Update or UpdateInstance call.
type UpdateOption func(*store.UpdateOptions)

// Multi applies the update to every matching document instead of the first.
func Multi() UpdateOption { return func(o *store.UpdateOptions) { o.Multi = true } }

// Upsert inserts a document when nothing matches.
func Upsert() UpdateOption { return func(o *store.UpdateOptions) { o.Upsert = true } }

func updateOptions(opts []UpdateOption) store.UpdateOptions {
	var o store.UpdateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
