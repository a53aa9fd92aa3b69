// Package extension provides a Forge extension entry point for mantle.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/mantle"
	"github.com/xraph/mantle/plugin"
	"github.com/xraph/mantle/plugin/audit"
	"github.com/xraph/mantle/plugin/metrics"
	"github.com/xraph/mantle/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "mantle"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Active-record document persistence with typed lifecycle hooks"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts mantle as a Forge extension.
type Extension struct {
	config     Config
	eng        *mantle.Engine
	store      store.Store
	logger     *slog.Logger
	registerer prometheus.Registerer
	engineOpts []mantle.Option
	plugins    []plugin.Plugin
}

// New creates a mantle Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying mantle engine.
func (e *Extension) Engine() *mantle.Engine { return e.eng }

// Register implements [forge.Extension]. It builds the engine, binding its
// store, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*mantle.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("mantle: register engine in container: %w", err)
	}
	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	// A store in the DI container wins over none; an explicit one wins over both.
	s := e.store
	if s == nil {
		if injected, err := forge.Inject[store.Store](fapp.Container()); err == nil {
			s = injected
		}
	}

	cfg := mantle.DefaultConfig()
	cfg.Discriminator = e.config.Discriminator
	if e.config.DisableMigrate {
		off := false
		cfg.AutoMigrate = &off
	}

	opts := make([]mantle.Option, 0, len(e.engineOpts)+len(e.plugins)+5)
	opts = append(opts, mantle.WithLogger(logger), mantle.WithConfig(cfg))
	if s != nil {
		opts = append(opts, mantle.WithStore(s))
	}
	opts = append(opts, e.engineOpts...)

	for _, x := range e.plugins {
		opts = append(opts, mantle.WithPlugin(x))
	}
	if e.config.Audit {
		opts = append(opts, mantle.WithPlugin(audit.New(logger)))
	}
	if e.registerer != nil && !e.config.DisableMetrics {
		m, err := metrics.New(e.registerer)
		if err != nil {
			return fmt.Errorf("mantle: register metrics: %w", err)
		}
		opts = append(opts, mantle.WithPlugin(m))
	}

	eng, err := mantle.NewEngine(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("mantle: create engine: %w", err)
	}
	e.eng = eng
	return nil
}

// Start verifies the bound store is reachable.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("mantle: extension not initialized")
	}
	return e.eng.Start(ctx)
}

// Stop notifies plugins and closes the store.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	if err := e.eng.Stop(ctx); err != nil {
		return err
	}
	return e.eng.Close()
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("mantle: extension not initialized")
	}
	b := e.eng.Bridge()
	if b == nil {
		return errors.New("mantle: no store configured")
	}
	return b.Ping(ctx)
}
