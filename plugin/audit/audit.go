// Package audit writes one structured log record per committed mutation.
package audit

import (
	"context"
	"log/slog"

	"github.com/xraph/mantle/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin          = (*Plugin)(nil)
	_ plugin.AfterSave       = (*Plugin)(nil)
	_ plugin.AfterRemove     = (*Plugin)(nil)
	_ plugin.AfterUpdate     = (*Plugin)(nil)
	_ plugin.OperationFailed = (*Plugin)(nil)
)

// Plugin logs saves, removes, instance updates and failures.
type Plugin struct {
	logger *slog.Logger
	level  slog.Level
}

// Option configures the audit plugin.
type Option func(*Plugin)

// WithLevel sets the level of mutation records. Failures always log at
// warn.
func WithLevel(l slog.Level) Option { return func(p *Plugin) { p.level = l } }

// New creates an audit plugin writing to logger, or slog.Default if nil.
func New(logger *slog.Logger, opts ...Option) *Plugin {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Plugin{logger: logger, level: slog.LevelInfo}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Name() string { return "audit" }

func (p *Plugin) OnAfterSave(ctx context.Context, typeName string, instance any) error {
	p.record(ctx, "save", typeName, instance)
	return nil
}

func (p *Plugin) OnAfterRemove(ctx context.Context, typeName string, instance any) error {
	p.record(ctx, "remove", typeName, instance)
	return nil
}

func (p *Plugin) OnAfterUpdate(ctx context.Context, typeName string, instance any) error {
	p.record(ctx, "update", typeName, instance)
	return nil
}

func (p *Plugin) OnOperationFailed(ctx context.Context, typeName, op string, err error) error {
	p.logger.WarnContext(ctx, "mantle audit: operation failed",
		slog.String("type", typeName),
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return nil
}

func (p *Plugin) record(ctx context.Context, op, typeName string, instance any) {
	attrs := []slog.Attr{
		slog.String("type", typeName),
		slog.String("op", op),
	}
	if id, ok := instance.(interface{ Identity() string }); ok {
		attrs = append(attrs, slog.String("id", id.Identity()))
	}
	p.logger.LogAttrs(ctx, p.level, "mantle audit", attrs...)
}
