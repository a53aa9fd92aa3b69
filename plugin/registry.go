package plugin

import (
	"context"
	"fmt"
	"log/slog"
)

// Named entry types pair a hook with the plugin name for logging.

type beforeSaveEntry struct {
	name string
	hook BeforeSave
}
type afterSaveEntry struct {
	name string
	hook AfterSave
}
type beforeRemoveEntry struct {
	name string
	hook BeforeRemove
}
type afterRemoveEntry struct {
	name string
	hook AfterRemove
}
type beforeUpdateEntry struct {
	name string
	hook BeforeUpdate
}
type afterUpdateEntry struct {
	name string
	hook AfterUpdate
}
type operationFailedEntry struct {
	name string
	hook OperationFailed
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// HookError reports which plugin hook failed.
type HookError struct {
	Plugin string
	Hook   string
	Err    error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("plugin %s: %s: %v", e.Plugin, e.Hook, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	beforeSave      []beforeSaveEntry
	afterSave       []afterSaveEntry
	beforeRemove    []beforeRemoveEntry
	afterRemove     []afterRemoveEntry
	beforeUpdate    []beforeUpdateEntry
	afterUpdate     []afterUpdateEntry
	operationFailed []operationFailedEntry
	shutdown        []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(BeforeSave); ok {
		r.beforeSave = append(r.beforeSave, beforeSaveEntry{name, h})
	}
	if h, ok := p.(AfterSave); ok {
		r.afterSave = append(r.afterSave, afterSaveEntry{name, h})
	}
	if h, ok := p.(BeforeRemove); ok {
		r.beforeRemove = append(r.beforeRemove, beforeRemoveEntry{name, h})
	}
	if h, ok := p.(AfterRemove); ok {
		r.afterRemove = append(r.afterRemove, afterRemoveEntry{name, h})
	}
	if h, ok := p.(BeforeUpdate); ok {
		r.beforeUpdate = append(r.beforeUpdate, beforeUpdateEntry{name, h})
	}
	if h, ok := p.(AfterUpdate); ok {
		r.afterUpdate = append(r.afterUpdate, afterUpdateEntry{name, h})
	}
	if h, ok := p.(OperationFailed); ok {
		r.operationFailed = append(r.operationFailed, operationFailedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// ──────────────────────────────────────────────────
// Lifecycle emitters
//
// Lifecycle hooks run in registration order and stop at the first
// failure, which is logged and returned as a *HookError.
// ──────────────────────────────────────────────────

// EmitBeforeSave notifies all plugins that implement BeforeSave.
func (r *Registry) EmitBeforeSave(ctx context.Context, typeName string, instance any) error {
	for _, e := range r.beforeSave {
		if err := e.hook.OnBeforeSave(ctx, typeName, instance); err != nil {
			return r.hookFailure("OnBeforeSave", e.name, err)
		}
	}
	return nil
}

// EmitAfterSave notifies all plugins that implement AfterSave.
func (r *Registry) EmitAfterSave(ctx context.Context, typeName string, instance any) error {
	for _, e := range r.afterSave {
		if err := e.hook.OnAfterSave(ctx, typeName, instance); err != nil {
			return r.hookFailure("OnAfterSave", e.name, err)
		}
	}
	return nil
}

// EmitBeforeRemove notifies all plugins that implement BeforeRemove.
func (r *Registry) EmitBeforeRemove(ctx context.Context, typeName string, instance any) error {
	for _, e := range r.beforeRemove {
		if err := e.hook.OnBeforeRemove(ctx, typeName, instance); err != nil {
			return r.hookFailure("OnBeforeRemove", e.name, err)
		}
	}
	return nil
}

// EmitAfterRemove notifies all plugins that implement AfterRemove.
func (r *Registry) EmitAfterRemove(ctx context.Context, typeName string, instance any) error {
	for _, e := range r.afterRemove {
		if err := e.hook.OnAfterRemove(ctx, typeName, instance); err != nil {
			return r.hookFailure("OnAfterRemove", e.name, err)
		}
	}
	return nil
}

// EmitBeforeUpdate notifies all plugins that implement BeforeUpdate.
func (r *Registry) EmitBeforeUpdate(ctx context.Context, typeName string, instance any) error {
	for _, e := range r.beforeUpdate {
		if err := e.hook.OnBeforeUpdate(ctx, typeName, instance); err != nil {
			return r.hookFailure("OnBeforeUpdate", e.name, err)
		}
	}
	return nil
}

// EmitAfterUpdate notifies all plugins that implement AfterUpdate.
func (r *Registry) EmitAfterUpdate(ctx context.Context, typeName string, instance any) error {
	for _, e := range r.afterUpdate {
		if err := e.hook.OnAfterUpdate(ctx, typeName, instance); err != nil {
			return r.hookFailure("OnAfterUpdate", e.name, err)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Notification emitters
// ──────────────────────────────────────────────────

// EmitOperationFailed notifies all plugins that implement OperationFailed.
// Errors from these hooks are logged and never propagated.
func (r *Registry) EmitOperationFailed(ctx context.Context, typeName, op string, opErr error) {
	for _, e := range r.operationFailed {
		if err := e.hook.OnOperationFailed(ctx, typeName, op, opErr); err != nil {
			r.logHookError("OnOperationFailed", e.name, err)
		}
	}
}

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

func (r *Registry) hookFailure(hook, pluginName string, err error) error {
	r.logHookError(hook, pluginName, err)
	return &HookError{Plugin: pluginName, Hook: hook, Err: err}
}

// logHookError logs a warning when a lifecycle hook returns an error.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
