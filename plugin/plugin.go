// Package plugin defines the plugin system for mantle.
// Plugins are notified of document lifecycle events (instance saved,
// removed, updated) across every mapped type and can react: auditing,
// metrics, cache warming, etc.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about. Before* hooks run after a type's own
// pre-listeners and can abort the operation; After* hooks run after the
// type's own post-listeners, once the mutation is committed.
//
// The instance parameter is the model pointer (for example *app.User),
// passed as any so plugins work across types.
package plugin

import "context"

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Save lifecycle hooks
// ──────────────────────────────────────────────────

// BeforeSave is called before an instance is inserted.
type BeforeSave interface {
	OnBeforeSave(ctx context.Context, typeName string, instance any) error
}

// AfterSave is called after an instance is inserted.
type AfterSave interface {
	OnAfterSave(ctx context.Context, typeName string, instance any) error
}

// ──────────────────────────────────────────────────
// Remove lifecycle hooks
// ──────────────────────────────────────────────────

// BeforeRemove is called before an instance is removed.
type BeforeRemove interface {
	OnBeforeRemove(ctx context.Context, typeName string, instance any) error
}

// AfterRemove is called after an instance is removed, before its fields
// are cleared.
type AfterRemove interface {
	OnAfterRemove(ctx context.Context, typeName string, instance any) error
}

// ──────────────────────────────────────────────────
// Update lifecycle hooks
// ──────────────────────────────────────────────────

// BeforeUpdate is called before an instance-level update is issued.
type BeforeUpdate interface {
	OnBeforeUpdate(ctx context.Context, typeName string, instance any) error
}

// AfterUpdate is called with the refreshed instance after an
// instance-level update.
type AfterUpdate interface {
	OnAfterUpdate(ctx context.Context, typeName string, instance any) error
}

// ──────────────────────────────────────────────────
// Failure and shutdown hooks
// ──────────────────────────────────────────────────

// OperationFailed is called when a mapped operation returns an error.
// op is one of "save", "remove", "update", "get", "find", "count".
type OperationFailed interface {
	OnOperationFailed(ctx context.Context, typeName, op string, err error) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
