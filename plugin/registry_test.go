package plugin

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

// testPlugin implements Plugin + BeforeSave + AfterRemove + OperationFailed.
type testPlugin struct {
	beforeSaveCalled  bool
	afterRemoveCalled bool
	failedOps         []string
	beforeSaveErr     error
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnBeforeSave(_ context.Context, _ string, _ any) error {
	t.beforeSaveCalled = true
	return t.beforeSaveErr
}

func (t *testPlugin) OnAfterRemove(_ context.Context, _ string, _ any) error {
	t.afterRemoveCalled = true
	return nil
}

func (t *testPlugin) OnOperationFailed(_ context.Context, _, op string, _ error) error {
	t.failedOps = append(t.failedOps, op)
	return errors.New("ignored")
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

type orderPlugin struct {
	name string
	log  *[]string
}

func (o *orderPlugin) Name() string { return o.name }

func (o *orderPlugin) OnAfterSave(_ context.Context, _ string, _ any) error {
	*o.log = append(*o.log, o.name)
	return nil
}

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{}
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(reg.Plugins()))
	}

	if err := reg.EmitBeforeSave(ctx, "User", nil); err != nil {
		t.Fatal(err)
	}
	if !tp.beforeSaveCalled {
		t.Fatal("OnBeforeSave was not called")
	}

	if err := reg.EmitAfterRemove(ctx, "User", nil); err != nil {
		t.Fatal(err)
	}
	if !tp.afterRemoveCalled {
		t.Fatal("OnAfterRemove was not called")
	}

	// Notification hook errors are swallowed.
	reg.EmitOperationFailed(ctx, "User", "save", errors.New("boom"))
	if len(tp.failedOps) != 1 || tp.failedOps[0] != "save" {
		t.Fatalf("unexpected failed ops %v", tp.failedOps)
	}

	// Should not fail on hooks with no listeners.
	if err := reg.EmitAfterSave(ctx, "User", nil); err != nil {
		t.Fatal(err)
	}
	if err := reg.EmitBeforeUpdate(ctx, "User", nil); err != nil {
		t.Fatal(err)
	}
	reg.EmitShutdown(ctx)
}

func TestRegistryLifecycleErrorPropagates(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)

	boom := errors.New("boom")
	reg.Register(&testPlugin{beforeSaveErr: boom})

	err := reg.EmitBeforeSave(ctx, "User", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var herr *HookError
	if !errors.As(err, &herr) {
		t.Fatalf("expected *HookError, got %T", err)
	}
	if herr.Plugin != "test-plugin" || herr.Hook != "OnBeforeSave" {
		t.Fatalf("unexpected hook error %+v", herr)
	}
}

func TestRegistryOrder(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	var log []string
	reg.Register(&orderPlugin{name: "first", log: &log})
	reg.Register(&orderPlugin{name: "second", log: &log})

	if err := reg.EmitAfterSave(ctx, "User", nil); err != nil {
		t.Fatal(err)
	}
	if len(log) != 2 || log[0] != "first" || log[1] != "second" {
		t.Fatalf("expected registration order, got %v", log)
	}
}
