package engine

import (
	"context"
	"testing"
)

func TestCallbackEngine_DelegatesToFuncs(t *testing.T) {
	var setCalled, readCalled, removeCalled, clearCalled bool
	ce := &CallbackEngine{
		SetFunc:    func(ctx context.Context, flavor, scope, key string, value any) error { setCalled = true; return nil },
		ReadFunc:   func(ctx context.Context, flavor, scope, key string, target any) (bool, error) { readCalled = true; return true, nil },
		RemoveFunc: func(ctx context.Context, flavor, scope, key string) (bool, error) { removeCalled = true; return true, nil },
		ClearFunc:  func(ctx context.Context, scope, flavor string) error { clearCalled = true; return nil },
	}
	ctx := context.Background()
	_ = ce.Set(ctx, "kvs", "s", "k", "v")
	_, _ = ce.Read(ctx, "kvs", "s", "k", nil)
	_, _ = ce.Remove(ctx, "kvs", "s", "k")
	_ = ce.Clear(ctx, "s", "kvs")

	if !setCalled || !readCalled || !removeCalled || !clearCalled {
		t.Errorf("not every callback was invoked: set=%v read=%v remove=%v clear=%v",
			setCalled, readCalled, removeCalled, clearCalled)
	}
}

func TestCallbackEngine_NilFuncsReturnKindInvalid(t *testing.T) {
	ce := &CallbackEngine{}
	ctx := context.Background()

	if err := ce.Set(ctx, "kvs", "s", "k", "v"); err == nil {
		t.Error("expected error for nil SetFunc")
	}
	if _, err := ce.Read(ctx, "kvs", "s", "k", nil); err == nil {
		t.Error("expected error for nil ReadFunc")
	}
	if _, err := ce.Remove(ctx, "kvs", "s", "k"); err == nil {
		t.Error("expected error for nil RemoveFunc")
	}
	if err := ce.Clear(ctx, "s", "kvs"); err == nil {
		t.Error("expected error for nil ClearFunc")
	}
}
