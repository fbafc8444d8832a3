package engine

import (
	"context"
	"testing"
)

func TestMemory_SetReadRemove(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "kvs", "global", "k", "hello"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var out string
	found, err := m.Read(ctx, "kvs", "global", "k", &out)
	if err != nil || !found {
		t.Fatalf("Read = %v, %v, %v, want hello true nil", out, found, err)
	}
	if out != "hello" {
		t.Errorf("out = %q, want hello", out)
	}

	existed, err := m.Remove(ctx, "kvs", "global", "k")
	if err != nil || !existed {
		t.Fatalf("Remove = %v, %v, want true nil", existed, err)
	}

	found, err = m.Read(ctx, "kvs", "global", "k", &out)
	if err != nil || found {
		t.Errorf("Read after Remove = %v, %v, want false nil", found, err)
	}
}

func TestMemory_ReadMissingNeverErrors(t *testing.T) {
	m := NewMemory()
	var out string
	found, err := m.Read(context.Background(), "kvs", "global", "nope", &out)
	if err != nil || found {
		t.Errorf("Read(missing) = %v, %v, want false nil", found, err)
	}
}

func TestMemory_ReadNilTargetJustChecksExistence(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Set(ctx, "kvs", "global", "k", 1)
	found, err := m.Read(ctx, "kvs", "global", "k", nil)
	if err != nil || !found {
		t.Errorf("Read(nil target) = %v, %v, want true nil", found, err)
	}
}

func TestMemory_ReadTypeMismatchIsInvalid(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Set(ctx, "kvs", "global", "k", "a string")

	var out int
	_, err := m.Read(ctx, "kvs", "global", "k", &out)
	if err == nil {
		t.Fatal("expected a type-mismatch error")
	}
	eerr, ok := err.(*Error)
	if !ok || eerr.Kind != KindInvalid {
		t.Errorf("err = %v, want KindInvalid", err)
	}
}

func TestMemory_ScopesAndFlavorsAreIsolated(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Set(ctx, "kvs", "scopeA", "k", "a")
	_ = m.Set(ctx, "kvs", "scopeB", "k", "b")
	_ = m.Set(ctx, "files", "scopeA", "k", "f")

	var out string
	_, _ = m.Read(ctx, "kvs", "scopeA", "k", &out)
	if out != "a" {
		t.Errorf("scopeA kvs = %q, want a", out)
	}
	_, _ = m.Read(ctx, "kvs", "scopeB", "k", &out)
	if out != "b" {
		t.Errorf("scopeB kvs = %q, want b", out)
	}
}

func TestMemory_ClearByScope(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Set(ctx, "kvs", "scopeA", "k1", "a")
	_ = m.Set(ctx, "kvs", "scopeB", "k2", "b")

	if err := m.Clear(ctx, "scopeA", ""); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	var out string
	found, _ := m.Read(ctx, "kvs", "scopeA", "k1", &out)
	if found {
		t.Error("scopeA record should have been cleared")
	}
	found, _ = m.Read(ctx, "kvs", "scopeB", "k2", &out)
	if !found {
		t.Error("scopeB record should survive a scopeA-only Clear")
	}
}

func TestMemory_ClearAll(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Set(ctx, "kvs", "a", "k", "v")
	_ = m.Set(ctx, "files", "b", "k", "v")
	if err := m.Clear(ctx, "", ""); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if m.store.Count() != 0 {
		t.Errorf("store.Count() = %d, want 0", m.store.Count())
	}
}
