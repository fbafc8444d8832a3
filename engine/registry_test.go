package engine

import "testing"

func TestRegistry_MemoryEngineAlwaysPresent(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("memory"); !ok {
		t.Fatal("memory engine should be registered by default")
	}
}

func TestRegistry_GetAllFailsOnUnknownName(t *testing.T) {
	r := NewRegistry()
	if _, err := r.GetAll([]string{"memory", "nope"}); err == nil {
		t.Error("expected an error for an unregistered engine name")
	}
}

func TestRegistry_DefineEngine(t *testing.T) {
	r := NewRegistry()
	r.DefineEngine("custom", &CallbackEngine{})
	if _, ok := r.Get("custom"); !ok {
		t.Fatal("custom engine should be retrievable after DefineEngine")
	}
	names := r.Names()
	found := false
	for _, n := range names {
		if n == "custom" {
			found = true
		}
	}
	if !found {
		t.Errorf("Names() = %v, want it to include custom", names)
	}
}
