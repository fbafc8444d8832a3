package engine

import (
	"context"
	"reflect"
	"strings"
	"sync"

	"github.com/cachify/cachify/internal/mru"
)

// Memory is the process-local engine: a map (flavor, scope, key) -> value.
// It is generalized from the teacher's recency-evicting Cache[TK,TV]
// (cache/cache.go) into a plain record store — no engine-level eviction;
// capacity bounds and recency are the eviction subsystem's responsibility,
// driven from the manager layer via Remove, not from here. maxCapacity <= 0
// therefore means the backing mru.Cache never evicts on its own.
type Memory struct {
	mu    sync.Mutex
	store *mru.Cache[string, any]
}

// NewMemory creates an unbounded memory engine.
func NewMemory() *Memory {
	return &Memory{store: mru.NewCache[string, any](0)}
}

func memKey(flavor, scope, key string) string {
	return flavor + "\x00" + scope + "\x00" + key
}

func (m *Memory) Set(ctx context.Context, flavor, scope, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store.Set(memKey(flavor, scope, key), value)
	return nil
}

func (m *Memory) Read(ctx context.Context, flavor, scope, key string, target any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store.Get(memKey(flavor, scope, key))
	if !ok {
		return false, nil
	}
	if target == nil {
		return true, nil
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return false, NewError(KindInvalid, errNotImplemented("Read: target must be a non-nil pointer"))
	}
	elem := rv.Elem()
	vv := reflect.ValueOf(v)
	if elem.Kind() != reflect.Interface && vv.IsValid() && !vv.Type().AssignableTo(elem.Type()) {
		return false, NewError(KindInvalid, errNotImplemented("Read: target type mismatch"))
	}
	elem.Set(vv)
	return true, nil
}

func (m *Memory) Remove(ctx context.Context, flavor, scope, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Delete(memKey(flavor, scope, key)), nil
}

func (m *Memory) Clear(ctx context.Context, scope, flavor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if scope == "" && flavor == "" {
		m.store.Clear()
		return nil
	}
	for _, k := range m.store.Keys() {
		parts := strings.SplitN(k, "\x00", 3)
		if len(parts) != 3 {
			continue
		}
		if flavor != "" && parts[0] != flavor {
			continue
		}
		if scope != "" && parts[1] != scope {
			continue
		}
		m.store.Delete(k)
	}
	return nil
}
