package engine

import (
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Registry looks up named engines. The "memory" engine is always present.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

// NewRegistry creates a registry pre-populated with the "memory" engine.
func NewRegistry() *Registry {
	r := &Registry{engines: make(map[string]Engine)}
	r.engines["memory"] = NewMemory()
	return r
}

// Get looks up an engine by name.
func (r *Registry) Get(name string) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[name]
	return e, ok
}

// GetAll resolves every name, failing if any is unregistered.
func (r *Registry) GetAll(names []string) ([]Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Engine, 0, len(names))
	for _, n := range names {
		e, ok := r.engines[n]
		if !ok {
			return nil, fmt.Errorf("engine %q is not registered", n)
		}
		out = append(out, e)
	}
	return out, nil
}

// Names returns all engines currently registered, unordered.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.engines))
	for n := range r.engines {
		names = append(names, n)
	}
	return names
}

// UseRedis registers a Redis-style remote engine adapter under name,
// prefixing every key it touches with clientID for per-client isolation
// over a shared Redis database (spec.md §4.1).
func (r *Registry) UseRedis(name string, client *redis.Client, clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[name] = NewRemote(client, clientID)
}

// DefineEngine registers a user-supplied engine implementation under name.
func (r *Registry) DefineEngine(name string, e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[name] = e
}

