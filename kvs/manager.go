// Package kvs implements the key-value record manager (spec.md §4.2): CRUD
// over key-value records, fanned out across pluggable storage engines with
// fastest-reader-wins semantics.
package kvs

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cachify/cachify/cerr"
	"github.com/cachify/cachify/config"
	"github.com/cachify/cachify/engine"
	"github.com/cachify/cachify/events"
	"github.com/cachify/cachify/internal/eviction"
	"github.com/cachify/cachify/internal/lock"
	"github.com/cachify/cachify/record"
)

// SetOptions configures a Set call.
type SetOptions struct {
	Scope   string
	StoreIn []string
	TTL     *record.TTL
	// Session, when non-nil, must already own the target record (acquired via
	// Session.Acquire); otherwise Set fails with SessionNotOwned.
	Session *lock.Session
}

// CallOptions configures a Read/Remove/Has call.
type CallOptions struct {
	Scope   string
	Session *lock.Session
}

// Manager is the KVS record manager. One Manager instance is owned by one
// Client; its critical sections serialize all record-map mutations, matching
// spec.md §5's "no shared-memory data race... every mutation goes through a
// manager-owned critical section."
type Manager struct {
	mu       sync.Mutex
	registry *engine.Registry
	cfg      config.ManagerConfig
	locks    *lock.Manager
	ttl      *eviction.TTLScheduler
	bus      *events.EventBus
	records  map[string]*record.KVS
}

// New creates a KVS manager backed by registry, configured by cfg, and
// publishing to bus.
func New(registry *engine.Registry, cfg config.ManagerConfig, bus *events.EventBus) *Manager {
	return &Manager{
		registry: registry,
		cfg:      cfg,
		locks:    lock.NewManager(),
		ttl:      eviction.NewTTLScheduler(),
		bus:      bus,
		records:  make(map[string]*record.KVS),
	}
}

func compositeKey(scope, key string) string {
	return scope + "\x00" + key
}

func normalizeScope(scope string) string {
	if scope == "" {
		return record.DefaultScope
	}
	return scope
}

func (m *Manager) defaultEngines() []string {
	if len(m.cfg.DefaultEngines) > 0 {
		return m.cfg.DefaultEngines
	}
	return []string{"memory"}
}

// CreateLockSession starts a new lock session over this manager's records.
func (m *Manager) CreateLockSession(opts lock.Options) *lock.Session {
	return m.locks.NewSession(opts)
}

// Set validates, builds, and fans value out to every engine in
// opts.StoreIn (or the manager's default engines). The write is successful
// only if every named engine accepts it; on any failure already-written
// engines are compensated with a best-effort Remove.
func (m *Manager) Set(ctx context.Context, key string, value any, opts SetOptions) error {
	if key == "" {
		return cerr.NewError(cerr.Validation, errors.New("kvs: key must not be empty"), nil)
	}
	scope := normalizeScope(opts.Scope)
	ck := compositeKey(scope, key)

	if err := m.checkMutate(ck, opts.Session); err != nil {
		return err
	}

	engineNames := opts.StoreIn
	if len(engineNames) == 0 {
		engineNames = m.defaultEngines()
	}
	targets, err := m.registry.GetAll(engineNames)
	if err != nil {
		return cerr.NewError(cerr.Validation, err, key)
	}

	now := time.Now()
	rec := &record.KVS{
		Base: record.Base{
			Key:            key,
			Scope:          scope,
			Flavor:         record.FlavorKVS,
			Engines:        append([]string(nil), engineNames...),
			CreatedAt:      now,
			LastAccessedAt: now,
			TTL:            ttlFor(opts.TTL, m.cfg.TTL),
		},
		Value: value,
	}
	if err := rec.Validate(); err != nil {
		return cerr.NewError(cerr.Validation, err, key)
	}

	if err := fanOutSet(ctx, targets, scope, key, value); err != nil {
		return cerr.NewError(cerr.EngineTransport, err, key)
	}

	m.mu.Lock()
	m.records[ck] = rec
	m.mu.Unlock()

	if rec.TTL != nil {
		m.armTTL(ck, scope, key, rec.TTL)
	} else {
		m.ttl.Cancel(ck)
	}

	m.bus.Publish(events.Event{Kind: events.EventUpdate, Flavor: string(record.FlavorKVS), Scope: scope, Key: key})
	return nil
}

// fanOutSet writes value to every target engine concurrently; on the first
// failure it compensates every engine that had already succeeded.
func fanOutSet(ctx context.Context, targets []engine.Engine, scope, key string, value any) error {
	done := make([]bool, len(targets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, eng := range targets {
		i, eng := i, eng
		g.Go(func() error {
			if err := eng.Set(gctx, string(record.FlavorKVS), scope, key, value); err != nil {
				return err
			}
			mu.Lock()
			done[i] = true
			mu.Unlock()
			return nil
		})
	}
	firstErr := g.Wait()
	if firstErr == nil {
		return nil
	}
	// Best-effort compensation; spec.md §9 "last writer wins", no strengthening.
	for i, ok := range done {
		if ok {
			_, _ = targets[i].Remove(context.Background(), string(record.FlavorKVS), scope, key)
		}
	}
	return firstErr
}

// Read fans reads out over every engine the record is known to reside on (or
// the manager's default set, if the record is untracked), decodes the first
// settled hit into target, and cancels the rest. It returns found=false,
// err=nil if every engine reports missing; it fails with EngineTransport if
// at least one reports a transport failure and none succeed.
func (m *Manager) Read(ctx context.Context, key string, target any, opts CallOptions) (bool, error) {
	scope := normalizeScope(opts.Scope)
	ck := compositeKey(scope, key)

	if err := m.locks.AwaitRead(ctx, ck, opts.Session); err != nil {
		return false, err
	}

	m.mu.Lock()
	rec, known := m.records[ck]
	m.mu.Unlock()

	engineNames := m.defaultEngines()
	if known {
		engineNames = rec.Engines
	}
	targets, err := m.registry.GetAll(engineNames)
	if err != nil {
		return false, cerr.NewError(cerr.Validation, err, key)
	}

	found, ferr := fanOutRead(ctx, targets, scope, key, target)
	if ferr != nil {
		return false, cerr.NewError(cerr.EngineTransport, ferr, key)
	}
	if found {
		m.mu.Lock()
		if rec, ok := m.records[ck]; ok {
			rec.Touch()
		}
		m.mu.Unlock()
		m.bus.Publish(events.Event{Kind: events.EventHit, Flavor: string(record.FlavorKVS), Scope: scope, Key: key})
		return true, nil
	}
	m.bus.Publish(events.Event{Kind: events.EventMiss, Flavor: string(record.FlavorKVS), Scope: scope, Key: key})
	return false, nil
}

// fanOutRead races a read across every target engine and decodes the first
// hit into target, using a private decode buffer per goroutine so concurrent
// engines never write target racily.
func fanOutRead(ctx context.Context, targets []engine.Engine, scope, key string, target any) (bool, error) {
	if len(targets) == 0 {
		return false, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var elemType reflect.Type
	if target != nil {
		rv := reflect.ValueOf(target)
		if rv.Kind() == reflect.Ptr && !rv.IsNil() {
			elemType = rv.Elem().Type()
		}
	}

	type result struct {
		found bool
		err   error
		value reflect.Value
	}
	resCh := make(chan result, len(targets))
	var g errgroup.Group
	for _, eng := range targets {
		eng := eng
		g.Go(func() error {
			var local any
			var localVal reflect.Value
			if elemType != nil {
				localVal = reflect.New(elemType)
				local = localVal.Interface()
			}
			found, err := eng.Read(ctx, string(record.FlavorKVS), scope, key, local)
			resCh <- result{found: found, err: err, value: localVal}
			return nil
		})
	}
	go func() {
		g.Wait()
		close(resCh)
	}()

	var transportErrs []error
	for r := range resCh {
		if r.err != nil {
			transportErrs = append(transportErrs, r.err)
			continue
		}
		if r.found {
			cancel()
			if elemType != nil {
				reflect.ValueOf(target).Elem().Set(r.value.Elem())
			}
			// Drain remaining results so their goroutines don't leak on resCh.
			go func() {
				for range resCh {
				}
			}()
			return true, nil
		}
	}
	if len(transportErrs) > 0 {
		return false, errors.Join(transportErrs...)
	}
	return false, nil
}

// Remove best-effort removes key across every engine it is known to reside
// on (or the manager's default set, if untracked); it returns true iff at
// least one engine reported the key existed.
func (m *Manager) Remove(ctx context.Context, key string, opts CallOptions) (bool, error) {
	scope := normalizeScope(opts.Scope)
	ck := compositeKey(scope, key)

	if err := m.checkMutate(ck, opts.Session); err != nil {
		return false, err
	}

	m.mu.Lock()
	rec, known := m.records[ck]
	m.mu.Unlock()

	engineNames := m.defaultEngines()
	if known {
		engineNames = rec.Engines
	}
	targets, err := m.registry.GetAll(engineNames)
	if err != nil {
		return false, cerr.NewError(cerr.Validation, err, key)
	}

	var existedAny bool
	var mu sync.Mutex
	var g errgroup.Group
	for _, eng := range targets {
		eng := eng
		g.Go(func() error {
			existed, _ := eng.Remove(ctx, string(record.FlavorKVS), scope, key)
			if existed {
				mu.Lock()
				existedAny = true
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	m.mu.Lock()
	delete(m.records, ck)
	m.mu.Unlock()
	m.ttl.Cancel(ck)

	if existedAny {
		m.bus.Publish(events.Event{Kind: events.EventRemove, Flavor: string(record.FlavorKVS), Scope: scope, Key: key})
	}
	return existedAny, nil
}

// Has reports whether key is a currently tracked record in scope.
func (m *Manager) Has(key string, opts CallOptions) bool {
	scope := normalizeScope(opts.Scope)
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[compositeKey(scope, key)]
	return ok
}

// Size returns the number of currently tracked records.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Clear removes every record in scope (or every record, if scope is empty)
// across every registered engine.
func (m *Manager) Clear(ctx context.Context, scope string) error {
	targets, err := m.registry.GetAll(m.registry.Names())
	if err != nil {
		return cerr.NewError(cerr.Validation, err, nil)
	}

	var mu sync.Mutex
	var joined error
	var g errgroup.Group
	for _, eng := range targets {
		eng := eng
		g.Go(func() error {
			if err := eng.Clear(ctx, scope, string(record.FlavorKVS)); err != nil {
				mu.Lock()
				joined = errors.Join(joined, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	m.mu.Lock()
	for ck, rec := range m.records {
		if scope == "" || rec.Scope == scope {
			delete(m.records, ck)
			m.ttl.Cancel(ck)
		}
	}
	m.mu.Unlock()

	if joined != nil {
		return cerr.NewError(cerr.EngineTransport, joined, scope)
	}
	m.bus.Publish(events.Event{Kind: events.EventRemove, Flavor: string(record.FlavorKVS), Scope: scope})
	return nil
}

// checkMutate enforces spec.md §4.7 contention semantics for a write issued
// through opts.Session (nil for a direct, non-session caller): a session
// must already own ck (acquired via Session.Acquire) to mutate it; a direct
// caller fails if any session currently holds ck.
func (m *Manager) checkMutate(ck string, session *lock.Session) error {
	if session != nil {
		if err := session.RequireOwn(ck); err != nil {
			return cerr.NewError(cerr.SessionNotOwned, err, ck)
		}
		return nil
	}
	if err := m.locks.CheckWrite(ck, nil); err != nil {
		return cerr.NewError(cerr.SessionLocked, err, ck)
	}
	return nil
}

// armTTL schedules ttl's expiry. KVS records only support "evict" semantics
// (spec.md §4.4 "keep" applies to files only): on fire the record is removed
// from every engine it resides on.
func (m *Manager) armTTL(ck, scope, key string, ttl *record.TTL) {
	m.ttl.Arm(ck, ttl.ValueMS, func() {
		m.mu.Lock()
		rec, ok := m.records[ck]
		m.mu.Unlock()
		if !ok {
			return
		}
		targets, err := m.registry.GetAll(rec.Engines)
		if err != nil {
			return
		}
		ctx := context.Background()
		for _, eng := range targets {
			_, _ = eng.Remove(ctx, string(record.FlavorKVS), scope, key)
		}
		m.mu.Lock()
		delete(m.records, ck)
		m.mu.Unlock()
		m.bus.Publish(events.Event{Kind: events.EventEvict, Flavor: string(record.FlavorKVS), Scope: scope, Key: key})
	})
}

// ExportAll returns a clone of every currently tracked record, used by the
// persistence pipeline to build a backup stream.
func (m *Manager) ExportAll() []record.KVS {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]record.KVS, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.Clone())
	}
	return out
}

// RestoreRecord inserts rec directly (bypassing lock-session and validation
// gates a live caller would go through) as part of a persistence restore.
// Engines are written to exactly as during a normal Set.
func (m *Manager) RestoreRecord(ctx context.Context, rec record.KVS) error {
	scope := normalizeScope(rec.Scope)
	ck := compositeKey(scope, rec.Key)

	engineNames := rec.Engines
	if len(engineNames) == 0 {
		engineNames = m.defaultEngines()
	}
	targets, err := m.registry.GetAll(engineNames)
	if err != nil {
		return cerr.NewError(cerr.Validation, err, rec.Key)
	}
	if err := fanOutSet(ctx, targets, scope, rec.Key, rec.Value); err != nil {
		return cerr.NewError(cerr.EngineTransport, err, rec.Key)
	}

	cp := rec
	cp.Scope = scope
	m.mu.Lock()
	m.records[ck] = &cp
	m.mu.Unlock()
	if cp.TTL != nil {
		m.armTTL(ck, scope, cp.Key, cp.TTL)
	}
	return nil
}

func ttlFor(explicit *record.TTL, cfg config.TTLConfig) *record.TTL {
	if explicit != nil {
		return explicit
	}
	if !cfg.Enabled {
		return nil
	}
	return &record.TTL{ValueMS: cfg.Value, Policy: record.TTLPolicy(cfg.Policy)}
}
