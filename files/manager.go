// Package files implements the file cache manager (spec.md §4.3): the same
// multi-engine record surface as kvs.Manager, plus a size-bounded content
// store, preload scheduling, and disk revalidation hooks consumed by the
// file lifecycle tracker (spec.md §4.5).
package files

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cachify/cachify/cerr"
	"github.com/cachify/cachify/config"
	"github.com/cachify/cachify/engine"
	"github.com/cachify/cachify/events"
	"github.com/cachify/cachify/internal/eviction"
	"github.com/cachify/cachify/internal/lock"
	"github.com/cachify/cachify/internal/queue"
	"github.com/cachify/cachify/lifecycle"
	"github.com/cachify/cachify/record"
)

// SetOptions configures a Set call.
type SetOptions struct {
	Scope   string
	StoreIn []string
	TTL     *record.TTL
	// Preload, when true, schedules a warmup-priority content load via the
	// task queue instead of leaving the first Read to load it lazily.
	Preload bool
	Session *lock.Session
}

// CallOptions configures a Read/Remove/Has/Inspect call.
type CallOptions struct {
	Scope   string
	Session *lock.Session
}

// ReadResult is the outcome of Read: Status is "hit" when content was
// already resident, "miss" when it was loaded from disk during this call.
type ReadResult struct {
	Content []byte
	Status  string
}

// Manager is the File cache manager.
type Manager struct {
	mu       sync.Mutex
	registry *engine.Registry
	cfg      config.ManagerConfig
	locks    *lock.Manager
	ttl      *eviction.TTLScheduler
	content  *eviction.ContentStore
	bus      *events.EventBus
	queue    *queue.Queue
	records  map[string]*record.File
	watcher  lifecycle.Watcher
}

// New creates a Files manager backed by registry, configured by cfg,
// publishing to bus, and scheduling preload tasks on q.
func New(registry *engine.Registry, cfg config.ManagerConfig, bus *events.EventBus, q *queue.Queue) *Manager {
	m := &Manager{
		registry: registry,
		cfg:      cfg,
		locks:    lock.NewManager(),
		ttl:      eviction.NewTTLScheduler(),
		content:  eviction.NewContentStore(cfg.MaxFileSize, cfg.MaxTotalSize),
		bus:      bus,
		queue:    q,
		records:  make(map[string]*record.File),
	}
	m.content.OnEvict = m.onContentEvict
	return m
}

// SetWatcher attaches the filesystem watcher every cached path is registered
// with on Set, and whose events the lifecycle tracker reflects back via
// OnWatchUpdate/OnWatchDelete/OnWatchRename. Nil (the default) leaves newly
// cached files untracked.
func (m *Manager) SetWatcher(w lifecycle.Watcher) {
	m.mu.Lock()
	m.watcher = w
	m.mu.Unlock()
}

func (m *Manager) watch(path string) {
	m.mu.Lock()
	w := m.watcher
	m.mu.Unlock()
	if w == nil {
		return
	}
	if err := w.Add(path); err != nil {
		slog.Warn("cachify: failed to watch cached file", "path", path, "error", err)
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

// keyFromPath derives the spec.md §4.3 file identity: key = base64(canonical
// absolute path).
func keyFromPath(path string) (canonical, key string, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", err
	}
	canonical = filepath.Clean(abs)
	key = base64.StdEncoding.EncodeToString([]byte(canonical))
	return canonical, key, nil
}

// resolveKey accepts either a filesystem path or an already-derived key,
// per spec.md §4.3 "key and filePath are interchangeable inputs": if a
// record is tracked directly under input, it is a key; otherwise it is
// treated as a path and converted.
func (m *Manager) resolveKey(scope, input string) string {
	m.mu.Lock()
	_, ok := m.records[compositeKey(scope, input)]
	m.mu.Unlock()
	if ok {
		return input
	}
	if _, key, err := keyFromPath(input); err == nil {
		return key
	}
	return input
}

// CreateLockSession starts a new lock session over this manager's records.
func (m *Manager) CreateLockSession(opts lock.Options) *lock.Session {
	return m.locks.NewSession(opts)
}

// Set stats path, builds a File record from its metadata, and fans the
// record out to every engine in opts.StoreIn (or the manager's default
// engines). File content is not written here; it is loaded on first Read,
// or immediately scheduled if opts.Preload is set.
func (m *Manager) Set(ctx context.Context, path string, opts SetOptions) error {
	canonical, key, err := keyFromPath(path)
	if err != nil {
		return cerr.NewError(cerr.Validation, err, path)
	}
	scope := normalizeScope(opts.Scope)
	ck := compositeKey(scope, key)

	if err := m.checkMutate(ck, opts.Session); err != nil {
		return err
	}

	stat, err := os.Stat(canonical)
	if err != nil {
		return cerr.NewError(cerr.Validation, err, path)
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
	rec := &record.File{
		Base: record.Base{
			Key:            key,
			Scope:          scope,
			Flavor:         record.FlavorFiles,
			Engines:        append([]string(nil), engineNames...),
			CreatedAt:      now,
			LastAccessedAt: now,
			TTL:            ttlFor(opts.TTL, m.cfg.TTL),
			Size:           stat.Size(),
		},
		Path:       canonical,
		Name:       filepath.Base(canonical),
		MTime:      stat.ModTime(),
		SizeOnDisk: stat.Size(),
		ContentRef: record.ContentRef(ck),
	}
	if err := rec.Base.Validate(); err != nil {
		return cerr.NewError(cerr.Validation, err, key)
	}

	if err := fanOutSet(ctx, targets, scope, key, rec); err != nil {
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

	if opts.Preload {
		m.schedulePreload(ck, scope, key, canonical)
	}

	m.watch(canonical)

	m.bus.Publish(events.Event{Kind: events.EventUpdate, Flavor: string(record.FlavorFiles), Scope: scope, Key: key})
	return nil
}

func fanOutSet(ctx context.Context, targets []engine.Engine, scope, key string, rec *record.File) error {
	done := make([]bool, len(targets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, eng := range targets {
		i, eng := i, eng
		g.Go(func() error {
			if err := eng.Set(gctx, string(record.FlavorFiles), scope, key, *rec); err != nil {
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
	for i, ok := range done {
		if ok {
			_, _ = targets[i].Remove(context.Background(), string(record.FlavorFiles), scope, key)
		}
	}
	return firstErr
}

func (m *Manager) schedulePreload(ck, scope, key, path string) {
	taskID := fmt.Sprintf("files-preload:%s", ck)
	_ = m.queue.Enqueue(&queue.Task{
		ID:       taskID,
		Type:     "files-preload",
		Priority: queue.PriorityWarmup,
		Action: func(ctx context.Context) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			m.mu.Lock()
			rec, ok := m.records[ck]
			m.mu.Unlock()
			if !ok {
				return nil
			}
			admitted := m.content.Admit(string(rec.ContentRef), data)
			m.mu.Lock()
			rec.IsCached = admitted
			m.mu.Unlock()
			m.bus.Publish(events.Event{Kind: events.EventUpdate, Flavor: string(record.FlavorFiles), Scope: scope, Key: key})
			return nil
		},
	})
}

// Read locates the record for keyOrPath, returning it from the content
// store on a hit or loading it from disk (and attempting admission) on a
// miss. It returns found=false if no record is tracked.
func (m *Manager) Read(ctx context.Context, keyOrPath string, opts CallOptions) (ReadResult, bool, error) {
	scope := normalizeScope(opts.Scope)
	key := m.resolveKey(scope, keyOrPath)
	ck := compositeKey(scope, key)

	if err := m.locks.AwaitRead(ctx, ck, opts.Session); err != nil {
		return ReadResult{}, false, err
	}

	m.mu.Lock()
	rec, ok := m.records[ck]
	m.mu.Unlock()
	if !ok {
		return ReadResult{}, false, nil
	}

	if rec.IsCached {
		if data, hit := m.content.Get(string(rec.ContentRef)); hit {
			m.mu.Lock()
			rec.Touch()
			m.mu.Unlock()
			m.bus.Publish(events.Event{Kind: events.EventHit, Flavor: string(record.FlavorFiles), Scope: scope, Key: key})
			return ReadResult{Content: data, Status: "hit"}, true, nil
		}
	}

	data, err := os.ReadFile(rec.Path)
	if err != nil {
		return ReadResult{}, false, cerr.NewError(cerr.EngineTransport, err, key)
	}
	admitted := m.content.Admit(string(rec.ContentRef), data)
	m.mu.Lock()
	rec.IsCached = admitted
	rec.Touch()
	m.mu.Unlock()
	m.bus.Publish(events.Event{Kind: events.EventMiss, Flavor: string(record.FlavorFiles), Scope: scope, Key: key})
	return ReadResult{Content: data, Status: "miss"}, true, nil
}

// Remove best-effort removes the record across every engine it resides on
// and evicts any resident content.
func (m *Manager) Remove(ctx context.Context, keyOrPath string, opts CallOptions) (bool, error) {
	scope := normalizeScope(opts.Scope)
	key := m.resolveKey(scope, keyOrPath)
	ck := compositeKey(scope, key)

	if err := m.checkMutate(ck, opts.Session); err != nil {
		return false, err
	}
	return m.removeLocked(ctx, ck, scope, key), nil
}

func (m *Manager) removeLocked(ctx context.Context, ck, scope, key string) bool {
	m.mu.Lock()
	rec, known := m.records[ck]
	m.mu.Unlock()
	if !known {
		return false
	}

	targets, err := m.registry.GetAll(rec.Engines)
	var existedAny bool
	if err == nil {
		var mu sync.Mutex
		var g errgroup.Group
		for _, eng := range targets {
			eng := eng
			g.Go(func() error {
				existed, _ := eng.Remove(ctx, string(record.FlavorFiles), scope, key)
				if existed {
					mu.Lock()
					existedAny = true
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	m.content.Remove(string(rec.ContentRef))
	m.mu.Lock()
	delete(m.records, ck)
	m.mu.Unlock()
	m.ttl.Cancel(ck)

	m.bus.Publish(events.Event{Kind: events.EventRemove, Flavor: string(record.FlavorFiles), Scope: scope, Key: key})
	return existedAny
}

// Has reports whether keyOrPath resolves to a currently tracked record.
func (m *Manager) Has(keyOrPath string, opts CallOptions) bool {
	scope := normalizeScope(opts.Scope)
	key := m.resolveKey(scope, keyOrPath)
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[compositeKey(scope, key)]
	return ok
}

// Size returns the number of currently tracked file records.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Inspect returns a copy of the tracked record for keyOrPath, without
// touching recency or loading content (spec.md scenarios 1-4 "inspect").
func (m *Manager) Inspect(keyOrPath string, opts CallOptions) (record.File, bool) {
	scope := normalizeScope(opts.Scope)
	key := m.resolveKey(scope, keyOrPath)
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[compositeKey(scope, key)]
	if !ok {
		return record.File{}, false
	}
	return rec.Clone(), true
}

// Clear removes every record in scope (or every record, if scope is empty)
// across every registered engine, evicting their content.
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
			if err := eng.Clear(ctx, scope, string(record.FlavorFiles)); err != nil {
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
			m.content.Remove(string(rec.ContentRef))
			delete(m.records, ck)
			m.ttl.Cancel(ck)
		}
	}
	m.mu.Unlock()

	if joined != nil {
		return cerr.NewError(cerr.EngineTransport, joined, scope)
	}
	m.bus.Publish(events.Event{Kind: events.EventRemove, Flavor: string(record.FlavorFiles), Scope: scope})
	return nil
}

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

// onContentEvict is ContentStore's LRU eviction callback: flip IsCached
// false on the record matching the evicted ref (ref == the record's
// composite key, see ContentRef assignment in Set).
func (m *Manager) onContentEvict(ref string) {
	m.mu.Lock()
	rec, ok := m.records[ref]
	m.mu.Unlock()
	if !ok {
		return
	}
	m.mu.Lock()
	rec.IsCached = false
	m.mu.Unlock()
	m.bus.Publish(events.Event{Kind: events.EventEvict, Flavor: string(record.FlavorFiles), Scope: rec.Scope, Key: rec.Key})
}

func (m *Manager) armTTL(ck, scope, key string, ttl *record.TTL) {
	m.ttl.Arm(ck, ttl.ValueMS, func() {
		m.mu.Lock()
		rec, ok := m.records[ck]
		m.mu.Unlock()
		if !ok {
			return
		}
		if ttl.Policy == record.TTLKeep {
			m.content.Remove(string(rec.ContentRef))
			m.mu.Lock()
			rec.IsCached = false
			m.mu.Unlock()
			m.bus.Publish(events.Event{Kind: events.EventEvict, Flavor: string(record.FlavorFiles), Scope: scope, Key: key})
			return
		}
		m.removeLocked(context.Background(), ck, scope, key)
		m.bus.Publish(events.Event{Kind: events.EventEvict, Flavor: string(record.FlavorFiles), Scope: scope, Key: key})
	})
}

// ExportAll returns a clone of every currently tracked record, used by the
// persistence pipeline to build a backup stream. Content bytes are never
// included; only metadata is serialized (spec.md §4.8).
func (m *Manager) ExportAll() []record.File {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]record.File, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.Clone())
	}
	return out
}

// RestoreRecord inserts rec's metadata directly, bypassing lock-session
// gates, content loading, and preload scheduling. IsCached is always false
// after restore, per spec.md §4.8.
func (m *Manager) RestoreRecord(ctx context.Context, rec record.File) error {
	scope := normalizeScope(rec.Scope)
	ck := compositeKey(scope, rec.Key)
	rec.Scope = scope
	rec.IsCached = false
	rec.ContentRef = record.ContentRef(ck)

	engineNames := rec.Engines
	if len(engineNames) == 0 {
		engineNames = m.defaultEngines()
	}
	targets, err := m.registry.GetAll(engineNames)
	if err != nil {
		return cerr.NewError(cerr.Validation, err, rec.Key)
	}
	if err := fanOutSet(ctx, targets, scope, rec.Key, &rec); err != nil {
		return cerr.NewError(cerr.EngineTransport, err, rec.Key)
	}

	cp := rec
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

// --- Lifecycle tracker hooks (spec.md §4.5), invoked by the lifecycle
// package in response to external watcher events. All three serialize
// through an ephemeral lock session so concurrent events on the same path
// (or rename pair) never tear a reader's view of the record.

// OnWatchUpdate reloads resident content in place, or invalidates disk
// metadata so the next Read reloads it.
func (m *Manager) OnWatchUpdate(ctx context.Context, path string) {
	canonical, key, err := keyFromPath(path)
	if err != nil {
		return
	}
	scope := record.DefaultScope
	ck := compositeKey(scope, key)

	sess := m.locks.NewSession(lock.Options{BlockRead: true})
	if err := sess.Acquire(ctx, []string{ck}); err != nil {
		return
	}
	defer sess.Release()

	m.mu.Lock()
	rec, ok := m.records[ck]
	m.mu.Unlock()
	if !ok {
		return
	}

	stat, err := os.Stat(canonical)
	if err != nil {
		return
	}

	if rec.IsCached {
		data, err := os.ReadFile(canonical)
		if err == nil {
			admitted := m.content.Admit(string(rec.ContentRef), data)
			m.mu.Lock()
			rec.IsCached = admitted
			m.mu.Unlock()
		}
	}
	m.mu.Lock()
	rec.MTime = stat.ModTime()
	rec.SizeOnDisk = stat.Size()
	rec.Size = stat.Size()
	m.mu.Unlock()

	m.bus.Publish(events.Event{Kind: events.EventUpdate, Flavor: string(record.FlavorFiles), Scope: scope, Key: key})
}

// OnWatchDelete removes the record for path across every engine it resides on.
func (m *Manager) OnWatchDelete(ctx context.Context, path string) {
	_, key, err := keyFromPath(path)
	if err != nil {
		return
	}
	scope := record.DefaultScope
	ck := compositeKey(scope, key)

	sess := m.locks.NewSession(lock.Options{BlockRead: true})
	if err := sess.Acquire(ctx, []string{ck}); err != nil {
		return
	}
	defer sess.Release()

	m.removeLocked(ctx, ck, scope, key)
}

// OnWatchRename atomically rekeys the record from oldPath's key to newPath's
// key, preserving cached content and LRU position. If a record already
// exists under the new key, the renamed record supersedes it.
func (m *Manager) OnWatchRename(ctx context.Context, oldPath, newPath string) {
	_, oldKey, err := keyFromPath(oldPath)
	if err != nil {
		return
	}
	newCanonical, newKey, err := keyFromPath(newPath)
	if err != nil {
		return
	}
	scope := record.DefaultScope
	oldCk := compositeKey(scope, oldKey)
	newCk := compositeKey(scope, newKey)

	sess := m.locks.NewSession(lock.Options{BlockRead: true})
	if err := sess.Acquire(ctx, []string{oldCk, newCk}); err != nil {
		return
	}
	defer sess.Release()

	m.mu.Lock()
	oldRec, ok := m.records[oldCk]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.records, oldCk)
	m.ttl.Cancel(oldCk)

	if existing, exists := m.records[newCk]; exists {
		m.content.Remove(string(existing.ContentRef))
		delete(m.records, newCk)
		m.ttl.Cancel(newCk)
	}

	var data []byte
	var hadContent bool
	if oldRec.IsCached {
		data, hadContent = m.content.Get(string(oldRec.ContentRef))
		m.content.Remove(string(oldRec.ContentRef))
	}

	oldRec.Path = newCanonical
	oldRec.Name = filepath.Base(newCanonical)
	oldRec.Key = newKey
	oldRec.ContentRef = record.ContentRef(newCk)
	oldRec.IsCached = false
	if hadContent {
		oldRec.IsCached = m.content.Admit(string(oldRec.ContentRef), data)
	}
	m.records[newCk] = oldRec
	m.mu.Unlock()

	m.watch(newCanonical)

	m.bus.Publish(events.Event{Kind: events.EventRemove, Flavor: string(record.FlavorFiles), Scope: scope, Key: oldKey})
	m.bus.Publish(events.Event{Kind: events.EventUpdate, Flavor: string(record.FlavorFiles), Scope: scope, Key: newKey})
}
