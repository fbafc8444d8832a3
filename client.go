package cachify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/cachify/cachify/engine"
	"github.com/cachify/cachify/events"
	"github.com/cachify/cachify/files"
	"github.com/cachify/cachify/internal/queue"
	"github.com/cachify/cachify/kvs"
	"github.com/cachify/cachify/lifecycle"
	"github.com/cachify/cachify/persistence"
)

// Client bundles an engine registry, a KVS manager, a Files manager, a
// persistence pipeline, and an event bus into one isolated instance
// (spec.md §4.9). Clients are independent; Default returns the process-wide
// global instance.
type Client struct {
	id       string
	registry *engine.Registry
	kvsMgr   *kvs.Manager
	filesMgr *files.Manager
	persist  *persistence.Pipeline
	bus      *events.EventBus
	queue    *queue.Queue
	tracker  *lifecycle.Tracker
}

// NewClient constructs an isolated Client from cfg. If cfg.RedisOptions.Addr
// is set, a "redis" engine is registered automatically, prefixed with this
// client's randomly generated ID for per-client isolation over a shared
// Redis database.
func NewClient(cfg Config) *Client {
	registry := engine.NewRegistry()
	bus := NewEventBus()
	q := queue.New(context.Background(), cfg.QueueConcurrency)

	kvsMgr := kvs.New(registry, cfg.KVS, bus)
	filesMgr := files.New(registry, cfg.Files, bus, q)
	pipeline := persistence.New(kvsMgr, filesMgr, cfg.EncryptionKey)

	id := NewUUID().String()
	if cfg.RedisOptions.Addr != "" {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisOptions.Addr,
			Username: cfg.RedisOptions.Username,
			Password: cfg.RedisOptions.Password,
			DB:       cfg.RedisOptions.DB,
		})
		registry.UseRedis("redis", rc, id)
	}

	c := &Client{
		id:       id,
		registry: registry,
		kvsMgr:   kvsMgr,
		filesMgr: filesMgr,
		persist:  pipeline,
		bus:      bus,
		queue:    q,
	}

	if w := sharedWatcher(); w != nil {
		filesMgr.SetWatcher(w)
		c.tracker = lifecycle.NewTracker(w, filesMgr)
	}

	slog.Debug("cachify: client created", "id", id)
	return c
}

// ID returns this client's randomly generated instance identifier, used to
// namespace its keys on shared remote engines.
func (c *Client) ID() string { return c.id }

// KVS returns the key-value record manager.
func (c *Client) KVS() *kvs.Manager { return c.kvsMgr }

// Files returns the file cache manager.
func (c *Client) Files() *files.Manager { return c.filesMgr }

// Engines returns the engine registry, for UseRedis/DefineEngine calls.
func (c *Client) Engines() *engine.Registry { return c.registry }

// Persistence returns the backup/restore pipeline.
func (c *Client) Persistence() *persistence.Pipeline { return c.persist }

// Events returns the client's event bus.
func (c *Client) Events() *EventBus { return c.bus }

// Clear empties every record tracked by both managers, across every engine.
func (c *Client) Clear(ctx context.Context) error {
	var joined error
	if err := c.kvsMgr.Clear(ctx, ""); err != nil {
		joined = errors.Join(joined, err)
	}
	if err := c.filesMgr.Clear(ctx, ""); err != nil {
		joined = errors.Join(joined, err)
	}
	return joined
}

// CreateClient yields a fresh isolated instance sharing only the
// process-level filesystem watcher (spec.md §4.9).
func (c *Client) CreateClient(cfg Config) *Client {
	return NewClient(cfg)
}

var (
	watcherOnce sync.Once
	watcher     lifecycle.Watcher
)

// sharedWatcher lazily starts the process-wide filesystem watcher the first
// time any client is constructed; every client's lifecycle tracker
// subscribes to the same instance (spec.md §5 "the watcher is a process-wide
// singleton").
func sharedWatcher() lifecycle.Watcher {
	watcherOnce.Do(func() {
		w, err := lifecycle.NewFSNotifyWatcher()
		if err != nil {
			slog.Error("cachify: failed to start filesystem watcher, file lifecycle tracking disabled", "error", err)
			return
		}
		watcher = w
	})
	return watcher
}

var (
	defaultOnce   sync.Once
	defaultClient *Client
)

// Default returns the lazily constructed, process-wide global Client.
func Default() *Client {
	defaultOnce.Do(func() {
		defaultClient = NewClient(DefaultConfig())
	})
	return defaultClient
}
