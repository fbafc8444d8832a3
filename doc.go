// Package cachify implements an in-process caching engine with two record
// flavors — key-value (kvs) and file content (files) — layered over
// pluggable storage engines such as an in-memory map or a Redis-style
// remote store.
//
// A Client bundles an engine registry, a KVS manager, a Files manager, a
// persistence pipeline and an event bus into one isolated instance. Use
// Default to obtain the process-wide client or NewClient to create an
// independent one.
//
// Subpackages implement the individual components: record holds the shared
// record model, engine holds the pluggable storage backends, kvs and files
// hold the two manager flavors, and persistence holds the encrypted
// backup/restore pipeline. internal/queue, internal/lock, internal/eviction
// and internal/mru hold supporting infrastructure shared across managers.
package cachify
