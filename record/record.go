// Package record defines the shared record model used by both the KVS and
// Files managers, per spec.md §3.
package record

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Flavor tags a record's family.
type Flavor string

const (
	FlavorKVS   Flavor = "kvs"
	FlavorFiles Flavor = "files"
)

// DefaultScope is the namespace used when a caller does not specify one.
const DefaultScope = "global"

// TTLPolicy selects what happens to a record when its TTL expires.
type TTLPolicy string

const (
	TTLEvict TTLPolicy = "evict"
	TTLKeep  TTLPolicy = "keep"
)

// TTL describes a record's optional expiry.
type TTL struct {
	ValueMS time.Duration
	Policy  TTLPolicy
}

// Base holds the fields shared between KVS and File records.
type Base struct {
	Key            string `validate:"required"`
	Scope          string `validate:"required"`
	Flavor         Flavor `validate:"required,oneof=kvs files"`
	Engines        []string
	CreatedAt      time.Time
	LastAccessedAt time.Time
	TTL            *TTL
	Size           int64
}

var validate = validator.New()

// Validate checks the invariants spec.md §3 requires of every record:
// non-empty key, non-empty scope, at least one engine.
func (b *Base) Validate() error {
	if err := validate.Struct(b); err != nil {
		return err
	}
	if len(b.Engines) == 0 {
		return fmt.Errorf("record %q: engines must be non-empty", b.Key)
	}
	return nil
}

// Touch updates LastAccessedAt to now, used on every read that resolves to a hit.
func (b *Base) Touch() {
	b.LastAccessedAt = time.Now()
}

// KVS is a key-value record; Value is stored literally on every target engine.
type KVS struct {
	Base
	Value any
}

// ContentRef is an opaque handle into the file content store.
type ContentRef string

// File is a file cache record; see spec.md §3 "File record".
type File struct {
	Base
	Path        string
	Name        string
	MTime       time.Time
	SizeOnDisk  int64
	IsCached    bool
	ContentRef  ContentRef
}

// Clone returns a deep-enough copy of f for safe mutation outside the manager's
// critical section (Engines is re-sliced; Value/ContentRef are opaque handles
// and are copied by reference, matching Go's normal assignment semantics).
func (f File) Clone() File {
	cp := f
	cp.Engines = append([]string(nil), f.Engines...)
	return cp
}

// Clone returns a shallow copy of k safe to hand to callers outside the
// manager's critical section.
func (k KVS) Clone() KVS {
	cp := k
	cp.Engines = append([]string(nil), k.Engines...)
	return cp
}
