// Package lock implements the per-record FIFO lock session manager
// (spec.md §4.7): exclusive write access over a set of records, with an
// optional read-blocking policy and acquisition timeouts.
package lock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates lock contention failure reasons.
type Kind int

const (
	KindLocked Kind = iota
	KindNotOwned
	KindAcquireTimeout
	KindAlreadyHeld
)

// Error is returned for every lock contention failure.
type Error struct {
	Kind Kind
	Key  string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindLocked:
		return fmt.Sprintf("lock: %q is held by another session", e.Key)
	case KindNotOwned:
		return fmt.Sprintf("lock: %q is not owned by this session", e.Key)
	case KindAcquireTimeout:
		return fmt.Sprintf("lock: timed out acquiring %q", e.Key)
	default:
		return fmt.Sprintf("lock: %q is already held by this session", e.Key)
	}
}

// Options configures a Session.
type Options struct {
	// BlockRead, when true (the default), makes non-owner reads on a held
	// record block until release. When false, reads pass through.
	BlockRead bool
	// Timeout bounds Acquire only; once acquired a session is never
	// auto-released (spec.md §4.7, §9 open question resolution).
	Timeout time.Duration
}

// DefaultTimeout is the spec.md §4.7 default acquire timeout.
const DefaultTimeout = 10 * time.Second

type ticket struct {
	session *Session
	ch      chan struct{}
}

type recordState struct {
	owner      *Session
	waitQueue  []*ticket
	readNotify chan struct{}
}

func newRecordState() *recordState {
	return &recordState{readNotify: make(chan struct{})}
}

// Manager owns every record lock for one manager instance (KVS or Files).
type Manager struct {
	mu      sync.Mutex
	records map[string]*recordState
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{records: make(map[string]*recordState)}
}

func (m *Manager) stateLocked(key string) *recordState {
	st, ok := m.records[key]
	if !ok {
		st = newRecordState()
		m.records[key] = st
	}
	return st
}

// Session is a handle granting exclusive access to a set of records. Each
// session carries a unique ID (mirroring the teacher's redis/locker.go
// LockKey{Key, LockID} pattern) purely for diagnostics; ownership itself is
// tracked by pointer identity, not by ID comparison.
type Session struct {
	ID      uuid.UUID
	manager *Manager
	opts    Options
	mu      sync.Mutex
	held    map[string]bool
}

// NewSession creates a session with the given options, defaulting BlockRead
// to true and Timeout to DefaultTimeout when unset.
func (m *Manager) NewSession(opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Session{
		ID:      uuid.New(),
		manager: m,
		opts:    opts,
		held:    make(map[string]bool),
	}
}

// BlockRead reports this session's read-blocking policy.
func (s *Session) BlockRead() bool { return s.opts.BlockRead }

// Owns reports whether this session currently holds key.
func (s *Session) Owns(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held[key]
}

// RequireOwn fails with SessionNotOwned if this session does not currently
// hold key; used to guard record mutations issued through a session.
func (s *Session) RequireOwn(key string) error {
	if !s.Owns(key) {
		return &Error{Kind: KindNotOwned, Key: key}
	}
	return nil
}

// Acquire awaits exclusive ownership of every key in keys, as an atomic
// all-or-nothing set: if any key can't be acquired within the session's
// timeout (or ctx is cancelled first), every key acquired so far during
// this call is released and AcquireTimeout is returned.
//
// Keys are acquired in sorted order so that concurrent Acquire calls over
// overlapping key sets can never deadlock against each other.
func (s *Session) Acquire(ctx context.Context, keys []string) error {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	deadline := time.Now().Add(s.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	acquired := make([]string, 0, len(sorted))
	for _, key := range sorted {
		if s.Owns(key) {
			continue
		}
		if err := s.acquireOne(ctx, key, deadline); err != nil {
			for _, k := range acquired {
				s.releaseOne(k)
			}
			return err
		}
		acquired = append(acquired, key)
		s.mu.Lock()
		s.held[key] = true
		s.mu.Unlock()
	}
	return nil
}

func (s *Session) acquireOne(ctx context.Context, key string, deadline time.Time) error {
	m := s.manager
	for {
		m.mu.Lock()
		st := m.stateLocked(key)
		if st.owner == nil {
			st.owner = s
			m.mu.Unlock()
			return nil
		}
		if st.owner == s {
			m.mu.Unlock()
			return nil
		}
		t := &ticket{session: s, ch: make(chan struct{}, 1)}
		st.waitQueue = append(st.waitQueue, t)
		m.mu.Unlock()

		timer := time.NewTimer(time.Until(deadline))
		select {
		case <-t.ch:
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			m.dropTicket(key, t)
			return &Error{Kind: KindAcquireTimeout, Key: key}
		case <-timer.C:
			m.dropTicket(key, t)
			return &Error{Kind: KindAcquireTimeout, Key: key}
		}
	}
}

// dropTicket removes t from key's wait queue; if t had already been granted
// ownership (a race with the releaser), the grant is undone and handed to
// the next waiter so a timed-out acquire never leaves a record held.
func (m *Manager) dropTicket(key string, t *ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.records[key]
	if st == nil {
		return
	}
	for i, qt := range st.waitQueue {
		if qt == t {
			st.waitQueue = append(st.waitQueue[:i], st.waitQueue[i+1:]...)
			return
		}
	}
	// Not in the queue anymore: either already woken (ch has data) or
	// already granted ownership. Drain a pending send if present.
	select {
	case <-t.ch:
	default:
	}
	if st.owner == t.session {
		m.releaseLocked(key, st, t.session)
	}
}

// Release releases every record held by this session, in no particular
// order, waking the next FIFO waiter (if any) for each.
func (s *Session) Release() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.held))
	for k := range s.held {
		keys = append(keys, k)
	}
	s.held = make(map[string]bool)
	s.mu.Unlock()
	for _, k := range keys {
		s.manager.release(k, s)
	}
}

func (s *Session) releaseOne(key string) {
	s.mu.Lock()
	delete(s.held, key)
	s.mu.Unlock()
	s.manager.release(key, s)
}

func (m *Manager) release(key string, session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.records[key]
	if st == nil || st.owner != session {
		return
	}
	m.releaseLocked(key, st, session)
}

// releaseLocked transfers ownership to the next FIFO waiter, or frees the
// record. Caller must hold m.mu.
func (m *Manager) releaseLocked(key string, st *recordState, session *Session) {
	if len(st.waitQueue) > 0 {
		next := st.waitQueue[0]
		st.waitQueue = st.waitQueue[1:]
		st.owner = next.session
		if !next.session.opts.BlockRead {
			m.wakeReadersLocked(st)
		}
		next.ch <- struct{}{}
		return
	}
	st.owner = nil
	delete(m.records, key)
	m.wakeReadersLocked(st)
}

func (m *Manager) wakeReadersLocked(st *recordState) {
	close(st.readNotify)
	st.readNotify = make(chan struct{})
}

// CheckWrite fails with SessionLocked if key is held by a session other
// than the caller's (session == nil means a direct, non-session manager
// call). It never blocks.
func (m *Manager) CheckWrite(key string, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.records[key]
	if !ok || st.owner == nil {
		return nil
	}
	if st.owner == session {
		return nil
	}
	return &Error{Kind: KindLocked, Key: key}
}

// AwaitRead blocks until key is readable by session (nil for a direct,
// non-session manager caller): immediately if key is unheld, if the
// holder's policy is BlockRead:false, or if session owns the hold.
// Otherwise it blocks until the holder releases.
func (m *Manager) AwaitRead(ctx context.Context, key string, session *Session) error {
	for {
		m.mu.Lock()
		st, ok := m.records[key]
		if !ok || st.owner == nil || st.owner == session || !st.owner.opts.BlockRead {
			m.mu.Unlock()
			return nil
		}
		ch := st.readNotify
		m.mu.Unlock()
		select {
		case <-ch:
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
