// Package eviction implements the two independent eviction policies from
// spec.md §4.4: a single-shot TTL timer per record, and a size-bounded LRU
// over cached file content.
package eviction

import (
	"sync"
	"time"
)

// TTLScheduler arms one single-shot timer per record key. Re-arming an
// already-armed key replaces the prior timer (used by update/set).
type TTLScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewTTLScheduler creates an empty scheduler.
func NewTTLScheduler() *TTLScheduler {
	return &TTLScheduler{timers: make(map[string]*time.Timer)}
}

// Arm schedules onFire to run after d, replacing any existing timer for key.
func (s *TTLScheduler) Arm(key string, d time.Duration, onFire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.timers[key] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		onFire()
	})
}

// Cancel stops and removes key's timer, if any. Called on explicit
// remove/clear/update (spec.md §4.4).
func (s *TTLScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// CancelAll stops every armed timer, used by Clear.
func (s *TTLScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.timers {
		t.Stop()
		delete(s.timers, k)
	}
}
