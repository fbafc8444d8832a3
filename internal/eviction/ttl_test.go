package eviction

import (
	"sync"
	"testing"
	"time"
)

func TestTTLScheduler_FiresOnce(t *testing.T) {
	s := NewTTLScheduler()
	var mu sync.Mutex
	fired := 0
	done := make(chan struct{})
	s.Arm("k", 10*time.Millisecond, func() {
		mu.Lock()
		fired++
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
}

func TestTTLScheduler_CancelPreventsFire(t *testing.T) {
	s := NewTTLScheduler()
	fired := false
	s.Arm("k", 20*time.Millisecond, func() { fired = true })
	s.Cancel("k")
	time.Sleep(60 * time.Millisecond)
	if fired {
		t.Error("cancelled timer should not have fired")
	}
}

func TestTTLScheduler_ReArmReplacesPriorTimer(t *testing.T) {
	s := NewTTLScheduler()
	var mu sync.Mutex
	calls := 0
	s.Arm("k", 15*time.Millisecond, func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	s.Arm("k", 15*time.Millisecond, func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (re-arm should replace, not stack)", calls)
	}
}

func TestTTLScheduler_CancelAll(t *testing.T) {
	s := NewTTLScheduler()
	fired := false
	s.Arm("a", 15*time.Millisecond, func() { fired = true })
	s.Arm("b", 15*time.Millisecond, func() { fired = true })
	s.CancelAll()
	time.Sleep(50 * time.Millisecond)
	if fired {
		t.Error("CancelAll should stop every timer")
	}
}
