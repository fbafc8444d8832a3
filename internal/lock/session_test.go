package lock

import (
	"context"
	"testing"
	"time"
)

func TestSession_AcquireAndRelease(t *testing.T) {
	m := NewManager()
	s := m.NewSession(Options{})
	ctx := context.Background()

	if err := s.Acquire(ctx, []string{"k1", "k2"}); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !s.Owns("k1") || !s.Owns("k2") {
		t.Error("session should own both acquired keys")
	}
	s.Release()
	if s.Owns("k1") || s.Owns("k2") {
		t.Error("session should own nothing after Release")
	}
}

func TestSession_AcquireBlocksUntilRelease(t *testing.T) {
	m := NewManager()
	s1 := m.NewSession(Options{Timeout: time.Second})
	s2 := m.NewSession(Options{Timeout: time.Second})
	ctx := context.Background()

	if err := s1.Acquire(ctx, []string{"k"}); err != nil {
		t.Fatalf("s1.Acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		_ = s2.Acquire(ctx, []string{"k"})
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("s2 acquired a held key before release")
	case <-time.After(50 * time.Millisecond):
	}

	s1.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("s2 never acquired after s1 released")
	}
}

func TestSession_AcquireTimesOut(t *testing.T) {
	m := NewManager()
	s1 := m.NewSession(Options{Timeout: time.Second})
	s2 := m.NewSession(Options{Timeout: 30 * time.Millisecond})
	ctx := context.Background()

	if err := s1.Acquire(ctx, []string{"k"}); err != nil {
		t.Fatalf("s1.Acquire: %v", err)
	}
	err := s2.Acquire(ctx, []string{"k"})
	if err == nil {
		t.Fatal("expected s2.Acquire to time out")
	}
	if lerr, ok := err.(*Error); !ok || lerr.Kind != KindAcquireTimeout {
		t.Errorf("err = %v, want KindAcquireTimeout", err)
	}
}

func TestSession_AcquireAllOrNothing(t *testing.T) {
	m := NewManager()
	blocker := m.NewSession(Options{Timeout: time.Second})
	ctx := context.Background()
	if err := blocker.Acquire(ctx, []string{"k2"}); err != nil {
		t.Fatal(err)
	}

	s := m.NewSession(Options{Timeout: 30 * time.Millisecond})
	err := s.Acquire(ctx, []string{"k1", "k2", "k3"})
	if err == nil {
		t.Fatal("expected Acquire to fail because k2 is held")
	}
	if s.Owns("k1") || s.Owns("k3") {
		t.Error("partial acquisitions must be released on all-or-nothing failure")
	}
}

func TestManager_CheckWriteAndAwaitRead(t *testing.T) {
	m := NewManager()
	s := m.NewSession(Options{BlockRead: true, Timeout: time.Second})
	ctx := context.Background()
	if err := s.Acquire(ctx, []string{"k"}); err != nil {
		t.Fatal(err)
	}

	if err := m.CheckWrite("k", nil); err == nil {
		t.Error("a direct caller should be blocked from writing a held key")
	}
	if err := m.CheckWrite("k", s); err != nil {
		t.Error("the owning session should be allowed to write")
	}

	readDone := make(chan struct{})
	go func() {
		_ = m.AwaitRead(ctx, "k", nil)
		close(readDone)
	}()
	select {
	case <-readDone:
		t.Fatal("AwaitRead should block while BlockRead session holds the key")
	case <-time.After(50 * time.Millisecond):
	}

	s.Release()
	select {
	case <-readDone:
	case <-time.After(time.Second):
		t.Fatal("AwaitRead never unblocked after release")
	}
}

func TestSession_RequireOwn(t *testing.T) {
	m := NewManager()
	s := m.NewSession(Options{})
	if err := s.RequireOwn("k"); err == nil {
		t.Error("RequireOwn should fail before acquisition")
	}
	if err := s.Acquire(context.Background(), []string{"k"}); err != nil {
		t.Fatal(err)
	}
	if err := s.RequireOwn("k"); err != nil {
		t.Errorf("RequireOwn after Acquire: %v", err)
	}
}
