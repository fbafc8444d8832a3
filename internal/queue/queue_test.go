package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestQueue_RunsEnqueuedTask(t *testing.T) {
	q := New(context.Background(), 1)
	defer q.Close()

	done := make(chan struct{})
	err := q.Enqueue(&Task{
		ID:       "t1",
		Type:     "test",
		Priority: PriorityNormal,
		Action: func(ctx context.Context) error {
			close(done)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	q.WaitForIdle()
}

func TestQueue_RejectsDuplicateID(t *testing.T) {
	q := New(context.Background(), 1)
	defer q.Close()

	block := make(chan struct{})
	_ = q.Enqueue(&Task{
		ID: "dup", Type: "t", Priority: PriorityNormal,
		Action: func(ctx context.Context) error { <-block; return nil },
	})
	err := q.Enqueue(&Task{ID: "dup", Type: "t", Priority: PriorityNormal, Action: func(ctx context.Context) error { return nil }})
	if err == nil {
		t.Fatal("expected duplicate ID rejection")
	}
	if qerr, ok := err.(*Error); !ok || qerr.Kind != KindDuplicateID {
		t.Errorf("err = %v, want KindDuplicateID", err)
	}
	close(block)
	q.WaitForIdle()
}

func TestQueue_RejectsInvalidTask(t *testing.T) {
	q := New(context.Background(), 1)
	defer q.Close()
	if err := q.Enqueue(&Task{ID: "", Type: "t", Action: func(ctx context.Context) error { return nil }}); err == nil {
		t.Error("expected rejection for empty ID")
	}
	if err := q.Enqueue(&Task{ID: "x", Type: "", Action: func(ctx context.Context) error { return nil }}); err == nil {
		t.Error("expected rejection for empty Type")
	}
	if err := q.Enqueue(&Task{ID: "y", Type: "t"}); err == nil {
		t.Error("expected rejection for nil Action")
	}
}

func TestQueue_HigherPriorityRunsFirst(t *testing.T) {
	q := New(context.Background(), 1)
	defer q.Close()

	var mu sync.Mutex
	var order []string
	block := make(chan struct{})

	// Block the dispatcher on a single in-flight task so both subsequent
	// enqueues land in their bands before either runs.
	_ = q.Enqueue(&Task{
		ID: "blocker", Type: "t", Priority: PriorityCritical,
		Action: func(ctx context.Context) error { <-block; return nil },
	})
	time.Sleep(20 * time.Millisecond)

	record := func(name string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}
	_ = q.Enqueue(&Task{ID: "warmup", Type: "t", Priority: PriorityWarmup, Action: record("warmup")})
	_ = q.Enqueue(&Task{ID: "high", Type: "t", Priority: PriorityHigh, Action: record("high")})

	close(block)
	q.WaitForIdle()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "high" || order[1] != "warmup" {
		t.Errorf("order = %v, want [high warmup]", order)
	}
}

func TestQueue_OnResolveAndOnReject(t *testing.T) {
	q := New(context.Background(), 1)
	defer q.Close()

	resolved := make(chan struct{})
	_ = q.Enqueue(&Task{
		ID: "ok", Type: "t", Priority: PriorityNormal,
		Action:    func(ctx context.Context) error { return nil },
		OnResolve: func() { close(resolved) },
	})
	select {
	case <-resolved:
	case <-time.After(time.Second):
		t.Fatal("OnResolve never called")
	}

	rejected := make(chan error, 1)
	_ = q.Enqueue(&Task{
		ID: "fail", Type: "t", Priority: PriorityNormal,
		Action:   func(ctx context.Context) error { return context.DeadlineExceeded },
		OnReject: func(err error) { rejected <- err },
	})
	select {
	case err := <-rejected:
		if err != context.DeadlineExceeded {
			t.Errorf("OnReject err = %v, want DeadlineExceeded", err)
		}
	case <-time.After(time.Second):
		t.Fatal("OnReject never called")
	}
}

func TestQueue_CancelUnstartedTask(t *testing.T) {
	q := New(context.Background(), 1)
	defer q.Close()

	block := make(chan struct{})
	_ = q.Enqueue(&Task{ID: "blocker", Type: "t", Priority: PriorityCritical, Action: func(ctx context.Context) error { <-block; return nil }})
	time.Sleep(20 * time.Millisecond)

	ran := false
	_ = q.Enqueue(&Task{ID: "pending", Type: "t", Priority: PriorityNormal, Action: func(ctx context.Context) error { ran = true; return nil }})

	if !q.Cancel("pending") {
		t.Fatal("Cancel should succeed for a task that hasn't started")
	}
	close(block)
	q.WaitForIdle()
	if ran {
		t.Error("cancelled task should never have run")
	}
}
