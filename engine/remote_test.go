package engine

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRemote(t *testing.T) *Remote {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRemote(client, "client1")
}

func TestRemote_SetReadRemove(t *testing.T) {
	r := newTestRemote(t)
	ctx := context.Background()

	if err := r.Set(ctx, "kvs", "global", "k", "hello"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var out string
	found, err := r.Read(ctx, "kvs", "global", "k", &out)
	if err != nil || !found || out != "hello" {
		t.Fatalf("Read = %q, %v, %v, want hello true nil", out, found, err)
	}

	existed, err := r.Remove(ctx, "kvs", "global", "k")
	if err != nil || !existed {
		t.Fatalf("Remove = %v, %v, want true nil", existed, err)
	}
	found, err = r.Read(ctx, "kvs", "global", "k", &out)
	if err != nil || found {
		t.Errorf("Read after Remove = %v, %v, want false nil", found, err)
	}
}

func TestRemote_ReadMissingIsNotAnError(t *testing.T) {
	r := newTestRemote(t)
	var out string
	found, err := r.Read(context.Background(), "kvs", "global", "nope", &out)
	if err != nil || found {
		t.Errorf("Read(missing) = %v, %v, want false nil", found, err)
	}
}

func TestRemote_KeysAreNamespacedByClientID(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	c1 := NewRemote(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "client1")
	c2 := NewRemote(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "client2")

	_ = c1.Set(ctx, "kvs", "global", "k", "from-client1")

	var out string
	found, _ := c2.Read(ctx, "kvs", "global", "k", &out)
	if found {
		t.Error("client2 should not see client1's key")
	}
}

func TestRemote_Clear(t *testing.T) {
	r := newTestRemote(t)
	ctx := context.Background()
	_ = r.Set(ctx, "kvs", "global", "a", "1")
	_ = r.Set(ctx, "kvs", "global", "b", "2")
	_ = r.Set(ctx, "files", "global", "c", "3")

	if err := r.Clear(ctx, "global", "kvs"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	var out string
	found, _ := r.Read(ctx, "kvs", "global", "a", &out)
	if found {
		t.Error("kvs/a should have been cleared")
	}
	found, _ = r.Read(ctx, "files", "global", "c", &out)
	if !found {
		t.Error("files/c should survive a kvs-only Clear")
	}
}
