package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cachify/cachify/config"
	"github.com/cachify/cachify/engine"
	"github.com/cachify/cachify/events"
	"github.com/cachify/cachify/files"
	"github.com/cachify/cachify/internal/queue"
	"github.com/cachify/cachify/kvs"
)

func newTestPipeline(t *testing.T) (*Pipeline, *kvs.Manager, *files.Manager, string) {
	t.Helper()
	r := engine.NewRegistry()
	bus := events.NewEventBus()
	kvsCfg := config.ManagerConfig{DefaultEngines: []string{"memory"}}
	filesCfg := config.ManagerConfig{DefaultEngines: []string{"memory"}, MaxFileSize: 1 << 20, MaxTotalSize: 8 << 20}
	q := queue.New(context.Background(), 2)
	t.Cleanup(q.Close)

	kv := kvs.New(r, kvsCfg, bus)
	fl := files.New(r, filesCfg, bus, q)
	dir := t.TempDir()
	p := New(kv, fl, nil)
	p.Use("local", NewLocalFS(dir))
	return p, kv, fl, dir
}

func TestPipeline_BackupAndRestoreKVS(t *testing.T) {
	p, kv, _, _ := newTestPipeline(t)
	ctx := context.Background()
	_ = kv.Set(ctx, "k1", "v1", kvs.SetOptions{})
	_ = kv.Set(ctx, "k2", 42, kvs.SetOptions{})

	if err := p.Backup(ctx, "local", "snap1"); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	if err := kv.Clear(ctx, ""); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if kv.Has("k1", kvs.CallOptions{}) {
		t.Fatal("k1 should be gone before restore")
	}

	if err := p.Restore(ctx, "local", "snap1"); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	var out string
	found, err := kv.Read(ctx, "k1", &out, kvs.CallOptions{})
	if err != nil || !found || out != "v1" {
		t.Errorf("k1 after restore = %q, found=%v, err=%v", out, found, err)
	}
}

func TestPipeline_BackupAndRestoreFiles(t *testing.T) {
	p, _, fl, _ := newTestPipeline(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	if err := os.WriteFile(path, []byte("file contents"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := fl.Set(ctx, path, files.SetOptions{}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := p.Backup(ctx, "local", "snap-files"); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	_, err := fl.Remove(ctx, path, files.CallOptions{})
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if fl.Has(path, files.CallOptions{}) {
		t.Fatal("record should be gone before restore")
	}

	if err := p.Restore(ctx, "local", "snap-files"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	rec, ok := fl.Inspect(path, files.CallOptions{})
	if !ok {
		t.Fatal("file record should be restored")
	}
	if rec.IsCached {
		t.Error("restored file records must never be marked cached")
	}
}

func TestPipeline_RestoreMissingBackupIsNotAnError(t *testing.T) {
	p, _, _, _ := newTestPipeline(t)
	if err := p.Restore(context.Background(), "local", "never-existed"); err != nil {
		t.Errorf("Restore of a missing backup should be a no-op, got: %v", err)
	}
}

func TestPipeline_RestoreWithWrongKeyFails(t *testing.T) {
	r := engine.NewRegistry()
	bus := events.NewEventBus()
	kvsCfg := config.ManagerConfig{DefaultEngines: []string{"memory"}}
	filesCfg := config.ManagerConfig{DefaultEngines: []string{"memory"}}
	q := queue.New(context.Background(), 2)
	defer q.Close()

	kv := kvs.New(r, kvsCfg, bus)
	fl := files.New(r, filesCfg, bus, q)
	dir := t.TempDir()
	ctx := context.Background()
	_ = kv.Set(ctx, "k", "v", kvs.SetOptions{})

	correctKey := []byte("0123456789abcdef0123456789abcdef")
	wrongKey := []byte("fedcba9876543210fedcba9876543210")

	writer := New(kv, fl, correctKey)
	writer.Use("local", NewLocalFS(dir))
	if err := writer.Backup(ctx, "local", "snap"); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	reader := New(kv, fl, wrongKey)
	reader.Use("local", NewLocalFS(dir))
	if err := reader.Restore(ctx, "local", "snap"); err == nil {
		t.Error("Restore with the wrong key should fail")
	}
}

func TestPipeline_BackupRequiresRegisteredDestination(t *testing.T) {
	r := engine.NewRegistry()
	bus := events.NewEventBus()
	q := queue.New(context.Background(), 1)
	defer q.Close()
	kv := kvs.New(r, config.ManagerConfig{DefaultEngines: []string{"memory"}}, bus)
	fl := files.New(r, config.ManagerConfig{DefaultEngines: []string{"memory"}}, bus, q)
	p := New(kv, fl, nil)

	if err := p.Backup(context.Background(), "unregistered", "x"); err == nil {
		t.Error("Backup against an unregistered destination should fail")
	}
}
