package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if len(cfg.KVS.DefaultEngines) != 1 || cfg.KVS.DefaultEngines[0] != "memory" {
		t.Errorf("KVS.DefaultEngines = %v, want [memory]", cfg.KVS.DefaultEngines)
	}
	if cfg.Files.MaxFileSize != 64<<20 {
		t.Errorf("Files.MaxFileSize = %d, want %d", cfg.Files.MaxFileSize, 64<<20)
	}
	if cfg.QueueConcurrency != 1 {
		t.Errorf("QueueConcurrency = %d, want 1", cfg.QueueConcurrency)
	}
}

func TestLoadConfig_MergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cachify.json")
	body := `{"queueConcurrency": 8, "kvs": {"defaultEngines": ["redis"]}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.QueueConcurrency != 8 {
		t.Errorf("QueueConcurrency = %d, want 8", cfg.QueueConcurrency)
	}
	if len(cfg.KVS.DefaultEngines) != 1 || cfg.KVS.DefaultEngines[0] != "redis" {
		t.Errorf("KVS.DefaultEngines = %v, want [redis]", cfg.KVS.DefaultEngines)
	}
	// Files config wasn't present in the override; default values survive.
	if cfg.Files.MaxFileSize != 64<<20 {
		t.Errorf("Files.MaxFileSize = %d, want default to survive unmerged sections", cfg.Files.MaxFileSize)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
