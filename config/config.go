package config

import (
	"encoding/json"
	"os"
	"time"
)

// TTLPolicy selects what happens to a record when its TTL expires.
type TTLPolicy string

const (
	// TTLEvict removes the whole record from every engine it resides on.
	TTLEvict TTLPolicy = "evict"
	// TTLKeep evicts cached file content only; the metadata record remains (files only).
	TTLKeep TTLPolicy = "keep"
)

// TTLConfig configures TTL-based expiry for a manager.
type TTLConfig struct {
	Enabled bool          `json:"enabled"`
	Value   time.Duration `json:"value"`
	Policy  TTLPolicy     `json:"policy"`
}

// ManagerConfig configures a KVS or Files manager.
type ManagerConfig struct {
	DefaultEngines []string  `json:"defaultEngines"`
	TTL            TTLConfig `json:"ttl"`

	// Files-only knobs; ignored by the KVS manager.
	MaxFileSize  int64 `json:"maxFileSize"`
	MaxTotalSize int64 `json:"maxTotalSize"`

	// EvictionMaxRecords bounds the number of tracked records irrespective of size;
	// 0 means unbounded.
	EvictionMaxRecords int `json:"evictionMaxRecords"`
}

// RedisOptions carries the parameters needed to dial a Redis-style remote store.
type RedisOptions struct {
	Addr     string `json:"addr"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Config is the top-level configuration for a Client.
type Config struct {
	RedisOptions  RedisOptions  `json:"redisOptions"`
	EncryptionKey []byte        `json:"encryptionKey"`
	KVS           ManagerConfig `json:"kvs"`
	Files         ManagerConfig `json:"files"`

	// QueueConcurrency bounds concurrent task execution for the client's
	// priority task queue; 1 means strictly serial (the spec.md default).
	QueueConcurrency int `json:"queueConcurrency"`
}

// DefaultConfig returns a Config with the spec's documented defaults:
// a single "memory" default engine and TTL disabled.
func DefaultConfig() Config {
	return Config{
		KVS: ManagerConfig{
			DefaultEngines: []string{"memory"},
		},
		Files: ManagerConfig{
			DefaultEngines: []string{"memory"},
			MaxFileSize:    64 << 20,
			MaxTotalSize:   512 << 20,
		},
		QueueConcurrency: 1,
	}
}

// LoadConfig reads a JSON configuration file and merges it over DefaultConfig.
func LoadConfig(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, err
	}
	c := DefaultConfig()
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}
