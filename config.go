package cachify

import "github.com/cachify/cachify/config"

// TTLPolicy selects what happens to a record when its TTL expires.
type TTLPolicy = config.TTLPolicy

const (
	TTLEvict = config.TTLEvict
	TTLKeep  = config.TTLKeep
)

// TTLConfig configures TTL-based expiry for a manager.
type TTLConfig = config.TTLConfig

// ManagerConfig configures a KVS or Files manager.
type ManagerConfig = config.ManagerConfig

// RedisOptions carries the parameters needed to dial a Redis-style remote store.
type RedisOptions = config.RedisOptions

// Config is the top-level configuration for a Client.
type Config = config.Config

// DefaultConfig returns a Config with the spec's documented defaults.
func DefaultConfig() Config {
	return config.DefaultConfig()
}

// LoadConfig reads a JSON configuration file and merges it over DefaultConfig.
func LoadConfig(filename string) (Config, error) {
	return config.LoadConfig(filename)
}
