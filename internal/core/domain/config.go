package domain

import "time"

const (
	// DefaultTTL is the TTL applied when a config does not set one.
	DefaultTTL = 30 * 24 * time.Hour

	// DefaultMaxEntryBytes is the per-variant size cap applied when a config does not set one.
	DefaultMaxEntryBytes = 16 << 20

	// DefaultMaxBytes is the global byte budget applied when a config does not set one.
	DefaultMaxBytes = 512 << 20

	// DefaultBootstrapWorkers bounds bootstrap parse parallelism when a config does not set it.
	DefaultBootstrapWorkers = 8
)

// Budget bounds the aggregate size of all caches in the process.
// Zero means unlimited.
type Budget struct {
	MaxBytes int64
	MaxCount int64
}

// CacheConfig configures one disk cache instance.
type CacheConfig struct {
	Name          string
	Dir           string
	MaxEntryBytes int64
	DefaultTTL    time.Duration
}

// Config is the complete mediacache configuration.
type Config struct {
	Budget           Budget
	BootstrapWorkers int
	TempDir          string
	JSONLogs         bool
	Caches           []CacheConfig
}

// Cache returns the configuration of the named cache.
func (c *Config) Cache(name string) (CacheConfig, bool) {
	for _, cc := range c.Caches {
		if cc.Name == name {
			return cc, true
		}
	}
	return CacheConfig{}, false
}
