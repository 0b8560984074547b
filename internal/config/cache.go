package config

import "time"

// StatsCacheConfig defines settings for the Redis cache in front of the
// statistics endpoint.  Entries are keyed per event and dropped whenever
// a mutation on that event succeeds, so TTL only bounds staleness caused
// by writers outside this service (e.g. attendance scans).
type StatsCacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// LoadStatsCacheConfig reads STATS_CACHE_* variables; defaults apply when unset.
func LoadStatsCacheConfig() StatsCacheConfig {
	return StatsCacheConfig{
		Enabled:      envBool("STATS_CACHE_ENABLED", true),
		TTL:          envDur("STATS_CACHE_TTL", 15*time.Second),
		Prefix:       envStr("STATS_CACHE_PREFIX", "stats"),
		MaxBodyBytes: envInt("STATS_CACHE_MAX_BODY_BYTES", 1<<20),
	}
}
