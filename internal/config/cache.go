package config

import (
	"strings"
	"time"
)

// CacheConfig parameterizes the Redis response cache. Methods holds
// the HTTP methods worth caching (uppercased); KeyStrategy selects
// what goes into the cache key; MaxBodyBytes caps the response size a
// cache entry may hold.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads the response-cache settings from the
// environment, with defaults suitable for the public read endpoints.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      methodSet(envStr("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

func methodSet(csv string) map[string]bool {
	set := make(map[string]bool)
	for _, m := range strings.Split(csv, ",") {
		if m = strings.TrimSpace(strings.ToUpper(m)); m != "" {
			set[m] = true
		}
	}
	return set
}
