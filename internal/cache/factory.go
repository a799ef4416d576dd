// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"fmt"
	"time"
)

// Backend names reported by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds configuration for cache creation.
type Config struct {
	// RedisURL selects the Redis backend when set.
	RedisURL string

	// Prefix is prepended to Redis keys.
	Prefix string

	DefaultTTL time.Duration

	// MaxSize caps the memory cache entry count (0 = unlimited).
	MaxSize int

	CleanupInterval time.Duration
}

// DefaultConfig returns the memory cache defaults.
func DefaultConfig() Config {
	return Config{
		Prefix:          "blockpress:",
		DefaultTTL:      5 * time.Minute,
		MaxSize:         10000,
		CleanupInterval: time.Minute,
	}
}

// New creates a Redis cache when a URL is configured and a memory cache
// otherwise. It returns the backend name alongside the cache.
func New(cfg Config) (Cacher, string, error) {
	if cfg.RedisURL != "" {
		opts := DefaultRedisCacheOptions()
		opts.URL = cfg.RedisURL
		if cfg.Prefix != "" {
			opts.Prefix = cfg.Prefix
		}
		if cfg.DefaultTTL > 0 {
			opts.DefaultTTL = cfg.DefaultTTL
		}
		c, err := NewRedisCache(opts)
		if err != nil {
			return nil, "", fmt.Errorf("connecting to redis: %w", err)
		}
		return c, BackendRedis, nil
	}

	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      cfg.DefaultTTL,
		MaxSize:         cfg.MaxSize,
		CleanupInterval: cfg.CleanupInterval,
	}), BackendMemory, nil
}
