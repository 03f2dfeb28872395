package app

import (
	"strings"

	"github.com/charlesng35/cmsauth/internal/cache"
)

// Cache drivers.
const (
	CacheDriverMemory   = "memory"
	CacheDriverRedis    = "redis"
	CacheDriverDatabase = "database"
)

// DriverName normalises the configured cache driver, defaulting to memory.
func (c CacheConfig) DriverName() string {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	if driver == "" {
		return CacheDriverMemory
	}
	return driver
}

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:   strings.TrimSpace(c.Redis.Address),
		Username:  strings.TrimSpace(c.Redis.Username),
		Password:  c.Redis.Password,
		DB:        c.Redis.DB,
		TLS:       c.Redis.TLS,
		Timeout:   c.Redis.Timeout,
		PoolSize:  c.Redis.PoolSize,
		KeyPrefix: strings.TrimSpace(c.Redis.KeyPrefix),
	}
}
