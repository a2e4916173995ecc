// Package config builds a ready-to-use cache stack from a YAML file.
//
//	provider:
//	  type: redis
//	  key_prefix: "app:prod:"
//	generations:
//	  type: redis
//	  namespace: app
//	redis:
//	  addr: 127.0.0.1:6379
//	codec: msgpack
//	logger:
//	  type: zap
//	  level: info
//	hooks:
//	  type: prometheus
//	  async_queue: 1024
//	cache:
//	  stale_while_revalidate: 1m
package config

import "time"

const (
	ProviderRistretto = "ristretto"
	ProviderBigCache  = "bigcache"
	ProviderRedis     = "redis"

	GenLocal = "local"
	GenRedis = "redis"

	LoggerNone   = "none"
	LoggerZap    = "zap"
	LoggerLogrus = "logrus"
	LoggerSlog   = "slog"

	HooksNone       = "none"
	HooksSlog       = "slog"
	HooksPrometheus = "prometheus"
)

type Config struct {
	Provider    *ProviderConfig `yaml:"provider" json:"provider" validate:"required"`
	Generations *GenConfig      `yaml:"generations" json:"generations" validate:"required"`
	Redis       *RedisConfig    `yaml:"redis" json:"redis"`
	Codec       string          `yaml:"codec" json:"codec" validate:"omitempty,oneof=msgpack cbor json"`
	// MaxDecodeBytes caps decoded payloads; 0 disables the cap.
	MaxDecodeBytes int           `yaml:"max_decode_bytes" json:"max_decode_bytes" validate:"min=0"`
	Logger         *LoggerConfig `yaml:"logger" json:"logger" validate:"required"`
	Hooks          *HooksConfig  `yaml:"hooks" json:"hooks" validate:"required"`
	Store          *StoreConfig  `yaml:"store" json:"store" validate:"required"`
	Cache          *CacheConfig  `yaml:"cache" json:"cache" validate:"required"`
}

type ProviderConfig struct {
	Type string `yaml:"type" json:"type" validate:"required,oneof=ristretto bigcache redis"`

	// ristretto
	NumCounters int64 `yaml:"num_counters" json:"num_counters" validate:"min=0"`
	MaxCost     int64 `yaml:"max_cost" json:"max_cost" validate:"min=0"`

	// bigcache
	LifeWindow         time.Duration `yaml:"life_window" json:"life_window" validate:"min=0"`
	Shards             int           `yaml:"shards" json:"shards" validate:"min=0"`
	HardMaxCacheSizeMB int           `yaml:"hard_max_cache_size_mb" json:"hard_max_cache_size_mb" validate:"min=0"`

	// redis
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

type GenConfig struct {
	Type string `yaml:"type" json:"type" validate:"required,oneof=local redis"`

	// local
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval" validate:"min=0"`
	Retention       time.Duration `yaml:"retention" json:"retention" validate:"min=0"`

	// redis
	Namespace string        `yaml:"namespace" json:"namespace" validate:"required_if=Type redis"`
	TTL       time.Duration `yaml:"ttl" json:"ttl" validate:"min=0"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr" validate:"required,hostname_port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db" validate:"min=0"`
}

type LoggerConfig struct {
	Type  string `yaml:"type" json:"type" validate:"required,oneof=none zap logrus slog"`
	Level string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn error"`
}

type HooksConfig struct {
	Type string `yaml:"type" json:"type" validate:"required,oneof=none slog prometheus"`
	// AsyncQueue > 0 wraps the hooks in hooks/async with that queue size.
	AsyncQueue   int    `yaml:"async_queue" json:"async_queue" validate:"min=0"`
	AsyncWorkers int    `yaml:"async_workers" json:"async_workers" validate:"min=0"`
	Namespace    string `yaml:"namespace" json:"namespace"`
	LookupEvery  uint64 `yaml:"lookup_every" json:"lookup_every"`
}

type StoreConfig struct {
	StaleRetention time.Duration `yaml:"stale_retention" json:"stale_retention"`
}

type CacheConfig struct {
	Disabled             bool          `yaml:"disabled" json:"disabled"`
	RegistryCapacity     int           `yaml:"registry_capacity" json:"registry_capacity" validate:"min=0"`
	StaleWhileRevalidate time.Duration `yaml:"stale_while_revalidate" json:"stale_while_revalidate" validate:"min=0"`
	SharedTagFallback    bool          `yaml:"shared_tag_fallback" json:"shared_tag_fallback"`
}
