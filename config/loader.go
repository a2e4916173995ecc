package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/revalcache"
	"github.com/unkn0wn-root/revalcache/store"
)

var ErrConfigNotFound = errors.New("config: path is empty")

type Loader struct {
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (l *Loader) LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return nil, ErrConfigNotFound
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return l.Parse(data)
}

// Parse overlays data on Defaults and validates the result.
func (l *Loader) Parse(data []byte) (*Config, error) {
	cfg := l.Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse YAML: %w", err)
	}
	if err := l.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) Validate(cfg *Config) error {
	if err := l.validator.Struct(cfg); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	if cfg.Redis == nil && (cfg.Provider.Type == ProviderRedis || cfg.Generations.Type == GenRedis) {
		return errors.New("config: redis section is required for redis provider or generations")
	}
	return nil
}

// Defaults is an in-process stack: ristretto bytes, local generations,
// msgpack payloads, no logging or hooks.
func (l *Loader) Defaults() *Config {
	return &Config{
		Provider: &ProviderConfig{
			Type:        ProviderRistretto,
			NumCounters: 1e6,
			MaxCost:     256 << 20,
			LifeWindow:  24 * time.Hour,
		},
		Generations: &GenConfig{
			Type:            GenLocal,
			CleanupInterval: time.Hour,
			Retention:       30 * 24 * time.Hour,
		},
		Codec: "msgpack",
		Logger: &LoggerConfig{
			Type:  LoggerNone,
			Level: "info",
		},
		Hooks: &HooksConfig{
			Type: HooksNone,
		},
		Store: &StoreConfig{
			StaleRetention: store.DefaultStaleRetention,
		},
		Cache: &CacheConfig{
			RegistryCapacity: revalcache.DefaultRegistryCapacity,
		},
	}
}
