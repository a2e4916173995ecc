package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/revalcache"
	"github.com/unkn0wn-root/revalcache/codec"
	"github.com/unkn0wn-root/revalcache/genstore"
	asynchook "github.com/unkn0wn-root/revalcache/hooks/async"
	rclogrus "github.com/unkn0wn-root/revalcache/log/logrus"
	rcslog "github.com/unkn0wn-root/revalcache/log/slog"
	rczap "github.com/unkn0wn-root/revalcache/log/zap"
	"github.com/unkn0wn-root/revalcache/promhooks"
	"github.com/unkn0wn-root/revalcache/provider"
	"github.com/unkn0wn-root/revalcache/provider/bigcache"
	"github.com/unkn0wn-root/revalcache/provider/redis"
	"github.com/unkn0wn-root/revalcache/provider/ristretto"
	"github.com/unkn0wn-root/revalcache/sloghooks"
	"github.com/unkn0wn-root/revalcache/store"
)

// BuildOptions carries runtime dependencies a YAML file cannot describe.
type BuildOptions struct {
	Redis          goredis.UniversalClient // overrides Config.Redis
	TracerProvider trace.TracerProvider
	Registerer     prometheus.Registerer
}

// Stack is a built cache and everything it owns.
type Stack struct {
	Cache *revalcache.Cache
	Store *store.Store

	closers []func(context.Context) error
}

// Close waits for background work, then releases the store, hooks and
// any Redis client the stack created, in that order.
func (s *Stack) Close(ctx context.Context) error {
	var errs []error
	if err := s.Cache.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, c := range s.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func Build(ctx context.Context, cfg *Config, bo BuildOptions) (st *Stack, err error) {
	st = &Stack{}
	defer func() {
		if err != nil {
			for _, c := range st.closers {
				_ = c(ctx)
			}
		}
	}()

	log, err := buildLogger(cfg.Logger)
	if err != nil {
		return st, err
	}

	rdb := bo.Redis
	if rdb == nil && cfg.Redis != nil && (cfg.Provider.Type == ProviderRedis || cfg.Generations.Type == GenRedis) {
		c := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rdb = c
		st.closers = append(st.closers, func(context.Context) error { return c.Close() })
	}

	p, err := buildProvider(ctx, cfg.Provider, rdb)
	if err != nil {
		return st, err
	}
	gs, err := buildGenStore(cfg.Generations, rdb)
	if err != nil {
		_ = p.Close(ctx)
		return st, err
	}
	cd, err := codec.ByName[store.Record](cfg.Codec)
	if err != nil {
		_ = p.Close(ctx)
		_ = gs.Close(ctx)
		return st, err
	}
	if cfg.MaxDecodeBytes > 0 {
		cd = codec.LimitCodec[store.Record]{Inner: cd, MaxDecode: cfg.MaxDecodeBytes}
	}

	s, err := store.New(store.Options{
		Provider:       p,
		GenStore:       gs,
		Codec:          cd,
		Logger:         log,
		StaleRetention: cfg.Store.StaleRetention,
		GenRetention:   genRetention(cfg.Generations),
	})
	if err != nil {
		_ = p.Close(ctx)
		_ = gs.Close(ctx)
		return st, err
	}
	st.Store = s

	hooks, closeHooks, err := buildHooks(cfg.Hooks, bo.Registerer)
	if err != nil {
		_ = s.Close(ctx)
		return st, err
	}
	if closeHooks != nil {
		st.closers = append([]func(context.Context) error{closeHooks}, st.closers...)
	}

	c, err := revalcache.New(revalcache.Options{
		Backend:              s,
		Logger:               log,
		Hooks:                hooks,
		TracerProvider:       bo.TracerProvider,
		RegistryCapacity:     cfg.Cache.RegistryCapacity,
		StaleWhileRevalidate: cfg.Cache.StaleWhileRevalidate,
		SharedTagFallback:    cfg.Cache.SharedTagFallback,
		Disabled:             cfg.Cache.Disabled,
	})
	if err != nil {
		_ = s.Close(ctx)
		return st, err
	}
	st.Cache = c
	return st, nil
}

func buildProvider(ctx context.Context, pc *ProviderConfig, rdb goredis.UniversalClient) (provider.Provider, error) {
	switch pc.Type {
	case ProviderRistretto:
		return ristretto.New(ristretto.Config{NumCounters: pc.NumCounters, MaxCost: pc.MaxCost})
	case ProviderBigCache:
		return bigcache.New(ctx, bigcache.Config{
			LifeWindow:         pc.LifeWindow,
			Shards:             pc.Shards,
			HardMaxCacheSizeMB: pc.HardMaxCacheSizeMB,
		})
	case ProviderRedis:
		return redis.New(redis.Config{Client: rdb, KeyPrefix: pc.KeyPrefix})
	}
	return nil, fmt.Errorf("config: unknown provider %q", pc.Type)
}

func buildGenStore(gc *GenConfig, rdb goredis.UniversalClient) (genstore.GenStore, error) {
	switch gc.Type {
	case GenLocal:
		return genstore.NewLocal(gc.CleanupInterval, gc.Retention), nil
	case GenRedis:
		return genstore.NewRedis(genstore.RedisConfig{Client: rdb, Namespace: gc.Namespace, TTL: gc.TTL})
	}
	return nil, fmt.Errorf("config: unknown generations store %q", gc.Type)
}

// genRetention is how long the configured store keeps a generation; 0 means
// the store default.
func genRetention(gc *GenConfig) time.Duration {
	if gc.Type == GenRedis {
		return gc.TTL
	}
	return gc.Retention
}

func buildLogger(lc *LoggerConfig) (revalcache.Logger, error) {
	switch lc.Type {
	case LoggerNone, "":
		return revalcache.NopLogger{}, nil
	case LoggerZap:
		lvl, err := zap.ParseAtomicLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("config: zap level: %w", err)
		}
		zc := zap.NewProductionConfig()
		zc.Level = lvl
		zl, err := zc.Build()
		if err != nil {
			return nil, fmt.Errorf("config: build zap: %w", err)
		}
		return rczap.New(zl), nil
	case LoggerLogrus:
		l := logrus.New()
		l.SetFormatter(&logrus.JSONFormatter{})
		lvl, err := logrus.ParseLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("config: logrus level: %w", err)
		}
		l.SetLevel(lvl)
		return rclogrus.New(l), nil
	case LoggerSlog:
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(lc.Level)); err != nil {
			return nil, fmt.Errorf("config: slog level: %w", err)
		}
		h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
		return rcslog.Logger{L: slog.New(h).With("component", "revalcache")}, nil
	}
	return nil, fmt.Errorf("config: unknown logger %q", lc.Type)
}

func buildHooks(hc *HooksConfig, reg prometheus.Registerer) (revalcache.Hooks, func(context.Context) error, error) {
	var h revalcache.Hooks
	switch hc.Type {
	case HooksNone, "":
		return revalcache.NopHooks{}, nil, nil
	case HooksSlog:
		h = sloghooks.New(slog.Default(), sloghooks.Options{LookupEvery: hc.LookupEvery})
	case HooksPrometheus:
		ph, err := promhooks.New(promhooks.Options{Registerer: reg, Namespace: hc.Namespace})
		if err != nil {
			return nil, nil, fmt.Errorf("config: register metrics: %w", err)
		}
		h = ph
	default:
		return nil, nil, fmt.Errorf("config: unknown hooks %q", hc.Type)
	}
	if hc.AsyncQueue <= 0 {
		return h, nil, nil
	}
	ah := asynchook.New(h, hc.AsyncWorkers, hc.AsyncQueue)
	return ah, func(context.Context) error { ah.Close(); return nil }, nil
}
