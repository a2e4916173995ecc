package revalcache

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

var errEmptyRender = errors.New("revalcache: render produced an empty value")

// Result is a page-layer hit.
type Result struct {
	Value   CachedValue
	IsStale bool
}

// RenderFunc produces the value for a key. Outbound calls it makes through
// Cache.Transport contribute their tags to the render's scope.
type RenderFunc func(ctx context.Context) (CachedValue, error)

// Served is what Serve hands back to the host's response writer.
type Served struct {
	Value        CachedValue
	Status       CacheStatus
	CacheControl string
}

// Cache is the page revalidation layer and the owner of the process-wide
// bookkeeping shared with the outbound-call layer.
type Cache struct {
	backend Backend
	log     Logger
	hooks   Hooks
	tracer  trace.Tracer
	enabled bool
	swr     time.Duration

	registry *Registry
	coord    *Coordinator
	tags     *TagContext

	// asynchronous call-result writes
	writes sync.WaitGroup
}

func newCache(opts Options) (*Cache, error) {
	if opts.Backend == nil {
		return nil, ErrNilBackend
	}

	c := &Cache{
		backend: opts.Backend,
		enabled: !opts.Disabled,
		swr:     opts.StaleWhileRevalidate,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.tracer = tracerFrom(opts.TracerProvider)

	reg, err := NewRegistry(coalesce(opts.RegistryCapacity, DefaultRegistryCapacity), c.hooks.RegistryEvicted)
	if err != nil {
		return nil, err
	}
	c.registry = reg
	c.coord = newCoordinator(c.log, c.hooks, c.tracer)
	c.tags = newTagContext(opts.SharedTagFallback, c.log)
	return c, nil
}

func (c *Cache) Enabled() bool { return c.enabled }

func (c *Cache) Backend() Backend          { return c.backend }
func (c *Cache) Registry() *Registry       { return c.registry }
func (c *Cache) Coordinator() *Coordinator { return c.coord }
func (c *Cache) Tags() *TagContext         { return c.tags }

// Get reads key from the backend. A nil or empty value is a miss. Backend
// failures are returned as *BackendError; Get does not retry.
func (c *Cache) Get(ctx context.Context, key string) (Result, bool, error) {
	if !c.enabled {
		return Result{}, false, nil
	}
	e, err := c.backend.Get(ctx, key, Hint{Kind: kindOfKey(key)})
	if err != nil {
		return Result{}, false, &BackendError{Op: "get", Key: key, Err: err}
	}
	if e == nil || IsEmpty(e.Value) {
		return Result{}, false, nil
	}
	return Result{Value: e.Value, IsStale: e.Freshness == Stale}, true, nil
}

// Set writes value through to the backend with ttl and tags, then records
// ttl in the registry. The registry is not touched if the write fails.
func (c *Cache) Set(ctx context.Context, key string, value CachedValue, ttl time.Duration, tags []string) error {
	if !c.enabled {
		return nil
	}
	if isNilValue(value) || !value.Kind().Valid() {
		return ErrInvalidKind
	}
	opts := SetOptions{TTL: ttl, Tags: dedupTags(tags)}
	if err := c.backend.Set(ctx, key, value, opts); err != nil {
		return &BackendError{Op: "set", Key: key, Err: err}
	}
	c.registry.Record(key, ttl)
	return nil
}

// CacheControl renders the Cache-Control value for key from the registry.
func (c *Cache) CacheControl(key string) (string, bool) {
	return c.registry.CacheControl(key, c.swr)
}

// Serve is the render path: fresh hits are returned as is, stale hits are
// returned and regenerated in the background, misses are rendered inline and
// stored with the caller's tags plus every tag collected during the render.
//
// A backend read failure is treated as a miss. A failed write after a
// successful render is logged; the rendered value is still served.
func (c *Cache) Serve(ctx context.Context, key string, ttl time.Duration, render RenderFunc, tags ...string) (Served, error) {
	kind := kindOfKey(key)

	res, ok, err := c.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache read failed, rendering", keyFields(key, err))
		ok = false
	}
	if ok {
		status := StatusHit
		if res.IsStale {
			status = StatusStale
			c.Revalidate(ctx, key, ttl, render, tags...)
		}
		c.hooks.Lookup(kind, key, status)
		return Served{Value: res.Value, Status: status, CacheControl: c.headerFor(key, ttl)}, nil
	}

	v, collected, err := Scoped(ctx, func(ctx context.Context) (CachedValue, error) { return render(ctx) })
	if err != nil {
		return Served{}, err
	}
	if !IsEmpty(v) {
		if err := c.Set(ctx, key, v, ttl, append(slices.Clone(tags), collected...)); err != nil {
			c.log.Warn("cache write after render failed", keyFields(key, err))
		}
	}
	c.hooks.Lookup(kind, key, StatusMiss)
	return Served{Value: v, Status: StatusMiss, CacheControl: cacheControl(ttl, c.swr)}, nil
}

// Revalidate regenerates key in the background unless a regeneration for it
// is already running. It reports whether a new one was started.
func (c *Cache) Revalidate(ctx context.Context, key string, ttl time.Duration, render RenderFunc, tags ...string) bool {
	return c.coord.Trigger(ctx, key, func(ctx context.Context) error {
		v, collected, err := Scoped(ctx, func(ctx context.Context) (CachedValue, error) { return render(ctx) })
		if err != nil {
			return err
		}
		if IsEmpty(v) {
			return errEmptyRender
		}
		return c.Set(ctx, key, v, ttl, append(slices.Clone(tags), collected...))
	})
}

func (c *Cache) headerFor(key string, ttl time.Duration) string {
	if h, ok := c.CacheControl(key); ok {
		return h
	}
	return cacheControl(ttl, c.swr)
}

// Wait blocks until background regenerations and asynchronous call writes
// started so far have finished.
func (c *Cache) Wait() {
	c.coord.Wait()
	c.writes.Wait()
}

// Close waits for background work, then closes the backend if it has a
// Close(context.Context) error method.
func (c *Cache) Close(ctx context.Context) error {
	c.Wait()
	if cl, ok := c.backend.(interface{ Close(context.Context) error }); ok {
		return cl.Close(ctx)
	}
	return nil
}

// kindOfKey recovers the kind from a key built by CacheKey. Unknown
// prefixes yield "" and the backend skips the kind check.
func kindOfKey(key string) Kind {
	i := strings.IndexByte(key, ':')
	if i <= 0 {
		return ""
	}
	if k := Kind(key[:i]); k.Valid() {
		return k
	}
	return ""
}

func dedupTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
