package revalcache

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RefreshFunc regenerates the value behind a key. It runs detached from the
// request that triggered it; wrap it with a timeout if it must be bounded.
type RefreshFunc func(ctx context.Context) error

// Coordinator runs background refreshes with at most one in flight per key.
// The in-flight slot is released when the refresh returns, whether it
// succeeded or not, so a later Trigger may try again.
type Coordinator struct {
	mu       sync.Mutex
	inflight map[string]chan struct{}
	wg       sync.WaitGroup

	log    Logger
	hooks  Hooks
	tracer trace.Tracer
}

func newCoordinator(log Logger, hooks Hooks, tracer trace.Tracer) *Coordinator {
	return &Coordinator{
		inflight: make(map[string]chan struct{}),
		log:      log,
		hooks:    hooks,
		tracer:   tracer,
	}
}

// Trigger starts fn for key unless a refresh for key is already running.
// It never blocks on fn and never observes its outcome. The return value
// reports whether this call started a new refresh.
//
// fn runs on a context that keeps ctx's values but not its cancellation.
func (c *Coordinator) Trigger(ctx context.Context, key string, fn RefreshFunc) bool {
	c.mu.Lock()
	if _, busy := c.inflight[key]; busy {
		c.mu.Unlock()
		c.log.Debug("refresh already in flight", Fields{"key": key})
		c.hooks.RegenerationSkipped(key)
		return false
	}
	done := make(chan struct{})
	c.inflight[key] = done
	c.wg.Add(1)
	c.mu.Unlock()

	bg := context.WithoutCancel(ctx)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.inflight, key)
			c.mu.Unlock()
			close(done)
		}()
		c.run(bg, key, fn)
	}()
	return true
}

// InFlight reports whether a refresh for key is currently running.
func (c *Coordinator) InFlight(key string) bool {
	c.mu.Lock()
	_, ok := c.inflight[key]
	c.mu.Unlock()
	return ok
}

// Done returns a channel closed once the in-flight refresh for key has
// finished and released its slot. It returns nil if none is running.
func (c *Coordinator) Done(key string) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight[key]
}

// Wait blocks until every refresh triggered so far has finished.
func (c *Coordinator) Wait() { c.wg.Wait() }

func (c *Coordinator) run(ctx context.Context, key string, fn RefreshFunc) {
	ctx, span := c.tracer.Start(ctx, "revalcache.refresh",
		trace.WithAttributes(attribute.String("revalcache.key", key)))
	defer span.End()

	start := time.Now()
	err := safeRefresh(ctx, key, fn)
	took := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Warn("background refresh failed", Fields{"key": key, "err": err, "took": took})
	} else {
		c.log.Debug("background refresh done", Fields{"key": key, "took": took})
	}
	c.hooks.Regeneration(key, took, err)
}

func safeRefresh(ctx context.Context, key string, fn RefreshFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RefreshError{Key: key, Panic: r}
		}
	}()
	if err := fn(ctx); err != nil {
		return &RefreshError{Key: key, Err: err}
	}
	return nil
}
