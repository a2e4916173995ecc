// Package asynchook moves hook delivery off the request path. Events are
// queued to a fixed worker pool and dropped when the queue is full.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{LookupEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := revalcache.New(revalcache.Options{
//	    Backend: st,
//	    Hooks:   hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/revalcache"
)

type Hooks struct {
	inner   revalcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ revalcache.Hooks = (*Hooks)(nil)

func New(inner revalcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped is the number of events lost to a full queue.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed queue after Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) Lookup(kind revalcache.Kind, key string, s revalcache.CacheStatus) {
	h.try(func() { h.inner.Lookup(kind, key, s) })
}
func (h *Hooks) RegenerationSkipped(key string) {
	h.try(func() { h.inner.RegenerationSkipped(key) })
}
func (h *Hooks) Regeneration(key string, took time.Duration, err error) {
	h.try(func() { h.inner.Regeneration(key, took, err) })
}
func (h *Hooks) BackgroundWriteFailed(key string, err error) {
	h.try(func() { h.inner.BackgroundWriteFailed(key, err) })
}
func (h *Hooks) RegistryEvicted(key string) { h.try(func() { h.inner.RegistryEvicted(key) }) }
