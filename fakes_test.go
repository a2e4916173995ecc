package revalcache

import (
	"context"
	"slices"
	"sync"
	"time"
)

type memRecord struct {
	v       CachedValue
	written time.Time
	ttl     time.Duration
	tags    []string
}

// memBackend decides freshness the way a real backend would: by age, and
// by tag or path invalidations that happened after the write.
type memBackend struct {
	mu          sync.Mutex
	m           map[string]memRecord
	invalidated map[string]time.Time // "tag:x" / key => when
	now         time.Time

	gets, sets int
	getErr     error
	setErr     error
}

var _ Backend = (*memBackend)(nil)

func newMemBackend() *memBackend {
	return &memBackend{
		m:           make(map[string]memRecord),
		invalidated: make(map[string]time.Time),
		now:         time.Unix(1_700_000_000, 0),
	}
}

func (b *memBackend) Advance(d time.Duration) {
	b.mu.Lock()
	b.now = b.now.Add(d)
	b.mu.Unlock()
}

func (b *memBackend) Get(_ context.Context, key string, hint Hint) (*Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets++
	if b.getErr != nil {
		return nil, b.getErr
	}
	r, ok := b.m[key]
	if !ok {
		return nil, nil
	}
	if hint.Kind != "" && r.v.Kind() != hint.Kind {
		return nil, nil
	}
	e := &Entry{Value: r.v, Freshness: Fresh}
	if r.ttl > 0 && b.now.Sub(r.written) > r.ttl {
		e.Freshness = Stale
	}
	marks := []string{key}
	for _, t := range r.tags {
		marks = append(marks, "tag:"+t)
	}
	for _, m := range marks {
		if at, ok := b.invalidated[m]; ok && !at.Before(r.written) {
			e.Freshness = Stale
		}
	}
	return e, nil
}

func (b *memBackend) Set(_ context.Context, key string, v CachedValue, opts SetOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.setErr != nil {
		return b.setErr
	}
	b.sets++
	// a write at the same instant as an invalidation must read back fresh
	b.now = b.now.Add(time.Nanosecond)
	b.m[key] = memRecord{v: v, written: b.now, ttl: opts.TTL, tags: slices.Clone(opts.Tags)}
	return nil
}

func (b *memBackend) InvalidateTag(_ context.Context, tag string) error {
	b.mu.Lock()
	b.invalidated["tag:"+tag] = b.now
	b.mu.Unlock()
	return nil
}

func (b *memBackend) InvalidatePath(_ context.Context, path string) error {
	b.mu.Lock()
	b.invalidated[CacheKey(KindPage, path)] = b.now
	b.invalidated[CacheKey(KindComponent, path)] = b.now
	b.mu.Unlock()
	return nil
}

func (b *memBackend) record(key string) (memRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.m[key]
	return r, ok
}

func (b *memBackend) counts() (gets, sets int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gets, b.sets
}

type regenEvent struct {
	key string
	err error
}

type recordingHooks struct {
	mu       sync.Mutex
	lookups  map[CacheStatus]int
	skipped  int
	regens   []regenEvent
	failures []string
	evicted  []string
}

var _ Hooks = (*recordingHooks)(nil)

func newRecordingHooks() *recordingHooks {
	return &recordingHooks{lookups: make(map[CacheStatus]int)}
}

func (h *recordingHooks) Lookup(_ Kind, _ string, s CacheStatus) {
	h.mu.Lock()
	h.lookups[s]++
	h.mu.Unlock()
}

func (h *recordingHooks) RegenerationSkipped(string) {
	h.mu.Lock()
	h.skipped++
	h.mu.Unlock()
}

func (h *recordingHooks) Regeneration(key string, _ time.Duration, err error) {
	h.mu.Lock()
	h.regens = append(h.regens, regenEvent{key: key, err: err})
	h.mu.Unlock()
}

func (h *recordingHooks) BackgroundWriteFailed(key string, _ error) {
	h.mu.Lock()
	h.failures = append(h.failures, key)
	h.mu.Unlock()
}

func (h *recordingHooks) RegistryEvicted(key string) {
	h.mu.Lock()
	h.evicted = append(h.evicted, key)
	h.mu.Unlock()
}

func (h *recordingHooks) lookupCount(s CacheStatus) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lookups[s]
}

func (h *recordingHooks) regenerations() []regenEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.regens)
}
