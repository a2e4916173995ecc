package revalcache

import (
	"context"
	"time"
)

// TTLForever marks an entry that never goes stale by age. Only tag or path
// invalidation can make it stale.
const TTLForever time.Duration = 0

// Freshness is the backend's verdict for a stored entry. The cache never
// computes it; it only reacts to it.
type Freshness uint8

const (
	Fresh Freshness = iota
	Stale
)

func (f Freshness) String() string {
	if f == Stale {
		return "stale"
	}
	return "fresh"
}

// Entry is what a Backend returns on a hit.
type Entry struct {
	Value     CachedValue
	Freshness Freshness
}

// Hint tells the backend what the caller expects under a key. Backends may
// use Kind to reject foreign shapes and Tags to check invalidations that
// happened after the entry was written.
type Hint struct {
	Kind Kind
	Tags []string
}

// SetOptions carries the write-time intent attached to a value.
type SetOptions struct {
	TTL  time.Duration // TTLForever => no age-based staleness
	Tags []string
}

// Backend is the storage contract the cache consumes. Expiry, eviction and
// the fresh/stale verdict are the backend's concern.
//
// Implementations must be safe for concurrent use. Get returns (nil, nil)
// on a miss; an error only on an I/O failure. InvalidateTag and
// InvalidatePath are called by the host directly, never by this package.
type Backend interface {
	Get(ctx context.Context, key string, hint Hint) (*Entry, error)
	Set(ctx context.Context, key string, value CachedValue, opts SetOptions) error
	InvalidateTag(ctx context.Context, tag string) error
	InvalidatePath(ctx context.Context, path string) error
}
