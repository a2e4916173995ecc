package revalcache

import "time"

const (
	// DefaultRegistryCapacity bounds the revalidation registry.
	DefaultRegistryCapacity = 10_000

	// IndefiniteTTL is used for outbound calls cached with force-cache or
	// with tags only. Such entries are effectively refreshed by invalidation.
	IndefiniteTTL = 365 * 24 * time.Hour

	tracerName = "github.com/unkn0wn-root/revalcache"
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
