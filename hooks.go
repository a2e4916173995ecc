package revalcache

import "time"

// CacheStatus is the lookup outcome surfaced to the host, typically as an
// x-cache style response header.
type CacheStatus string

const (
	StatusMiss  CacheStatus = "MISS"
	StatusHit   CacheStatus = "HIT"
	StatusStale CacheStatus = "STALE"
)

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; wrap slow sinks with
// hooks/async.
type Hooks interface {
	// A page, component or call lookup finished with status.
	Lookup(kind Kind, key string, status CacheStatus)

	// A regeneration was requested while one was already in flight for key.
	RegenerationSkipped(key string)

	// A background regeneration or stale refetch finished. err is nil on success.
	Regeneration(key string, took time.Duration, err error)

	// An asynchronous write of a freshly fetched call result failed.
	BackgroundWriteFailed(key string, err error)

	// The revalidation registry dropped key to stay within capacity.
	RegistryEvicted(key string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Lookup(Kind, string, CacheStatus)           {}
func (NopHooks) RegenerationSkipped(string)                 {}
func (NopHooks) Regeneration(string, time.Duration, error) {}
func (NopHooks) BackgroundWriteFailed(string, error)        {}
func (NopHooks) RegistryEvicted(string)                     {}
