package revalcache

import (
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Registry remembers the TTL each key was last written with, so a hit can
// carry accurate Cache-Control headers without asking the backend.
//
// It is bounded: once full, the least recently written key is dropped.
// Reads use Peek and never refresh recency. Losing an entry only degrades
// header accuracy.
type Registry struct {
	c *lru.Cache[string, time.Duration]
}

// NewRegistry returns a registry holding at most capacity keys.
// onEvict may be nil.
func NewRegistry(capacity int, onEvict func(key string)) (*Registry, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("revalcache: registry capacity must be positive, got %d", capacity)
	}
	var (
		c   *lru.Cache[string, time.Duration]
		err error
	)
	if onEvict != nil {
		c, err = lru.NewWithEvict[string, time.Duration](capacity, func(k string, _ time.Duration) { onEvict(k) })
	} else {
		c, err = lru.New[string, time.Duration](capacity)
	}
	if err != nil {
		return nil, err
	}
	return &Registry{c: c}, nil
}

// Record stores ttl for key and marks key as the most recently written.
func (r *Registry) Record(key string, ttl time.Duration) {
	r.c.Add(key, ttl)
}

func (r *Registry) TTL(key string) (time.Duration, bool) {
	return r.c.Peek(key)
}

func (r *Registry) Len() int { return r.c.Len() }

// CacheControl renders the shared-cache header for key. A forever entry is
// advertised with one year, as CDNs treat an absent s-maxage differently.
// swr <= 0 leaves the stale-while-revalidate window open-ended.
func (r *Registry) CacheControl(key string, swr time.Duration) (string, bool) {
	ttl, ok := r.TTL(key)
	if !ok {
		return "", false
	}
	return cacheControl(ttl, swr), true
}

func cacheControl(ttl, swr time.Duration) string {
	if ttl <= TTLForever {
		ttl = IndefiniteTTL
	}
	v := "s-maxage=" + strconv.FormatInt(seconds(ttl), 10) + ", stale-while-revalidate"
	if swr > 0 {
		v += "=" + strconv.FormatInt(seconds(swr), 10)
	}
	return v
}

// seconds rounds d up to whole seconds, never below 1.
func seconds(d time.Duration) int64 {
	s := int64((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
