// Package sloghooks reports cache events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/revalcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	LookupEvery uint64
	SkipEvery   uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	lookupCtr atomic.Uint64
	skipCtr   atomic.Uint64
}

var _ revalcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Lookup(kind revalcache.Kind, key string, status revalcache.CacheStatus) {
	if h.l == nil || !sample(h.opts.LookupEvery, &h.lookupCtr) {
		return
	}
	h.l.Debug("revalcache.lookup",
		"kind", string(kind),
		"key", h.redact(key),
		"status", string(status))
}

func (h *Hooks) RegenerationSkipped(key string) {
	if h.l == nil || !sample(h.opts.SkipEvery, &h.skipCtr) {
		return
	}
	h.l.Debug("revalcache.regeneration_skipped",
		"key", h.redact(key))
}

func (h *Hooks) Regeneration(key string, took time.Duration, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		h.l.Warn("revalcache.regeneration_failed",
			"key", h.redact(key),
			"took", took,
			"err", err)
		return
	}
	h.l.Info("revalcache.regenerated",
		"key", h.redact(key),
		"took", took)
}

func (h *Hooks) BackgroundWriteFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("revalcache.background_write_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) RegistryEvicted(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("revalcache.registry_evicted",
		"key", h.redact(key))
}
