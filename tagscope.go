package revalcache

import (
	"context"
	"slices"
	"sync"
)

// Tags touched while producing a response are collected in a scope carried
// by context.Context. Every call that can touch tags takes the request
// context, so isolation follows ordinary context propagation: goroutines
// started with a derived context share the scope, unrelated requests never do.

type tagScopeKey struct{}

type tagScope struct {
	mu   sync.Mutex
	tags []string
}

func (s *tagScope) add(tags []string) {
	s.mu.Lock()
	for _, t := range tags {
		if t != "" && !slices.Contains(s.tags, t) {
			s.tags = append(s.tags, t)
		}
	}
	s.mu.Unlock()
}

func (s *tagScope) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tags)
}

func (s *tagScope) reset() {
	s.mu.Lock()
	s.tags = nil
	s.mu.Unlock()
}

// WithTagScope returns a child of ctx with a fresh, empty tag scope.
// A scope already present in ctx is shadowed, not extended.
func WithTagScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, tagScopeKey{}, &tagScope{})
}

func scopeFrom(ctx context.Context) (*tagScope, bool) {
	s, ok := ctx.Value(tagScopeKey{}).(*tagScope)
	return s, ok
}

// Scoped runs body inside a fresh tag scope and returns its result together
// with the tags collected while it ran.
func Scoped[T any](ctx context.Context, body func(ctx context.Context) (T, error)) (T, []string, error) {
	ctx = WithTagScope(ctx)
	v, err := body(ctx)
	s, _ := scopeFrom(ctx)
	return v, s.list(), err
}

// TagContext resolves the tag scope for a context. When a context carries
// no scope it either drops tags or, with the shared fallback enabled, uses
// one process-wide list.
//
// The shared list is only correct when operations run strictly one after
// another and ResetShared is called at the start of each of them.
type TagContext struct {
	shared *tagScope // nil => fallback disabled
	log    Logger
}

func newTagContext(sharedFallback bool, log Logger) *TagContext {
	tc := &TagContext{log: log}
	if sharedFallback {
		tc.shared = &tagScope{}
	}
	return tc
}

func (tc *TagContext) scope(ctx context.Context) *tagScope {
	if s, ok := scopeFrom(ctx); ok {
		return s
	}
	return tc.shared
}

// Add appends tags to the current scope, skipping duplicates.
func (tc *TagContext) Add(ctx context.Context, tags ...string) {
	if len(tags) == 0 {
		return
	}
	s := tc.scope(ctx)
	if s == nil {
		tc.log.Debug("tags dropped: no tag scope in context", Fields{"tags": tags})
		return
	}
	s.add(tags)
}

// Collected returns a copy of the tags accumulated in the current scope.
func (tc *TagContext) Collected(ctx context.Context) []string {
	if s := tc.scope(ctx); s != nil {
		return s.list()
	}
	return nil
}

// ResetShared clears the shared fallback list. No-op when disabled.
func (tc *TagContext) ResetShared() {
	if tc.shared != nil {
		tc.shared.reset()
	}
}

// AddTags appends tags to the scope carried by ctx. Without a scope it is a
// no-op; use Cache.Tags().Add to honor the shared fallback.
func AddTags(ctx context.Context, tags ...string) {
	if s, ok := scopeFrom(ctx); ok {
		s.add(tags)
	}
}

// CollectedTags returns the tags accumulated in the scope carried by ctx.
func CollectedTags(ctx context.Context) []string {
	if s, ok := scopeFrom(ctx); ok {
		return s.list()
	}
	return nil
}
