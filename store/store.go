// Package store is the default revalcache.Backend: values are framed in a
// versioned envelope and kept in a provider.Provider, while tag and path
// invalidations are generation bumps in a genstore.GenStore.
//
// Freshness is decided on read. An entry is stale when it is older than its
// TTL, or when any tag it was written with (including its own key) has been
// invalidated since. Stale entries are kept in the provider for
// StaleRetention past their TTL so they can be served while regenerating.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	rc "github.com/unkn0wn-root/revalcache"
	"github.com/unkn0wn-root/revalcache/codec"
	"github.com/unkn0wn-root/revalcache/genstore"
	"github.com/unkn0wn-root/revalcache/internal/wire"
	"github.com/unkn0wn-root/revalcache/provider"
)

const (
	DefaultStaleRetention = 24 * time.Hour
	defaultGenRetention   = 30 * 24 * time.Hour
	defaultSweep          = time.Hour

	tagPrefix = "tag:"
	keyPrefix = "key:"
)

var ErrNilProvider = errors.New("store: provider is required")

// SetCostFunc returns the provider cost of an encoded entry.
type SetCostFunc func(key string, raw []byte) int64

type Options struct {
	// Required
	Provider provider.Provider

	GenStore genstore.GenStore   // if nil, genstore.NewLocal is used
	Codec    codec.Codec[Record] // if nil, msgpack
	Logger   rc.Logger           // if nil, NopLogger

	// StaleRetention is how long an expired entry stays servable as stale.
	// 0 => DefaultStaleRetention; negative => as long as GenRetention.
	StaleRetention time.Duration
	// GenRetention is how long the generation store keeps a generation
	// after its last bump; 0 => 30 days. It must not exceed the retention of
	// a GenStore passed in. Entries are never kept or served past it, since
	// a pruned generation reads as 0 and would match the entry's stamp again.
	// CleanupInterval tunes the default local GenStore.
	GenRetention    time.Duration
	CleanupInterval time.Duration
	ComputeSetCost  SetCostFunc // default len(raw)

	Now func() time.Time // tests
}

// Store implements revalcache.Backend.
type Store struct {
	provider  provider.Provider
	gen       genstore.GenStore
	codec     codec.Codec[Record]
	log       rc.Logger
	retain    time.Duration // <0 => provider TTL is genRetain
	genRetain time.Duration
	cost      SetCostFunc
	now       func() time.Time
}

var _ rc.Backend = (*Store)(nil)

func New(opts Options) (*Store, error) {
	if opts.Provider == nil {
		return nil, ErrNilProvider
	}
	s := &Store{
		provider:  opts.Provider,
		gen:       opts.GenStore,
		codec:     opts.Codec,
		log:       opts.Logger,
		retain:    opts.StaleRetention,
		genRetain: opts.GenRetention,
		cost:      opts.ComputeSetCost,
		now:       opts.Now,
	}
	if s.codec == nil {
		s.codec = codec.Msgpack[Record]{}
	}
	if s.log == nil {
		s.log = rc.NopLogger{}
	}
	if s.retain == 0 {
		s.retain = DefaultStaleRetention
	}
	if s.cost == nil {
		s.cost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.genRetain <= 0 {
		s.genRetain = defaultGenRetention
	}
	if s.gen == nil {
		sweep := opts.CleanupInterval
		if sweep <= 0 {
			sweep = defaultSweep
		}
		s.gen = genstore.NewLocal(sweep, s.genRetain)
	}
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string, hint rc.Hint) (*rc.Entry, error) {
	raw, ok, err := s.provider.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	env, err := wire.Decode(raw)
	if err != nil {
		s.heal(ctx, key, err)
		return nil, nil
	}
	if s.now().UnixNano()-env.WrittenAt > int64(s.genRetain) {
		// generation stamps this old can no longer be checked (providers
		// without per-entry TTLs keep such entries)
		s.log.Debug("dropping entry older than generation retention", rc.Fields{"key": key})
		if err := s.provider.Del(ctx, key); err != nil {
			s.log.Debug("expired entry delete failed", rc.Fields{"key": key, "err": err})
		}
		return nil, nil
	}
	if want := wireKind(hint.Kind); want != 0 && want != env.Kind {
		// a different shape under this key is not ours to serve; leave it
		s.log.Debug("kind mismatch, treating as miss", rc.Fields{"key": key, "want": hint.Kind})
		return nil, nil
	}
	rec, err := s.codec.Decode(env.Payload)
	if err != nil {
		s.heal(ctx, key, err)
		return nil, nil
	}

	fresh, err := s.fresh(ctx, env)
	if err != nil {
		return nil, err
	}
	e := &rc.Entry{Value: rec.value(env.Kind), Freshness: rc.Fresh}
	if !fresh {
		e.Freshness = rc.Stale
	}
	return e, nil
}

func (s *Store) fresh(ctx context.Context, env wire.Envelope) (bool, error) {
	if env.TTL > 0 && s.now().UnixNano()-env.WrittenAt > env.TTL {
		return false, nil
	}
	if len(env.Tags) == 0 {
		return true, nil
	}
	names := make([]string, len(env.Tags))
	for i, t := range env.Tags {
		names[i] = t.Tag
	}
	cur, err := s.gen.SnapshotMany(ctx, names)
	if err != nil {
		return false, fmt.Errorf("store: snapshot gens: %w", err)
	}
	for _, t := range env.Tags {
		if cur[t.Tag] != t.Gen {
			return false, nil
		}
	}
	return true, nil
}

// Set stamps value with the current generation of every tag it carries
// plus its own key, so tag and path invalidations both reach it.
func (s *Store) Set(ctx context.Context, key string, value rc.CachedValue, opts rc.SetOptions) error {
	kind, rec, err := recordFrom(value)
	if err != nil {
		return err
	}
	payload, err := s.codec.Encode(rec)
	if err != nil {
		return fmt.Errorf("store: encode %q: %w", key, err)
	}

	names := make([]string, 0, len(opts.Tags)+1)
	names = append(names, keyPrefix+key)
	for _, t := range opts.Tags {
		if n := tagPrefix + t; t != "" && !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	gens, err := s.gen.SnapshotMany(ctx, names)
	if err != nil {
		return fmt.Errorf("store: snapshot gens: %w", err)
	}
	tgs := make([]wire.TagGen, len(names))
	for i, n := range names {
		tgs[i] = wire.TagGen{Tag: n, Gen: gens[n]}
	}

	ttl := opts.TTL
	if ttl < 0 {
		ttl = rc.TTLForever
	}
	raw, err := wire.Encode(wire.Envelope{
		Kind:      kind,
		WrittenAt: s.now().UnixNano(),
		TTL:       int64(ttl),
		Tags:      tgs,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("store: frame %q: %w", key, err)
	}

	ok, err := s.provider.Set(ctx, key, raw, s.cost(key, raw), s.retention(ttl))
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("write rejected by provider (pressure)", rc.Fields{"key": key})
	}
	return nil
}

// retention is the provider TTL for an entry with freshness ttl, capped at
// the generation retention.
func (s *Store) retention(ttl time.Duration) time.Duration {
	var keep time.Duration
	if ttl != rc.TTLForever && s.retain >= 0 {
		keep = ttl + s.retain
	}
	if keep <= 0 || keep > s.genRetain {
		keep = s.genRetain
	}
	return keep
}

// InvalidateTag marks every entry written with tag as stale.
func (s *Store) InvalidateTag(ctx context.Context, tag string) error {
	if tag == "" {
		return nil
	}
	if _, err := s.gen.Bump(ctx, tagPrefix+tag); err != nil {
		return &InvalidateError{Target: tagPrefix + tag, Errs: []error{err}}
	}
	return nil
}

// InvalidatePath marks the page and the component rendered for path as
// stale.
func (s *Store) InvalidatePath(ctx context.Context, path string) error {
	var errs []error
	for _, k := range []rc.Kind{rc.KindPage, rc.KindComponent} {
		if _, err := s.gen.Bump(ctx, keyPrefix+rc.CacheKey(k, path)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &InvalidateError{Target: "path:" + path, Errs: errs}
	}
	return nil
}

// Close releases the gen store (best effort) and the provider.
func (s *Store) Close(ctx context.Context) error {
	if s.gen != nil {
		_ = s.gen.Close(ctx)
	}
	return s.provider.Close(ctx)
}

func (s *Store) heal(ctx context.Context, key string, cause error) {
	s.log.Warn("dropping corrupt entry", rc.Fields{"key": key, "err": cause})
	if err := s.provider.Del(ctx, key); err != nil {
		s.log.Debug("self-heal delete failed", rc.Fields{"key": key, "err": err})
	}
}
