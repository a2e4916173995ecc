// Package genstore keeps invalidation generations. The store stamps every
// entry with the generations of its tags at write time; invalidating a tag
// bumps its generation, and any entry stamped with an older one reads back
// stale.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// Use Local for a single process, Redis when several replicas share a backend.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, name string) (uint64, error)
	// SnapshotMany returns gens for many names; missing => 0.
	SnapshotMany(ctx context.Context, names []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, name string) (uint64, error)
	// Cleanup prunes generations not bumped within retention (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
