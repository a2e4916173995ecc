package revalcache

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
)

func TestScopedCollectsAndIsolates(t *testing.T) {
	ctx := context.Background()
	_, outer, err := Scoped(ctx, func(ctx context.Context) (struct{}, error) {
		AddTags(ctx, "a", "b", "a", "")
		_, inner, _ := Scoped(ctx, func(ctx context.Context) (struct{}, error) {
			AddTags(ctx, "c")
			return struct{}{}, nil
		})
		if !slices.Equal(inner, []string{"c"}) {
			t.Errorf("inner scope = %v", inner)
		}
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Scoped: %v", err)
	}
	if !slices.Equal(outer, []string{"a", "b"}) {
		t.Fatalf("outer scope = %v (inner tags must not leak)", outer)
	}
	if CollectedTags(ctx) != nil {
		t.Fatalf("no scope outside Scoped")
	}
}

func TestScopedConcurrentScopesAreDisjoint(t *testing.T) {
	const n = 50
	var wg sync.WaitGroup
	results := make([][]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, tags, _ := Scoped(context.Background(), func(ctx context.Context) (int, error) {
				for j := 0; j < 5; j++ {
					AddTags(ctx, fmt.Sprintf("op%d-t%d", i, j))
				}
				return 0, nil
			})
			results[i] = tags
		}(i)
	}
	wg.Wait()

	for i, tags := range results {
		if len(tags) != 5 {
			t.Fatalf("op %d collected %d tags: %v", i, len(tags), tags)
		}
		for j, tag := range tags {
			if want := fmt.Sprintf("op%d-t%d", i, j); tag != want {
				t.Fatalf("op %d tag %d = %q, want %q", i, j, tag, want)
			}
		}
	}
}

func TestScopeSharedAcrossDerivedGoroutines(t *testing.T) {
	_, tags, _ := Scoped(context.Background(), func(ctx context.Context) (struct{}, error) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				AddTags(ctx, fmt.Sprintf("t%d", i%5))
			}(i)
		}
		wg.Wait()
		return struct{}{}, nil
	})
	if len(tags) != 5 {
		t.Fatalf("want 5 distinct tags, got %v", tags)
	}
}

func TestTagContextSharedFallback(t *testing.T) {
	ctx := context.Background()

	off := newTagContext(false, NopLogger{})
	off.Add(ctx, "x")
	if off.Collected(ctx) != nil {
		t.Fatalf("tags without a scope must be dropped when fallback is off")
	}

	on := newTagContext(true, NopLogger{})
	on.Add(ctx, "x", "y", "x")
	if got := on.Collected(ctx); !slices.Equal(got, []string{"x", "y"}) {
		t.Fatalf("shared list = %v", got)
	}

	// a scope in ctx wins over the shared list
	scoped := WithTagScope(ctx)
	on.Add(scoped, "z")
	if got := on.Collected(scoped); !slices.Equal(got, []string{"z"}) {
		t.Fatalf("scoped list = %v", got)
	}

	on.ResetShared()
	if got := on.Collected(ctx); len(got) != 0 {
		t.Fatalf("ResetShared left %v", got)
	}
	off.ResetShared() // no-op
}

func TestCollectedReturnsCopy(t *testing.T) {
	ctx := WithTagScope(context.Background())
	AddTags(ctx, "a")
	got := CollectedTags(ctx)
	got[0] = "mutated"
	if CollectedTags(ctx)[0] != "a" {
		t.Fatalf("CollectedTags must return a copy")
	}
}
