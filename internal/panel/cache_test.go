package panel

import (
	"testing"
	"time"
)

func TestStatsCacheFreshEntry(t *testing.T) {
	cache := NewStatsCache(5 * time.Minute)

	cache.Set("k", Stats{Total: 7, Active: 3})

	got, ok := cache.Get("k")
	if !ok {
		t.Fatal("expected fresh entry")
	}
	if got.Total != 7 || got.Active != 3 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestStatsCacheExpiry(t *testing.T) {
	base := time.Now()
	cache := NewStatsCache(5 * time.Minute)
	cache.now = func() time.Time { return base }

	cache.Set("k", Stats{Total: 1})

	cache.now = func() time.Time { return base.Add(5*time.Minute - time.Second) }
	if _, ok := cache.Get("k"); !ok {
		t.Fatal("entry just under TTL should be fresh")
	}

	cache.now = func() time.Time { return base.Add(5 * time.Minute) }
	if _, ok := cache.Get("k"); ok {
		t.Fatal("entry at TTL should be treated as absent")
	}
}

func TestStatsCacheMiss(t *testing.T) {
	cache := NewStatsCache(time.Minute)
	if _, ok := cache.Get("nope"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestStatsCachePrune(t *testing.T) {
	base := time.Now()
	cache := NewStatsCache(time.Minute)
	cache.now = func() time.Time { return base }

	cache.Set("old", Stats{Total: 1})

	cache.now = func() time.Time { return base.Add(30 * time.Second) }
	cache.Set("new", Stats{Total: 2})

	cache.now = func() time.Time { return base.Add(70 * time.Second) }
	if removed := cache.Prune(); removed != 1 {
		t.Fatalf("Prune() = %d, want 1", removed)
	}
	if cache.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", cache.Len())
	}
	if _, ok := cache.Get("new"); !ok {
		t.Fatal("fresh entry should survive prune")
	}
}
