package cache

import (
	"testing"
	"time"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("owner:u1", []byte(`[{"id":"a"}]`), time.Minute)

	got, ok := c.Get("owner:u1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(got) != `[{"id":"a"}]` {
		t.Errorf("payload = %q", got)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("k", []byte("v"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("k", []byte("v"), time.Minute)
	c.Delete("k")

	if _, ok := c.Get("k"); ok {
		t.Error("expected deleted entry to miss")
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("k", []byte("v"), time.Minute)
	c.Get("k")
	c.Get("missing")

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Sets != 1 {
		t.Errorf("stats = %+v, want 1 hit, 1 miss, 1 set", stats)
	}
	if stats.CurrentSize != 1 {
		t.Errorf("size = %d, want 1", stats.CurrentSize)
	}
}

func TestMemoryCache_JanitorEvictsExpired(t *testing.T) {
	c := NewMemoryCache(0).(*memoryCache)

	c.Set("old", []byte("v"), -time.Second)
	c.Set("fresh", []byte("v"), time.Minute)

	if n := c.deleteExpired(); n != 1 {
		t.Errorf("deleteExpired = %d, want 1", n)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry must survive cleanup")
	}
}

func TestNoOpCache(t *testing.T) {
	c := NewNoOpCache()
	c.Set("k", []byte("v"), time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("noop cache must never hit")
	}
}
