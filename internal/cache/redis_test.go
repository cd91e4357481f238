package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
)

// setupMiniRedis creates a test Redis server and a cache connected to it.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.RunT(t)

	c, err := NewRedisCache(RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	return mr, c
}

func TestRedisCache_SetGet(t *testing.T) {
	_, c := setupMiniRedis(t)

	c.Set("owner:u1", []byte(`[{"id":"a"}]`), time.Minute)

	got, ok := c.Get("owner:u1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(got) != `[{"id":"a"}]` {
		t.Errorf("payload = %q", got)
	}
}

func TestRedisCache_MissAfterExpiry(t *testing.T) {
	mr, c := setupMiniRedis(t)

	c.Set("k", []byte("v"), time.Second)
	mr.FastForward(2 * time.Second)

	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestRedisCache_Delete(t *testing.T) {
	_, c := setupMiniRedis(t)

	c.Set("k", []byte("v"), time.Minute)
	c.Delete("k")

	if _, ok := c.Get("k"); ok {
		t.Error("expected deleted entry to miss")
	}
}

func TestRedisCache_ConnectionFailure(t *testing.T) {
	_, err := NewRedisCache(RedisConfig{Addr: "127.0.0.1:1"}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected connection error for unreachable redis")
	}
}
