package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewFromClient(client), mr
}

func TestSetNX_OnlyFirstWins(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock:a", "token-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX: ok=%v err=%v", ok, err)
	}

	ok, err = c.SetNX(ctx, "lock:a", "token-2", time.Minute)
	if err != nil {
		t.Fatalf("second SetNX returned an error: %v", err)
	}
	if ok {
		t.Error("Expected second SetNX to fail while the key is held")
	}
}

func TestCompareAndDelete(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "lock:b", "owner", time.Minute); err != nil {
		t.Fatalf("Set returned an error: %v", err)
	}

	deleted, err := c.CompareAndDelete(ctx, "lock:b", "someone-else")
	if err != nil {
		t.Fatalf("CompareAndDelete returned an error: %v", err)
	}
	if deleted {
		t.Error("Expected CompareAndDelete to keep a key held by another owner")
	}

	deleted, err = c.CompareAndDelete(ctx, "lock:b", "owner")
	if err != nil {
		t.Fatalf("CompareAndDelete returned an error: %v", err)
	}
	if !deleted {
		t.Error("Expected CompareAndDelete to remove the owner's key")
	}
	if mr.Exists("lock:b") {
		t.Error("Expected key to be gone")
	}
}

func TestGetDel_Miss(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "nonce", "1", time.Minute); err != nil {
		t.Fatalf("Set returned an error: %v", err)
	}
	if _, err := c.GetDel(ctx, "nonce"); err != nil {
		t.Fatalf("GetDel returned an error: %v", err)
	}
	if _, err := c.GetDel(ctx, "nonce"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss on second GetDel, got %v", err)
	}
}
