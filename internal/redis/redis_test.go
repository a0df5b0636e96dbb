package redis

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"soilchat/internal/config"
)

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	ctx := context.Background()
	if err := c.HSet(ctx, "k", "f", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error from nil client")
	}
	if _, err := c.HGet(ctx, "k", "f"); err == nil {
		t.Fatalf("expected error from nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close nil client: %v", err)
	}
	if err := c.FlushDB(ctx); err == nil {
		t.Fatalf("expected error from nil client")
	}
	if err := c.Bump(ctx, "g", time.Second, "k"); err == nil {
		t.Fatalf("expected error from nil client")
	}
	produced := false
	if err := c.WatchHSet(ctx, "g", "k", "f", time.Second, func() ([]byte, error) {
		produced = true
		return nil, nil
	}); err == nil || produced {
		t.Fatalf("nil client should fail before producing")
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options(config.RedisConfig{})
	if opts.Addr != "127.0.0.1:6379" {
		t.Fatalf("unexpected default addr %q", opts.Addr)
	}
	opts = Options(config.RedisConfig{Host: "cache", Port: 6380, DB: 2, Password: "pw"})
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.Password != "pw" {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestNewFailsWithoutServer(t *testing.T) {
	// nothing listens on port 1
	if _, err := New(context.Background(), config.RedisConfig{Host: "127.0.0.1", Port: 1}); err == nil {
		t.Fatalf("expected ping failure")
	}
}

func TestHashRoundTrip(t *testing.T) {
	client := newTestClient(t)
	defer client.Close()
	ctx := context.Background()

	if err := client.HSet(ctx, "history:s1", "10", []byte(`[1,2]`), time.Minute); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	got, err := client.HGet(ctx, "history:s1", "10")
	if err != nil {
		t.Fatalf("HGet: %v", err)
	}
	if string(got) != `[1,2]` {
		t.Fatalf("unexpected value %s", got)
	}
	ttl, err := client.TTL(ctx, "history:s1")
	if err != nil || ttl <= 0 {
		t.Fatalf("expected ttl, got %v (%v)", ttl, err)
	}
	if err := client.Del(ctx, "history:s1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := client.HGet(ctx, "history:s1", "10"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	client, err := New(context.Background(), config.RedisConfig{Host: host, Port: port})
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx); err != nil {
		t.Fatalf("flush db: %v", err)
	}
	return client
}

func TestWatchHSetStoresWhenGuardUntouched(t *testing.T) {
	client := newTestClient(t)
	defer client.Close()
	ctx := context.Background()

	err := client.WatchHSet(ctx, "gen:s1", "history:s1", "10", time.Minute, func() ([]byte, error) {
		return []byte(`[1]`), nil
	})
	if err != nil {
		t.Fatalf("WatchHSet: %v", err)
	}
	got, err := client.HGet(ctx, "history:s1", "10")
	if err != nil || string(got) != `[1]` {
		t.Fatalf("expected stored value, got %q (%v)", got, err)
	}
}

func TestWatchHSetSkipsWriteAfterBump(t *testing.T) {
	client := newTestClient(t)
	defer client.Close()
	ctx := context.Background()

	err := client.WatchHSet(ctx, "gen:s1", "history:s1", "10", time.Minute, func() ([]byte, error) {
		// a writer lands between the read and the cache write
		if err := client.Bump(ctx, "gen:s1", time.Hour, "history:s1"); err != nil {
			t.Fatalf("Bump: %v", err)
		}
		return []byte(`[stale]`), nil
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := client.HGet(ctx, "history:s1", "10"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("stale value was cached: %v", err)
	}
}

func TestWatchHSetReturnsProduceError(t *testing.T) {
	client := newTestClient(t)
	defer client.Close()

	want := errors.New("db down")
	err := client.WatchHSet(context.Background(), "gen:s1", "history:s1", "10", time.Minute, func() ([]byte, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected produce error, got %v", err)
	}
}
