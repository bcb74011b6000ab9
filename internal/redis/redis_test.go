package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"towing-system/internal/config"
	"towing-system/internal/logger"

	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/go-redis/redis/v8"
)

func testLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Client{client: rdb, log: testLogger()}, mr
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(&config.RedisConfig{Host: "127.0.0.1", Port: mr.Port()}, testLogger())
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("health after connect: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if _, err := Connect(&config.RedisConfig{Host: "127.0.0.1", Port: "0"}, testLogger()); err == nil {
		t.Fatalf("expected connect error for closed port")
	}
}

func TestClient_NilSafety(t *testing.T) {
	var client *Client
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
	if err := client.Health(context.Background()); err == nil {
		t.Fatalf("nil client must not report healthy")
	}
}

func TestGenerateKey(t *testing.T) {
	tests := []struct {
		prefix string
		parts  []string
		want   string
	}{
		{KeyPrefixAccount, []string{"acc-1"}, "account:acc-1"},
		{KeyPrefixStats, []string{"acc-1", "dashboard"}, "stats:acc-1:dashboard"},
		{KeyPrefixRoute, []string{"osrm", "abc", "def"}, "route:osrm:abc:def"},
		{KeyPrefixGeocode, nil, "geocode"},
	}
	for _, tt := range tests {
		if got := GenerateKey(tt.prefix, tt.parts...); got != tt.want {
			t.Fatalf("GenerateKey(%q, %v) = %q, want %q", tt.prefix, tt.parts, got, tt.want)
		}
	}
}

type cachedRoute struct {
	DistanceKm float64 `json:"distance_km"`
	Legs       int     `json:"legs"`
}

func TestClient_JSONRoundTripAndMiss(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()
	key := GenerateKey(KeyPrefixRoute, "osrm", "a", "b")

	if err := client.Set(ctx, key, cachedRoute{DistanceKm: 12.5, Legs: 2}, time.Hour); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	var got cachedRoute
	if err := client.Get(ctx, key, &got); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.DistanceKm != 12.5 || got.Legs != 2 {
		t.Fatalf("unexpected cached route: %+v", got)
	}

	mr.FastForward(2 * time.Hour)
	if err := client.Get(ctx, key, &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after ttl, got %v", err)
	}

	_ = mr.Set("broken", "{not json")
	if err := client.Get(ctx, "broken", &got); err == nil || errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected decode error, got %v", err)
	}

	if err := client.Set(ctx, "bad", make(chan int), time.Minute); err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestClient_Delete(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	_ = mr.Set("account:acc-1", "{}")
	if err := client.Delete(ctx, "account:acc-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if mr.Exists("account:acc-1") {
		t.Fatalf("key must be gone")
	}
}

func TestClient_DeleteByPrefix(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < scanBatch*2+5; i++ {
		_ = mr.Set(fmt.Sprintf("stats:acc-1:summary:%d", i), "{}")
	}
	_ = mr.Set("stats:acc-2:dashboard", "{}")
	_ = mr.Set("account:acc-1", "{}")

	if err := client.DeleteByPrefix(ctx, "stats:acc-1"); err != nil {
		t.Fatalf("delete by prefix failed: %v", err)
	}

	keys := mr.Keys()
	if len(keys) != 2 {
		t.Fatalf("expected only foreign keys to remain, got %v", keys)
	}
	if !mr.Exists("stats:acc-2:dashboard") || !mr.Exists("account:acc-1") {
		t.Fatalf("unexpected remaining keys: %v", keys)
	}

	if err := client.DeleteByPrefix(ctx, "stats:acc-3"); err != nil {
		t.Fatalf("empty prefix delete must succeed: %v", err)
	}
}

func TestClient_CounterWindow(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()
	key := "ratelimit:account-acc-1"

	if _, err := client.GetInt(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss before first hit, got %v", err)
	}

	for want := int64(1); want <= 3; want++ {
		got, err := client.Incr(ctx, key)
		if err != nil || got != want {
			t.Fatalf("incr: got %d err=%v, want %d", got, err, want)
		}
	}
	if err := client.Expire(ctx, key, time.Minute); err != nil {
		t.Fatalf("expire failed: %v", err)
	}

	ttl, err := client.TTL(ctx, key)
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v err=%v", ttl, err)
	}
	if val, err := client.GetInt(ctx, key); err != nil || val != 3 {
		t.Fatalf("expected counter 3, got %d err=%v", val, err)
	}

	mr.FastForward(time.Minute + time.Second)
	if _, err := client.GetInt(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected window reset, got %v", err)
	}
}
