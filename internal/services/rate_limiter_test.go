package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"towing-system/internal/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCounterStore struct{}

func (failingCounterStore) Incr(ctx context.Context, key string) (int64, error) {
	return 0, errors.New("redis down")
}
func (failingCounterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}
func (failingCounterStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return 0, errors.New("redis down")
}
func (failingCounterStore) GetInt(ctx context.Context, key string) (int64, error) {
	return 0, errors.New("redis down")
}

func newTestLimiter(t *testing.T, requests int) *RateLimiter {
	t.Helper()
	cfg := &config.RateLimitConfig{Enabled: true, Requests: requests, WindowSeconds: 60, KeyPrefix: "rl"}
	return NewRateLimiter(newTestRedis(t), newTestLogger(), cfg)
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter := newTestLimiter(t, 2)
	ctx := context.Background()

	allowed, remaining, resetAt, err := limiter.Allow(ctx, "account-1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), remaining)
	assert.True(t, resetAt.After(time.Now()))

	allowed, remaining, _, err = limiter.Allow(ctx, "account-1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(0), remaining)

	allowed, remaining, _, err = limiter.Allow(ctx, "account-1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(0), remaining)

	allowed, _, _, err = limiter.Allow(ctx, "account-2")
	require.NoError(t, err)
	assert.True(t, allowed, "separate keys have separate windows")
}

func TestRateLimiter_Usage(t *testing.T) {
	limiter := newTestLimiter(t, 3)
	ctx := context.Background()

	used, remaining, resetAt, err := limiter.Usage(ctx, "ip-10.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, used)
	assert.Equal(t, int64(3), remaining)
	assert.Nil(t, resetAt)

	_, _, _, _ = limiter.Allow(ctx, "ip-10.0.0.1")
	_, _, _, _ = limiter.Allow(ctx, "ip-10.0.0.1")

	used, remaining, resetAt, err = limiter.Usage(ctx, "ip-10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), used)
	assert.Equal(t, int64(1), remaining)
	assert.NotNil(t, resetAt)
}

func TestRateLimiter_Disabled(t *testing.T) {
	assert.False(t, NewRateLimiter(nil, nil, nil).Enabled())
	assert.False(t, NewRateLimiter(nil, nil, &config.RateLimitConfig{Enabled: false}).Enabled())

	limiter := NewRateLimiter(nil, nil, &config.RateLimitConfig{Enabled: true, Requests: 5, WindowSeconds: 1})
	allowed, _, _, err := limiter.Allow(context.Background(), "any")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiter_StoreFailure(t *testing.T) {
	limiter := &RateLimiter{store: failingCounterStore{}, log: newTestLogger(), enabled: true, limit: 1, window: time.Second, prefix: "rl"}

	_, _, _, err := limiter.Allow(context.Background(), "k")
	assert.Error(t, err)

	used, remaining, _, err := limiter.Usage(context.Background(), "k")
	require.NoError(t, err)
	assert.Zero(t, used)
	assert.Equal(t, int64(1), remaining)
}

func TestRequestKey(t *testing.T) {
	accountID := uuid.New()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(AccountIDHeader, accountID.String())
	assert.Equal(t, "account-"+accountID.String(), RequestKey(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(AccountIDHeader, "not-a-uuid")
	r.RemoteAddr = "192.168.0.1:1234"
	assert.Equal(t, "ip-192.168.0.1", RequestKey(r))
}

func TestExtractClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-IP", "10.0.0.1")
	assert.Equal(t, "10.0.0.1", ExtractClientIP(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "10.0.0.2, 10.0.0.3")
	assert.Equal(t, "10.0.0.2", ExtractClientIP(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.168.0.1:1234"
	assert.Equal(t, "192.168.0.1", ExtractClientIP(r))
}
