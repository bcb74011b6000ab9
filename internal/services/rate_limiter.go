package services

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"towing-system/internal/config"
	"towing-system/internal/logger"
	"towing-system/internal/redis"

	"github.com/google/uuid"
)

// AccountIDHeader заголовок, которым клиент указывает свой аккаунт
const AccountIDHeader = "X-Account-ID"

// RateLimiter ограничивает число запросов в фиксированном окне.
// Запросы с аккаунтом считаются по аккаунту, анонимные по IP.
type RateLimiter struct {
	store   counterStore
	log     *logger.Logger
	enabled bool
	limit   int64
	window  time.Duration
	prefix  string
}

type counterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	GetInt(ctx context.Context, key string) (int64, error)
}

// NewRateLimiter создает rate limiter. Без Redis или при выключенном конфиге лимит не действует.
func NewRateLimiter(redisClient *redis.Client, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimiter {
	if redisClient == nil || cfg == nil || !cfg.Enabled || cfg.Requests <= 0 || cfg.WindowSeconds <= 0 {
		return &RateLimiter{enabled: false}
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &RateLimiter{
		store:   redisClient,
		log:     log,
		enabled: true,
		limit:   int64(cfg.Requests),
		window:  time.Duration(cfg.WindowSeconds) * time.Second,
		prefix:  prefix,
	}
}

// Allow учитывает запрос и возвращает признак разрешения, остаток и время сброса окна.
func (r *RateLimiter) Allow(ctx context.Context, key string) (allowed bool, remaining int64, resetAt time.Time, err error) {
	if !r.enabled {
		return true, r.limit, time.Now().Add(r.window), nil
	}

	now := time.Now()
	storeKey := r.makeKey(key)

	count, err := r.store.Incr(ctx, storeKey)
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limiter incr failed: %w", err)
	}

	// окно открывается первым запросом
	if count == 1 {
		if err := r.store.Expire(ctx, storeKey, r.window); err != nil {
			r.log.WithError(err).WithField("key", storeKey).Warn("Failed to set rate limit ttl")
		}
	}

	ttl, ttlErr := r.store.TTL(ctx, storeKey)
	if ttlErr != nil || ttl <= 0 {
		ttl = r.window
	}

	return count <= r.limit, clampRemaining(r.limit - count), now.Add(ttl), nil
}

// Usage возвращает израсходованное в текущем окне без учета нового запроса.
func (r *RateLimiter) Usage(ctx context.Context, key string) (used int64, remaining int64, resetAt *time.Time, err error) {
	if !r.enabled {
		return 0, r.limit, nil, nil
	}

	storeKey := r.makeKey(key)
	count, err := r.store.GetInt(ctx, storeKey)
	if err != nil {
		// окно еще не открыто
		return 0, r.limit, nil, nil
	}

	if ttl, ttlErr := r.store.TTL(ctx, storeKey); ttlErr == nil && ttl > 0 {
		reset := time.Now().Add(ttl)
		resetAt = &reset
	}

	return count, clampRemaining(r.limit - count), resetAt, nil
}

func (r *RateLimiter) makeKey(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, strings.ReplaceAll(key, ":", "_"))
}

func clampRemaining(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// Limit возвращает лимит окна.
func (r *RateLimiter) Limit() int64 {
	return r.limit
}

// Enabled сообщает, включено ли ограничение.
func (r *RateLimiter) Enabled() bool {
	return r.enabled
}

// RequestKey возвращает ключ учета запроса: аккаунт из заголовка или IP клиента.
func RequestKey(r *http.Request) string {
	if raw := strings.TrimSpace(r.Header.Get(AccountIDHeader)); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return "account-" + id.String()
		}
	}
	return "ip-" + ExtractClientIP(r)
}

// ExtractClientIP получает IP из заголовков прокси или RemoteAddr.
func ExtractClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
