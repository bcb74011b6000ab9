package handlers

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"towing-system/internal/config"
	"towing-system/internal/logger"
	"towing-system/internal/services"
)

// RateLimitHandler отвечает за статус лимита и middleware.
type RateLimitHandler struct {
	limiter RateLimitStatusProvider
	log     *logger.Logger
	cfg     *config.RateLimitConfig
}

// NewRateLimitHandler создает новый RateLimitHandler.
func NewRateLimitHandler(limiter RateLimitStatusProvider, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimitHandler {
	return &RateLimitHandler{
		limiter: limiter,
		log:     log,
		cfg:     cfg,
	}
}

// Status возвращает расход лимита для аккаунта из X-Account-ID или, без заголовка, для IP клиента.
func (h *RateLimitHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if h.limiter == nil || h.cfg == nil || !h.cfg.Enabled {
		writeJSONResponse(w, http.StatusOK, rateLimitStatus{Enabled: false})
		return
	}

	key := services.RequestKey(r)
	used, remaining, resetAt, err := h.limiter.Usage(r.Context(), key)
	if err != nil {
		h.log.WithError(err).WithField("key", key).Error("Failed to fetch rate limit usage")
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to fetch rate limit usage")
		return
	}

	status := rateLimitStatus{
		Enabled:       true,
		Scope:         keyScope(key),
		Limit:         h.cfg.Requests,
		WindowSeconds: h.cfg.WindowSeconds,
		Used:          used,
		Remaining:     remaining,
	}
	if resetAt != nil {
		status.ResetAt = resetAt.Format(time.RFC3339)
	}

	writeJSONResponse(w, http.StatusOK, status)
}

type rateLimitStatus struct {
	Enabled       bool   `json:"enabled"`
	Scope         string `json:"scope,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	WindowSeconds int    `json:"window_seconds,omitempty"`
	Used          int64  `json:"used"`
	Remaining     int64  `json:"remaining"`
	ResetAt       string `json:"reset_at,omitempty"`
}

// keyScope возвращает "account" или "ip" по префиксу ключа учета
func keyScope(key string) string {
	scope, _, _ := strings.Cut(key, "-")
	return scope
}

// MiddlewareLimiter описывает контракт для rate limiter.
type MiddlewareLimiter interface {
	Allow(ctx context.Context, key string) (bool, int64, time.Time, error)
	Enabled() bool
	Limit() int64
}

// RateLimitStatusProvider расширяет интерфейс для эндпоинта статуса.
type RateLimitStatusProvider interface {
	MiddlewareLimiter
	Usage(ctx context.Context, key string) (int64, int64, *time.Time, error)
}

// RateLimitMiddleware пропускает запрос, пока у ключа (аккаунт или IP) остается бюджет окна
func RateLimitMiddleware(limiter MiddlewareLimiter, log *logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if limiter == nil || !limiter.Enabled() {
			next(w, r)
			return
		}

		key := services.RequestKey(r)
		allowed, remaining, resetAt, err := limiter.Allow(r.Context(), key)
		if err != nil {
			log.WithError(err).WithField("key", key).Error("Rate limiter failed")
			writeErrorResponse(w, http.StatusInternalServerError, "Rate limiter error")
			return
		}

		setLimitHeaders(w.Header(), limiter.Limit(), remaining, resetAt)
		if allowed {
			next(w, r)
			return
		}

		log.WithField("key", key).Warn("Rate limit exceeded")
		writeErrorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded")
	}
}

// setLimitHeaders пишет X-RateLimit-* и, при исчерпанном бюджете, Retry-After в секундах
func setLimitHeaders(h http.Header, limit, remaining int64, resetAt time.Time) {
	h.Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	if resetAt.IsZero() {
		return
	}
	h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	if wait := time.Until(resetAt); remaining == 0 && wait > 0 {
		h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	}
}
