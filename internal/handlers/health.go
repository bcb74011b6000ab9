package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/IBM/sarama"
)

const serviceVersion = "1.0.0"

// KafkaChecker проверяет доступность брокеров
type KafkaChecker func(brokers []string) error

// HealthHandler представляет обработчик для проверки здоровья системы
type HealthHandler struct {
	db           DBHealth
	redisClient  RedisHealth
	kafkaBrokers []string
	kafkaCheck   KafkaChecker
	providers    map[string]string
}

// NewHealthHandler создает новый обработчик здоровья.
// Пустой kafkaCheck означает, что публикация событий выключена.
func NewHealthHandler(db DBHealth, redisClient RedisHealth, kafkaBrokers []string, kafkaCheck KafkaChecker) *HealthHandler {
	return &HealthHandler{
		db:           db,
		redisClient:  redisClient,
		kafkaBrokers: kafkaBrokers,
		kafkaCheck:   kafkaCheck,
	}
}

// WithProviders добавляет в ответ /health выбранные провайдеры геокодинга и маршрутов
func (h *HealthHandler) WithProviders(geocoder, router string) *HealthHandler {
	h.providers = map[string]string{
		"geocoder": geocoder,
		"router":   router,
	}
	return h
}

// HealthResponse представляет ответ проверки здоровья
type HealthResponse struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Providers map[string]string `json:"providers,omitempty"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
}

type componentCheck struct {
	name  string
	check func(ctx context.Context) error
}

var startTime = time.Now()

// components возвращает проверки в порядке важности; Kafka проверяется только если включена
func (h *HealthHandler) components() []componentCheck {
	checks := []componentCheck{
		{name: "database", check: func(context.Context) error { return h.db.Health() }},
		{name: "redis", check: func(ctx context.Context) error { return h.redisClient.Health(ctx) }},
	}
	if h.kafkaCheck != nil {
		checks = append(checks, componentCheck{
			name:  "kafka",
			check: func(context.Context) error { return h.kafkaCheck(h.kafkaBrokers) },
		})
	}
	return checks
}

// Health проверяет состояние всех компонентов системы
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	services := map[string]string{"kafka": "disabled"}
	overallStatus := "healthy"
	for _, c := range h.components() {
		if err := c.check(ctx); err != nil {
			services[c.name] = "unhealthy: " + err.Error()
			overallStatus = "unhealthy"
			continue
		}
		services[c.name] = "healthy"
	}

	statusCode := http.StatusOK
	if overallStatus == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, statusCode, HealthResponse{
		Status:    overallStatus,
		Services:  services,
		Providers: h.providers,
		Version:   serviceVersion,
		Uptime:    time.Since(startTime).String(),
	})
}

// Readiness отвечает 503 на первом неготовом компоненте
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, c := range h.components() {
		if err := c.check(ctx); err != nil {
			writeErrorResponse(w, http.StatusServiceUnavailable, c.name+" not ready")
			return
		}
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Liveness проверяет, что приложение живо
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(startTime).String(),
	})
}

// CheckKafkaHealth проверяет доступность Kafka брокеров
func CheckKafkaHealth(brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}

	cfg := sarama.NewConfig()
	cfg.Net.DialTimeout = 3 * time.Second
	cfg.Net.ReadTimeout = 5 * time.Second
	cfg.Net.WriteTimeout = 5 * time.Second
	cfg.Metadata.Retry.Max = 1
	cfg.Metadata.Retry.Backoff = 500 * time.Millisecond

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return fmt.Errorf("kafka brokers unreachable: %w", err)
	}
	defer client.Close()

	return nil
}
