package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "towing_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	quoteCalculations *prometheus.CounterVec
	quotesCreated     prometheus.Counter
	quotaRejections   prometheus.Counter
	servicesCreated   prometheus.Counter

	lookupFailures *prometheus.CounterVec

	reportExports       *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec

	eventsPublished *prometheus.CounterVec
)

// Init регистрирует метрики сервиса. Повторные вызовы ничего не делают.
func Init() {
	registerOnce.Do(func() {
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)

		quoteCalculations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "quote_calculations_total",
				Help: "Total quote calculations by result",
			},
			[]string{"result"},
		)
		quotesCreated = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "quotes_created_total",
				Help: "Total persisted quotes",
			},
		)
		quotaRejections = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "quote_quota_rejections_total",
				Help: "Total quote creations refused by plan quota",
			},
		)
		servicesCreated = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "services_created_total",
				Help: "Total services created from quotes",
			},
		)

		lookupFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "external_lookup_failures_total",
				Help: "Total failed geocode and route lookups by provider",
			},
			[]string{"kind", "provider"},
		)

		reportExports = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_exports_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		)

		eventsPublished = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_published_total",
				Help: "Total domain events published by type and result",
			},
			[]string{"type", "result"},
		)

		prometheus.MustRegister(
			httpRequests,
			httpLatency,
			quoteCalculations,
			quotesCreated,
			quotaRejections,
			servicesCreated,
			lookupFailures,
			reportExports,
			reportExportLatency,
			eventsPublished,
		)
	})
}

// Handler отдает метрики в формате Prometheus
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest записывает результат и длительность HTTP запроса
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unknown"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}

// IncQuoteCalculation считает расчеты смет по результату
func IncQuoteCalculation(result string) {
	if result == "" {
		result = ResultSuccess
	}
	if quoteCalculations != nil {
		quoteCalculations.WithLabelValues(result).Inc()
	}
}

func IncQuoteCreated() {
	if quotesCreated != nil {
		quotesCreated.Inc()
	}
}

func IncQuotaRejection() {
	if quotaRejections != nil {
		quotaRejections.Inc()
	}
}

func IncServiceCreated() {
	if servicesCreated != nil {
		servicesCreated.Inc()
	}
}

// ObserveLookupFailure считает отказы геокодера и провайдера маршрутов
func ObserveLookupFailure(kind, provider string) {
	if provider == "" {
		provider = "unknown"
	}
	if lookupFailures != nil {
		lookupFailures.WithLabelValues(kind, provider).Inc()
	}
}

// ObserveReportExport записывает экспорт отчета
func ObserveReportExport(format, result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if reportExports != nil {
		reportExports.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format).Observe(duration.Seconds())
	}
}

// IncEventPublished считает публикации событий в Kafka
func IncEventPublished(eventType, result string) {
	if eventsPublished != nil {
		eventsPublished.WithLabelValues(eventType, result).Inc()
	}
}
