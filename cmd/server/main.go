package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"towing-system/internal/config"
	"towing-system/internal/database"
	"towing-system/internal/handlers"
	"towing-system/internal/kafka"
	"towing-system/internal/logger"
	"towing-system/internal/metrics"
	"towing-system/internal/models"
	"towing-system/internal/redis"
	"towing-system/internal/services"
)

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
	loadPlans        = models.LoadPlanCatalog
)

// application агрегирует собранные зависимости.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	mux      *http.ServeMux
	server   *http.Server
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting towing system server...")

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	app.close(ctx)
	app.log.Info("Server exited")
}

// close останавливает сервер и освобождает подключения
func (app *application) close(ctx context.Context) {
	_ = app.consumer.Stop()
	if app.server != nil {
		if err := app.server.Shutdown(ctx); err != nil {
			app.log.WithError(err).Error("Server forced to shutdown")
		}
	}
	_ = app.producer.Close()
	_ = app.redis.Close()
	_ = app.db.Close()
}

// buildApplication создает все зависимости (подменяемые в тестах).
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)
	metrics.Init()

	plans, err := loadPlans(cfg.Plans.File)
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	redisClient, err := redisConnect(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	app := &application{cfg: cfg, log: log, db: db, redis: redisClient}

	geocodingService, err := services.NewGeocodingService(redisClient, log, &cfg.Geocoding)
	if err != nil {
		app.close(context.Background())
		return nil, fmt.Errorf("geocoding service: %w", err)
	}
	routingService, err := services.NewRoutingService(redisClient, log, &cfg.Routing)
	if err != nil {
		app.close(context.Background())
		return nil, fmt.Errorf("routing service: %w", err)
	}

	warnApproximateProviders(log, geocodingService.Provider(), routingService.Provider())

	distanceService := services.NewDistanceService(geocodingService, routingService, log)
	pricingService := services.NewPricingService(&cfg.Pricing)
	vehicleService := services.NewVehicleService(db, log)
	quoteService := services.NewQuoteService(db, log, distanceService, pricingService, vehicleService, plans)
	towService := services.NewTowService(db, log)
	transactionService := services.NewTransactionService(db, log)
	accountService := services.NewAccountService(db, redisClient, log, plans)
	ledgerService := services.NewLedgerService(transactionService, towService, vehicleService, quoteService, redisClient, log, plans, &cfg.Dashboard)
	rateLimiter := services.NewRateLimiter(redisClient, log, &cfg.RateLimit)

	// без Kafka события не публикуются, а readiness помечает ее как disabled
	var eventProducer handlers.EventProducer
	var kafkaCheck handlers.KafkaChecker
	if cfg.Kafka.Enabled {
		app.producer, err = newKafkaProducer(&cfg.Kafka, log)
		if err != nil {
			app.close(context.Background())
			return nil, fmt.Errorf("kafka producer: %w", err)
		}

		app.consumer, err = newKafkaConsumer(&cfg.Kafka, log)
		if err != nil {
			app.close(context.Background())
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}

		registerEventHandlers(app.consumer, ledgerService, log)
		if err := app.consumer.Start(); err != nil {
			app.close(context.Background())
			return nil, fmt.Errorf("kafka consumer start: %w", err)
		}

		eventProducer = app.producer
		kafkaCheck = kafkaHealthCheck
	}

	rt := routes{
		accounts:  handlers.NewAccountHandler(accountService, ledgerService, log),
		quotes:    handlers.NewQuoteHandler(quoteService, eventProducer, ledgerService, log),
		services:  handlers.NewServiceHandler(towService, eventProducer, ledgerService, log),
		financial: handlers.NewFinancialHandler(transactionService, ledgerService, eventProducer, log),
		vehicles:  handlers.NewVehicleHandler(vehicleService, ledgerService, log),
		health:    handlers.NewHealthHandler(db, redisClient, cfg.Kafka.Brokers, kafkaCheck).
			WithProviders(geocodingService.Provider(), routingService.Provider()),
		rateLimit: handlers.NewRateLimitHandler(rateLimiter, log, &cfg.RateLimit),
	}

	app.mux = setupRoutes(rt, accountService, rateLimiter, log)
	app.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      app.mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return app, nil
}

// routes набор HTTP обработчиков приложения
type routes struct {
	accounts  *handlers.AccountHandler
	quotes    *handlers.QuoteHandler
	services  *handlers.ServiceHandler
	financial *handlers.FinancialHandler
	vehicles  *handlers.VehicleHandler
	health    *handlers.HealthHandler
	rateLimit *handlers.RateLimitHandler
}

// setupRoutes настраивает маршруты HTTP сервера
func setupRoutes(rt routes, accounts handlers.AccountService, rateLimiter handlers.MiddlewareLimiter, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	public := func(route string, h http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(handlers.MetricsMiddleware(route, handlers.RateLimitMiddleware(rateLimiter, log, h)))
	}
	applyAPI := func(route string, h http.HandlerFunc) http.HandlerFunc {
		return public(route, handlers.AccountMiddleware(accounts, log, h))
	}
	gated := func(route string, feature models.Feature, h http.HandlerFunc) http.HandlerFunc {
		return applyAPI(route, handlers.RequireFeature(accounts, feature, h))
	}

	// Health check endpoints
	mux.HandleFunc("/health", corsMiddleware(rt.health.Health))
	mux.HandleFunc("/health/readiness", corsMiddleware(rt.health.Readiness))
	mux.HandleFunc("/health/liveness", corsMiddleware(rt.health.Liveness))
	mux.Handle("/metrics", metrics.Handler())

	// Quote endpoints
	mux.HandleFunc("/api/quotes/calculate", applyAPI("/api/quotes/calculate", rt.quotes.Calculate))
	mux.HandleFunc("/api/quotes", applyAPI("/api/quotes", handleQuotesRoute(rt.quotes)))
	mux.HandleFunc("/api/quotes/", applyAPI("/api/quotes/{id}", handleQuoteRoute(rt.quotes)))

	// Service endpoints
	mux.HandleFunc("/api/services", applyAPI("/api/services", rt.services.ListServices))
	mux.HandleFunc("/api/services/", applyAPI("/api/services/{id}", handleServiceRoute(rt.services)))

	// Financial endpoints
	mux.HandleFunc("/api/transactions", gated("/api/transactions", models.FeatureFinancial, handleTransactionsRoute(rt.financial)))
	mux.HandleFunc("/api/transactions/", gated("/api/transactions/{id}", models.FeatureFinancial, rt.financial.DeleteTransaction))
	mux.HandleFunc("/api/financial/summary", gated("/api/financial/summary", models.FeatureFinancial, rt.financial.Summary))
	mux.HandleFunc("/api/financial/report.xlsx", gated("/api/financial/report.xlsx", models.FeatureAdvancedReports, rt.financial.ReportXLSX))

	// Fleet endpoints
	mux.HandleFunc("/api/vehicles", gated("/api/vehicles", models.FeatureFleet, handleVehiclesRoute(rt.vehicles)))
	mux.HandleFunc("/api/vehicles/", gated("/api/vehicles/{id}", models.FeatureFleet, handleVehicleRoute(rt.vehicles)))

	// Account endpoints
	mux.HandleFunc("/api/dashboard", applyAPI("/api/dashboard", rt.financial.Dashboard))
	mux.HandleFunc("/api/account", applyAPI("/api/account", rt.accounts.GetAccount))
	mux.HandleFunc("/api/account/settings", applyAPI("/api/account/settings", rt.accounts.UpdateSettings))
	mux.HandleFunc("/api/account/plan", applyAPI("/api/account/plan", rt.accounts.ChangePlan))
	mux.HandleFunc("/api/plans", public("/api/plans", rt.accounts.ListPlans))

	// Rate limit status
	mux.HandleFunc("/api/rate-limit/status", public("/api/rate-limit/status", rt.rateLimit.Status))

	return mux
}

// handleQuotesRoute обрабатывает маршруты для коллекции смет
func handleQuotesRoute(handler *handlers.QuoteHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListQuotes(w, r)
		case http.MethodPost:
			handler.CreateQuote(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleQuoteRoute обрабатывает маршруты для отдельной сметы
func handleQuoteRoute(handler *handlers.QuoteHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/status"):
			handler.UpdateQuoteStatus(w, r)
		case strings.HasSuffix(r.URL.Path, "/service"):
			handler.CreateService(w, r)
		case strings.HasSuffix(r.URL.Path, "/pdf"):
			handler.QuotePDF(w, r)
		case strings.HasSuffix(r.URL.Path, "/share"):
			handler.ShareQuote(w, r)
		default:
			switch r.Method {
			case http.MethodGet:
				handler.GetQuote(w, r)
			case http.MethodPut:
				handler.UpdateQuote(w, r)
			case http.MethodDelete:
				handler.DeleteQuote(w, r)
			default:
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		}
	}
}

// handleServiceRoute обрабатывает маршруты для отдельного выезда
func handleServiceRoute(handler *handlers.ServiceHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/status") {
			handler.UpdateServiceStatus(w, r)
			return
		}
		handler.GetService(w, r)
	}
}

// handleTransactionsRoute обрабатывает коллекцию финансовых операций
func handleTransactionsRoute(handler *handlers.FinancialHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListTransactions(w, r)
		case http.MethodPost:
			handler.CreateTransaction(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleVehiclesRoute обрабатывает коллекцию эвакуаторов
func handleVehiclesRoute(handler *handlers.VehicleHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListVehicles(w, r)
		case http.MethodPost:
			handler.CreateVehicle(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleVehicleRoute обрабатывает отдельный эвакуатор
func handleVehicleRoute(handler *handlers.VehicleHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.GetVehicle(w, r)
		case http.MethodPut:
			handler.UpdateVehicle(w, r)
		case http.MethodDelete:
			handler.DeleteVehicle(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// registerEventHandlers сбрасывает кеш сводок аккаунта при событиях, пришедших из других экземпляров
func registerEventHandlers(consumer *kafka.Consumer, ledger handlers.StatsInvalidator, log *logger.Logger) {
	invalidate := func(ctx context.Context, event *models.Event) error {
		log.ForAccount(event.AccountID).WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Debug("Processing event")
		ledger.InvalidateAccount(ctx, event.AccountID)
		return nil
	}

	for _, eventType := range []models.EventType{
		models.EventTypeQuoteCreated,
		models.EventTypeQuoteStatusChanged,
		models.EventTypeServiceCreated,
		models.EventTypeTransactionCreated,
	} {
		consumer.RegisterHandler(eventType, invalidate)
	}

	consumer.RegisterHandler(models.EventTypeServiceStatusChanged, func(ctx context.Context, event *models.Event) error {
		var data models.ServiceStatusChangedData
		if err := kafka.DecodeEventData(event, &data); err != nil {
			return err
		}
		if data.NewStatus == models.ServiceStatusCompleted {
			log.ForAccount(event.AccountID).WithField("service_id", data.ServiceID).Info("Service completed")
		}
		return invalidate(ctx, event)
	})
}

// corsMiddleware и другие helper функции
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+services.AccountIDHeader)
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	type errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// warnApproximateProviders предупреждает, что координаты синтетические или расстояние считается по прямой
func warnApproximateProviders(log *logger.Logger, geocoder, router string) []string {
	var approximate []string
	if geocoder == "offline" {
		approximate = append(approximate, "geocoder=offline")
	}
	if router == "haversine" {
		approximate = append(approximate, "router=haversine")
	}
	if len(approximate) > 0 {
		log.WithField("providers", approximate).
			Warn("Approximate location providers active, quote distances are not road distances")
	}
	return approximate
}
