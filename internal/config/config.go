package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Kafka     KafkaConfig     `json:"kafka"`
	Logger    LoggerConfig    `json:"logger"`
	Geocoding GeocodingConfig `json:"geocoding"`
	Routing   RoutingConfig   `json:"routing"`
	Pricing   PricingConfig   `json:"pricing"`
	Dashboard DashboardConfig `json:"dashboard"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Plans     PlansConfig     `json:"plans"`
}

// ServerConfig представляет конфигурацию HTTP сервера
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
}

// DatabaseConfig представляет конфигурацию базы данных
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig представляет конфигурацию Redis
type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// KafkaConfig представляет конфигурацию Kafka
type KafkaConfig struct {
	Enabled bool     `json:"enabled"`
	Brokers []string `json:"brokers"`
	GroupID string   `json:"group_id"`
	Topics  Topics   `json:"topics"`
}

// Topics представляет список топиков Kafka
type Topics struct {
	Quotes       string `json:"quotes"`
	Services     string `json:"services"`
	Transactions string `json:"transactions"`
}

// LoggerConfig представляет конфигурацию логгера
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// GeocodingConfig описывает настройки геокодера
type GeocodingConfig struct {
	Provider        string `json:"provider"`          // offline | nominatim | google
	NominatimURL    string `json:"nominatim_url"`     // https://nominatim.openstreetmap.org/search
	UserAgent       string `json:"user_agent"`        // Nominatim требует идентифицирующий User-Agent
	CountryCodes    string `json:"country_codes"`     // ограничение поиска, например "br"
	Language        string `json:"language"`          // Accept-Language, например "pt-BR"
	GoogleAPIKey    string `json:"google_api_key"`    // ключ Google Maps
	TimeoutSeconds  int    `json:"timeout_seconds"`   // таймаут http-запроса
	CacheTTLMinutes int    `json:"cache_ttl_minutes"` // время жизни кеша координат
}

// RoutingConfig описывает настройки провайдера маршрутов
type RoutingConfig struct {
	Provider         string `json:"provider"` // osrm | google | haversine
	OSRMURL          string `json:"osrm_url"` // https://router.project-osrm.org
	GoogleAPIKey     string `json:"google_api_key"`
	Region           string `json:"region"` // смещение выдачи Google, например "br"
	TimeoutSeconds   int    `json:"timeout_seconds"`
	CacheTTLMinutes  int    `json:"cache_ttl_minutes"`
	GeohashPrecision uint   `json:"geohash_precision"` // точность ключа кеша маршрута
}

// PricingConfig хранит значения тарифов по умолчанию для новых аккаунтов
type PricingConfig struct {
	DefaultKmValue   float64 `json:"default_km_value"`
	DefaultMinCharge float64 `json:"default_min_charge"`
	DefaultFuelPrice float64 `json:"default_fuel_price"`
}

// DashboardConfig хранит настройки сводки
type DashboardConfig struct {
	CacheTTLSeconds int `json:"cache_ttl_seconds"`
}

// RateLimitConfig описывает настройки rate limiting
type RateLimitConfig struct {
	Enabled       bool   `json:"enabled"`
	Requests      int    `json:"requests"`
	WindowSeconds int    `json:"window_seconds"`
	KeyPrefix     string `json:"key_prefix"`
}

// PlansConfig указывает на yaml-файл с переопределением тарифных планов
type PlansConfig struct {
	File string `json:"file"`
}

// Load загружает конфигурацию из переменных окружения.
// Если рядом лежит .env, его значения подмешиваются без перезаписи уже заданных переменных.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "towing_user"),
			Password: getEnv("DB_PASSWORD", "towing_pass"),
			DBName:   getEnv("DB_NAME", "towing_system"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", true),
			Brokers: getEnvAsList("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getEnv("KAFKA_GROUP_ID", "towing-service"),
			Topics: Topics{
				Quotes:       getEnv("KAFKA_TOPIC_QUOTES", "quotes"),
				Services:     getEnv("KAFKA_TOPIC_SERVICES", "services"),
				Transactions: getEnv("KAFKA_TOPIC_TRANSACTIONS", "transactions"),
			},
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Geocoding: GeocodingConfig{
			Provider:        getEnv("GEOCODER_PROVIDER", "offline"),
			NominatimURL:    getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
			UserAgent:       getEnv("GEOCODER_USER_AGENT", "towing-system/1.0"),
			CountryCodes:    getEnv("GEOCODER_COUNTRY_CODES", "br"),
			Language:        getEnv("GEOCODER_LANGUAGE", "pt-BR"),
			GoogleAPIKey:    getEnv("GOOGLE_MAPS_API_KEY", ""),
			TimeoutSeconds:  getEnvAsInt("GEOCODER_TIMEOUT_SECONDS", 5),
			CacheTTLMinutes: getEnvAsInt("GEOCODER_CACHE_TTL_MINUTES", 24*60),
		},
		Routing: RoutingConfig{
			Provider:         getEnv("ROUTING_PROVIDER", "haversine"),
			OSRMURL:          getEnv("OSRM_URL", "https://router.project-osrm.org"),
			GoogleAPIKey:     getEnv("GOOGLE_MAPS_API_KEY", ""),
			Region:           getEnv("ROUTING_REGION", "br"),
			TimeoutSeconds:   getEnvAsInt("ROUTING_TIMEOUT_SECONDS", 5),
			CacheTTLMinutes:  getEnvAsInt("ROUTING_CACHE_TTL_MINUTES", 24*60),
			GeohashPrecision: uint(getEnvAsInt("ROUTING_GEOHASH_PRECISION", 9)),
		},
		Pricing: PricingConfig{
			DefaultKmValue:   getEnvAsFloat("PRICING_DEFAULT_KM_VALUE", 5.0),
			DefaultMinCharge: getEnvAsFloat("PRICING_DEFAULT_MIN_CHARGE", 150.0),
			DefaultFuelPrice: getEnvAsFloat("PRICING_DEFAULT_FUEL_PRICE", 5.89),
		},
		Dashboard: DashboardConfig{
			CacheTTLSeconds: getEnvAsInt("DASHBOARD_CACHE_TTL_SECONDS", 30),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", false),
			Requests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			KeyPrefix:     getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit"),
		},
		Plans: PlansConfig{
			File: getEnv("PLANS_FILE", ""),
		},
	}
}

// getEnv получает значение переменной окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsList разбирает список через запятую, пустые элементы отбрасываются
func getEnvAsList(key, defaultValue string) []string {
	var items []string
	for _, item := range strings.Split(getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// getEnvAsInt получает значение переменной окружения как int с значением по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat получает значение переменной окружения как float64 с значением по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool получает значение переменной окружения как bool с значением по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(getEnv(key, ""))
	if valueStr == "true" || valueStr == "1" || valueStr == "yes" {
		return true
	}
	if valueStr == "false" || valueStr == "0" || valueStr == "no" {
		return false
	}
	return defaultValue
}
