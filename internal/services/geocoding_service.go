package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"towing-system/internal/config"
	"towing-system/internal/logger"
	"towing-system/internal/metrics"
	"towing-system/internal/redis"

	"googlemaps.github.io/maps"
)

const defaultGeocodeCacheTTL = 24 * time.Hour

var (
	// ErrAddressNotFound адрес не удалось преобразовать в координаты
	ErrAddressNotFound = errors.New("address not found")
	// ErrGeocodingUnavailable провайдер геокодинга не ответил или ответил ошибкой
	ErrGeocodingUnavailable = errors.New("geocoding provider unavailable")
)

// AddressNotFoundError называет адрес, который не удалось геокодировать
type AddressNotFoundError struct {
	Address string
	Err     error
}

func (e *AddressNotFoundError) Error() string {
	return fmt.Sprintf("address not found: %s", e.Address)
}

func (e *AddressNotFoundError) Is(target error) bool {
	return target == ErrAddressNotFound
}

func (e *AddressNotFoundError) Unwrap() error {
	return e.Err
}

// Coordinates представляют координаты точки.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// cacheStore подмножество redis.Client, нужное для кеша координат и маршрутов
type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// GeocodingService переводит адрес в координаты с кешированием в Redis.
// Провайдер выбирается конфигурацией: offline, nominatim или google.
type GeocodingService struct {
	cache    cacheStore
	log      *logger.Logger
	client   *http.Client
	google   *maps.Client
	cfg      *config.GeocodingConfig
	cacheTTL time.Duration
}

// NewGeocodingService создает сервис геокодирования.
func NewGeocodingService(cache *redis.Client, log *logger.Logger, cfg *config.GeocodingConfig) (*GeocodingService, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = defaultGeocodeCacheTTL
	}

	s := &GeocodingService{
		log:      log,
		client:   &http.Client{Timeout: timeout},
		cfg:      cfg,
		cacheTTL: ttl,
	}
	if cache != nil {
		s.cache = cache
	}

	if strings.EqualFold(cfg.Provider, "google") {
		if cfg.GoogleAPIKey == "" {
			return nil, errors.New("google geocoder requires GOOGLE_MAPS_API_KEY")
		}
		client, err := maps.NewClient(maps.WithAPIKey(cfg.GoogleAPIKey), maps.WithHTTPClient(s.client))
		if err != nil {
			return nil, fmt.Errorf("failed to create maps client: %w", err)
		}
		s.google = client
	}

	return s, nil
}

// Geocode возвращает координаты по адресу, используя кеш Redis.
// Пустой ответ провайдера возвращается как *AddressNotFoundError с именем адреса,
// сбой самого провайдера как ErrGeocodingUnavailable.
func (s *GeocodingService) Geocode(ctx context.Context, address string) (Coordinates, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Coordinates{}, &AddressNotFoundError{Address: address, Err: errors.New("address is empty")}
	}

	key := redis.GenerateKey(redis.KeyPrefixGeocode, s.provider(), hashKey(address))

	var cached Coordinates
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	var (
		coords Coordinates
		err    error
	)
	switch s.provider() {
	case "nominatim":
		coords, err = s.nominatimGeocode(ctx, address)
	case "google":
		coords, err = s.googleGeocode(ctx, address)
	default:
		coords = hashToCoordinates(address)
	}
	if err != nil {
		metrics.ObserveLookupFailure("geocode", s.provider())
		s.log.WithError(err).WithField("address", address).Warn("Geocode failed")
		if errors.Is(err, ErrGeocodingUnavailable) {
			return Coordinates{}, fmt.Errorf("geocode %q: %w", address, err)
		}
		return Coordinates{}, &AddressNotFoundError{Address: address, Err: err}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, coords, s.cacheTTL); err != nil {
			s.log.WithError(err).WithField("address", address).Warn("Failed to cache geocode result")
		}
	}

	return coords, nil
}

// Provider возвращает фактически используемый провайдер: nominatim, google или offline
func (s *GeocodingService) Provider() string {
	return s.provider()
}

func (s *GeocodingService) provider() string {
	p := strings.ToLower(s.cfg.Provider)
	switch p {
	case "nominatim", "google":
		return p
	}
	return "offline"
}

// nominatimGeocode вызывает поиск OpenStreetMap Nominatim.
func (s *GeocodingService) nominatimGeocode(ctx context.Context, address string) (Coordinates, error) {
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")
	if s.cfg.CountryCodes != "" {
		params.Set("countrycodes", s.cfg.CountryCodes)
	}

	endpoint := s.cfg.NominatimURL
	if endpoint == "" {
		endpoint = "https://nominatim.openstreetmap.org/search"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return Coordinates{}, fmt.Errorf("failed to build request: %w", err)
	}
	if s.cfg.Language != "" {
		req.Header.Set("Accept-Language", s.cfg.Language)
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: failed to call nominatim: %v", ErrGeocodingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Coordinates{}, fmt.Errorf("%w: nominatim returned status %d: %s", ErrGeocodingUnavailable, resp.StatusCode, string(body))
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return Coordinates{}, fmt.Errorf("%w: failed to decode nominatim response: %v", ErrGeocodingUnavailable, err)
	}
	if len(places) == 0 {
		return Coordinates{}, errors.New("nominatim returned no results")
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("failed to parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("failed to parse longitude: %w", err)
	}

	return Coordinates{Lat: lat, Lon: lon}, nil
}

// nominatimPlace элемент ответа Nominatim, координаты приходят строками
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// googleGeocode вызывает Google Geocoding API со смещением по региону.
func (s *GeocodingService) googleGeocode(ctx context.Context, address string) (Coordinates, error) {
	req := &maps.GeocodingRequest{
		Address:  address,
		Region:   s.cfg.CountryCodes,
		Language: s.cfg.Language,
	}

	results, err := s.google.Geocode(ctx, req)
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: maps api error: %v", ErrGeocodingUnavailable, err)
	}
	if len(results) == 0 {
		return Coordinates{}, errors.New("google geocode returned no results")
	}

	loc := results[0].Geometry.Location
	return Coordinates{Lat: loc.Lat, Lon: loc.Lng}, nil
}

// Границы, в которые офлайн-геокодер отображает адреса (территория Бразилии).
const (
	offlineMinLat = -33.75
	offlineMaxLat = 5.27
	offlineMinLon = -73.99
	offlineMaxLon = -34.79
)

// hashToCoordinates детерминированно генерирует координаты из адреса.
func hashToCoordinates(address string) Coordinates {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(address)))
	val := h.Sum64()

	latSpan := offlineMaxLat - offlineMinLat
	lonSpan := offlineMaxLon - offlineMinLon

	// шаг 0.0001 градуса
	lat := offlineMinLat + float64(val%10000)/10000.0*latSpan
	lon := offlineMinLon + float64((val/10000)%10000)/10000.0*lonSpan

	return Coordinates{Lat: roundTo(lat, 6), Lon: roundTo(lon, 6)}
}

// hashKey делает короткий ключ для адреса.
func hashKey(address string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(address)))
	return fmt.Sprintf("%x", h.Sum64())
}
