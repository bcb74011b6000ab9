package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"towing-system/internal/config"
	"towing-system/internal/logger"
	"towing-system/internal/metrics"
	"towing-system/internal/redis"

	"github.com/mmcloughlin/geohash"
	"googlemaps.github.io/maps"
)

const (
	defaultRouteCacheTTL    = 24 * time.Hour
	defaultGeohashPrecision = 9
	earthRadiusKm           = 6371.0
)

var (
	// ErrNoRoute между координатами нет проезжего маршрута
	ErrNoRoute = errors.New("no route found")
	// ErrRoutingUnavailable провайдер маршрутов не ответил
	ErrRoutingUnavailable = errors.New("routing provider unavailable")
)

// RoutingService возвращает длину проезжего маршрута между двумя точками в км.
// Провайдер выбирается конфигурацией: osrm, google или haversine.
type RoutingService struct {
	cache     cacheStore
	log       *logger.Logger
	client    *http.Client
	google    *maps.Client
	cfg       *config.RoutingConfig
	cacheTTL  time.Duration
	precision uint
}

// NewRoutingService создает сервис маршрутов.
func NewRoutingService(cache *redis.Client, log *logger.Logger, cfg *config.RoutingConfig) (*RoutingService, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = defaultRouteCacheTTL
	}
	precision := cfg.GeohashPrecision
	if precision == 0 || precision > 12 {
		precision = defaultGeohashPrecision
	}

	s := &RoutingService{
		log:       log,
		client:    &http.Client{Timeout: timeout},
		cfg:       cfg,
		cacheTTL:  ttl,
		precision: precision,
	}
	if cache != nil {
		s.cache = cache
	}

	if strings.EqualFold(cfg.Provider, "google") {
		if cfg.GoogleAPIKey == "" {
			return nil, errors.New("google routing requires GOOGLE_MAPS_API_KEY")
		}
		client, err := maps.NewClient(maps.WithAPIKey(cfg.GoogleAPIKey), maps.WithHTTPClient(s.client))
		if err != nil {
			return nil, fmt.Errorf("failed to create maps client: %w", err)
		}
		s.google = client
	}

	return s, nil
}

// RouteDistanceKm возвращает неокругленное расстояние по дорогам в километрах.
func (s *RoutingService) RouteDistanceKm(ctx context.Context, from, to Coordinates) (float64, error) {
	key := redis.GenerateKey(redis.KeyPrefixRoute, s.provider(),
		geohash.EncodeWithPrecision(from.Lat, from.Lon, s.precision),
		geohash.EncodeWithPrecision(to.Lat, to.Lon, s.precision))

	var cached float64
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	var (
		km  float64
		err error
	)
	switch s.provider() {
	case "osrm":
		km, err = s.osrmRoute(ctx, from, to)
	case "google":
		km, err = s.googleRoute(ctx, from, to)
	default:
		km = haversineKm(from, to)
	}
	if err != nil {
		metrics.ObserveLookupFailure("route", s.provider())
		s.log.WithError(err).WithFields(map[string]interface{}{
			"from": from,
			"to":   to,
		}).Warn("Route lookup failed")
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, km, s.cacheTTL); err != nil {
			s.log.WithError(err).Warn("Failed to cache route distance")
		}
	}

	return km, nil
}

// Provider возвращает фактически используемый провайдер: osrm, google или haversine
func (s *RoutingService) Provider() string {
	return s.provider()
}

func (s *RoutingService) provider() string {
	p := strings.ToLower(s.cfg.Provider)
	switch p {
	case "osrm", "google":
		return p
	}
	return "haversine"
}

// osrmRoute вызывает OSRM route/v1/driving; координаты передаются в порядке lon,lat.
func (s *RoutingService) osrmRoute(ctx context.Context, from, to Coordinates) (float64, error) {
	base := strings.TrimRight(s.cfg.OSRMURL, "/")
	if base == "" {
		base = "https://router.project-osrm.org"
	}
	reqURL := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=false",
		base, from.Lon, from.Lat, to.Lon, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRoutingUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read response: %v", ErrRoutingUnavailable, err)
	}

	var data osrmResponse
	if err := json.Unmarshal(body, &data); err != nil {
		if resp.StatusCode != http.StatusOK {
			return 0, fmt.Errorf("%w: osrm returned status %d", ErrRoutingUnavailable, resp.StatusCode)
		}
		return 0, fmt.Errorf("%w: failed to decode osrm response: %v", ErrRoutingUnavailable, err)
	}

	switch {
	case data.Code == "Ok" && len(data.Routes) > 0:
		return data.Routes[0].Distance / 1000, nil
	case data.Code == "Ok", data.Code == "NoRoute", data.Code == "NoSegment":
		return 0, ErrNoRoute
	case resp.StatusCode != http.StatusOK:
		return 0, fmt.Errorf("%w: osrm returned status %d (%s)", ErrRoutingUnavailable, resp.StatusCode, data.Code)
	default:
		return 0, fmt.Errorf("%w: osrm code %s", ErrRoutingUnavailable, data.Code)
	}
}

// osrmResponse ответ OSRM, расстояние в метрах
type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// googleRoute вызывает Google Directions API в режиме driving.
func (s *RoutingService) googleRoute(ctx context.Context, from, to Coordinates) (float64, error) {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", from.Lat, from.Lon),
		Destination: fmt.Sprintf("%f,%f", to.Lat, to.Lon),
		Mode:        maps.TravelModeDriving,
		Region:      s.cfg.Region,
	}

	routes, _, err := s.google.Directions(ctx, r)
	if err != nil {
		if strings.Contains(err.Error(), "ZERO_RESULTS") || strings.Contains(err.Error(), "NOT_FOUND") {
			return 0, ErrNoRoute
		}
		return 0, fmt.Errorf("%w: maps api error: %v", ErrRoutingUnavailable, err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, ErrNoRoute
	}

	var meters int
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
	}
	return float64(meters) / 1000, nil
}

// haversineKm возвращает расстояние по дуге большого круга в километрах.
func haversineKm(from, to Coordinates) float64 {
	dLat := degreesToRadians(to.Lat - from.Lat)
	dLon := degreesToRadians(to.Lon - from.Lon)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(degreesToRadians(from.Lat))*math.Cos(degreesToRadians(to.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
