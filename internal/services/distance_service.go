package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"towing-system/internal/apperror"
	"towing-system/internal/logger"

	"golang.org/x/sync/errgroup"
)

// Geocoder переводит адрес в координаты
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinates, error)
}

// RouteProvider возвращает длину маршрута между координатами в км
type RouteProvider interface {
	RouteDistanceKm(ctx context.Context, from, to Coordinates) (float64, error)
}

// Leg участок многоточечного маршрута
type Leg struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// BuildRoundTripLegs строит участки: текущее место -> погрузка -> выгрузка -> база.
func BuildRoundTripLegs(current, origin, destination, returnAddress string) []Leg {
	return []Leg{
		{From: current, To: origin},
		{From: origin, To: destination},
		{From: destination, To: returnAddress},
	}
}

// DistanceService суммирует расстояние по участкам маршрута.
type DistanceService struct {
	geocoder Geocoder
	router   RouteProvider
	log      *logger.Logger
}

// NewDistanceService создает агрегатор расстояний.
func NewDistanceService(geocoder Geocoder, router RouteProvider, log *logger.Logger) *DistanceService {
	return &DistanceService{
		geocoder: geocoder,
		router:   router,
		log:      log,
	}
}

// TotalDistance обходит участки строго последовательно, чтобы не превышать лимиты
// внешних API, и округляет сумму до 0.1 км один раз в конце.
// Участки с пустым концом пропускаются. Частичный результат не возвращается.
func (s *DistanceService) TotalDistance(ctx context.Context, legs []Leg) (float64, error) {
	var total float64
	for i, leg := range legs {
		if strings.TrimSpace(leg.From) == "" || strings.TrimSpace(leg.To) == "" {
			continue
		}

		km, err := s.LegDistance(ctx, leg)
		if err != nil {
			s.log.WithError(err).WithField("leg", i+1).Warn("Leg distance failed")
			return 0, err
		}
		total += km
	}

	return roundTo(total, 1), nil
}

// LegDistance геокодирует оба конца участка параллельно и запрашивает маршрут.
// Возвращает неокругленное расстояние.
func (s *DistanceService) LegDistance(ctx context.Context, leg Leg) (float64, error) {
	var from, to Coordinates
	var fromErr, toErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		from, fromErr = s.geocoder.Geocode(gctx, leg.From)
		return nil
	})
	g.Go(func() error {
		to, toErr = s.geocoder.Geocode(gctx, leg.To)
		return nil
	})
	_ = g.Wait()

	if fromErr != nil {
		return 0, addressError(leg.From, fromErr)
	}
	if toErr != nil {
		return 0, addressError(leg.To, toErr)
	}

	km, err := s.router.RouteDistanceKm(ctx, from, to)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoRoute):
			return 0, apperror.Unprocessable(
				fmt.Sprintf("no route found between %q and %q", leg.From, leg.To), err)
		case errors.Is(err, ErrRoutingUnavailable):
			return 0, apperror.Unprocessable("route provider is unavailable, try again later", err)
		}
		return 0, fmt.Errorf("failed to get route distance: %w", err)
	}
	return km, nil
}

func addressError(address string, err error) error {
	if errors.Is(err, ErrGeocodingUnavailable) {
		return apperror.Unprocessable(
			fmt.Sprintf("could not geocode address %q: geocoding provider is unavailable, try again later", address), err)
	}
	var notFound *AddressNotFoundError
	if !errors.As(err, &notFound) {
		notFound = &AddressNotFoundError{Address: address, Err: err}
	}
	return apperror.Unprocessable(
		fmt.Sprintf("could not find coordinates for address %q, please check it", notFound.Address), notFound)
}
