package services

import (
	"math"

	"towing-system/internal/apperror"
	"towing-system/internal/config"
	"towing-system/internal/models"
)

// Price считает итоговую стоимость для клиента.
// Минимальная цена (minimumCharge + extras) применяется до вычитания скидки,
// поэтому крупная скидка может опустить итог ниже минимума и даже в минус.
func Price(distanceKm, ratePerKm, minimumCharge, extras, discount float64) float64 {
	base := distanceKm*ratePerKm + minimumCharge + extras
	floored := math.Max(base, minimumCharge+extras)
	return floored - discount
}

// FuelCost оценивает затраты на топливо. Расход должен быть проверен через ValidateConsumption.
func FuelCost(distanceKm, kmPerLiter, fuelPricePerLiter float64) float64 {
	return (distanceKm / kmPerLiter) * fuelPricePerLiter
}

// ValidateConsumption проверяет средний расход эвакуатора (км/л)
func ValidateConsumption(kmPerLiter float64) error {
	if kmPerLiter <= 0 || math.IsNaN(kmPerLiter) || math.IsInf(kmPerLiter, 0) {
		return apperror.Validation("average consumption must be greater than zero", nil)
	}
	return nil
}

// Profit прибыль выезда: стоимость минус затраты
func Profit(value, cost float64) float64 {
	return value - cost
}

// roundTo округляет до заданного количества знаков после запятой
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func roundMoney(v float64) float64 {
	return roundTo(v, 2)
}

// Rates эффективные тарифы расчета
type Rates struct {
	KmValue   float64
	MinCharge float64
	FuelPrice float64
}

// PricingService собирает тарифы из запроса, настроек аккаунта и значений по умолчанию.
type PricingService struct {
	defaults config.PricingConfig
}

// NewPricingService создаёт сервис с тарифами по умолчанию.
func NewPricingService(cfg *config.PricingConfig) *PricingService {
	return &PricingService{defaults: *cfg}
}

// ResolveRates выбирает тарифы: значение из запроса, затем настройки аккаунта, затем конфиг.
func (s *PricingService) ResolveRates(account *models.Account, kmValue, minCharge *float64) Rates {
	rates := Rates{
		KmValue:   s.defaults.DefaultKmValue,
		MinCharge: s.defaults.DefaultMinCharge,
		FuelPrice: s.defaults.DefaultFuelPrice,
	}
	if account != nil {
		if account.Settings.DefaultKmValue > 0 {
			rates.KmValue = account.Settings.DefaultKmValue
		}
		if account.Settings.DefaultMinCharge > 0 {
			rates.MinCharge = account.Settings.DefaultMinCharge
		}
		if account.Settings.FuelPrice > 0 {
			rates.FuelPrice = account.Settings.FuelPrice
		}
	}
	if kmValue != nil {
		rates.KmValue = *kmValue
	}
	if minCharge != nil {
		rates.MinCharge = *minCharge
	}
	return rates
}

// Breakdown считает итог, топливо и прибыль для уже известного расстояния.
func (s *PricingService) Breakdown(distanceKm float64, rates Rates, extras, discount, kmPerLiter float64) (*models.QuoteBreakdown, error) {
	if err := validateRates(distanceKm, rates, extras, discount); err != nil {
		return nil, err
	}
	if err := ValidateConsumption(kmPerLiter); err != nil {
		return nil, err
	}

	total := roundMoney(Price(distanceKm, rates.KmValue, rates.MinCharge, extras, discount))
	fuel := roundMoney(FuelCost(distanceKm, kmPerLiter, rates.FuelPrice))

	return &models.QuoteBreakdown{
		DistanceKm:      distanceKm,
		KmValue:         rates.KmValue,
		MinCharge:       rates.MinCharge,
		Extras:          extras,
		Discount:        discount,
		Total:           total,
		FuelCost:        fuel,
		EstimatedProfit: roundMoney(Profit(total, fuel)),
	}, nil
}

func validateRates(distanceKm float64, rates Rates, extras, discount float64) error {
	switch {
	case distanceKm < 0:
		return apperror.Validation("distance must not be negative", nil)
	case rates.KmValue < 0:
		return apperror.Validation("km value must not be negative", nil)
	case rates.MinCharge < 0:
		return apperror.Validation("minimum charge must not be negative", nil)
	case extras < 0:
		return apperror.Validation("extras must not be negative", nil)
	case discount < 0:
		return apperror.Validation("discount must not be negative", nil)
	case rates.FuelPrice < 0:
		return apperror.Validation("fuel price must not be negative", nil)
	}
	return nil
}
