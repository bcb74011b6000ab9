package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan представляет тарифный план аккаунта
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPro     Plan = "pro"
	PlanPremium Plan = "premium"
)

// Valid сообщает, входит ли план в закрытый список
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanPremium:
		return true
	}
	return false
}

// Feature модуль, доступ к которому ограничивается планом
type Feature string

const (
	FeatureFinancial       Feature = "financial"
	FeatureFleet           Feature = "fleet"
	FeatureAdvancedReports Feature = "advanced_reports"
)

// UnlimitedQuotes означает отсутствие лимита на количество смет
const UnlimitedQuotes = -1

// PlanDetails описывает лимиты и модули плана
type PlanDetails struct {
	Name       string    `json:"name" yaml:"name"`
	Price      float64   `json:"price" yaml:"price"`
	QuoteLimit int       `json:"quote_limit" yaml:"quote_limit"`
	Features   []Feature `json:"features" yaml:"features"`
}

// Unlimited сообщает, что план не ограничивает количество смет
func (d PlanDetails) Unlimited() bool {
	return d.QuoteLimit < 0
}

// Allows проверяет доступность модуля
func (d PlanDetails) Allows(f Feature) bool {
	for _, feature := range d.Features {
		if feature == f {
			return true
		}
	}
	return false
}

// PlanCatalog сопоставляет план и его параметры
type PlanCatalog map[Plan]PlanDetails

// DefaultPlanCatalog возвращает встроенный набор планов
func DefaultPlanCatalog() PlanCatalog {
	return PlanCatalog{
		PlanFree: {
			Name:       "Gratuito",
			Price:      0,
			QuoteLimit: 10,
			Features:   []Feature{},
		},
		PlanPro: {
			Name:       "Pro",
			Price:      39.90,
			QuoteLimit: UnlimitedQuotes,
			Features:   []Feature{FeatureFinancial},
		},
		PlanPremium: {
			Name:       "Premium",
			Price:      69.90,
			QuoteLimit: UnlimitedQuotes,
			Features:   []Feature{FeatureFinancial, FeatureFleet, FeatureAdvancedReports},
		},
	}
}

// Details возвращает параметры плана; неизвестный план трактуется как free
func (c PlanCatalog) Details(p Plan) PlanDetails {
	if d, ok := c[p]; ok {
		return d
	}
	return c[PlanFree]
}

// LoadPlanCatalog читает yaml с переопределением планов поверх встроенных.
// Пустой путь возвращает встроенный каталог.
func LoadPlanCatalog(path string) (PlanCatalog, error) {
	catalog := DefaultPlanCatalog()
	if path == "" {
		return catalog, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans file: %w", err)
	}

	var overrides map[Plan]PlanDetails
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse plans file: %w", err)
	}

	for plan, details := range overrides {
		if !plan.Valid() {
			return nil, fmt.Errorf("unknown plan %q in plans file", plan)
		}
		if details.QuoteLimit < UnlimitedQuotes {
			return nil, fmt.Errorf("invalid quote_limit %d for plan %s", details.QuoteLimit, plan)
		}
		catalog[plan] = details
	}

	return catalog, nil
}
