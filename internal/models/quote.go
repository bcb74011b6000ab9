package models

import (
	"time"

	"github.com/google/uuid"
)

// QuoteStatus представляет статус сметы
type QuoteStatus string

const (
	QuoteStatusPending        QuoteStatus = "pending"
	QuoteStatusApproved       QuoteStatus = "approved"
	QuoteStatusRejected       QuoteStatus = "rejected"
	QuoteStatusServiceCreated QuoteStatus = "service_created"
)

// Valid сообщает, входит ли статус в закрытый список
func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteStatusPending, QuoteStatusApproved, QuoteStatusRejected, QuoteStatusServiceCreated:
		return true
	}
	return false
}

// Quote представляет смету на эвакуацию
type Quote struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	AccountID       uuid.UUID   `json:"account_id" db:"account_id"`
	CurrentLocation string      `json:"current_location" db:"current_location"`
	Origin          string      `json:"origin" db:"origin"`
	Destination     string      `json:"destination" db:"destination"`
	ReturnAddress   string      `json:"return_address" db:"return_address"`
	DistanceKm      float64     `json:"distance_km" db:"distance_km"`
	KmValue         float64     `json:"km_value" db:"km_value"`
	MinCharge       float64     `json:"min_charge" db:"min_charge"`
	Extras          float64     `json:"extras" db:"extras"`
	Discount        *float64    `json:"discount,omitempty" db:"discount"`
	Notes           string      `json:"notes" db:"notes"`
	Total           float64     `json:"total" db:"total"`
	FuelCost        float64     `json:"fuel_cost" db:"fuel_cost"`
	Status          QuoteStatus `json:"status" db:"status"`
	VehicleID       *uuid.UUID  `json:"vehicle_id,omitempty" db:"vehicle_id"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// DiscountValue возвращает скидку или 0, если она не указана
func (q *Quote) DiscountValue() float64 {
	if q.Discount == nil {
		return 0
	}
	return *q.Discount
}

// CalculateQuoteRequest содержит данные формы расчета.
// Пустые тарифы и адрес возврата берутся из настроек аккаунта.
type CalculateQuoteRequest struct {
	VehicleID       *uuid.UUID `json:"vehicle_id"`
	CurrentLocation string     `json:"current_location"`
	Origin          string     `json:"origin"`
	Destination     string     `json:"destination"`
	ReturnAddress   string     `json:"return_address"`
	KmValue         *float64   `json:"km_value,omitempty"`
	MinCharge       *float64   `json:"min_charge,omitempty"`
	Extras          float64    `json:"extras"`
	Discount        *float64   `json:"discount,omitempty"`
}

// QuoteBreakdown результат расчета, показываемый до сохранения сметы
type QuoteBreakdown struct {
	DistanceKm      float64 `json:"distance_km"`
	KmValue         float64 `json:"km_value"`
	MinCharge       float64 `json:"min_charge"`
	Extras          float64 `json:"extras"`
	Discount        float64 `json:"discount"`
	Total           float64 `json:"total"`
	FuelCost        float64 `json:"fuel_cost"`
	EstimatedProfit float64 `json:"estimated_profit"`
	ReturnAddress   string  `json:"return_address"`
}

// CreateQuoteRequest представляет запрос на сохранение сметы.
// Если DistanceKm передан, повторный расчет маршрута не выполняется.
type CreateQuoteRequest struct {
	CalculateQuoteRequest
	DistanceKm *float64 `json:"distance_km,omitempty"`
	Notes      string   `json:"notes"`
}

// UpdateQuoteRequest представляет правку сметы из формы редактирования
type UpdateQuoteRequest struct {
	DistanceKm *float64 `json:"distance_km,omitempty"`
	KmValue    *float64 `json:"km_value,omitempty"`
	MinCharge  *float64 `json:"min_charge,omitempty"`
	Extras     *float64 `json:"extras,omitempty"`
	Discount   *float64 `json:"discount,omitempty"`
	Notes      *string  `json:"notes,omitempty"`
}

// UpdateQuoteStatusRequest представляет ручную смену статуса сметы
type UpdateQuoteStatusRequest struct {
	Status QuoteStatus `json:"status"`
}

// QuoteFilter задает фильтры списка смет
type QuoteFilter struct {
	Status *QuoteStatus
	From   *time.Time
	To     *time.Time
}
