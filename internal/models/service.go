package models

import (
	"time"

	"github.com/google/uuid"
)

// ServiceStatus представляет статус выезда
type ServiceStatus string

const (
	ServiceStatusPending    ServiceStatus = "pending"
	ServiceStatusInProgress ServiceStatus = "in_progress"
	ServiceStatusCompleted  ServiceStatus = "completed"
)

// Valid сообщает, входит ли статус в закрытый список
func (s ServiceStatus) Valid() bool {
	return s.rank() >= 0
}

// CanTransitionTo проверяет, что статус не откатывается назад
func (s ServiceStatus) CanTransitionTo(next ServiceStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.rank() >= s.rank()
}

func (s ServiceStatus) rank() int {
	switch s {
	case ServiceStatusPending:
		return 0
	case ServiceStatusInProgress:
		return 1
	case ServiceStatusCompleted:
		return 2
	}
	return -1
}

// Placeholder-значения клиента, если при создании выезда они не указаны
const (
	PlaceholderClientName  = "Novo Cliente"
	PlaceholderClientPhone = "00000000000"
)

// Service представляет выезд эвакуатора, созданный из сметы
type Service struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	AccountID   uuid.UUID     `json:"account_id" db:"account_id"`
	QuoteID     uuid.UUID     `json:"quote_id" db:"quote_id"`
	ClientName  string        `json:"client_name" db:"client_name"`
	ClientPhone string        `json:"client_phone" db:"client_phone"`
	Status      ServiceStatus `json:"status" db:"status"`
	Value       float64       `json:"value" db:"value"`
	Cost        float64       `json:"cost" db:"cost"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// ServiceWithDetails выезд вместе с маршрутом исходной сметы и прибылью
type ServiceWithDetails struct {
	Service
	Origin      string     `json:"origin"`
	Destination string     `json:"destination"`
	VehicleID   *uuid.UUID `json:"vehicle_id,omitempty"`
	Profit      float64    `json:"profit"`
}

// CreateServiceRequest данные клиента для создания выезда из сметы
type CreateServiceRequest struct {
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
}

// UpdateServiceStatusRequest представляет запрос на смену статуса выезда
type UpdateServiceStatusRequest struct {
	Status ServiceStatus `json:"status"`
}

// ServiceSort порядок сортировки списка выездов
type ServiceSort string

const (
	ServiceSortNewest ServiceSort = "newest"
	ServiceSortOldest ServiceSort = "oldest"
)

// ServiceFilter задает фильтры списка выездов
type ServiceFilter struct {
	Status *ServiceStatus
	From   *time.Time
	To     *time.Time
	Search string
	Sort   ServiceSort
}
