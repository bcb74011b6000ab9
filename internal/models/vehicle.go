package models

import (
	"time"

	"github.com/google/uuid"
)

// MaintenanceAlertKm порог в километрах, начиная с которого показывается предупреждение о ТО
const MaintenanceAlertKm = 5000

// Vehicle представляет эвакуатор автопарка
type Vehicle struct {
	ID                uuid.UUID `json:"id" db:"id"`
	AccountID         uuid.UUID `json:"account_id" db:"account_id"`
	Plate             string    `json:"plate" db:"plate"`
	Model             string    `json:"model" db:"model"`
	Year              int       `json:"year" db:"year"`
	Km                float64   `json:"km" db:"km"`
	AvgConsumption    float64   `json:"avg_consumption" db:"avg_consumption"`
	NextMaintenanceKm float64   `json:"next_maintenance_km" db:"next_maintenance_km"`
	MaintenanceDue    bool      `json:"maintenance_due" db:"-"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// KmToMaintenance возвращает пробег до следующего ТО
func (v *Vehicle) KmToMaintenance() float64 {
	return v.NextMaintenanceKm - v.Km
}

// NeedsMaintenance сообщает, что до ТО осталось не больше MaintenanceAlertKm
func (v *Vehicle) NeedsMaintenance() bool {
	return v.KmToMaintenance() <= MaintenanceAlertKm
}

// CreateVehicleRequest представляет запрос на добавление эвакуатора
type CreateVehicleRequest struct {
	Plate             string  `json:"plate"`
	Model             string  `json:"model"`
	Year              int     `json:"year"`
	Km                float64 `json:"km"`
	AvgConsumption    float64 `json:"avg_consumption"`
	NextMaintenanceKm float64 `json:"next_maintenance_km"`
}

// UpdateVehicleRequest представляет запрос на изменение эвакуатора
type UpdateVehicleRequest struct {
	Plate             *string  `json:"plate,omitempty"`
	Model             *string  `json:"model,omitempty"`
	Year              *int     `json:"year,omitempty"`
	Km                *float64 `json:"km,omitempty"`
	AvgConsumption    *float64 `json:"avg_consumption,omitempty"`
	NextMaintenanceKm *float64 `json:"next_maintenance_km,omitempty"`
}
