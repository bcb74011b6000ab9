package models

import (
	"time"

	"github.com/google/uuid"
)

// VehicleCost сумма затрат завершенных выездов по эвакуатору
type VehicleCost struct {
	VehicleID uuid.UUID `json:"vehicle_id"`
	Plate     string    `json:"plate"`
	Model     string    `json:"model"`
	Cost      float64   `json:"cost"`
	Services  int       `json:"services"`
}

// Dashboard сводка для главного экрана
type Dashboard struct {
	PendingServices    int              `json:"pending_services"`
	InProgressServices int              `json:"in_progress_services"`
	QuotesCount        int              `json:"quotes_count"`
	QuoteLimit         int              `json:"quote_limit"`
	Financial          FinancialSummary `json:"financial"`
	CostsByVehicle     []VehicleCost    `json:"costs_by_vehicle,omitempty"`
	GeneratedAt        time.Time        `json:"generated_at"`
}
