package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType тип доменного события
type EventType string

const (
	EventTypeQuoteCreated         EventType = "quote.created"
	EventTypeQuoteStatusChanged   EventType = "quote.status_changed"
	EventTypeServiceCreated       EventType = "service.created"
	EventTypeServiceStatusChanged EventType = "service.status_changed"
	EventTypeTransactionCreated   EventType = "transaction.created"
)

// Event конверт события, публикуемого в Kafka
type Event struct {
	ID        uuid.UUID   `json:"id"`
	Type      EventType   `json:"type"`
	AccountID uuid.UUID   `json:"account_id"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// QuoteCreatedData данные события quote.created
type QuoteCreatedData struct {
	QuoteID    uuid.UUID `json:"quote_id"`
	DistanceKm float64   `json:"distance_km"`
	Total      float64   `json:"total"`
	FuelCost   float64   `json:"fuel_cost"`
}

// QuoteStatusChangedData данные события quote.status_changed
type QuoteStatusChangedData struct {
	QuoteID   uuid.UUID   `json:"quote_id"`
	OldStatus QuoteStatus `json:"old_status"`
	NewStatus QuoteStatus `json:"new_status"`
}

// ServiceCreatedData данные события service.created
type ServiceCreatedData struct {
	ServiceID  uuid.UUID `json:"service_id"`
	QuoteID    uuid.UUID `json:"quote_id"`
	ClientName string    `json:"client_name"`
	Value      float64   `json:"value"`
	Cost       float64   `json:"cost"`
}

// ServiceStatusChangedData данные события service.status_changed
type ServiceStatusChangedData struct {
	ServiceID uuid.UUID     `json:"service_id"`
	OldStatus ServiceStatus `json:"old_status"`
	NewStatus ServiceStatus `json:"new_status"`
}

// TransactionCreatedData данные события transaction.created
type TransactionCreatedData struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	Type          TransactionType `json:"type"`
	Category      string          `json:"category"`
	Amount        float64         `json:"amount"`
}
