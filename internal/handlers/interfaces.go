package handlers

import (
	"context"

	"towing-system/internal/models"
	"towing-system/internal/services"

	"github.com/google/uuid"
)

// ----- Account -----

type AccountService interface {
	GetAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	UpdateSettings(ctx context.Context, accountID uuid.UUID, settings *models.AccountSettings) (*models.Account, error)
	ChangePlan(ctx context.Context, accountID uuid.UUID, plan models.Plan) (*models.Account, error)
	PlanDetails(plan models.Plan) models.PlanDetails
	ListPlans() []services.PlanView
}

// ----- Quotes -----

type QuoteService interface {
	Calculate(ctx context.Context, account *models.Account, req *models.CalculateQuoteRequest) (*models.QuoteBreakdown, error)
	CreateQuote(ctx context.Context, account *models.Account, req *models.CreateQuoteRequest) (*models.Quote, error)
	GetQuote(ctx context.Context, accountID, quoteID uuid.UUID) (*models.Quote, error)
	ListQuotes(ctx context.Context, accountID uuid.UUID, filter models.QuoteFilter) ([]*models.Quote, error)
	UpdateQuote(ctx context.Context, account *models.Account, quoteID uuid.UUID, req *models.UpdateQuoteRequest) (*models.Quote, error)
	UpdateQuoteStatus(ctx context.Context, accountID, quoteID uuid.UUID, status models.QuoteStatus) (models.QuoteStatus, error)
	CreateService(ctx context.Context, accountID, quoteID uuid.UUID, req *models.CreateServiceRequest) (*models.Service, error)
	DeleteQuote(ctx context.Context, accountID, quoteID uuid.UUID) error
}

// ----- Services -----

type TowService interface {
	GetService(ctx context.Context, accountID, serviceID uuid.UUID) (*models.ServiceWithDetails, error)
	ListServices(ctx context.Context, accountID uuid.UUID, filter models.ServiceFilter) ([]*models.ServiceWithDetails, error)
	UpdateServiceStatus(ctx context.Context, accountID, serviceID uuid.UUID, status models.ServiceStatus) (models.ServiceStatus, error)
}

// ----- Financial -----

type TransactionService interface {
	CreateTransaction(ctx context.Context, accountID uuid.UUID, req *models.CreateTransactionRequest) (*models.Transaction, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, filter models.TransactionFilter) ([]*models.Transaction, error)
	DeleteTransaction(ctx context.Context, accountID, transactionID uuid.UUID) error
}

type LedgerService interface {
	FinancialSummary(ctx context.Context, accountID uuid.UUID, filter models.TransactionFilter) (*models.FinancialSummary, error)
	Dashboard(ctx context.Context, account *models.Account) (*models.Dashboard, error)
	InvalidateAccount(ctx context.Context, accountID uuid.UUID)
}

// StatsInvalidator сбрасывает кеш сводок аккаунта после изменений
type StatsInvalidator interface {
	InvalidateAccount(ctx context.Context, accountID uuid.UUID)
}

// ----- Fleet -----

type VehicleService interface {
	CreateVehicle(ctx context.Context, accountID uuid.UUID, req *models.CreateVehicleRequest) (*models.Vehicle, error)
	GetVehicle(ctx context.Context, accountID, vehicleID uuid.UUID) (*models.Vehicle, error)
	ListVehicles(ctx context.Context, accountID uuid.UUID) ([]*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, accountID, vehicleID uuid.UUID, req *models.UpdateVehicleRequest) (*models.Vehicle, error)
	DeleteVehicle(ctx context.Context, accountID, vehicleID uuid.UUID) error
}

// ----- Events -----

type EventProducer interface {
	PublishQuoteCreated(quote *models.Quote) error
	PublishQuoteStatusChanged(accountID, quoteID uuid.UUID, oldStatus, newStatus models.QuoteStatus) error
	PublishServiceCreated(service *models.Service) error
	PublishServiceStatusChanged(accountID, serviceID uuid.UUID, oldStatus, newStatus models.ServiceStatus) error
	PublishTransactionCreated(transaction *models.Transaction) error
}

// ----- Health -----

type DBHealth interface {
	Health() error
}

type RedisHealth interface {
	Health(ctx context.Context) error
}
