package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"towing-system/internal/apperror"
	"towing-system/internal/config"
	"towing-system/internal/logger"
	"towing-system/internal/models"
	"towing-system/internal/services"

	"github.com/google/uuid"
)

func newTestLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

func newTestAccount(plan models.Plan) *models.Account {
	return &models.Account{
		ID:   uuid.New(),
		Name: "Carlos",
		Plan: plan,
		Settings: models.AccountSettings{
			DefaultKmValue:       5.5,
			DefaultMinCharge:     150,
			DefaultReturnAddress: "Rua da Base, 10",
			FuelPrice:            5.89,
		},
	}
}

// newAccountRequest собирает запрос с аккаунтом в контексте, как после AccountMiddleware
func newAccountRequest(method, target, body string, account *models.Account) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set("Content-Type", "application/json")
	if account != nil {
		req = req.WithContext(WithAccount(req.Context(), account))
	}
	return req
}

type stubAccountService struct {
	account *models.Account
	err     error
	plans   models.PlanCatalog
}

func (s *stubAccountService) GetAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.account == nil || s.account.ID != accountID {
		return nil, apperror.NotFound("account not found", nil)
	}
	return s.account, nil
}
func (s *stubAccountService) UpdateSettings(ctx context.Context, accountID uuid.UUID, settings *models.AccountSettings) (*models.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	updated := *s.account
	updated.Settings = *settings
	return &updated, nil
}
func (s *stubAccountService) ChangePlan(ctx context.Context, accountID uuid.UUID, plan models.Plan) (*models.Account, error) {
	if !plan.Valid() {
		return nil, apperror.Validation("invalid plan", nil)
	}
	updated := *s.account
	updated.Plan = plan
	return &updated, nil
}
func (s *stubAccountService) PlanDetails(plan models.Plan) models.PlanDetails {
	return s.catalog().Details(plan)
}
func (s *stubAccountService) ListPlans() []services.PlanView {
	c := s.catalog()
	return []services.PlanView{
		{Plan: models.PlanFree, PlanDetails: c.Details(models.PlanFree)},
		{Plan: models.PlanPro, PlanDetails: c.Details(models.PlanPro)},
		{Plan: models.PlanPremium, PlanDetails: c.Details(models.PlanPremium)},
	}
}
func (s *stubAccountService) catalog() models.PlanCatalog {
	if s.plans != nil {
		return s.plans
	}
	return models.DefaultPlanCatalog()
}

type stubQuoteService struct {
	breakdown  *models.QuoteBreakdown
	quote      *models.Quote
	quotes     []*models.Quote
	service    *models.Service
	oldStatus  models.QuoteStatus
	err        error
	lastFilter models.QuoteFilter
}

func (s *stubQuoteService) Calculate(ctx context.Context, account *models.Account, req *models.CalculateQuoteRequest) (*models.QuoteBreakdown, error) {
	return s.breakdown, s.err
}
func (s *stubQuoteService) CreateQuote(ctx context.Context, account *models.Account, req *models.CreateQuoteRequest) (*models.Quote, error) {
	return s.quote, s.err
}
func (s *stubQuoteService) GetQuote(ctx context.Context, accountID, quoteID uuid.UUID) (*models.Quote, error) {
	return s.quote, s.err
}
func (s *stubQuoteService) ListQuotes(ctx context.Context, accountID uuid.UUID, filter models.QuoteFilter) ([]*models.Quote, error) {
	s.lastFilter = filter
	return s.quotes, s.err
}
func (s *stubQuoteService) UpdateQuote(ctx context.Context, account *models.Account, quoteID uuid.UUID, req *models.UpdateQuoteRequest) (*models.Quote, error) {
	return s.quote, s.err
}
func (s *stubQuoteService) UpdateQuoteStatus(ctx context.Context, accountID, quoteID uuid.UUID, status models.QuoteStatus) (models.QuoteStatus, error) {
	return s.oldStatus, s.err
}
func (s *stubQuoteService) CreateService(ctx context.Context, accountID, quoteID uuid.UUID, req *models.CreateServiceRequest) (*models.Service, error) {
	return s.service, s.err
}
func (s *stubQuoteService) DeleteQuote(ctx context.Context, accountID, quoteID uuid.UUID) error {
	return s.err
}

type stubTowService struct {
	service    *models.ServiceWithDetails
	services   []*models.ServiceWithDetails
	oldStatus  models.ServiceStatus
	err        error
	lastFilter models.ServiceFilter
}

func (s *stubTowService) GetService(ctx context.Context, accountID, serviceID uuid.UUID) (*models.ServiceWithDetails, error) {
	return s.service, s.err
}
func (s *stubTowService) ListServices(ctx context.Context, accountID uuid.UUID, filter models.ServiceFilter) ([]*models.ServiceWithDetails, error) {
	s.lastFilter = filter
	return s.services, s.err
}
func (s *stubTowService) UpdateServiceStatus(ctx context.Context, accountID, serviceID uuid.UUID, status models.ServiceStatus) (models.ServiceStatus, error) {
	return s.oldStatus, s.err
}

type stubTransactionService struct {
	transaction  *models.Transaction
	transactions []*models.Transaction
	err          error
	lastFilter   models.TransactionFilter
}

func (s *stubTransactionService) CreateTransaction(ctx context.Context, accountID uuid.UUID, req *models.CreateTransactionRequest) (*models.Transaction, error) {
	return s.transaction, s.err
}
func (s *stubTransactionService) ListTransactions(ctx context.Context, accountID uuid.UUID, filter models.TransactionFilter) ([]*models.Transaction, error) {
	s.lastFilter = filter
	return s.transactions, s.err
}
func (s *stubTransactionService) DeleteTransaction(ctx context.Context, accountID, transactionID uuid.UUID) error {
	return s.err
}

type stubVehicleService struct {
	vehicle  *models.Vehicle
	vehicles []*models.Vehicle
	err      error
}

func (s *stubVehicleService) CreateVehicle(ctx context.Context, accountID uuid.UUID, req *models.CreateVehicleRequest) (*models.Vehicle, error) {
	return s.vehicle, s.err
}
func (s *stubVehicleService) GetVehicle(ctx context.Context, accountID, vehicleID uuid.UUID) (*models.Vehicle, error) {
	return s.vehicle, s.err
}
func (s *stubVehicleService) ListVehicles(ctx context.Context, accountID uuid.UUID) ([]*models.Vehicle, error) {
	return s.vehicles, s.err
}
func (s *stubVehicleService) UpdateVehicle(ctx context.Context, accountID, vehicleID uuid.UUID, req *models.UpdateVehicleRequest) (*models.Vehicle, error) {
	return s.vehicle, s.err
}
func (s *stubVehicleService) DeleteVehicle(ctx context.Context, accountID, vehicleID uuid.UUID) error {
	return s.err
}

type stubLedger struct {
	summary     *models.FinancialSummary
	dashboard   *models.Dashboard
	err         error
	invalidated int
}

func (s *stubLedger) FinancialSummary(ctx context.Context, accountID uuid.UUID, filter models.TransactionFilter) (*models.FinancialSummary, error) {
	return s.summary, s.err
}
func (s *stubLedger) Dashboard(ctx context.Context, account *models.Account) (*models.Dashboard, error) {
	return s.dashboard, s.err
}
func (s *stubLedger) InvalidateAccount(ctx context.Context, accountID uuid.UUID) {
	s.invalidated++
}

type stubProducer struct {
	quoteCreated         int
	quoteStatusChanged   int
	serviceCreated       int
	serviceStatusChanged int
	transactionCreated   int
	err                  error
}

func (p *stubProducer) PublishQuoteCreated(quote *models.Quote) error {
	p.quoteCreated++
	return p.err
}
func (p *stubProducer) PublishQuoteStatusChanged(accountID, quoteID uuid.UUID, oldStatus, newStatus models.QuoteStatus) error {
	p.quoteStatusChanged++
	return p.err
}
func (p *stubProducer) PublishServiceCreated(service *models.Service) error {
	p.serviceCreated++
	return p.err
}
func (p *stubProducer) PublishServiceStatusChanged(accountID, serviceID uuid.UUID, oldStatus, newStatus models.ServiceStatus) error {
	p.serviceStatusChanged++
	return p.err
}
func (p *stubProducer) PublishTransactionCreated(transaction *models.Transaction) error {
	p.transactionCreated++
	return p.err
}

var (
	_ AccountService     = (*stubAccountService)(nil)
	_ QuoteService       = (*stubQuoteService)(nil)
	_ TowService         = (*stubTowService)(nil)
	_ TransactionService = (*stubTransactionService)(nil)
	_ VehicleService     = (*stubVehicleService)(nil)
	_ LedgerService      = (*stubLedger)(nil)
	_ EventProducer      = (*stubProducer)(nil)
)
