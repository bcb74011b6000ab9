package services

import (
	"context"
	"sort"
	"time"

	"towing-system/internal/config"
	"towing-system/internal/logger"
	"towing-system/internal/models"
	"towing-system/internal/redis"

	"github.com/google/uuid"
)

const defaultDashboardCacheTTL = 30 * time.Second

// TransactionLister источник финансовых операций
type TransactionLister interface {
	ListTransactions(ctx context.Context, accountID uuid.UUID, filter models.TransactionFilter) ([]*models.Transaction, error)
}

// ServiceLister источник выездов
type ServiceLister interface {
	ListServices(ctx context.Context, accountID uuid.UUID, filter models.ServiceFilter) ([]*models.ServiceWithDetails, error)
}

// VehicleLister источник автопарка
type VehicleLister interface {
	ListVehicles(ctx context.Context, accountID uuid.UUID) ([]*models.Vehicle, error)
}

// QuoteCounter считает сметы аккаунта
type QuoteCounter interface {
	CountQuotes(ctx context.Context, accountID uuid.UUID) (int, error)
}

type statsCache interface {
	cacheStore
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// LedgerService собирает финансовую сводку и данные главного экрана.
type LedgerService struct {
	transactions TransactionLister
	services     ServiceLister
	vehicles     VehicleLister
	quotes       QuoteCounter
	cache        statsCache
	log          *logger.Logger
	plans        models.PlanCatalog
	cacheTTL     time.Duration
}

// NewLedgerService создает сервис сводок.
func NewLedgerService(transactions TransactionLister, services ServiceLister, vehicles VehicleLister, quotes QuoteCounter,
	cache *redis.Client, log *logger.Logger, plans models.PlanCatalog, cfg *config.DashboardConfig) *LedgerService {
	cacheTTL := defaultDashboardCacheTTL
	if cfg != nil && cfg.CacheTTLSeconds > 0 {
		cacheTTL = time.Duration(cfg.CacheTTLSeconds) * time.Second
	}
	if plans == nil {
		plans = models.DefaultPlanCatalog()
	}

	s := &LedgerService{
		transactions: transactions,
		services:     services,
		vehicles:     vehicles,
		quotes:       quotes,
		log:          log,
		plans:        plans,
		cacheTTL:     cacheTTL,
	}
	if cache != nil {
		s.cache = cache
	}
	return s
}

// Summarize считает доход, расход, чистую прибыль и расходы по категориям.
// Категории отсортированы по убыванию суммы.
func Summarize(transactions []*models.Transaction) models.FinancialSummary {
	summary := models.FinancialSummary{ExpensesByCategory: []models.CategoryTotal{}}
	byCategory := map[string]float64{}

	for _, t := range transactions {
		switch t.Type {
		case models.TransactionTypeRevenue:
			summary.Revenue += t.Amount
		case models.TransactionTypeExpense:
			summary.Expenses += t.Amount
			byCategory[t.Category] += t.Amount
		}
	}

	for category, total := range byCategory {
		summary.ExpensesByCategory = append(summary.ExpensesByCategory, models.CategoryTotal{
			Category: category,
			Total:    roundMoney(total),
		})
	}
	sort.Slice(summary.ExpensesByCategory, func(i, j int) bool {
		a, b := summary.ExpensesByCategory[i], summary.ExpensesByCategory[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Category < b.Category
	})

	summary.Revenue = roundMoney(summary.Revenue)
	summary.Expenses = roundMoney(summary.Expenses)
	summary.NetProfit = roundMoney(summary.Revenue - summary.Expenses)
	summary.TransactionsCount = len(transactions)

	return summary
}

// CostsByVehicle суммирует затраты завершенных выездов по эвакуатору сметы.
// В результат попадает каждый эвакуатор автопарка, даже без выездов.
func CostsByVehicle(vehicles []*models.Vehicle, services []*models.ServiceWithDetails) []models.VehicleCost {
	index := make(map[uuid.UUID]int, len(vehicles))
	costs := make([]models.VehicleCost, 0, len(vehicles))
	for _, v := range vehicles {
		index[v.ID] = len(costs)
		costs = append(costs, models.VehicleCost{VehicleID: v.ID, Plate: v.Plate, Model: v.Model})
	}

	for _, s := range services {
		if s.Status != models.ServiceStatusCompleted || s.VehicleID == nil {
			continue
		}
		i, ok := index[*s.VehicleID]
		if !ok {
			continue
		}
		costs[i].Cost += s.Cost
		costs[i].Services++
	}

	for i := range costs {
		costs[i].Cost = roundMoney(costs[i].Cost)
	}
	return costs
}

// FinancialSummary возвращает сводку по операциям за период с кешированием.
func (s *LedgerService) FinancialSummary(ctx context.Context, accountID uuid.UUID, filter models.TransactionFilter) (*models.FinancialSummary, error) {
	key := redis.GenerateKey(redis.KeyPrefixStats, accountID.String(), "summary", formatBound(filter.From), formatBound(filter.To))

	var cached models.FinancialSummary
	if s.tryGetFromCache(ctx, key, &cached) {
		return &cached, nil
	}

	transactions, err := s.transactions.ListTransactions(ctx, accountID, filter)
	if err != nil {
		return nil, err
	}

	summary := Summarize(transactions)
	s.saveToCache(ctx, key, &summary)
	return &summary, nil
}

// Dashboard собирает данные главного экрана: очереди выездов, финансы, лимит смет и затраты автопарка.
func (s *LedgerService) Dashboard(ctx context.Context, account *models.Account) (*models.Dashboard, error) {
	key := redis.GenerateKey(redis.KeyPrefixStats, account.ID.String(), "dashboard")

	var cached models.Dashboard
	if s.tryGetFromCache(ctx, key, &cached) {
		return &cached, nil
	}

	services, err := s.services.ListServices(ctx, account.ID, models.ServiceFilter{})
	if err != nil {
		return nil, err
	}
	transactions, err := s.transactions.ListTransactions(ctx, account.ID, models.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	vehicles, err := s.vehicles.ListVehicles(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	quotesCount, err := s.quotes.CountQuotes(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	dashboard := &models.Dashboard{
		QuotesCount:    quotesCount,
		QuoteLimit:     s.plans.Details(account.Plan).QuoteLimit,
		Financial:      Summarize(transactions),
		CostsByVehicle: CostsByVehicle(vehicles, services),
		GeneratedAt:    time.Now(),
	}
	for _, svc := range services {
		switch svc.Status {
		case models.ServiceStatusPending:
			dashboard.PendingServices++
		case models.ServiceStatusInProgress:
			dashboard.InProgressServices++
		}
	}

	s.saveToCache(ctx, key, dashboard)
	return dashboard, nil
}

// InvalidateAccount сбрасывает кеш сводок аккаунта после записи.
func (s *LedgerService) InvalidateAccount(ctx context.Context, accountID uuid.UUID) {
	if s.cache == nil {
		return
	}
	prefix := redis.GenerateKey(redis.KeyPrefixStats, accountID.String())
	if err := s.cache.DeleteByPrefix(ctx, prefix); err != nil {
		s.log.ForAccount(accountID).WithError(err).Warn("Failed to invalidate stats cache")
	}
}

func (s *LedgerService) tryGetFromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	return s.cache.Get(ctx, key, dest) == nil
}

func (s *LedgerService) saveToCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Failed to cache stats result")
	}
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
