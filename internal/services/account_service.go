package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"towing-system/internal/apperror"
	"towing-system/internal/database"
	"towing-system/internal/logger"
	"towing-system/internal/models"
	"towing-system/internal/redis"

	"github.com/google/uuid"
)

const accountCacheTTL = 5 * time.Minute

// accountCache подмножество redis.Client для кеша аккаунтов
type accountCache interface {
	cacheStore
	Delete(ctx context.Context, key string) error
}

// AccountService загружает контекст аккаунта и управляет его настройками.
type AccountService struct {
	db    *database.DB
	cache accountCache
	log   *logger.Logger
	plans models.PlanCatalog
}

// NewAccountService создает сервис аккаунтов.
func NewAccountService(db *database.DB, cache *redis.Client, log *logger.Logger, plans models.PlanCatalog) *AccountService {
	if plans == nil {
		plans = models.DefaultPlanCatalog()
	}
	s := &AccountService{
		db:    db,
		log:   log,
		plans: plans,
	}
	if cache != nil {
		s.cache = cache
	}
	return s
}

// GetAccount возвращает аккаунт по идентификатору, используя кеш Redis.
func (s *AccountService) GetAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	key := redis.GenerateKey(redis.KeyPrefixAccount, accountID.String())

	if s.cache != nil {
		var cached models.Account
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	query := `
		SELECT id, name, company_name, plan, default_km_value, default_min_charge,
		       default_return_address, fuel_price, created_at
		FROM accounts
		WHERE id = $1
	`

	var account models.Account
	err := s.db.QueryRowContext(ctx, query, accountID).Scan(
		&account.ID, &account.Name, &account.CompanyName, &account.Plan,
		&account.Settings.DefaultKmValue, &account.Settings.DefaultMinCharge,
		&account.Settings.DefaultReturnAddress, &account.Settings.FuelPrice,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account not found", err)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, &account, accountCacheTTL); err != nil {
			s.log.ForAccount(accountID).WithError(err).Warn("Failed to cache account")
		}
	}

	return &account, nil
}

// UpdateSettings сохраняет тарифы и адрес базы по умолчанию.
func (s *AccountService) UpdateSettings(ctx context.Context, accountID uuid.UUID, settings *models.AccountSettings) (*models.Account, error) {
	if settings.DefaultKmValue < 0 || settings.DefaultMinCharge < 0 || settings.FuelPrice < 0 {
		return nil, apperror.Validation("settings values must not be negative", nil)
	}
	settings.DefaultReturnAddress = strings.TrimSpace(settings.DefaultReturnAddress)

	query := `
		UPDATE accounts
		SET default_km_value = $1, default_min_charge = $2, default_return_address = $3, fuel_price = $4
		WHERE id = $5
	`
	result, err := s.db.ExecContext(ctx, query, settings.DefaultKmValue, settings.DefaultMinCharge,
		settings.DefaultReturnAddress, settings.FuelPrice, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to update account settings: %w", err)
	}
	if err := requireAffected(result, "account not found"); err != nil {
		return nil, err
	}

	s.invalidate(ctx, accountID)
	s.log.ForAccount(accountID).Info("Account settings updated")

	return s.GetAccount(ctx, accountID)
}

// ChangePlan переводит аккаунт на другой тарифный план.
func (s *AccountService) ChangePlan(ctx context.Context, accountID uuid.UUID, plan models.Plan) (*models.Account, error) {
	if !plan.Valid() {
		return nil, apperror.Validation("invalid plan", nil)
	}

	result, err := s.db.ExecContext(ctx, `UPDATE accounts SET plan = $1 WHERE id = $2`, plan, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to change plan: %w", err)
	}
	if err := requireAffected(result, "account not found"); err != nil {
		return nil, err
	}

	s.invalidate(ctx, accountID)
	s.log.WithFields(map[string]interface{}{
		"account_id": accountID,
		"plan":       plan,
	}).Info("Account plan changed")

	return s.GetAccount(ctx, accountID)
}

// PlanDetails возвращает лимиты и модули плана аккаунта.
func (s *AccountService) PlanDetails(plan models.Plan) models.PlanDetails {
	return s.plans.Details(plan)
}

// PlanView план вместе с его параметрами для страницы тарифов
type PlanView struct {
	Plan models.Plan `json:"plan"`
	models.PlanDetails
}

// ListPlans возвращает каталог планов в порядке free, pro, premium.
func (s *AccountService) ListPlans() []PlanView {
	order := []models.Plan{models.PlanFree, models.PlanPro, models.PlanPremium}
	views := make([]PlanView, 0, len(order))
	for _, p := range order {
		views = append(views, PlanView{Plan: p, PlanDetails: s.plans.Details(p)})
	}
	return views
}

func (s *AccountService) invalidate(ctx context.Context, accountID uuid.UUID) {
	if s.cache == nil {
		return
	}
	key := redis.GenerateKey(redis.KeyPrefixAccount, accountID.String())
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.ForAccount(accountID).WithError(err).Warn("Failed to invalidate account cache")
	}
}

// requireAffected превращает нулевое количество затронутых строк в NotFound.
func requireAffected(result sql.Result, notFoundMsg string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound(notFoundMsg, nil)
	}
	return nil
}
