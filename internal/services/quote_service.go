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
	"towing-system/internal/metrics"
	"towing-system/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrQuoteQuotaExceeded лимит смет плана исчерпан
	ErrQuoteQuotaExceeded = errors.New("quote quota exceeded")
	// ErrServiceAlreadyExists по смете уже создан выезд
	ErrServiceAlreadyExists = errors.New("service already created for quote")
)

const quoteColumns = `id, account_id, current_location, origin, destination, return_address, distance_km,
	km_value, min_charge, extras, discount, notes, total, fuel_cost, status, vehicle_id, created_at, updated_at`

// DistanceCalculator считает суммарную длину маршрута
type DistanceCalculator interface {
	TotalDistance(ctx context.Context, legs []Leg) (float64, error)
}

// VehicleLookup загружает эвакуатор аккаунта
type VehicleLookup interface {
	GetVehicle(ctx context.Context, accountID, vehicleID uuid.UUID) (*models.Vehicle, error)
}

// QuoteService реализует жизненный цикл сметы: расчет, сохранение, правку и создание выезда.
type QuoteService struct {
	db       *database.DB
	log      *logger.Logger
	distance DistanceCalculator
	pricing  *PricingService
	vehicles VehicleLookup
	plans    models.PlanCatalog
}

// NewQuoteService создает сервис смет.
func NewQuoteService(db *database.DB, log *logger.Logger, distance DistanceCalculator, pricing *PricingService, vehicles VehicleLookup, plans models.PlanCatalog) *QuoteService {
	if plans == nil {
		plans = models.DefaultPlanCatalog()
	}
	return &QuoteService{
		db:       db,
		log:      log,
		distance: distance,
		pricing:  pricing,
		vehicles: vehicles,
		plans:    plans,
	}
}

// Calculate считает маршрут и стоимость без сохранения.
func (s *QuoteService) Calculate(ctx context.Context, account *models.Account, req *models.CalculateQuoteRequest) (*models.QuoteBreakdown, error) {
	breakdown, err := s.calculate(ctx, account, req, nil)
	if err != nil {
		metrics.IncQuoteCalculation(metrics.ResultError)
		return nil, err
	}
	metrics.IncQuoteCalculation(metrics.ResultSuccess)
	return breakdown, nil
}

// calculate при известном distanceKm пропускает обращение к геокодеру и маршрутизатору.
func (s *QuoteService) calculate(ctx context.Context, account *models.Account, req *models.CalculateQuoteRequest, distanceKm *float64) (*models.QuoteBreakdown, error) {
	returnAddress, err := normalizeAddresses(account, req)
	if err != nil {
		return nil, err
	}

	if req.VehicleID == nil {
		return nil, apperror.Validation("vehicle_id is required", nil)
	}
	vehicle, err := s.vehicles.GetVehicle(ctx, account.ID, *req.VehicleID)
	if err != nil {
		return nil, err
	}
	if err := ValidateConsumption(vehicle.AvgConsumption); err != nil {
		return nil, err
	}

	var distance float64
	if distanceKm != nil {
		if *distanceKm < 0 {
			return nil, apperror.Validation("distance must not be negative", nil)
		}
		distance = *distanceKm
	} else {
		legs := BuildRoundTripLegs(req.CurrentLocation, req.Origin, req.Destination, returnAddress)
		distance, err = s.distance.TotalDistance(ctx, legs)
		if err != nil {
			return nil, err
		}
	}

	discount := 0.0
	if req.Discount != nil {
		discount = *req.Discount
	}

	rates := s.pricing.ResolveRates(account, req.KmValue, req.MinCharge)
	breakdown, err := s.pricing.Breakdown(distance, rates, req.Extras, discount, vehicle.AvgConsumption)
	if err != nil {
		return nil, err
	}
	breakdown.ReturnAddress = returnAddress

	return breakdown, nil
}

// normalizeAddresses обрезает адреса и подставляет адрес базы из настроек аккаунта.
func normalizeAddresses(account *models.Account, req *models.CalculateQuoteRequest) (string, error) {
	req.CurrentLocation = strings.TrimSpace(req.CurrentLocation)
	req.Origin = strings.TrimSpace(req.Origin)
	req.Destination = strings.TrimSpace(req.Destination)
	req.ReturnAddress = strings.TrimSpace(req.ReturnAddress)

	returnAddress := req.ReturnAddress
	if returnAddress == "" && account != nil {
		returnAddress = strings.TrimSpace(account.Settings.DefaultReturnAddress)
	}

	switch {
	case req.CurrentLocation == "":
		return "", apperror.Validation("current_location is required", nil)
	case req.Origin == "":
		return "", apperror.Validation("origin is required", nil)
	case req.Destination == "":
		return "", apperror.Validation("destination is required", nil)
	case returnAddress == "":
		return "", apperror.Validation("return_address is required", nil)
	}
	return returnAddress, nil
}

// CreateQuote сохраняет смету в статусе pending.
// Проверка лимита плана и вставка выполняются в одной транзакции под блокировкой строки аккаунта.
func (s *QuoteService) CreateQuote(ctx context.Context, account *models.Account, req *models.CreateQuoteRequest) (*models.Quote, error) {
	breakdown, err := s.calculate(ctx, account, &req.CalculateQuoteRequest, req.DistanceKm)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	quote := &models.Quote{
		ID:              uuid.New(),
		AccountID:       account.ID,
		CurrentLocation: req.CurrentLocation,
		Origin:          req.Origin,
		Destination:     req.Destination,
		ReturnAddress:   breakdown.ReturnAddress,
		DistanceKm:      breakdown.DistanceKm,
		KmValue:         breakdown.KmValue,
		MinCharge:       breakdown.MinCharge,
		Extras:          breakdown.Extras,
		Discount:        normalizeDiscount(req.Discount),
		Notes:           strings.TrimSpace(req.Notes),
		Total:           breakdown.Total,
		FuelCost:        breakdown.FuelCost,
		Status:          models.QuoteStatusPending,
		VehicleID:       req.VehicleID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, account.ID); err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	details := s.plans.Details(account.Plan)
	if !details.Unlimited() {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM quotes WHERE account_id = $1`, account.ID).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count quotes: %w", err)
		}
		if count >= details.QuoteLimit {
			metrics.IncQuotaRejection()
			s.log.WithFields(map[string]interface{}{
				"account_id": account.ID,
				"plan":       account.Plan,
				"limit":      details.QuoteLimit,
			}).Warn("Quote quota exceeded")
			return nil, apperror.QuotaExceeded(
				fmt.Sprintf("plan %s allows %d quotes, upgrade to create more", account.Plan, details.QuoteLimit),
				ErrQuoteQuotaExceeded)
		}
	}

	query := `
		INSERT INTO quotes (id, account_id, current_location, origin, destination, return_address, distance_km,
		                    km_value, min_charge, extras, discount, notes, total, fuel_cost, status, vehicle_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = tx.ExecContext(ctx, query, quote.ID, quote.AccountID, quote.CurrentLocation, quote.Origin, quote.Destination,
		quote.ReturnAddress, quote.DistanceKm, quote.KmValue, quote.MinCharge, quote.Extras, quote.Discount, quote.Notes,
		quote.Total, quote.FuelCost, quote.Status, quote.VehicleID, quote.CreatedAt, quote.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	metrics.IncQuoteCreated()
	s.log.WithFields(map[string]interface{}{
		"quote_id":    quote.ID,
		"account_id":  quote.AccountID,
		"distance_km": quote.DistanceKm,
		"total":       quote.Total,
	}).Info("Quote created")

	return quote, nil
}

// GetQuote возвращает смету аккаунта.
func (s *QuoteService) GetQuote(ctx context.Context, accountID, quoteID uuid.UUID) (*models.Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE id = $1 AND account_id = $2`

	quote, err := scanQuote(s.db.QueryRowContext(ctx, query, quoteID, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("quote not found", err)
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	return quote, nil
}

// ListQuotes возвращает сметы аккаунта, новые первыми.
func (s *QuoteService) ListQuotes(ctx context.Context, accountID uuid.UUID, filter models.QuoteFilter) ([]*models.Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE account_id = $1`
	args := []interface{}{accountID}
	argIndex := 2

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *filter.Status)
		argIndex++
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIndex)
		args = append(args, *filter.From)
		argIndex++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIndex)
		args = append(args, *filter.To)
	}

	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	defer rows.Close()

	quotes := []*models.Quote{}
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		quotes = append(quotes, quote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quotes: %w", err)
	}

	return quotes, nil
}

// UpdateQuote применяет правку и пересчитывает итог по сохраненному расстоянию.
// Пустое поле оставляет значение как есть, скидка 0 снимает скидку.
// Затраты на топливо не пересчитываются, если не изменилось расстояние.
func (s *QuoteService) UpdateQuote(ctx context.Context, account *models.Account, quoteID uuid.UUID, req *models.UpdateQuoteRequest) (*models.Quote, error) {
	quote, err := s.GetQuote(ctx, account.ID, quoteID)
	if err != nil {
		return nil, err
	}

	oldDistance := quote.DistanceKm
	if req.DistanceKm != nil {
		quote.DistanceKm = *req.DistanceKm
	}
	if req.KmValue != nil {
		quote.KmValue = *req.KmValue
	}
	if req.MinCharge != nil {
		quote.MinCharge = *req.MinCharge
	}
	if req.Extras != nil {
		quote.Extras = *req.Extras
	}
	if req.Discount != nil {
		quote.Discount = normalizeDiscount(req.Discount)
	}
	if req.Notes != nil {
		quote.Notes = strings.TrimSpace(*req.Notes)
	}

	rates := Rates{KmValue: quote.KmValue, MinCharge: quote.MinCharge}
	if err := validateRates(quote.DistanceKm, rates, quote.Extras, quote.DiscountValue()); err != nil {
		return nil, err
	}
	quote.Total = roundMoney(Price(quote.DistanceKm, quote.KmValue, quote.MinCharge, quote.Extras, quote.DiscountValue()))

	if quote.DistanceKm != oldDistance && quote.VehicleID != nil {
		if fuel, ok := s.refreshFuelCost(ctx, account, quote); ok {
			quote.FuelCost = fuel
		}
	}
	quote.UpdatedAt = time.Now()

	query := `
		UPDATE quotes
		SET distance_km = $1, km_value = $2, min_charge = $3, extras = $4, discount = $5, notes = $6,
		    total = $7, fuel_cost = $8, updated_at = $9
		WHERE id = $10 AND account_id = $11
	`
	result, err := s.db.ExecContext(ctx, query, quote.DistanceKm, quote.KmValue, quote.MinCharge, quote.Extras,
		quote.Discount, quote.Notes, quote.Total, quote.FuelCost, quote.UpdatedAt, quote.ID, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update quote: %w", err)
	}
	if err := requireAffected(result, "quote not found"); err != nil {
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"quote_id": quote.ID,
		"total":    quote.Total,
	}).Info("Quote updated")

	return quote, nil
}

// normalizeDiscount хранит нулевую скидку как отсутствующую
func normalizeDiscount(discount *float64) *float64 {
	if discount == nil || *discount == 0 {
		return nil
	}
	d := *discount
	return &d
}

// refreshFuelCost пересчитывает топливо по текущему расходу эвакуатора.
// Удаленный эвакуатор оставляет прежнее значение.
func (s *QuoteService) refreshFuelCost(ctx context.Context, account *models.Account, quote *models.Quote) (float64, bool) {
	vehicle, err := s.vehicles.GetVehicle(ctx, account.ID, *quote.VehicleID)
	if err != nil || ValidateConsumption(vehicle.AvgConsumption) != nil {
		return 0, false
	}
	rates := s.pricing.ResolveRates(account, nil, nil)
	return roundMoney(FuelCost(quote.DistanceKm, vehicle.AvgConsumption, rates.FuelPrice)), true
}

// UpdateQuoteStatus вручную меняет статус сметы на любой из четырех и возвращает предыдущий.
// Порядок не проверяется; связь с выездами остается слабой.
func (s *QuoteService) UpdateQuoteStatus(ctx context.Context, accountID, quoteID uuid.UUID, status models.QuoteStatus) (models.QuoteStatus, error) {
	if !status.Valid() {
		return "", apperror.Validation("invalid quote status", nil)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current models.QuoteStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM quotes WHERE id = $1 AND account_id = $2 FOR UPDATE`,
		quoteID, accountID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperror.NotFound("quote not found", err)
		}
		return "", fmt.Errorf("failed to get quote status: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE quotes SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now(), quoteID); err != nil {
		return "", fmt.Errorf("failed to update quote status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"quote_id":   quoteID,
		"old_status": current,
		"new_status": status,
	}).Info("Quote status updated")

	return current, nil
}

// CreateService создает выезд из сметы и переводит смету в service_created.
// Повторное создание для той же сметы отклоняется.
func (s *QuoteService) CreateService(ctx context.Context, accountID, quoteID uuid.UUID, req *models.CreateServiceRequest) (*models.Service, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		status   models.QuoteStatus
		total    float64
		fuelCost float64
	)
	err = tx.QueryRowContext(ctx, `SELECT status, total, fuel_cost FROM quotes WHERE id = $1 AND account_id = $2 FOR UPDATE`,
		quoteID, accountID).Scan(&status, &total, &fuelCost)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("quote not found", err)
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	if status == models.QuoteStatusServiceCreated {
		return nil, apperror.Conflict("service already created for this quote", ErrServiceAlreadyExists)
	}

	now := time.Now()
	service := &models.Service{
		ID:          uuid.New(),
		AccountID:   accountID,
		QuoteID:     quoteID,
		ClientName:  models.PlaceholderClientName,
		ClientPhone: models.PlaceholderClientPhone,
		Status:      models.ServiceStatusPending,
		Value:       total,
		Cost:        fuelCost,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req != nil {
		if name := strings.TrimSpace(req.ClientName); name != "" {
			service.ClientName = name
		}
		if phone := strings.TrimSpace(req.ClientPhone); phone != "" {
			service.ClientPhone = phone
		}
	}

	query := `
		INSERT INTO services (id, account_id, quote_id, client_name, client_phone, status, value, cost, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.ExecContext(ctx, query, service.ID, service.AccountID, service.QuoteID, service.ClientName,
		service.ClientPhone, service.Status, service.Value, service.Cost, service.CreatedAt, service.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperror.Conflict("service already created for this quote", ErrServiceAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE quotes SET status = $1, updated_at = $2 WHERE id = $3`,
		models.QuoteStatusServiceCreated, now, quoteID); err != nil {
		return nil, fmt.Errorf("failed to update quote status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	metrics.IncServiceCreated()
	s.log.WithFields(map[string]interface{}{
		"service_id": service.ID,
		"quote_id":   quoteID,
		"value":      service.Value,
	}).Info("Service created from quote")

	return service, nil
}

// DeleteQuote удаляет смету. Созданные из нее выезды сохраняются.
func (s *QuoteService) DeleteQuote(ctx context.Context, accountID, quoteID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM quotes WHERE id = $1 AND account_id = $2`, quoteID, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete quote: %w", err)
	}
	if err := requireAffected(result, "quote not found"); err != nil {
		return err
	}

	s.log.WithField("quote_id", quoteID).Info("Quote deleted")
	return nil
}

// CountQuotes возвращает количество смет аккаунта для проверки лимита плана.
func (s *QuoteService) CountQuotes(ctx context.Context, accountID uuid.UUID) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quotes WHERE account_id = $1`, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count quotes: %w", err)
	}
	return count, nil
}

func scanQuote(row rowScanner) (*models.Quote, error) {
	var (
		quote     models.Quote
		discount  sql.NullFloat64
		vehicleID uuid.NullUUID
	)
	if err := row.Scan(&quote.ID, &quote.AccountID, &quote.CurrentLocation, &quote.Origin, &quote.Destination,
		&quote.ReturnAddress, &quote.DistanceKm, &quote.KmValue, &quote.MinCharge, &quote.Extras, &discount,
		&quote.Notes, &quote.Total, &quote.FuelCost, &quote.Status, &vehicleID, &quote.CreatedAt, &quote.UpdatedAt); err != nil {
		return nil, err
	}
	if discount.Valid {
		d := discount.Float64
		quote.Discount = &d
	}
	if vehicleID.Valid {
		id := vehicleID.UUID
		quote.VehicleID = &id
	}
	return &quote, nil
}
