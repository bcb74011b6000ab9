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

	"github.com/google/uuid"
)

// Выезды соединяются со сметами через LEFT JOIN: удаленная смета не скрывает выезд.
const serviceSelect = `
	SELECT s.id, s.account_id, s.quote_id, s.client_name, s.client_phone, s.status, s.value, s.cost,
	       s.created_at, s.updated_at, COALESCE(q.origin, ''), COALESCE(q.destination, ''), q.vehicle_id
	FROM services s
	LEFT JOIN quotes q ON q.id = s.quote_id
`

// TowService управляет выездами эвакуатора.
type TowService struct {
	db  *database.DB
	log *logger.Logger
}

// NewTowService создает сервис выездов.
func NewTowService(db *database.DB, log *logger.Logger) *TowService {
	return &TowService{db: db, log: log}
}

// GetService возвращает выезд с маршрутом исходной сметы.
func (s *TowService) GetService(ctx context.Context, accountID, serviceID uuid.UUID) (*models.ServiceWithDetails, error) {
	query := serviceSelect + ` WHERE s.id = $1 AND s.account_id = $2`

	service, err := scanService(s.db.QueryRowContext(ctx, query, serviceID, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("service not found", err)
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return service, nil
}

// ListServices возвращает выезды с фильтрами по статусу, периоду и поиском по клиенту и адресам.
func (s *TowService) ListServices(ctx context.Context, accountID uuid.UUID, filter models.ServiceFilter) ([]*models.ServiceWithDetails, error) {
	query := serviceSelect + ` WHERE s.account_id = $1`
	args := []interface{}{accountID}
	argIndex := 2

	if filter.Status != nil {
		query += fmt.Sprintf(" AND s.status = $%d", argIndex)
		args = append(args, *filter.Status)
		argIndex++
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND s.created_at >= $%d", argIndex)
		args = append(args, *filter.From)
		argIndex++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND s.created_at <= $%d", argIndex)
		args = append(args, *filter.To)
		argIndex++
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query += fmt.Sprintf(" AND (s.client_name ILIKE $%d OR q.origin ILIKE $%d OR q.destination ILIKE $%d)",
			argIndex, argIndex, argIndex)
		args = append(args, "%"+search+"%")
	}

	if filter.Sort == models.ServiceSortOldest {
		query += " ORDER BY s.created_at ASC"
	} else {
		query += " ORDER BY s.created_at DESC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	services := []*models.ServiceWithDetails{}
	for rows.Next() {
		service, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, service)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate services: %w", err)
	}

	return services, nil
}

// UpdateServiceStatus двигает выезд вперед по pending -> in_progress -> completed
// и возвращает предыдущий статус. Тот же статус ничего не меняет, откат назад запрещен.
func (s *TowService) UpdateServiceStatus(ctx context.Context, accountID, serviceID uuid.UUID, status models.ServiceStatus) (models.ServiceStatus, error) {
	if !status.Valid() {
		return "", apperror.Validation("invalid service status", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current models.ServiceStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM services WHERE id = $1 AND account_id = $2 FOR UPDATE`,
		serviceID, accountID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperror.NotFound("service not found", err)
		}
		return "", fmt.Errorf("failed to get service status: %w", err)
	}

	if current == status {
		return current, nil
	}
	if !current.CanTransitionTo(status) {
		return "", apperror.Validation(fmt.Sprintf("cannot change service status from %s to %s", current, status), nil)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE services SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now(), serviceID); err != nil {
		return "", fmt.Errorf("failed to update service status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"service_id": serviceID,
		"old_status": current,
		"new_status": status,
	}).Info("Service status updated")

	return current, nil
}

func scanService(row rowScanner) (*models.ServiceWithDetails, error) {
	var (
		service   models.ServiceWithDetails
		vehicleID uuid.NullUUID
	)
	if err := row.Scan(&service.ID, &service.AccountID, &service.QuoteID, &service.ClientName, &service.ClientPhone,
		&service.Status, &service.Value, &service.Cost, &service.CreatedAt, &service.UpdatedAt,
		&service.Origin, &service.Destination, &vehicleID); err != nil {
		return nil, err
	}
	if vehicleID.Valid {
		id := vehicleID.UUID
		service.VehicleID = &id
	}
	service.Profit = roundMoney(Profit(service.Value, service.Cost))
	return &service, nil
}
