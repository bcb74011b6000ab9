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

const vehicleColumns = `id, account_id, plate, model, year, km, avg_consumption, next_maintenance_km, created_at, updated_at`

// VehicleService управляет автопарком аккаунта.
type VehicleService struct {
	db  *database.DB
	log *logger.Logger
}

// NewVehicleService создает сервис автопарка.
func NewVehicleService(db *database.DB, log *logger.Logger) *VehicleService {
	return &VehicleService{db: db, log: log}
}

// CreateVehicle добавляет эвакуатор. Номер уникален в пределах аккаунта.
func (s *VehicleService) CreateVehicle(ctx context.Context, accountID uuid.UUID, req *models.CreateVehicleRequest) (*models.Vehicle, error) {
	now := time.Now()
	vehicle := &models.Vehicle{
		ID:                uuid.New(),
		AccountID:         accountID,
		Plate:             normalizePlate(req.Plate),
		Model:             strings.TrimSpace(req.Model),
		Year:              req.Year,
		Km:                req.Km,
		AvgConsumption:    req.AvgConsumption,
		NextMaintenanceKm: req.NextMaintenanceKm,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := validateVehicle(vehicle); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO vehicles (id, account_id, plate, model, year, km, avg_consumption, next_maintenance_km, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query, vehicle.ID, vehicle.AccountID, vehicle.Plate, vehicle.Model, vehicle.Year,
		vehicle.Km, vehicle.AvgConsumption, vehicle.NextMaintenanceKm, vehicle.CreatedAt, vehicle.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperror.Conflict("vehicle with this plate already exists", err)
		}
		return nil, fmt.Errorf("failed to create vehicle: %w", err)
	}

	vehicle.MaintenanceDue = vehicle.NeedsMaintenance()

	s.log.WithFields(map[string]interface{}{
		"vehicle_id": vehicle.ID,
		"account_id": accountID,
		"plate":      vehicle.Plate,
	}).Info("Vehicle created")

	return vehicle, nil
}

// GetVehicle возвращает эвакуатор аккаунта.
func (s *VehicleService) GetVehicle(ctx context.Context, accountID, vehicleID uuid.UUID) (*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = $1 AND account_id = $2`

	vehicle, err := scanVehicle(s.db.QueryRowContext(ctx, query, vehicleID, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("vehicle not found", err)
		}
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	return vehicle, nil
}

// ListVehicles возвращает автопарк, отсортированный по номеру.
func (s *VehicleService) ListVehicles(ctx context.Context, accountID uuid.UUID) ([]*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE account_id = $1 ORDER BY plate`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer rows.Close()

	vehicles := []*models.Vehicle{}
	for rows.Next() {
		vehicle, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, vehicle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vehicles: %w", err)
	}

	return vehicles, nil
}

// UpdateVehicle применяет частичное изменение эвакуатора.
func (s *VehicleService) UpdateVehicle(ctx context.Context, accountID, vehicleID uuid.UUID, req *models.UpdateVehicleRequest) (*models.Vehicle, error) {
	vehicle, err := s.GetVehicle(ctx, accountID, vehicleID)
	if err != nil {
		return nil, err
	}

	if req.Plate != nil {
		vehicle.Plate = normalizePlate(*req.Plate)
	}
	if req.Model != nil {
		vehicle.Model = strings.TrimSpace(*req.Model)
	}
	if req.Year != nil {
		vehicle.Year = *req.Year
	}
	if req.Km != nil {
		vehicle.Km = *req.Km
	}
	if req.AvgConsumption != nil {
		vehicle.AvgConsumption = *req.AvgConsumption
	}
	if req.NextMaintenanceKm != nil {
		vehicle.NextMaintenanceKm = *req.NextMaintenanceKm
	}
	if err := validateVehicle(vehicle); err != nil {
		return nil, err
	}
	vehicle.UpdatedAt = time.Now()

	query := `
		UPDATE vehicles
		SET plate = $1, model = $2, year = $3, km = $4, avg_consumption = $5, next_maintenance_km = $6, updated_at = $7
		WHERE id = $8 AND account_id = $9
	`
	result, err := s.db.ExecContext(ctx, query, vehicle.Plate, vehicle.Model, vehicle.Year, vehicle.Km,
		vehicle.AvgConsumption, vehicle.NextMaintenanceKm, vehicle.UpdatedAt, vehicleID, accountID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperror.Conflict("vehicle with this plate already exists", err)
		}
		return nil, fmt.Errorf("failed to update vehicle: %w", err)
	}
	if err := requireAffected(result, "vehicle not found"); err != nil {
		return nil, err
	}

	vehicle.MaintenanceDue = vehicle.NeedsMaintenance()
	return vehicle, nil
}

// DeleteVehicle удаляет эвакуатор. Сметы сохраняют ссылку на него как историческую.
func (s *VehicleService) DeleteVehicle(ctx context.Context, accountID, vehicleID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = $1 AND account_id = $2`, vehicleID, accountID)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperror.Conflict("vehicle is referenced by quotes", err)
		}
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	if err := requireAffected(result, "vehicle not found"); err != nil {
		return err
	}

	s.log.WithField("vehicle_id", vehicleID).Info("Vehicle deleted")
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVehicle(row rowScanner) (*models.Vehicle, error) {
	vehicle := &models.Vehicle{}
	if err := row.Scan(&vehicle.ID, &vehicle.AccountID, &vehicle.Plate, &vehicle.Model, &vehicle.Year,
		&vehicle.Km, &vehicle.AvgConsumption, &vehicle.NextMaintenanceKm, &vehicle.CreatedAt, &vehicle.UpdatedAt); err != nil {
		return nil, err
	}
	vehicle.MaintenanceDue = vehicle.NeedsMaintenance()
	return vehicle, nil
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

func validateVehicle(v *models.Vehicle) error {
	switch {
	case v.Plate == "":
		return apperror.Validation("plate is required", nil)
	case v.Model == "":
		return apperror.Validation("model is required", nil)
	case v.Year < 0:
		return apperror.Validation("year must not be negative", nil)
	case v.Km < 0:
		return apperror.Validation("km must not be negative", nil)
	case v.NextMaintenanceKm < 0:
		return apperror.Validation("next maintenance km must not be negative", nil)
	}
	return ValidateConsumption(v.AvgConsumption)
}
