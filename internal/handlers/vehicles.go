package handlers

import (
	"net/http"

	"towing-system/internal/logger"
	"towing-system/internal/models"
)

const vehiclesPathPrefix = "/api/vehicles/"

// VehicleHandler представляет обработчик автопарка
type VehicleHandler struct {
	vehicles VehicleService
	ledger   StatsInvalidator
	log      *logger.Logger
}

// NewVehicleHandler создает новый обработчик автопарка
func NewVehicleHandler(vehicles VehicleService, ledger StatsInvalidator, log *logger.Logger) *VehicleHandler {
	return &VehicleHandler{
		vehicles: vehicles,
		ledger:   ledger,
		log:      log,
	}
}

// CreateVehicle добавляет эвакуатор
func (h *VehicleHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Account required")
		return
	}

	var req models.CreateVehicleRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	vehicle, err := h.vehicles.CreateVehicle(r.Context(), account.ID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create vehicle")
		return
	}
	h.ledger.InvalidateAccount(r.Context(), account.ID)

	h.log.WithField("vehicle_id", vehicle.ID).Info("Vehicle created successfully")
	writeJSONResponse(w, http.StatusCreated, vehicle)
}

// ListVehicles возвращает автопарк аккаунта
func (h *VehicleHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Account required")
		return
	}

	vehicles, err := h.vehicles.ListVehicles(r.Context(), account.ID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list vehicles")
		return
	}

	writeJSONResponse(w, http.StatusOK, vehicles)
}

// GetVehicle возвращает эвакуатор по ID
func (h *VehicleHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, vehicleID, ok := accountAndID(w, r, vehiclesPathPrefix, "vehicle")
	if !ok {
		return
	}

	vehicle, err := h.vehicles.GetVehicle(r.Context(), account.ID, vehicleID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get vehicle")
		return
	}

	writeJSONResponse(w, http.StatusOK, vehicle)
}

// UpdateVehicle меняет данные эвакуатора
func (h *VehicleHandler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, vehicleID, ok := accountAndID(w, r, vehiclesPathPrefix, "vehicle")
	if !ok {
		return
	}

	var req models.UpdateVehicleRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	vehicle, err := h.vehicles.UpdateVehicle(r.Context(), account.ID, vehicleID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update vehicle")
		return
	}
	h.ledger.InvalidateAccount(r.Context(), account.ID)

	writeJSONResponse(w, http.StatusOK, vehicle)
}

// DeleteVehicle удаляет эвакуатор
func (h *VehicleHandler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, vehicleID, ok := accountAndID(w, r, vehiclesPathPrefix, "vehicle")
	if !ok {
		return
	}

	if err := h.vehicles.DeleteVehicle(r.Context(), account.ID, vehicleID); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete vehicle")
		return
	}
	h.ledger.InvalidateAccount(r.Context(), account.ID)

	w.WriteHeader(http.StatusNoContent)
}
