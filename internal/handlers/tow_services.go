package handlers

import (
	"net/http"
	"strings"

	"towing-system/internal/logger"
	"towing-system/internal/models"
)

const servicesPathPrefix = "/api/services/"

// ServiceHandler представляет обработчик выездов
type ServiceHandler struct {
	services TowService
	producer EventProducer
	ledger   StatsInvalidator
	log      *logger.Logger
}

// NewServiceHandler создает новый обработчик выездов
func NewServiceHandler(services TowService, producer EventProducer, ledger StatsInvalidator, log *logger.Logger) *ServiceHandler {
	return &ServiceHandler{
		services: services,
		producer: producer,
		ledger:   ledger,
		log:      log,
	}
}

// ListServices возвращает выезды с фильтрами status, from, to, search и сортировкой sort=newest|oldest
func (h *ServiceHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Account required")
		return
	}

	query := r.URL.Query()
	filter := models.ServiceFilter{
		Search: strings.TrimSpace(query.Get("search")),
		Sort:   models.ServiceSortNewest,
	}

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status := models.ServiceStatus(raw)
		if !status.Valid() {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid status")
			return
		}
		filter.Status = &status
	}

	switch sort := models.ServiceSort(strings.TrimSpace(query.Get("sort"))); sort {
	case "", models.ServiceSortNewest:
	case models.ServiceSortOldest:
		filter.Sort = sort
	default:
		writeErrorResponse(w, http.StatusBadRequest, "Invalid sort, expected newest or oldest")
		return
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.From, filter.To = from, to

	services, err := h.services.ListServices(r.Context(), account.ID, filter)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list services")
		return
	}

	writeJSONResponse(w, http.StatusOK, services)
}

// GetService возвращает выезд по ID
func (h *ServiceHandler) GetService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, serviceID, ok := accountAndID(w, r, servicesPathPrefix, "service")
	if !ok {
		return
	}

	service, err := h.services.GetService(r.Context(), account.ID, serviceID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get service")
		return
	}

	writeJSONResponse(w, http.StatusOK, service)
}

// UpdateServiceStatus продвигает выезд по статусам
func (h *ServiceHandler) UpdateServiceStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, serviceID, ok := accountAndID(w, r, servicesPathPrefix, "service")
	if !ok {
		return
	}

	var req models.UpdateServiceStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	oldStatus, err := h.services.UpdateServiceStatus(r.Context(), account.ID, serviceID, req.Status)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update service status")
		return
	}

	if oldStatus != req.Status {
		if h.producer != nil {
			if err := h.producer.PublishServiceStatusChanged(account.ID, serviceID, oldStatus, req.Status); err != nil {
				h.log.WithError(err).WithField("service_id", serviceID).Error("Failed to publish service status changed event")
			}
		}
		h.ledger.InvalidateAccount(r.Context(), account.ID)

		h.log.WithFields(map[string]interface{}{
			"service_id": serviceID,
			"old_status": oldStatus,
			"new_status": req.Status,
		}).Info("Service status updated")
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"id":         serviceID,
		"old_status": oldStatus,
		"status":     req.Status,
	})
}
