package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"towing-system/internal/logger"
	"towing-system/internal/metrics"
	"towing-system/internal/models"
	"towing-system/internal/reports"
)

const quotesPathPrefix = "/api/quotes/"

// QuoteHandler представляет обработчик смет
type QuoteHandler struct {
	quotes   QuoteService
	producer EventProducer
	ledger   StatsInvalidator
	log      *logger.Logger
}

// NewQuoteHandler создает новый обработчик смет. producer может быть nil, если Kafka выключена.
func NewQuoteHandler(quotes QuoteService, producer EventProducer, ledger StatsInvalidator, log *logger.Logger) *QuoteHandler {
	return &QuoteHandler{
		quotes:   quotes,
		producer: producer,
		ledger:   ledger,
		log:      log,
	}
}

// Calculate считает стоимость без сохранения сметы
func (h *QuoteHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Account required")
		return
	}

	var req models.CalculateQuoteRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	breakdown, err := h.quotes.Calculate(r.Context(), account, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to calculate quote")
		return
	}

	writeJSONResponse(w, http.StatusOK, breakdown)
}

// CreateQuote сохраняет смету с учетом лимита плана
func (h *QuoteHandler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Account required")
		return
	}

	var req models.CreateQuoteRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	quote, err := h.quotes.CreateQuote(r.Context(), account, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create quote")
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishQuoteCreated(quote); err != nil {
			// смета уже сохранена
			h.log.WithError(err).WithField("quote_id", quote.ID).Error("Failed to publish quote created event")
		}
	}
	h.ledger.InvalidateAccount(r.Context(), account.ID)

	h.log.WithFields(map[string]interface{}{
		"account_id": account.ID,
		"quote_id":   quote.ID,
		"total":      quote.Total,
	}).Info("Quote created successfully")

	writeJSONResponse(w, http.StatusCreated, quote)
}

// ListQuotes возвращает сметы аккаунта с фильтрами status, from, to
func (h *QuoteHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Account required")
		return
	}

	var filter models.QuoteFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := models.QuoteStatus(raw)
		if !status.Valid() {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid status")
			return
		}
		filter.Status = &status
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.From, filter.To = from, to

	quotes, err := h.quotes.ListQuotes(r.Context(), account.ID, filter)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list quotes")
		return
	}

	writeJSONResponse(w, http.StatusOK, quotes)
}

// GetQuote возвращает смету по ID
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, quoteID, ok := accountAndID(w, r, quotesPathPrefix, "quote")
	if !ok {
		return
	}

	quote, err := h.quotes.GetQuote(r.Context(), account.ID, quoteID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get quote")
		return
	}

	writeJSONResponse(w, http.StatusOK, quote)
}

// UpdateQuote правит тарифы, дистанцию и заметки сметы с пересчетом итога
func (h *QuoteHandler) UpdateQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, quoteID, ok := accountAndID(w, r, quotesPathPrefix, "quote")
	if !ok {
		return
	}

	var req models.UpdateQuoteRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	quote, err := h.quotes.UpdateQuote(r.Context(), account, quoteID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update quote")
		return
	}

	writeJSONResponse(w, http.StatusOK, quote)
}

// DeleteQuote удаляет смету. Созданные из нее выезды остаются.
func (h *QuoteHandler) DeleteQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, quoteID, ok := accountAndID(w, r, quotesPathPrefix, "quote")
	if !ok {
		return
	}

	if err := h.quotes.DeleteQuote(r.Context(), account.ID, quoteID); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete quote")
		return
	}
	h.ledger.InvalidateAccount(r.Context(), account.ID)

	w.WriteHeader(http.StatusNoContent)
}

// UpdateQuoteStatus выставляет статус сметы вручную
func (h *QuoteHandler) UpdateQuoteStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, quoteID, ok := accountAndID(w, r, quotesPathPrefix, "quote")
	if !ok {
		return
	}

	var req models.UpdateQuoteStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	oldStatus, err := h.quotes.UpdateQuoteStatus(r.Context(), account.ID, quoteID, req.Status)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update quote status")
		return
	}

	if h.producer != nil && oldStatus != req.Status {
		if err := h.producer.PublishQuoteStatusChanged(account.ID, quoteID, oldStatus, req.Status); err != nil {
			h.log.WithError(err).WithField("quote_id", quoteID).Error("Failed to publish quote status changed event")
		}
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"id":         quoteID,
		"old_status": oldStatus,
		"status":     req.Status,
	})
}

// CreateService создает выезд из сметы
func (h *QuoteHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, quoteID, ok := accountAndID(w, r, quotesPathPrefix, "quote")
	if !ok {
		return
	}

	var req models.CreateServiceRequest
	if r.ContentLength != 0 {
		if err := decodeJSONBody(r, &req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	service, err := h.quotes.CreateService(r.Context(), account.ID, quoteID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create service")
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishServiceCreated(service); err != nil {
			h.log.WithError(err).WithField("service_id", service.ID).Error("Failed to publish service created event")
		}
	}
	h.ledger.InvalidateAccount(r.Context(), account.ID)

	h.log.WithFields(map[string]interface{}{
		"quote_id":   quoteID,
		"service_id": service.ID,
	}).Info("Service created from quote")

	writeJSONResponse(w, http.StatusCreated, service)
}

// QuotePDF отдает смету в PDF
func (h *QuoteHandler) QuotePDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, quoteID, ok := accountAndID(w, r, quotesPathPrefix, "quote")
	if !ok {
		return
	}

	quote, err := h.quotes.GetQuote(r.Context(), account.ID, quoteID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get quote")
		return
	}

	start := time.Now()
	data, err := reports.QuotePDF(account, quote)
	if err != nil {
		metrics.ObserveReportExport("pdf", metrics.ResultError, time.Since(start))
		h.log.WithError(err).WithField("quote_id", quoteID).Error("Failed to render quote pdf")
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to render quote pdf")
		return
	}
	metrics.ObserveReportExport("pdf", metrics.ResultSuccess, time.Since(start))

	filename := fmt.Sprintf("orcamento-%s.pdf", quote.ID.String()[:8])
	writeFileResponse(w, "application/pdf", filename, data)
}

// ShareQuote возвращает текст сметы и ссылку wa.me. Параметр phone необязателен.
func (h *QuoteHandler) ShareQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, quoteID, ok := accountAndID(w, r, quotesPathPrefix, "quote")
	if !ok {
		return
	}

	quote, err := h.quotes.GetQuote(r.Context(), account.ID, quoteID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get quote")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"text": reports.ShareText(quote),
		"url":  reports.ShareURL(quote, r.URL.Query().Get("phone")),
	})
}
