package handlers

import (
	"net/http"
	"time"

	"towing-system/internal/logger"
	"towing-system/internal/metrics"
	"towing-system/internal/models"
	"towing-system/internal/reports"
	"towing-system/internal/services"
)

const (
	transactionsPathPrefix = "/api/transactions/"
	xlsxContentType        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// FinancialHandler представляет обработчик операций, финансовых отчетов и сводки
type FinancialHandler struct {
	transactions TransactionService
	ledger       LedgerService
	producer     EventProducer
	log          *logger.Logger
}

// NewFinancialHandler создает новый финансовый обработчик
func NewFinancialHandler(transactions TransactionService, ledger LedgerService, producer EventProducer, log *logger.Logger) *FinancialHandler {
	return &FinancialHandler{
		transactions: transactions,
		ledger:       ledger,
		producer:     producer,
		log:          log,
	}
}

// CreateTransaction записывает доход или расход
func (h *FinancialHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Account required")
		return
	}

	var req models.CreateTransactionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	transaction, err := h.transactions.CreateTransaction(r.Context(), account.ID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create transaction")
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishTransactionCreated(transaction); err != nil {
			h.log.WithError(err).WithField("transaction_id", transaction.ID).Error("Failed to publish transaction created event")
		}
	}
	h.ledger.InvalidateAccount(r.Context(), account.ID)

	writeJSONResponse(w, http.StatusCreated, transaction)
}

// ListTransactions возвращает операции за период from..to
func (h *FinancialHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Account required")
		return
	}

	filter, ok := transactionFilter(w, r)
	if !ok {
		return
	}

	transactions, err := h.transactions.ListTransactions(r.Context(), account.ID, filter)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list transactions")
		return
	}

	writeJSONResponse(w, http.StatusOK, transactions)
}

// DeleteTransaction удаляет операцию
func (h *FinancialHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, transactionID, ok := accountAndID(w, r, transactionsPathPrefix, "transaction")
	if !ok {
		return
	}

	if err := h.transactions.DeleteTransaction(r.Context(), account.ID, transactionID); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete transaction")
		return
	}
	h.ledger.InvalidateAccount(r.Context(), account.ID)

	w.WriteHeader(http.StatusNoContent)
}

// Summary возвращает доходы, расходы, прибыль и расходы по категориям за период
func (h *FinancialHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Account required")
		return
	}

	filter, ok := transactionFilter(w, r)
	if !ok {
		return
	}

	summary, err := h.ledger.FinancialSummary(r.Context(), account.ID, filter)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to build financial summary")
		return
	}

	writeJSONResponse(w, http.StatusOK, summary)
}

// ReportXLSX выгружает сводку и операции за период в Excel
func (h *FinancialHandler) ReportXLSX(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Account required")
		return
	}

	filter, ok := transactionFilter(w, r)
	if !ok {
		return
	}

	start := time.Now()
	transactions, err := h.transactions.ListTransactions(r.Context(), account.ID, filter)
	if err != nil {
		metrics.ObserveReportExport("xlsx", metrics.ResultError, time.Since(start))
		writeServiceError(w, h.log, err, "Failed to list transactions")
		return
	}

	// сводка считается по тем же операциям, что попадут в файл
	data, err := reports.FinancialXLSX(services.Summarize(transactions), transactions, filter.From, filter.To)
	if err != nil {
		metrics.ObserveReportExport("xlsx", metrics.ResultError, time.Since(start))
		h.log.ForAccount(account.ID).WithError(err).Error("Failed to render financial report")
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to render financial report")
		return
	}
	metrics.ObserveReportExport("xlsx", metrics.ResultSuccess, time.Since(start))

	filename := "relatorio-financeiro-" + time.Now().Format("2006-01-02") + ".xlsx"
	writeFileResponse(w, xlsxContentType, filename, data)
}

// Dashboard возвращает сводку главного экрана
func (h *FinancialHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Account required")
		return
	}

	dashboard, err := h.ledger.Dashboard(r.Context(), account)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to build dashboard")
		return
	}

	writeJSONResponse(w, http.StatusOK, dashboard)
}

func transactionFilter(w http.ResponseWriter, r *http.Request) (models.TransactionFilter, bool) {
	from, to, err := parseDateRange(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return models.TransactionFilter{}, false
	}
	return models.TransactionFilter{From: from, To: to}, true
}
