package handlers

import (
	"context"
	"net/http"
	"strings"

	"towing-system/internal/logger"
	"towing-system/internal/models"
	"towing-system/internal/services"

	"github.com/google/uuid"
)

type accountContextKey struct{}

// AccountFromContext возвращает аккаунт, найденный AccountMiddleware
func AccountFromContext(ctx context.Context) (*models.Account, bool) {
	account, ok := ctx.Value(accountContextKey{}).(*models.Account)
	return account, ok && account != nil
}

// WithAccount кладет аккаунт в контекст запроса
func WithAccount(ctx context.Context, account *models.Account) context.Context {
	return context.WithValue(ctx, accountContextKey{}, account)
}

// AccountMiddleware находит аккаунт по заголовку X-Account-ID и передает его дальше через контекст
func AccountMiddleware(accounts AccountService, log *logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(services.AccountIDHeader))
		if raw == "" {
			writeErrorResponse(w, http.StatusUnauthorized, "Missing "+services.AccountIDHeader+" header")
			return
		}

		accountID, err := uuid.Parse(raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid account ID")
			return
		}

		account, err := accounts.GetAccount(r.Context(), accountID)
		if err != nil {
			writeServiceError(w, log, err, "Failed to load account")
			return
		}

		next(w, r.WithContext(WithAccount(r.Context(), account)))
	}
}

// RequireFeature пропускает запрос, только если план аккаунта включает модуль
func RequireFeature(plans AccountService, feature models.Feature, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := AccountFromContext(r.Context())
		if !ok {
			writeErrorResponse(w, http.StatusUnauthorized, "Account required")
			return
		}

		if !plans.PlanDetails(account.Plan).Allows(feature) {
			writeErrorResponse(w, http.StatusForbidden, "Feature "+string(feature)+" is not available on plan "+string(account.Plan))
			return
		}

		next(w, r)
	}
}

// accountAndID достает аккаунт из контекста и ID ресурса из пути, отвечая ошибкой при неудаче
func accountAndID(w http.ResponseWriter, r *http.Request, prefix, resource string) (*models.Account, uuid.UUID, bool) {
	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Account required")
		return nil, uuid.Nil, false
	}

	id, err := extractUUIDFromPath(r.URL.Path, prefix)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid "+resource+" ID")
		return nil, uuid.Nil, false
	}

	return account, id, true
}

// AccountHandler представляет обработчик настроек аккаунта и тарифов
type AccountHandler struct {
	accounts AccountService
	ledger   StatsInvalidator
	log      *logger.Logger
}

// NewAccountHandler создает новый обработчик аккаунта
func NewAccountHandler(accounts AccountService, ledger StatsInvalidator, log *logger.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		ledger:   ledger,
		log:      log,
	}
}

// accountResponse аккаунт вместе с параметрами его плана
type accountResponse struct {
	*models.Account
	PlanDetails models.PlanDetails `json:"plan_details"`
}

// GetAccount возвращает текущий аккаунт
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Account required")
		return
	}

	writeJSONResponse(w, http.StatusOK, h.response(account))
}

// UpdateSettings сохраняет тарифы и адрес базы по умолчанию
func (h *AccountHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Account required")
		return
	}

	var req models.AccountSettings
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.accounts.UpdateSettings(r.Context(), account.ID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update settings")
		return
	}

	h.log.ForAccount(account.ID).Info("Account settings updated")
	writeJSONResponse(w, http.StatusOK, h.response(updated))
}

// ChangePlan переключает тарифный план аккаунта
func (h *AccountHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	account, ok := AccountFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "Account required")
		return
	}

	var req struct {
		Plan models.Plan `json:"plan"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.accounts.ChangePlan(r.Context(), account.ID, req.Plan)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to change plan")
		return
	}

	// лимит смет в сводке зависит от плана
	h.ledger.InvalidateAccount(r.Context(), account.ID)

	h.log.WithFields(map[string]interface{}{
		"account_id": account.ID,
		"old_plan":   account.Plan,
		"new_plan":   updated.Plan,
	}).Info("Account plan changed")
	writeJSONResponse(w, http.StatusOK, h.response(updated))
}

// ListPlans возвращает каталог тарифов
func (h *AccountHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSONResponse(w, http.StatusOK, h.accounts.ListPlans())
}

func (h *AccountHandler) response(account *models.Account) accountResponse {
	return accountResponse{
		Account:     account,
		PlanDetails: h.accounts.PlanDetails(account.Plan),
	}
}
