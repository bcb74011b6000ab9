package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"towing-system/internal/models"
)

func TestAccountMiddleware(t *testing.T) {
	account := newTestAccount(models.PlanPro)
	accounts := &stubAccountService{account: account}

	var seen *models.Account
	wrapped := AccountMiddleware(accounts, newTestLogger(), func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AccountFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"invalid uuid", "abc", http.StatusBadRequest},
		{"unknown account", "123e4567-e89b-12d3-a456-426614174000", http.StatusNotFound},
		{"known account", account.ID.String(), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/quotes", nil)
			if tt.header != "" {
				req.Header.Set("X-Account-ID", tt.header)
			}
			rr := httptest.NewRecorder()
			wrapped(rr, req)
			if rr.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rr.Code)
			}
		})
	}

	if seen == nil || seen.ID != account.ID {
		t.Fatalf("expected account in context")
	}
}

func TestRequireFeature(t *testing.T) {
	accounts := &stubAccountService{}
	calls := 0
	gated := RequireFeature(accounts, models.FeatureFleet, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	gated(rr, newAccountRequest(http.MethodGet, "/api/vehicles", "", newTestAccount(models.PlanPro)))
	if rr.Code != http.StatusForbidden || calls != 0 {
		t.Fatalf("expected 403 for pro plan, got %d calls=%d", rr.Code, calls)
	}

	rr = httptest.NewRecorder()
	gated(rr, newAccountRequest(http.MethodGet, "/api/vehicles", "", newTestAccount(models.PlanPremium)))
	if rr.Code != http.StatusOK || calls != 1 {
		t.Fatalf("expected 200 for premium plan, got %d calls=%d", rr.Code, calls)
	}

	rr = httptest.NewRecorder()
	gated(rr, newAccountRequest(http.MethodGet, "/api/vehicles", "", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without account, got %d", rr.Code)
	}
}

func TestAccountHandler_GetAccount(t *testing.T) {
	account := newTestAccount(models.PlanFree)
	h := NewAccountHandler(&stubAccountService{account: account}, &stubLedger{}, newTestLogger())

	rr := httptest.NewRecorder()
	h.GetAccount(rr, newAccountRequest(http.MethodGet, "/api/account", "", account))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body struct {
		ID          string             `json:"id"`
		PlanDetails models.PlanDetails `json:"plan_details"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != account.ID.String() || body.PlanDetails.QuoteLimit != 10 {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestAccountHandler_UpdateSettings(t *testing.T) {
	account := newTestAccount(models.PlanFree)
	h := NewAccountHandler(&stubAccountService{account: account}, &stubLedger{}, newTestLogger())

	rr := httptest.NewRecorder()
	body := `{"default_km_value":6,"default_min_charge":200,"default_return_address":"Rua Nova, 1","fuel_price":6.1}`
	h.UpdateSettings(rr, newAccountRequest(http.MethodPut, "/api/account/settings", body, account))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.UpdateSettings(rr, newAccountRequest(http.MethodPut, "/api/account/settings", "{", account))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rr.Code)
	}
}

func TestAccountHandler_ChangePlan(t *testing.T) {
	account := newTestAccount(models.PlanFree)
	ledger := &stubLedger{}
	h := NewAccountHandler(&stubAccountService{account: account}, ledger, newTestLogger())

	rr := httptest.NewRecorder()
	h.ChangePlan(rr, newAccountRequest(http.MethodPut, "/api/account/plan", `{"plan":"premium"}`, account))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ledger.invalidated != 1 {
		t.Fatalf("expected dashboard cache invalidated")
	}

	rr = httptest.NewRecorder()
	h.ChangePlan(rr, newAccountRequest(http.MethodPut, "/api/account/plan", `{"plan":"gold"}`, account))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown plan, got %d", rr.Code)
	}
}

func TestAccountHandler_ListPlans(t *testing.T) {
	h := NewAccountHandler(&stubAccountService{}, &stubLedger{}, newTestLogger())

	rr := httptest.NewRecorder()
	h.ListPlans(rr, httptest.NewRequest(http.MethodGet, "/api/plans", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var plans []map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &plans); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(plans) != 3 || plans[0]["plan"] != "free" {
		t.Fatalf("unexpected plans: %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ListPlans(rr, httptest.NewRequest(http.MethodPost, "/api/plans", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
