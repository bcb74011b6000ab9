package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"towing-system/internal/apperror"
	"towing-system/internal/models"

	"github.com/google/uuid"
)

func TestServiceHandler_ListServices(t *testing.T) {
	account := newTestAccount(models.PlanFree)
	towServices := &stubTowService{services: []*models.ServiceWithDetails{{Service: models.Service{ID: uuid.New()}}}}
	h := NewServiceHandler(towServices, nil, &stubLedger{}, newTestLogger())

	rr := httptest.NewRecorder()
	h.ListServices(rr, newAccountRequest(http.MethodGet, "/api/services?status=in_progress&search=%20paulista%20&sort=oldest", "", account))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	filter := towServices.lastFilter
	if filter.Status == nil || *filter.Status != models.ServiceStatusInProgress {
		t.Fatalf("expected status filter, got %+v", filter)
	}
	if filter.Search != "paulista" {
		t.Fatalf("expected trimmed search, got %q", filter.Search)
	}
	if filter.Sort != models.ServiceSortOldest {
		t.Fatalf("expected oldest sort, got %q", filter.Sort)
	}

	rr = httptest.NewRecorder()
	h.ListServices(rr, newAccountRequest(http.MethodGet, "/api/services", "", account))
	if towServices.lastFilter.Sort != models.ServiceSortNewest {
		t.Fatalf("expected newest by default")
	}
}

func TestServiceHandler_ListServices_BadParams(t *testing.T) {
	account := newTestAccount(models.PlanFree)
	h := NewServiceHandler(&stubTowService{}, nil, &stubLedger{}, newTestLogger())

	for _, target := range []string{
		"/api/services?status=cancelled",
		"/api/services?sort=random",
		"/api/services?from=2024-13-01",
	} {
		rr := httptest.NewRecorder()
		h.ListServices(rr, newAccountRequest(http.MethodGet, target, "", account))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rr.Code)
		}
	}
}

func TestServiceHandler_GetService(t *testing.T) {
	account := newTestAccount(models.PlanFree)
	serviceID := uuid.New()
	h := NewServiceHandler(&stubTowService{service: &models.ServiceWithDetails{Service: models.Service{ID: serviceID}}}, nil, &stubLedger{}, newTestLogger())

	rr := httptest.NewRecorder()
	h.GetService(rr, newAccountRequest(http.MethodGet, "/api/services/"+serviceID.String(), "", account))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestServiceHandler_UpdateServiceStatus(t *testing.T) {
	account := newTestAccount(models.PlanFree)
	serviceID := uuid.New()
	path := "/api/services/" + serviceID.String() + "/status"

	producer := &stubProducer{}
	ledger := &stubLedger{}
	h := NewServiceHandler(&stubTowService{oldStatus: models.ServiceStatusPending}, producer, ledger, newTestLogger())

	rr := httptest.NewRecorder()
	h.UpdateServiceStatus(rr, newAccountRequest(http.MethodPut, path, `{"status":"completed"}`, account))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if producer.serviceStatusChanged != 1 || ledger.invalidated != 1 {
		t.Fatalf("expected event and invalidation, got %d/%d", producer.serviceStatusChanged, ledger.invalidated)
	}

	rr = httptest.NewRecorder()
	h.UpdateServiceStatus(rr, newAccountRequest(http.MethodPut, path, `{"status":"pending"}`, account))
	if producer.serviceStatusChanged != 1 || ledger.invalidated != 1 {
		t.Fatalf("expected no side effects for unchanged status")
	}

	backward := apperror.Validation("cannot move service from completed back to pending", nil)
	rejected := NewServiceHandler(&stubTowService{err: backward}, producer, ledger, newTestLogger())
	rr = httptest.NewRecorder()
	rejected.UpdateServiceStatus(rr, newAccountRequest(http.MethodPut, path, `{"status":"pending"}`, account))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for backward move, got %d", rr.Code)
	}
}
