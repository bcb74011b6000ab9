package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMetricsMiddleware_PassesThroughStatus(t *testing.T) {
	wrapped := MetricsMiddleware("/api/quotes", func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, http.StatusTeapot, "short and stout")
	})

	rr := httptest.NewRecorder()
	wrapped(rr, httptest.NewRequest(http.MethodGet, "/api/quotes", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rr.Code)
	}
}

func TestStatusRecorder_DefaultsToOK(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	_, _ = rec.Write([]byte("ok"))
	if rec.status != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.status)
	}

	rec.WriteHeader(http.StatusCreated)
	if rec.status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.status)
	}
}
