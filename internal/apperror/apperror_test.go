package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_Message(t *testing.T) {
	base := errors.New("pq: duplicate key")
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{name: "client message wins", err: &Error{Kind: KindConflict, Msg: "vehicle already exists", Err: base}, want: "vehicle already exists"},
		{name: "wrapped error", err: &Error{Kind: KindConflict, Err: base}, want: base.Error()},
		{name: "bare kind", err: &Error{Kind: KindQuotaExceeded}, want: "quota_exceeded"},
		{name: "nil receiver", err: nil, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestKindOf_ThroughWrapping(t *testing.T) {
	sentinel := errors.New("no route")
	err := fmt.Errorf("leg 2: %w", Unprocessable("no route found between addresses", sentinel))

	kind, ok := KindOf(err)
	if !ok || kind != KindUnprocessable {
		t.Fatalf("expected unprocessable kind, got %q (%v)", kind, ok)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("sentinel must stay reachable through the typed error")
	}
	if Is(err, KindValidation) {
		t.Fatalf("unexpected match for a different kind")
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatalf("plain error has no kind")
	}
}

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NotFound("quote not found", nil), http.StatusNotFound},
		{Validation("pickup address is required", nil), http.StatusBadRequest},
		{Conflict("service already exists for quote", nil), http.StatusConflict},
		{Unprocessable("address not found", nil), http.StatusUnprocessableEntity},
		{QuotaExceeded("monthly quote limit reached", nil), http.StatusForbidden},
		{Forbidden("feature not available on plan", nil), http.StatusForbidden},
	}
	for _, tt := range tests {
		kind, _ := KindOf(tt.err)
		if got := kind.HTTPStatus(); got != tt.want {
			t.Fatalf("%s: expected %d, got %d", kind, tt.want, got)
		}
	}

	if got := Kind("unknown").HTTPStatus(); got != http.StatusInternalServerError {
		t.Fatalf("unknown kind must map to 500, got %d", got)
	}
}

func TestAs_ReturnsInnermostTypedError(t *testing.T) {
	err := fmt.Errorf("create quote: %w", QuotaExceeded("monthly quote limit reached", nil))

	appErr, ok := As(err)
	if !ok {
		t.Fatalf("expected typed error in chain")
	}
	if appErr.Error() != "monthly quote limit reached" {
		t.Fatalf("client message must not carry wrapping prefixes, got %q", appErr.Error())
	}
	if _, ok := As(errors.New("plain")); ok {
		t.Fatalf("plain error has no typed error")
	}
}
