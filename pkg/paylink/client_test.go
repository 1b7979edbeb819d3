package paylink

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/ridelinkhq/ridelink-backend/pkg/errors"
)

func TestEnsureIdempotencyKey(t *testing.T) {
	c := &Client{}
	if got := c.ensureIdempotencyKey("pref", "custom-key"); got != "custom-key" {
		t.Fatalf("expected provided key, got %q", got)
	}
	if got := c.ensureIdempotencyKey("prefix", ""); !strings.HasPrefix(got, "prefix-") {
		t.Fatalf("generated idempotency key %q missing prefix", got)
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("payment_token", "abc123"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	if v := c.redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestNormalizeEnv(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", sandboxEnv, false},
		{"Sandbox", sandboxEnv, false},
		{"PRODUCTION", productionEnv, false},
		{"staging", "", true},
	}
	for _, tt := range tests {
		got, err := normalizeEnv(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("env %q: expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("env %q: unexpected error %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("env %q: expected %q got %q", tt.in, tt.want, got)
		}
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusUnprocessableEntity, pkgerrors.CodeStateConflict},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestMapProcessorError(t *testing.T) {
	c := &Client{}
	table := []struct {
		name     string
		status   int
		payload  string
		wantCode pkgerrors.Code
	}{
		{
			name:     "authentication error",
			status:   http.StatusUnauthorized,
			payload:  `{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`,
			wantCode: pkgerrors.CodeUnauthorized,
		},
		{
			name:     "idempotency key reused",
			status:   http.StatusConflict,
			payload:  `{"errors":[{"category":"API_ERROR","code":"IDEMPOTENCY_KEY_REUSED"}]}`,
			wantCode: pkgerrors.CodeIdempotency,
		},
	}
	for _, tt := range table {
		err := sqcore.NewAPIError(tt.status, errors.New(tt.payload))
		mapped := c.mapProcessorError(err, "operation")
		if mapped == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
		typed := pkgerrors.As(mapped)
		if typed == nil {
			t.Fatalf("%s: result is not pkgerror", tt.name)
		}
		if typed.Code() != tt.wantCode {
			t.Fatalf("%s: expected code %s, got %s", tt.name, tt.wantCode, typed.Code())
		}
	}
}

func TestStatusFromOrder(t *testing.T) {
	if got := statusFromOrder(nil); got != LinkStatusPending {
		t.Fatalf("nil order should be pending, got %s", got)
	}

	completed := sq.OrderStateCompleted
	if got := statusFromOrder(&sq.Order{State: &completed}); got != LinkStatusPaid {
		t.Fatalf("completed order should be paid, got %s", got)
	}

	canceled := sq.OrderStateCanceled
	if got := statusFromOrder(&sq.Order{State: &canceled}); got != LinkStatusFailed {
		t.Fatalf("canceled order should be failed, got %s", got)
	}

	open := sq.OrderStateOpen
	paymentID := "pmt-1"
	order := &sq.Order{State: &open, Tenders: []*sq.Tender{{PaymentID: &paymentID}}}
	if got := statusFromOrder(order); got != LinkStatusPaid {
		t.Fatalf("tendered order should be paid, got %s", got)
	}
}
