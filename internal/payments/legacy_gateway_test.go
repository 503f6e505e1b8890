package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gearbelt/api/internal/platform/config"
)

func fixedClock() func() time.Time {
	at := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestLegacyGatewayAuthorizeApproved(t *testing.T) {
	var captured authorizePayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		_, _ = w.Write([]byte("AUTH-74X19\n"))
	}))
	defer server.Close()

	gateway, err := NewLegacyGateway(config.PaymentConfig{
		Endpoint: server.URL,
		Vendor:   "VE001-99",
	}, WithClock(fixedClock()))
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	result, err := gateway.Authorize(context.Background(), AuthorizeRequest{
		OrderID:        "ord_01HZX",
		CardNumber:     "4111 1111 1111 1111",
		CardholderName: "Dana Ferris",
		Expiry:         "09/2028",
		AmountCents:    15349,
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}

	if !result.Approved {
		t.Fatalf("expected approval, got decline %q", result.DeclineReason)
	}
	if result.AuthorizationCode != "AUTH-74X19" {
		t.Fatalf("unexpected authorization code %q", result.AuthorizationCode)
	}
	if !strings.HasPrefix(result.TransactionID, "ord_01HZX-") {
		t.Fatalf("transaction id must embed the order id, got %q", result.TransactionID)
	}

	if captured.Vendor != "VE001-99" {
		t.Errorf("unexpected vendor %q", captured.Vendor)
	}
	if captured.CC != "4111111111111111" {
		t.Errorf("card number must be sent without spaces, got %q", captured.CC)
	}
	if captured.Amount != "153.49" {
		t.Errorf("unexpected amount %q", captured.Amount)
	}
	if captured.Trans != result.TransactionID {
		t.Errorf("payload trans %q does not match result %q", captured.Trans, result.TransactionID)
	}
}

func TestLegacyGatewayAuthorizeDeclined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Error: insufficient funds"))
	}))
	defer server.Close()

	gateway, err := NewLegacyGateway(config.PaymentConfig{Endpoint: server.URL, Vendor: "VE001-99"})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	result, err := gateway.Authorize(context.Background(), AuthorizeRequest{
		OrderID:     "ord_decline",
		CardNumber:  "4000000000000002",
		Expiry:      "01/2027",
		AmountCents: 500,
	})
	if err != nil {
		t.Fatalf("a decline must not be an error: %v", err)
	}
	if result.Approved {
		t.Fatalf("expected decline")
	}
	if result.DeclineReason != "Error: insufficient funds" {
		t.Fatalf("unexpected decline reason %q", result.DeclineReason)
	}
	if result.AuthorizationCode != "" {
		t.Fatalf("declined result must not carry an authorization code")
	}
}

func TestLegacyGatewayAuthorizeUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	gateway, err := NewLegacyGateway(config.PaymentConfig{Endpoint: server.URL, Vendor: "VE001-99"})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	_, err = gateway.Authorize(context.Background(), AuthorizeRequest{
		OrderID:     "ord_down",
		CardNumber:  "4111111111111111",
		Expiry:      "01/2027",
		AmountCents: 100,
	})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestLegacyGatewayAuthorizeBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	gateway, err := NewLegacyGateway(config.PaymentConfig{Endpoint: server.URL, Vendor: "VE001-99"})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	_, err = gateway.Authorize(context.Background(), AuthorizeRequest{
		OrderID:     "ord_502",
		CardNumber:  "4111111111111111",
		Expiry:      "01/2027",
		AmountCents: 100,
	})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable for bad status, got %v", err)
	}
}

func TestLegacyGatewayRefundAlwaysSucceeds(t *testing.T) {
	gateway, err := NewLegacyGateway(config.PaymentConfig{Endpoint: "http://127.0.0.1:1", Vendor: "VE001-99"})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	if err := gateway.Refund(context.Background(), RefundRequest{
		OrderID:           "ord_refund",
		AuthorizationCode: "AUTH-1",
		TransactionID:     "ord_refund-1",
		AmountCents:       999,
	}); err != nil {
		t.Fatalf("refund: %v", err)
	}
}

func TestNewLegacyGatewayValidation(t *testing.T) {
	if _, err := NewLegacyGateway(config.PaymentConfig{Vendor: "VE001-99"}); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}
	if _, err := NewLegacyGateway(config.PaymentConfig{Endpoint: "http://example.test"}); err == nil {
		t.Fatalf("expected error for missing vendor")
	}
}
