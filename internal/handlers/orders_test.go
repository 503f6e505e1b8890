package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gearbelt/api/internal/domain"
	"github.com/gearbelt/api/internal/services"
)

type stubOrderService struct {
	createFn func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error)
	getFn    func(ctx context.Context, key services.OrderKey) (services.Order, error)
	listFn   func(ctx context.Context, filter services.OrderListFilter) ([]services.Order, error)
	packFn   func(ctx context.Context, key services.OrderKey, actorID string) (services.Order, error)
	shipFn   func(ctx context.Context, key services.OrderKey, actorID string) (services.Order, error)
	cancelFn func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	return s.createFn(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, key services.OrderKey) (services.Order, error) {
	return s.getFn(ctx, key)
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) ([]services.Order, error) {
	return s.listFn(ctx, filter)
}

func (s *stubOrderService) StartPacking(ctx context.Context, key services.OrderKey, actorID string) (services.Order, error) {
	return s.packFn(ctx, key, actorID)
}

func (s *stubOrderService) MarkShipped(ctx context.Context, key services.OrderKey, actorID string) (services.Order, error) {
	return s.shipFn(ctx, key, actorID)
}

func (s *stubOrderService) CancelOrder(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	return s.cancelFn(ctx, cmd)
}

func sampleOrder() services.Order {
	shipped := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	return services.Order{
		ID:               "ord_123",
		OrderNumber:      "AP-2026-000007",
		Status:           domain.OrderStatusOrdered,
		CustomerName:     "Dana Ferris",
		CustomerEmail:    "dana@example.com",
		ShippingAddress:  "12 Elm St",
		ShippingCity:     "Springfield",
		ShippingState:    "IL",
		ShippingZip:      "62704",
		CardLast4:        "1111",
		SubtotalCents:    9998,
		TotalAmountCents: 11297,
		Items: []services.OrderItem{
			{ProductID: "prod_1", ProductName: "Brake Pad Set", Quantity: 2, UnitPriceCents: 4999},
		},
		OrderedAt: shipped.Add(-24 * time.Hour),
	}
}

func newOrderTestRouter(svc services.OrderService) http.Handler {
	handlers := NewOrderHandlers(svc)
	return NewRouter(
		WithOrderRoutes(handlers.PublicRoutes),
		WithStaffRoutes(func(r chi.Router) {
			r.Route("/orders", handlers.StaffRoutes)
		}),
	)
}

func TestCreateOrderReturnsCreated(t *testing.T) {
	var captured services.CreateOrderCommand
	svc := &stubOrderService{
		createFn: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(), nil
		},
	}
	router := newOrderTestRouter(svc)

	body := `{
		"customerName": "Dana Ferris",
		"customerEmail": "dana@example.com",
		"shippingAddress": "12 Elm St",
		"shippingCity": "Springfield",
		"shippingState": "IL",
		"shippingZip": "62704",
		"cardNumber": "4111111111111111",
		"cardholderName": "Dana Ferris",
		"cardExpiry": "09/2028",
		"items": [{"productId": "prod_1", "quantity": 2}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.CustomerEmail != "dana@example.com" || len(captured.Items) != 1 {
		t.Fatalf("unexpected command %+v", captured)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["orderNumber"] != "AP-2026-000007" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if _, ok := payload["cardNumber"]; ok {
		t.Fatalf("card number must never appear in responses")
	}
}

func TestCreateOrderPaymentDeclined(t *testing.T) {
	svc := &stubOrderService{
		createFn: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			return services.Order{}, &services.PaymentDeclinedError{Reason: "Error: insufficient funds"}
		},
	}
	router := newOrderTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", strings.NewReader(`{"items":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["error"] != "payment_declined" {
		t.Fatalf("unexpected error code %v", payload["error"])
	}
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	svc := &stubOrderService{
		createFn: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			return services.Order{}, &services.InsufficientStockError{ProductIDs: []string{"prod_1"}}
		},
	}
	router := newOrderTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", strings.NewReader(`{"items":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["error"] != "insufficient_stock" {
		t.Fatalf("unexpected error code %v", payload["error"])
	}
	ids, ok := payload["productIds"].([]any)
	if !ok || len(ids) != 1 || ids[0] != "prod_1" {
		t.Fatalf("offending products must be listed, got %v", payload["productIds"])
	}
}

func TestGetOrderParsesKeyKinds(t *testing.T) {
	var seen []services.OrderKey
	svc := &stubOrderService{
		getFn: func(ctx context.Context, key services.OrderKey) (services.Order, error) {
			seen = append(seen, key)
			return sampleOrder(), nil
		},
	}
	router := newOrderTestRouter(svc)

	for _, path := range []string{"/api/v1/orders/ord_123", "/api/v1/orders/AP-2026-000007"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	if seen[0].Kind != domain.OrderKeyByID || seen[1].Kind != domain.OrderKeyByNumber {
		t.Fatalf("key kinds misclassified: %+v", seen)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	svc := &stubOrderService{
		getFn: func(ctx context.Context, key services.OrderKey) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotFound
		},
	}
	router := newOrderTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord_missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStaffTransitionEndpoints(t *testing.T) {
	packed := sampleOrder()
	packed.Status = domain.OrderStatusPacking
	svc := &stubOrderService{
		packFn: func(ctx context.Context, key services.OrderKey, actorID string) (services.Order, error) {
			return packed, nil
		},
		cancelFn: func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			if cmd.Reason != "customer request" {
				t.Errorf("expected reason passthrough, got %q", cmd.Reason)
			}
			cancelled := sampleOrder()
			cancelled.Status = domain.OrderStatusCancelled
			return cancelled, nil
		},
	}
	router := newOrderTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/staff/orders/ord_123:pack", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("pack: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	cancelBody := strings.NewReader(`{"reason": "customer request"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/staff/orders/ord_123:cancel", cancelBody)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestInvalidTransitionMapsToConflict(t *testing.T) {
	svc := &stubOrderService{
		shipFn: func(ctx context.Context, key services.OrderKey, actorID string) (services.Order, error) {
			return services.Order{}, services.ErrOrderInvalidTransition
		},
	}
	router := newOrderTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/staff/orders/ord_123:ship", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}
