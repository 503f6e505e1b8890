package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gearbelt/api/internal/domain"
	"github.com/gearbelt/api/internal/platform/httpx"
	"github.com/gearbelt/api/internal/services"
)

const maxOrderBodySize = 64 * 1024

type createOrderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	ShippingAddress string `json:"shippingAddress"`
	ShippingCity    string `json:"shippingCity"`
	ShippingState   string `json:"shippingState"`
	ShippingZip     string `json:"shippingZip"`
	ShippingCountry string `json:"shippingCountry"`

	CardNumber     string `json:"cardNumber"`
	CardholderName string `json:"cardholderName"`
	CardExpiry     string `json:"cardExpiry"`

	Items []createOrderItemRequest `json:"items"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// OrderHandlers exposes checkout publicly and fulfillment operations to staff.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// PublicRoutes registers checkout and customer order lookup.
func (h *OrderHandlers) PublicRoutes(r chi.Router) {
	r.Post("/", h.createOrder)
	r.Get("/{orderKey}", h.getOrder)
}

// StaffRoutes registers fulfillment endpoints. Role checks are applied by the
// router when mounting the group.
func (h *OrderHandlers) StaffRoutes(r chi.Router) {
	r.Get("/", h.listOrders)
	r.Get("/{orderKey}", h.getOrder)
	r.Post("/{orderKey}:pack", h.startPacking)
	r.Post("/{orderKey}:ship", h.markShipped)
	r.Post("/{orderKey}:cancel", h.cancelOrder)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createOrderRequest
	if err := decodeJSONBody(w, r, maxOrderBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	items := make([]services.CreateOrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = services.CreateOrderItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		ShippingAddress: req.ShippingAddress,
		ShippingCity:    req.ShippingCity,
		ShippingState:   req.ShippingState,
		ShippingZip:     req.ShippingZip,
		ShippingCountry: req.ShippingCountry,
		CardNumber:      req.CardNumber,
		CardholderName:  req.CardholderName,
		CardExpiry:      req.CardExpiry,
		Items:           items,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key, ok := domain.ParseOrderKey(chi.URLParam(r, "orderKey"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order key is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, key)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := services.OrderListFilter{
		Search: strings.TrimSpace(query.Get("search")),
	}

	for _, raw := range query["status"] {
		status := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
		if status == "" {
			continue
		}
		if !status.Valid() {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown order status "+raw, http.StatusBadRequest))
			return
		}
		filter.Status = append(filter.Status, status)
	}

	if raw := strings.TrimSpace(query.Get("ordered_after")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "ordered_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.OrderedAfter = &ts
	}
	if raw := strings.TrimSpace(query.Get("ordered_before")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "ordered_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.OrderedBefore = &ts
	}
	if raw := strings.TrimSpace(query.Get("min_amount_cents")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "min_amount_cents must be an integer", http.StatusBadRequest))
			return
		}
		filter.MinAmountCents = &value
	}
	if raw := strings.TrimSpace(query.Get("max_amount_cents")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "max_amount_cents must be an integer", http.StatusBadRequest))
			return
		}
		filter.MaxAmountCents = &value
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
			return
		}
		filter.Limit = value
	}

	orders, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		items = append(items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *OrderHandlers) startPacking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, key domain.OrderKey) (domain.Order, error) {
		return h.orders.StartPacking(ctx, key, actorID(ctx))
	})
}

func (h *OrderHandlers) markShipped(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, key domain.OrderKey) (domain.Order, error) {
		return h.orders.MarkShipped(ctx, key, actorID(ctx))
	})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key, ok := domain.ParseOrderKey(chi.URLParam(r, "orderKey"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order key is required", http.StatusBadRequest))
		return
	}

	var req cancelOrderRequest
	if r.ContentLength > 0 {
		if err := decodeJSONBody(w, r, maxInventoryBodySize, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
			return
		}
	}

	order, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{
		Key:     key,
		Reason:  strings.TrimSpace(req.Reason),
		ActorID: actorID(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, key domain.OrderKey) (domain.Order, error)) {
	ctx := r.Context()

	key, ok := domain.ParseOrderKey(chi.URLParam(r, "orderKey"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order key is required", http.StatusBadRequest))
		return
	}

	order, err := apply(ctx, key)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}
