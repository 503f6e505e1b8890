package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gearbelt/api/internal/domain"
	"github.com/gearbelt/api/internal/platform/httpx"
	"github.com/gearbelt/api/internal/services"
)

type productPayload struct {
	ID          string  `json:"id"`
	PartNumber  string  `json:"partNumber"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	PriceCents  int64   `json:"priceCents"`
	Weight      float64 `json:"weight"`
	Quantity    int     `json:"quantity"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	CreatedAt   string  `json:"createdAt,omitempty"`
	UpdatedAt   string  `json:"updatedAt,omitempty"`
}

func buildProductPayload(product domain.Product) productPayload {
	return productPayload{
		ID:          product.ID,
		PartNumber:  product.PartNumber,
		Name:        product.Name,
		Description: product.Description,
		PriceCents:  product.PriceCents,
		Weight:      product.Weight,
		Quantity:    product.Quantity,
		ImageURL:    product.ImageURL,
		CreatedAt:   formatTime(product.CreatedAt),
		UpdatedAt:   formatTime(product.UpdatedAt),
	}
}

type ledgerEntryPayload struct {
	ID             string `json:"id"`
	ProductID      string `json:"productId"`
	ActorID        string `json:"actorId,omitempty"`
	QuantityChange int    `json:"quantityChange"`
	QuantityAfter  int    `json:"quantityAfter"`
	Reason         string `json:"reason"`
	OrderID        string `json:"orderId,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

func buildLedgerEntryPayload(entry domain.InventoryLogEntry) ledgerEntryPayload {
	return ledgerEntryPayload{
		ID:             entry.ID,
		ProductID:      entry.ProductID,
		ActorID:        entry.ActorID,
		QuantityChange: entry.QuantityChange,
		QuantityAfter:  entry.QuantityAfter,
		Reason:         string(entry.Reason),
		OrderID:        entry.OrderID,
		CreatedAt:      formatTime(entry.CreatedAt),
	}
}

type bracketPayload struct {
	ID        string  `json:"id"`
	MinWeight float64 `json:"minWeight"`
	MaxWeight float64 `json:"maxWeight"`
	CostCents int64   `json:"costCents"`
}

func buildBracketPayload(bracket domain.ShippingBracket) bracketPayload {
	return bracketPayload{
		ID:        bracket.ID,
		MinWeight: bracket.MinWeight,
		MaxWeight: bracket.MaxWeight,
		CostCents: bracket.CostCents,
	}
}

type orderItemPayload struct {
	ProductID      string  `json:"productId"`
	ProductName    string  `json:"productName"`
	Quantity       int     `json:"quantity"`
	UnitPriceCents int64   `json:"unitPriceCents"`
	UnitWeight     float64 `json:"unitWeight"`
	LineTotalCents int64   `json:"lineTotalCents"`
}

type orderPayload struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber"`
	Status      string `json:"status"`

	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	ShippingAddress string `json:"shippingAddress"`
	ShippingCity    string `json:"shippingCity"`
	ShippingState   string `json:"shippingState"`
	ShippingZip     string `json:"shippingZip"`
	ShippingCountry string `json:"shippingCountry,omitempty"`

	CardLast4 string `json:"cardLast4"`

	SubtotalCents     int64   `json:"subtotalCents"`
	ShippingCostCents int64   `json:"shippingCostCents"`
	TotalWeight       float64 `json:"totalWeight"`
	TotalAmountCents  int64   `json:"totalAmountCents"`

	Items []orderItemPayload `json:"items"`

	OrderedAt        string `json:"orderedAt"`
	PackingStartedAt string `json:"packingStartedAt,omitempty"`
	PackedBy         string `json:"packedBy,omitempty"`
	ShippedAt        string `json:"shippedAt,omitempty"`
	CancelledAt      string `json:"cancelledAt,omitempty"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]orderItemPayload, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemPayload{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			UnitWeight:     item.UnitWeight,
			LineTotalCents: item.LineTotalCents(),
		}
	}
	return orderPayload{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),

		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		ShippingAddress: order.ShippingAddress,
		ShippingCity:    order.ShippingCity,
		ShippingState:   order.ShippingState,
		ShippingZip:     order.ShippingZip,
		ShippingCountry: order.ShippingCountry,

		CardLast4: order.CardLast4,

		SubtotalCents:     order.SubtotalCents,
		ShippingCostCents: order.ShippingCostCents,
		TotalWeight:       order.TotalWeight,
		TotalAmountCents:  order.TotalAmountCents,

		Items: items,

		OrderedAt:        formatTime(order.OrderedAt),
		PackingStartedAt: formatTimePtr(order.PackingStartedAt),
		PackedBy:         order.PackedBy,
		ShippedAt:        formatTimePtr(order.ShippedAt),
		CancelledAt:      formatTimePtr(order.CancelledAt),
	}
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

func formatTimePtr(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return formatTime(*ts)
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

// writeServiceError maps service layer failures onto the JSON error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var short *services.InsufficientStockError
	if errors.As(err, &short) {
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", short.Error(), http.StatusConflict).
			WithDetails(map[string]any{"productIds": short.ProductIDs}))
		return
	}

	var declined *services.PaymentDeclinedError
	if errors.As(err, &declined) {
		httpx.WriteError(ctx, w, httpx.NewError("payment_declined", declined.Reason, http.StatusPaymentRequired))
		return
	}

	switch {
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrCatalogProductNotFound),
		errors.Is(err, services.ErrShippingBracketNotFound),
		errors.Is(err, services.ErrInventoryProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrCatalogInvalidInput),
		errors.Is(err, services.ErrInventoryInvalidInput),
		errors.Is(err, services.ErrShippingInvalidBracket):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogDuplicatePartNumber):
		httpx.WriteError(ctx, w, httpx.NewError("duplicate_part_number", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPaymentUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("payment_unavailable", "Payment processing failed", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}
