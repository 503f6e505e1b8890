package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gearbelt/api/internal/domain"
	"github.com/gearbelt/api/internal/platform/httpx"
	"github.com/gearbelt/api/internal/services"
)

const maxInventoryBodySize = 4 * 1024

type addStockRequest struct {
	Quantity int `json:"quantity"`
}

// InventoryHandlers exposes stock replenishment and the audit ledger to staff.
type InventoryHandlers struct {
	inventory services.InventoryService
}

// NewInventoryHandlers constructs a new InventoryHandlers instance.
func NewInventoryHandlers(inventory services.InventoryService) *InventoryHandlers {
	return &InventoryHandlers{inventory: inventory}
}

// Routes registers the staff inventory endpoints.
func (h *InventoryHandlers) Routes(r chi.Router) {
	r.Post("/products/{productID}/stock", h.addStock)
	r.Get("/ledger", h.listLedger)
}

func (h *InventoryHandlers) addStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addStockRequest
	if err := decodeJSONBody(w, r, maxInventoryBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	mutation, err := h.inventory.AddStock(ctx, services.AddStockCommand{
		ProductID: chi.URLParam(r, "productID"),
		Quantity:  req.Quantity,
		ActorID:   actorID(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	entries := make([]ledgerEntryPayload, 0, len(mutation.Entries))
	for _, entry := range mutation.Entries {
		entries = append(entries, buildLedgerEntryPayload(entry))
	}

	var product productPayload
	if updated, ok := mutation.Products[chi.URLParam(r, "productID")]; ok {
		product = buildProductPayload(updated)
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"product": product,
		"entries": entries,
	})
}

func (h *InventoryHandlers) listLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := services.InventoryHistoryFilter{
		ProductID: strings.TrimSpace(query.Get("product_id")),
		OrderID:   strings.TrimSpace(query.Get("order_id")),
	}

	if raw := strings.TrimSpace(query.Get("reason")); raw != "" {
		reason := domain.InventoryReason(raw)
		switch reason {
		case domain.ReasonStockAdded, domain.ReasonOrderPlaced, domain.ReasonOrderCancelled:
			filter.Reason = reason
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown ledger reason", http.StatusBadRequest))
			return
		}
	}
	if raw := strings.TrimSpace(query.Get("since")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "since must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.Since = ts
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
			return
		}
		filter.Limit = value
	}

	entries, err := h.inventory.History(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]ledgerEntryPayload, 0, len(entries))
	for _, entry := range entries {
		items = append(items, buildLedgerEntryPayload(entry))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}
