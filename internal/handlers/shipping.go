package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gearbelt/api/internal/platform/httpx"
	"github.com/gearbelt/api/internal/services"
)

const maxBracketBodySize = 4 * 1024

type bracketWriteRequest struct {
	MinWeight float64 `json:"minWeight"`
	MaxWeight float64 `json:"maxWeight"`
	CostCents int64   `json:"costCents"`
}

// ShippingHandlers exposes the shipping quote endpoint publicly and bracket
// management to admins.
type ShippingHandlers struct {
	shipping services.ShippingService
}

// NewShippingHandlers constructs a new ShippingHandlers instance.
func NewShippingHandlers(shipping services.ShippingService) *ShippingHandlers {
	return &ShippingHandlers{shipping: shipping}
}

// PublicRoutes registers the quote endpoint used by storefront checkout.
func (h *ShippingHandlers) PublicRoutes(r chi.Router) {
	r.Get("/quote", h.quote)
}

// AdminRoutes registers bracket management endpoints.
func (h *ShippingHandlers) AdminRoutes(r chi.Router) {
	r.Get("/brackets", h.listBrackets)
	r.Post("/brackets", h.createBracket)
	r.Put("/brackets/{bracketID}", h.updateBracket)
	r.Delete("/brackets/{bracketID}", h.deleteBracket)
}

func (h *ShippingHandlers) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := strings.TrimSpace(r.URL.Query().Get("weight"))
	weight, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "weight must be a number", http.StatusBadRequest))
		return
	}

	cost, err := h.shipping.CostForWeight(ctx, weight)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"weight":    weight,
		"costCents": cost,
	})
}

func (h *ShippingHandlers) listBrackets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	brackets, err := h.shipping.ListBrackets(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]bracketPayload, 0, len(brackets))
	for _, bracket := range brackets {
		items = append(items, buildBracketPayload(bracket))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *ShippingHandlers) createBracket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req bracketWriteRequest
	if err := decodeJSONBody(w, r, maxBracketBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	bracket, err := h.shipping.CreateBracket(ctx, services.BracketCommand{
		MinWeight: req.MinWeight,
		MaxWeight: req.MaxWeight,
		CostCents: req.CostCents,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildBracketPayload(bracket))
}

func (h *ShippingHandlers) updateBracket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req bracketWriteRequest
	if err := decodeJSONBody(w, r, maxBracketBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	bracket, err := h.shipping.UpdateBracket(ctx, chi.URLParam(r, "bracketID"), services.BracketCommand{
		MinWeight: req.MinWeight,
		MaxWeight: req.MaxWeight,
		CostCents: req.CostCents,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBracketPayload(bracket))
}

func (h *ShippingHandlers) deleteBracket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.shipping.DeleteBracket(ctx, chi.URLParam(r, "bracketID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
