package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gearbelt/api/internal/platform/auth"
	"github.com/gearbelt/api/internal/platform/httpx"
	"github.com/gearbelt/api/internal/services"
)

const maxProductBodySize = 32 * 1024

type productWriteRequest struct {
	PartNumber      string  `json:"partNumber"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	PriceCents      int64   `json:"priceCents"`
	Weight          float64 `json:"weight"`
	InitialQuantity int     `json:"initialQuantity"`
	ImageURL        string  `json:"imageUrl"`
}

// ProductHandlers exposes the catalog. Reads are public; writes require the
// admin role.
type ProductHandlers struct {
	catalog services.CatalogService
}

// NewProductHandlers constructs a new ProductHandlers instance.
func NewProductHandlers(catalog services.CatalogService) *ProductHandlers {
	return &ProductHandlers{catalog: catalog}
}

// PublicRoutes registers the unauthenticated catalog endpoints.
func (h *ProductHandlers) PublicRoutes(r chi.Router) {
	r.Get("/", h.listProducts)
	r.Get("/{productID}", h.getProduct)
}

// AdminRoutes registers the catalog write endpoints.
func (h *ProductHandlers) AdminRoutes(r chi.Router) {
	r.Post("/", h.createProduct)
	r.Put("/{productID}", h.updateProduct)
	r.Delete("/{productID}", h.deleteProduct)
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := services.ProductListFilter{
		Search:      strings.TrimSpace(query.Get("search")),
		InStockOnly: query.Get("in_stock") == "true",
	}

	if raw := strings.TrimSpace(query.Get("min_price_cents")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "min_price_cents must be an integer", http.StatusBadRequest))
			return
		}
		filter.MinPriceCents = &value
	}
	if raw := strings.TrimSpace(query.Get("max_price_cents")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "max_price_cents must be an integer", http.StatusBadRequest))
			return
		}
		filter.MaxPriceCents = &value
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
			return
		}
		filter.Limit = value
	}

	products, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(products))
	for _, product := range products {
		items = append(items, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *ProductHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req productWriteRequest
	if err := decodeJSONBody(w, r, maxProductBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.CreateProduct(ctx, services.CreateProductCommand{
		PartNumber:      req.PartNumber,
		Name:            req.Name,
		Description:     req.Description,
		PriceCents:      req.PriceCents,
		Weight:          req.Weight,
		InitialQuantity: req.InitialQuantity,
		ImageURL:        req.ImageURL,
		ActorID:         actorID(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildProductPayload(product))
}

func (h *ProductHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req productWriteRequest
	if err := decodeJSONBody(w, r, maxProductBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, services.UpdateProductCommand{
		ProductID:   chi.URLParam(r, "productID"),
		PartNumber:  req.PartNumber,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Weight:      req.Weight,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *ProductHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.catalog.DeleteProduct(ctx, chi.URLParam(r, "productID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func actorID(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		return identity.ID
	}
	return ""
}
