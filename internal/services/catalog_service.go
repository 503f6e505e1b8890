package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gearbelt/api/internal/domain"
	"github.com/gearbelt/api/internal/repositories"
)

const productIDPrefix = "prod_"

var (
	// ErrCatalogInvalidInput signals the caller provided invalid product fields.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogProductNotFound indicates the product does not exist.
	ErrCatalogProductNotFound = errors.New("catalog: product not found")
	// ErrCatalogDuplicatePartNumber indicates another product already carries the part number.
	ErrCatalogDuplicatePartNumber = errors.New("catalog: duplicate part number")
)

// CatalogServiceDeps bundles the collaborators required to construct a
// catalog service.
type CatalogServiceDeps struct {
	Products    repositories.ProductRepository
	Inventory   InventoryService
	Clock       func() time.Time
	IDGenerator func() string
}

type catalogService struct {
	repo      repositories.ProductRepository
	inventory InventoryService
	clock     func() time.Time
	newID     func() string
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService wires dependencies into a concrete CatalogService.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("catalog service: inventory service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	return &catalogService{
		repo:      deps.Products,
		inventory: deps.Inventory,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error) {
	if err := validateProductFields(cmd.PartNumber, cmd.Name, cmd.PriceCents, cmd.Weight); err != nil {
		return Product{}, err
	}
	if cmd.InitialQuantity < 0 {
		return Product{}, fmt.Errorf("%w: initial quantity must be >= 0", ErrCatalogInvalidInput)
	}

	partNumber := strings.TrimSpace(cmd.PartNumber)
	if _, err := s.repo.FindByPartNumber(ctx, partNumber); err == nil {
		return Product{}, fmt.Errorf("%w: %s", ErrCatalogDuplicatePartNumber, partNumber)
	} else if !isNotFound(err) {
		return Product{}, err
	}

	now := s.clock()
	product := domain.Product{
		ID:          productIDPrefix + s.newID(),
		PartNumber:  partNumber,
		Name:        strings.TrimSpace(cmd.Name),
		Description: strings.TrimSpace(cmd.Description),
		PriceCents:  cmd.PriceCents,
		Weight:      cmd.Weight,
		ImageURL:    strings.TrimSpace(cmd.ImageURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, product); err != nil {
		return Product{}, err
	}

	// Seed stock through the ledger so the initial quantity is audited like
	// any other replenishment.
	if cmd.InitialQuantity > 0 {
		mutation, err := s.inventory.AddStock(ctx, AddStockCommand{
			ProductID: product.ID,
			Quantity:  cmd.InitialQuantity,
			ActorID:   strings.TrimSpace(cmd.ActorID),
		})
		if err != nil {
			return Product{}, err
		}
		if seeded, ok := mutation.Products[product.ID]; ok {
			product = seeded
		}
	}

	return product, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	trimmed := strings.TrimSpace(productID)
	if trimmed == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	product, err := s.repo.FindByID(ctx, trimmed)
	if err != nil {
		if isNotFound(err) {
			return Product{}, fmt.Errorf("%w: %s", ErrCatalogProductNotFound, trimmed)
		}
		return Product{}, err
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) ([]Product, error) {
	return s.repo.List(ctx, repositories.ProductListFilter{
		Search:        strings.TrimSpace(filter.Search),
		MinPriceCents: filter.MinPriceCents,
		MaxPriceCents: filter.MaxPriceCents,
		InStockOnly:   filter.InStockOnly,
		Limit:         filter.Limit,
	})
}

func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error) {
	trimmed := strings.TrimSpace(cmd.ProductID)
	if trimmed == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	if err := validateProductFields(cmd.PartNumber, cmd.Name, cmd.PriceCents, cmd.Weight); err != nil {
		return Product{}, err
	}

	existing, err := s.repo.FindByID(ctx, trimmed)
	if err != nil {
		if isNotFound(err) {
			return Product{}, fmt.Errorf("%w: %s", ErrCatalogProductNotFound, trimmed)
		}
		return Product{}, err
	}

	partNumber := strings.TrimSpace(cmd.PartNumber)
	if partNumber != existing.PartNumber {
		if other, err := s.repo.FindByPartNumber(ctx, partNumber); err == nil && other.ID != existing.ID {
			return Product{}, fmt.Errorf("%w: %s", ErrCatalogDuplicatePartNumber, partNumber)
		} else if err != nil && !isNotFound(err) {
			return Product{}, err
		}
	}

	existing.PartNumber = partNumber
	existing.Name = strings.TrimSpace(cmd.Name)
	existing.Description = strings.TrimSpace(cmd.Description)
	existing.PriceCents = cmd.PriceCents
	existing.Weight = cmd.Weight
	existing.ImageURL = strings.TrimSpace(cmd.ImageURL)
	existing.UpdatedAt = s.clock()

	if err := s.repo.Update(ctx, existing); err != nil {
		return Product{}, err
	}
	return existing, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	trimmed := strings.TrimSpace(productID)
	if trimmed == "" {
		return fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	return s.repo.Delete(ctx, trimmed)
}

func validateProductFields(partNumber, name string, priceCents int64, weight float64) error {
	if strings.TrimSpace(partNumber) == "" {
		return fmt.Errorf("%w: part number is required", ErrCatalogInvalidInput)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if priceCents < 0 {
		return fmt.Errorf("%w: price must be >= 0", ErrCatalogInvalidInput)
	}
	if weight < 0 {
		return fmt.Errorf("%w: weight must be >= 0", ErrCatalogInvalidInput)
	}
	return nil
}
