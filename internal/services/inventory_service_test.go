package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gearbelt/api/internal/domain"
	"github.com/gearbelt/api/internal/repositories"
)

type stubInventoryRepo struct {
	adjustFn  func(ctx context.Context, req repositories.InventoryAdjustRequest) (repositories.InventoryAdjustResult, error)
	historyFn func(ctx context.Context, filter repositories.InventoryHistoryFilter) ([]domain.InventoryLogEntry, error)
}

func (s *stubInventoryRepo) Adjust(ctx context.Context, req repositories.InventoryAdjustRequest) (repositories.InventoryAdjustResult, error) {
	if s.adjustFn == nil {
		return repositories.InventoryAdjustResult{}, nil
	}
	return s.adjustFn(ctx, req)
}

func (s *stubInventoryRepo) History(ctx context.Context, filter repositories.InventoryHistoryFilter) ([]domain.InventoryLogEntry, error) {
	if s.historyFn == nil {
		return nil, nil
	}
	return s.historyFn(ctx, filter)
}

type stubProductRepo struct {
	products map[string]domain.Product

	insertFn           func(ctx context.Context, product domain.Product) error
	updateFn           func(ctx context.Context, product domain.Product) error
	findByPartNumberFn func(ctx context.Context, partNumber string) (domain.Product, error)
	listFn             func(ctx context.Context, filter repositories.ProductListFilter) ([]domain.Product, error)
}

func (s *stubProductRepo) Insert(ctx context.Context, product domain.Product) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, product)
	}
	if s.products == nil {
		s.products = map[string]domain.Product{}
	}
	s.products[product.ID] = product
	return nil
}

func (s *stubProductRepo) Update(ctx context.Context, product domain.Product) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, product)
	}
	s.products[product.ID] = product
	return nil
}

func (s *stubProductRepo) Delete(ctx context.Context, productID string) error {
	delete(s.products, productID)
	return nil
}

func (s *stubProductRepo) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, notFoundErr{}
	}
	return product, nil
}

func (s *stubProductRepo) FindByPartNumber(ctx context.Context, partNumber string) (domain.Product, error) {
	if s.findByPartNumberFn != nil {
		return s.findByPartNumberFn(ctx, partNumber)
	}
	for _, product := range s.products {
		if product.PartNumber == partNumber {
			return product, nil
		}
	}
	return domain.Product{}, notFoundErr{}
}

func (s *stubProductRepo) List(ctx context.Context, filter repositories.ProductListFilter) ([]domain.Product, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	out := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		out = append(out, product)
	}
	return out, nil
}

// notFoundErr satisfies repositories.RepositoryError for lookup misses.
type notFoundErr struct{}

func (notFoundErr) Error() string       { return "not found" }
func (notFoundErr) IsNotFound() bool    { return true }
func (notFoundErr) IsConflict() bool    { return false }
func (notFoundErr) IsUnavailable() bool { return false }

func newTestInventoryService(t *testing.T, repo *stubInventoryRepo, products *stubProductRepo) InventoryService {
	t.Helper()
	svc, err := NewInventoryService(InventoryServiceDeps{
		Inventory:   repo,
		Products:    products,
		Clock:       func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) },
		IDGenerator: newSequenceIDs(),
	})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}
	return svc
}

func newSequenceIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%06d", n)
	}
}

func TestAddStockWritesLedgerEntry(t *testing.T) {
	var captured repositories.InventoryAdjustRequest
	repo := &stubInventoryRepo{
		adjustFn: func(ctx context.Context, req repositories.InventoryAdjustRequest) (repositories.InventoryAdjustResult, error) {
			captured = req
			return repositories.InventoryAdjustResult{
				Products: map[string]domain.Product{"prod_1": {ID: "prod_1", Quantity: 15}},
				Entries:  []domain.InventoryLogEntry{{ID: req.Adjustments[0].EntryID, QuantityAfter: 15}},
			}, nil
		},
	}
	svc := newTestInventoryService(t, repo, &stubProductRepo{})

	mutation, err := svc.AddStock(context.Background(), AddStockCommand{
		ProductID: "prod_1",
		Quantity:  10,
		ActorID:   "staff_1",
	})
	if err != nil {
		t.Fatalf("add stock: %v", err)
	}

	if captured.Reason != domain.ReasonStockAdded {
		t.Fatalf("expected STOCK_ADDED reason, got %s", captured.Reason)
	}
	if captured.ActorID != "staff_1" {
		t.Fatalf("expected actor id, got %q", captured.ActorID)
	}
	if len(captured.Adjustments) != 1 || captured.Adjustments[0].QuantityChange != 10 {
		t.Fatalf("unexpected adjustments %+v", captured.Adjustments)
	}
	if !strings.HasPrefix(captured.Adjustments[0].EntryID, "ile_") {
		t.Fatalf("ledger entry id must carry ile_ prefix, got %q", captured.Adjustments[0].EntryID)
	}
	if mutation.Products["prod_1"].Quantity != 15 {
		t.Fatalf("unexpected product state %+v", mutation.Products)
	}
}

func TestAddStockRejectsNonPositiveQuantity(t *testing.T) {
	svc := newTestInventoryService(t, &stubInventoryRepo{}, &stubProductRepo{})

	_, err := svc.AddStock(context.Background(), AddStockCommand{ProductID: "prod_1", Quantity: 0})
	if !errors.Is(err, ErrInventoryInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	_, err = svc.AddStock(context.Background(), AddStockCommand{ProductID: "prod_1", Quantity: -4})
	if !errors.Is(err, ErrInventoryInvalidInput) {
		t.Fatalf("expected invalid input for negative quantity, got %v", err)
	}
}

func TestDeductForOrderNegatesQuantities(t *testing.T) {
	var captured repositories.InventoryAdjustRequest
	repo := &stubInventoryRepo{
		adjustFn: func(ctx context.Context, req repositories.InventoryAdjustRequest) (repositories.InventoryAdjustResult, error) {
			captured = req
			return repositories.InventoryAdjustResult{}, nil
		},
	}
	svc := newTestInventoryService(t, repo, &stubProductRepo{})

	_, err := svc.DeductForOrder(context.Background(), OrderStockCommand{
		OrderID: "ord_1",
		Lines: []AvailabilityLine{
			{ProductID: "prod_a", Quantity: 2},
			{ProductID: "prod_b", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}

	if captured.Reason != domain.ReasonOrderPlaced || captured.OrderID != "ord_1" {
		t.Fatalf("unexpected request %+v", captured)
	}
	if captured.Adjustments[0].QuantityChange != -2 || captured.Adjustments[1].QuantityChange != -1 {
		t.Fatalf("deductions must be negative, got %+v", captured.Adjustments)
	}
	if captured.SkipMissing {
		t.Fatalf("deductions must fail on missing products, not skip them")
	}
}

func TestRestoreForOrderAddsQuantitiesBack(t *testing.T) {
	var captured repositories.InventoryAdjustRequest
	repo := &stubInventoryRepo{
		adjustFn: func(ctx context.Context, req repositories.InventoryAdjustRequest) (repositories.InventoryAdjustResult, error) {
			captured = req
			return repositories.InventoryAdjustResult{}, nil
		},
	}
	svc := newTestInventoryService(t, repo, &stubProductRepo{})

	_, err := svc.RestoreForOrder(context.Background(), OrderStockCommand{
		OrderID: "ord_1",
		Lines:   []AvailabilityLine{{ProductID: "prod_a", Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	if captured.Reason != domain.ReasonOrderCancelled {
		t.Fatalf("expected ORDER_CANCELLED reason, got %s", captured.Reason)
	}
	if captured.Adjustments[0].QuantityChange != 3 {
		t.Fatalf("restores must be positive, got %+v", captured.Adjustments)
	}
	if !captured.SkipMissing {
		t.Fatalf("restores must tolerate products deleted since the order was placed")
	}
}

func TestRestoreForOrderWarnsAndSkipsMissingProducts(t *testing.T) {
	repo := &stubInventoryRepo{
		adjustFn: func(ctx context.Context, req repositories.InventoryAdjustRequest) (repositories.InventoryAdjustResult, error) {
			if !req.SkipMissing {
				return repositories.InventoryAdjustResult{}, repositories.NewInventoryError(
					repositories.InventoryErrorProductNotFound, "product prod_gone not found", nil,
				).WithProducts("prod_gone")
			}
			return repositories.InventoryAdjustResult{
				Products:        map[string]domain.Product{"prod_brake": {ID: "prod_brake", Quantity: 12}},
				SkippedProducts: []string{"prod_gone"},
			}, nil
		},
	}

	var events []string
	var skipped []string
	svc, err := NewInventoryService(InventoryServiceDeps{
		Inventory:   repo,
		Products:    &stubProductRepo{},
		Clock:       func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) },
		IDGenerator: newSequenceIDs(),
		Logger: func(_ context.Context, event string, fields map[string]any) {
			events = append(events, event)
			if ids, ok := fields["productIds"].([]string); ok {
				skipped = append(skipped, ids...)
			}
		},
	})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}

	mutation, err := svc.RestoreForOrder(context.Background(), OrderStockCommand{
		OrderID: "ord_1",
		Lines: []AvailabilityLine{
			{ProductID: "prod_brake", Quantity: 2},
			{ProductID: "prod_gone", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("restore must not fail when a product has vanished: %v", err)
	}
	if mutation.Products["prod_brake"].Quantity != 12 {
		t.Fatalf("surviving lines must still be restored, got %+v", mutation.Products)
	}

	var warned bool
	for _, event := range events {
		if event == "inventory.missing_products_skipped" {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("skipped lines must be logged, got events %v", events)
	}
	if len(skipped) != 1 || skipped[0] != "prod_gone" {
		t.Fatalf("warning must name the vanished product, got %v", skipped)
	}
}

func TestDeductMergesDuplicateLines(t *testing.T) {
	var captured repositories.InventoryAdjustRequest
	repo := &stubInventoryRepo{
		adjustFn: func(ctx context.Context, req repositories.InventoryAdjustRequest) (repositories.InventoryAdjustResult, error) {
			captured = req
			return repositories.InventoryAdjustResult{}, nil
		},
	}
	svc := newTestInventoryService(t, repo, &stubProductRepo{})

	_, err := svc.DeductForOrder(context.Background(), OrderStockCommand{
		OrderID: "ord_1",
		Lines: []AvailabilityLine{
			{ProductID: "prod_a", Quantity: 2},
			{ProductID: "prod_a", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if len(captured.Adjustments) != 1 || captured.Adjustments[0].QuantityChange != -3 {
		t.Fatalf("duplicate lines must merge, got %+v", captured.Adjustments)
	}
}

func TestDeductMapsInsufficientStock(t *testing.T) {
	repo := &stubInventoryRepo{
		adjustFn: func(ctx context.Context, req repositories.InventoryAdjustRequest) (repositories.InventoryAdjustResult, error) {
			return repositories.InventoryAdjustResult{}, repositories.NewInventoryError(
				repositories.InventoryErrorInsufficientStock, "short", nil,
			).WithProducts("prod_a", "prod_b")
		},
	}
	svc := newTestInventoryService(t, repo, &stubProductRepo{})

	_, err := svc.DeductForOrder(context.Background(), OrderStockCommand{
		OrderID: "ord_1",
		Lines:   []AvailabilityLine{{ProductID: "prod_a", Quantity: 5}},
	})

	var short *InsufficientStockError
	if !errors.As(err, &short) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if len(short.ProductIDs) != 2 {
		t.Fatalf("expected both offending products, got %v", short.ProductIDs)
	}
}

func TestCheckAvailabilityReportsAllShortages(t *testing.T) {
	products := &stubProductRepo{products: map[string]domain.Product{
		"prod_a": {ID: "prod_a", Quantity: 1},
		"prod_b": {ID: "prod_b", Quantity: 10},
		"prod_c": {ID: "prod_c", Quantity: 0},
	}}
	svc := newTestInventoryService(t, &stubInventoryRepo{}, products)

	err := svc.CheckAvailability(context.Background(), []AvailabilityLine{
		{ProductID: "prod_a", Quantity: 2},
		{ProductID: "prod_b", Quantity: 5},
		{ProductID: "prod_c", Quantity: 1},
	})

	var short *InsufficientStockError
	if !errors.As(err, &short) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if len(short.ProductIDs) != 2 || short.ProductIDs[0] != "prod_a" || short.ProductIDs[1] != "prod_c" {
		t.Fatalf("expected prod_a and prod_c short, got %v", short.ProductIDs)
	}
}

func TestCheckAvailabilityUnknownProduct(t *testing.T) {
	svc := newTestInventoryService(t, &stubInventoryRepo{}, &stubProductRepo{products: map[string]domain.Product{}})

	err := svc.CheckAvailability(context.Background(), []AvailabilityLine{{ProductID: "prod_missing", Quantity: 1}})
	if !errors.Is(err, ErrInventoryProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
}

func TestHistoryPassesFilterThrough(t *testing.T) {
	var captured repositories.InventoryHistoryFilter
	repo := &stubInventoryRepo{
		historyFn: func(ctx context.Context, filter repositories.InventoryHistoryFilter) ([]domain.InventoryLogEntry, error) {
			captured = filter
			return []domain.InventoryLogEntry{{ID: "ile_1"}}, nil
		},
	}
	svc := newTestInventoryService(t, repo, &stubProductRepo{})

	entries, err := svc.History(context.Background(), InventoryHistoryFilter{
		ProductID: " prod_a ",
		Reason:    domain.ReasonOrderPlaced,
		Limit:     5,
	})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if captured.ProductID != "prod_a" || captured.Reason != domain.ReasonOrderPlaced || captured.Limit != 5 {
		t.Fatalf("unexpected filter %+v", captured)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}
