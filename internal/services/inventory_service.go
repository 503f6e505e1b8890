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

const ledgerEntryIDPrefix = "ile_"

var (
	// ErrInventoryInvalidInput signals the caller provided invalid arguments.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryProductNotFound indicates a referenced product does not exist.
	ErrInventoryProductNotFound = errors.New("inventory: product not found")
)

// InsufficientStockError reports every product of a batch whose on-hand
// quantity would have gone negative. The whole batch is rejected.
type InsufficientStockError struct {
	ProductIDs []string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %s", strings.Join(e.ProductIDs, ", "))
}

// InventoryServiceDeps bundles the collaborators required to construct an
// inventory service.
type InventoryServiceDeps struct {
	Inventory   repositories.InventoryRepository
	Products    repositories.ProductRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	repo     repositories.InventoryRepository
	products repositories.ProductRepository
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

var _ InventoryService = (*inventoryService)(nil)

// NewInventoryService wires dependencies into a concrete InventoryService.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service: inventory repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("inventory service: product repository is required")
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

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		repo:     deps.Inventory,
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// CheckAvailability is a read-only precheck. A nil return is advisory only;
// the deduction transaction is the authoritative guard.
func (s *inventoryService) CheckAvailability(ctx context.Context, lines []AvailabilityLine) error {
	normalized, err := normalizeLines(lines)
	if err != nil {
		return err
	}

	var short []string
	for _, line := range normalized {
		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: %s", ErrInventoryProductNotFound, line.ProductID)
			}
			return err
		}
		if product.Quantity < line.Quantity {
			short = append(short, line.ProductID)
		}
	}

	if len(short) > 0 {
		return &InsufficientStockError{ProductIDs: short}
	}
	return nil
}

func (s *inventoryService) AddStock(ctx context.Context, cmd AddStockCommand) (InventoryMutation, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return InventoryMutation{}, fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return InventoryMutation{}, fmt.Errorf("%w: quantity must be positive", ErrInventoryInvalidInput)
	}

	result, err := s.repo.Adjust(ctx, repositories.InventoryAdjustRequest{
		Adjustments: []repositories.InventoryAdjustment{
			{EntryID: s.entryID(), ProductID: productID, QuantityChange: cmd.Quantity},
		},
		ActorID: strings.TrimSpace(cmd.ActorID),
		Reason:  domain.ReasonStockAdded,
		Now:     s.clock(),
	})
	if err != nil {
		return InventoryMutation{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "inventory.stock_added", map[string]any{
		"productId": productID,
		"quantity":  cmd.Quantity,
		"actorId":   cmd.ActorID,
	})

	return InventoryMutation{Products: result.Products, Entries: result.Entries}, nil
}

func (s *inventoryService) DeductForOrder(ctx context.Context, cmd OrderStockCommand) (InventoryMutation, error) {
	return s.adjustForOrder(ctx, cmd, domain.ReasonOrderPlaced, -1, false)
}

// RestoreForOrder puts the order's quantities back. Lines whose product has
// since been deleted from the catalog are skipped with a warning; a vanished
// product must not block a cancellation.
func (s *inventoryService) RestoreForOrder(ctx context.Context, cmd OrderStockCommand) (InventoryMutation, error) {
	return s.adjustForOrder(ctx, cmd, domain.ReasonOrderCancelled, 1, true)
}

func (s *inventoryService) adjustForOrder(ctx context.Context, cmd OrderStockCommand, reason domain.InventoryReason, sign int, skipMissing bool) (InventoryMutation, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return InventoryMutation{}, fmt.Errorf("%w: order id is required", ErrInventoryInvalidInput)
	}

	lines, err := normalizeLines(cmd.Lines)
	if err != nil {
		return InventoryMutation{}, err
	}

	adjustments := make([]repositories.InventoryAdjustment, len(lines))
	for i, line := range lines {
		adjustments[i] = repositories.InventoryAdjustment{
			EntryID:        s.entryID(),
			ProductID:      line.ProductID,
			QuantityChange: sign * line.Quantity,
		}
	}

	result, err := s.repo.Adjust(ctx, repositories.InventoryAdjustRequest{
		Adjustments: adjustments,
		ActorID:     strings.TrimSpace(cmd.ActorID),
		Reason:      reason,
		OrderID:     orderID,
		Now:         s.clock(),
		SkipMissing: skipMissing,
	})
	if err != nil {
		return InventoryMutation{}, s.mapRepositoryError(err)
	}

	if len(result.SkippedProducts) > 0 {
		s.logger(ctx, "inventory.missing_products_skipped", map[string]any{
			"orderId":    orderID,
			"reason":     string(reason),
			"productIds": result.SkippedProducts,
		})
	}

	s.logger(ctx, "inventory.order_adjusted", map[string]any{
		"orderId": orderID,
		"reason":  string(reason),
		"lines":   len(adjustments),
	})

	return InventoryMutation{Products: result.Products, Entries: result.Entries}, nil
}

func (s *inventoryService) History(ctx context.Context, filter InventoryHistoryFilter) ([]InventoryLogEntry, error) {
	var since *time.Time
	if !filter.Since.IsZero() {
		since = &filter.Since
	}
	entries, err := s.repo.History(ctx, repositories.InventoryHistoryFilter{
		ProductID: strings.TrimSpace(filter.ProductID),
		OrderID:   strings.TrimSpace(filter.OrderID),
		Reason:    filter.Reason,
		Since:     since,
		Limit:     filter.Limit,
	})
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return entries, nil
}

func (s *inventoryService) entryID() string {
	return ledgerEntryIDPrefix + s.newID()
}

func (s *inventoryService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock:
			return &InsufficientStockError{ProductIDs: invErr.ProductIDs}
		case repositories.InventoryErrorProductNotFound:
			return fmt.Errorf("%w: %s", ErrInventoryProductNotFound, invErr.Message)
		case repositories.InventoryErrorInvalidAdjustment:
			return fmt.Errorf("%w: %s", ErrInventoryInvalidInput, invErr.Message)
		}
	}

	return err
}

// normalizeLines trims, validates, and merges duplicate product lines while
// preserving first-seen order.
func normalizeLines(lines []AvailabilityLine) ([]AvailabilityLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", ErrInventoryInvalidInput)
	}

	index := make(map[string]int, len(lines))
	merged := make([]AvailabilityLine, 0, len(lines))
	for _, line := range lines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("%w: line product id is required", ErrInventoryInvalidInput)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be positive", ErrInventoryInvalidInput, productID)
		}
		if pos, ok := index[productID]; ok {
			merged[pos].Quantity += line.Quantity
			continue
		}
		index[productID] = len(merged)
		merged = append(merged, AvailabilityLine{ProductID: productID, Quantity: line.Quantity})
	}
	return merged, nil
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}
