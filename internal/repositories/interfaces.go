package repositories

import (
	"context"
	"time"

	"github.com/gearbelt/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Inventory() InventoryRepository
	Orders() OrderRepository
	ShippingBrackets() ShippingBracketRepository
	Counters() CounterRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ProductRepository persists catalog entries. Quantity mutations go through
// InventoryRepository so every change leaves a ledger entry.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindByPartNumber(ctx context.Context, partNumber string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) ([]domain.Product, error)
}

// InventoryRepository applies quantity changes and the matching ledger entries
// atomically, and serves ledger queries.
type InventoryRepository interface {
	// Adjust applies every adjustment in the request inside a single
	// transaction. Either all products are updated and all ledger entries
	// written, or none are.
	Adjust(ctx context.Context, req InventoryAdjustRequest) (InventoryAdjustResult, error)
	History(ctx context.Context, filter InventoryHistoryFilter) ([]domain.InventoryLogEntry, error)
}

// InventoryAdjustment is one product-level quantity change within a request.
// EntryID is the pre-generated ledger entry identifier.
type InventoryAdjustment struct {
	EntryID        string
	ProductID      string
	QuantityChange int
}

// InventoryAdjustRequest groups adjustments sharing one actor, reason, and order.
type InventoryAdjustRequest struct {
	Adjustments []InventoryAdjustment
	ActorID     string
	Reason      domain.InventoryReason
	OrderID     string
	Now         time.Time

	// SkipMissing turns adjustments against deleted products into no-ops
	// instead of failing the batch. Restores set it so a product removed
	// from the catalog cannot block a cancellation.
	SkipMissing bool
}

// InventoryAdjustResult reports the updated products and the ledger entries written.
type InventoryAdjustResult struct {
	Products map[string]domain.Product
	Entries  []domain.InventoryLogEntry

	// SkippedProducts lists the product ids that no longer existed.
	// Populated only when the request set SkipMissing.
	SkippedProducts []string
}

// InventoryHistoryFilter narrows ledger queries. Zero values mean no filtering.
type InventoryHistoryFilter struct {
	ProductID string
	OrderID   string
	Reason    domain.InventoryReason
	Since     *time.Time
	Limit     int
}

// OrderRepository persists order aggregates and provides lookup by either identifier.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	// Delete removes a provisional order whose payment was declined.
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
}

// OrderListFilter narrows order listings. Zero values mean no filtering.
type OrderListFilter struct {
	Status        []domain.OrderStatus
	OrderedAfter  *time.Time
	OrderedBefore *time.Time
	// Search matches case-insensitively against customer name, email, and order number.
	Search         string
	MinAmountCents *int64
	MaxAmountCents *int64
	Limit          int
}

// ShippingBracketRepository persists weight-to-cost brackets.
type ShippingBracketRepository interface {
	Insert(ctx context.Context, bracket domain.ShippingBracket) error
	Update(ctx context.Context, bracket domain.ShippingBracket) error
	Delete(ctx context.Context, bracketID string) error
	FindByID(ctx context.Context, bracketID string) (domain.ShippingBracket, error)
	// List returns all brackets ordered by ascending MinWeight.
	List(ctx context.Context) ([]domain.ShippingBracket, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// ProductListFilter narrows catalog listings. Zero values mean no filtering.
type ProductListFilter struct {
	// Search matches case-insensitively against part number, name, and description.
	Search        string
	MinPriceCents *int64
	MaxPriceCents *int64
	MaxQuantity   *int
	InStockOnly   bool
	Limit         int
}
