package services

import (
	"context"
	"time"

	"github.com/gearbelt/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing
// dependency direction.
type (
	Product            = domain.Product
	InventoryLogEntry  = domain.InventoryLogEntry
	ShippingBracket    = domain.ShippingBracket
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	OrderKey           = domain.OrderKey
	SystemHealthReport = domain.SystemHealthReport
)

// CatalogService manages the product catalog. Quantity changes go through the
// InventoryService, never through product updates.
type CatalogService interface {
	CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	ListProducts(ctx context.Context, filter ProductListFilter) ([]Product, error)
	UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
}

// InventoryService owns every quantity mutation and the append-only ledger
// behind it.
type InventoryService interface {
	CheckAvailability(ctx context.Context, lines []AvailabilityLine) error
	AddStock(ctx context.Context, cmd AddStockCommand) (InventoryMutation, error)
	DeductForOrder(ctx context.Context, cmd OrderStockCommand) (InventoryMutation, error)
	RestoreForOrder(ctx context.Context, cmd OrderStockCommand) (InventoryMutation, error)
	History(ctx context.Context, filter InventoryHistoryFilter) ([]InventoryLogEntry, error)
}

// ShippingService prices shipments by total weight and manages the bracket
// table.
type ShippingService interface {
	CostForWeight(ctx context.Context, totalWeight float64) (int64, error)
	CreateBracket(ctx context.Context, cmd BracketCommand) (ShippingBracket, error)
	UpdateBracket(ctx context.Context, bracketID string, cmd BracketCommand) (ShippingBracket, error)
	DeleteBracket(ctx context.Context, bracketID string) error
	ListBrackets(ctx context.Context) ([]ShippingBracket, error)
}

// NotificationService sends customer-facing order emails. Failures are logged
// and never fail the triggering operation.
type NotificationService interface {
	OrderConfirmed(ctx context.Context, order Order)
	OrderShipped(ctx context.Context, order Order)
	OrderCancelled(ctx context.Context, order Order)
}

// OrderService orchestrates the fulfillment lifecycle from checkout to
// shipment or cancellation.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, key OrderKey) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) ([]Order, error)
	StartPacking(ctx context.Context, key OrderKey, actorID string) (Order, error)
	MarkShipped(ctx context.Context, key OrderKey, actorID string) (Order, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error)
}

// SystemService provides health reports for liveness and readiness endpoints.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// MailMessage is the payload handed to the mail publisher. Recipient addresses
// travel in the payload only, never in broker metadata.
type MailMessage struct {
	From     string    `json:"from"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	HTML     string    `json:"html"`
	OrderID  string    `json:"orderId,omitempty"`
	Kind     string    `json:"kind,omitempty"`
	QueuedAt time.Time `json:"queuedAt"`
}

// MailPublisher enqueues outbound mail for asynchronous delivery.
type MailPublisher interface {
	PublishMail(ctx context.Context, msg MailMessage) (string, error)
}

// CreateProductCommand carries the writable catalog fields.
type CreateProductCommand struct {
	PartNumber  string
	Name        string
	Description string
	PriceCents  int64
	Weight      float64
	// InitialQuantity seeds stock on creation together with a ledger entry.
	InitialQuantity int
	ImageURL        string
	ActorID         string
}

// UpdateProductCommand mutates catalog fields. Quantity is deliberately
// absent; stock moves through the inventory ledger.
type UpdateProductCommand struct {
	ProductID   string
	PartNumber  string
	Name        string
	Description string
	PriceCents  int64
	Weight      float64
	ImageURL    string
}

// ProductListFilter narrows catalog listings.
type ProductListFilter struct {
	Search        string
	MinPriceCents *int64
	MaxPriceCents *int64
	InStockOnly   bool
	Limit         int
}

// AvailabilityLine asks whether a quantity of one product is on hand.
type AvailabilityLine struct {
	ProductID string
	Quantity  int
}

// AddStockCommand records a receiving-desk replenishment.
type AddStockCommand struct {
	ProductID string
	Quantity  int
	ActorID   string
}

// OrderStockCommand deducts or restores the stock behind one order.
type OrderStockCommand struct {
	OrderID string
	Lines   []AvailabilityLine
	ActorID string
}

// InventoryMutation reports the products and ledger entries a successful
// adjustment produced.
type InventoryMutation struct {
	Products map[string]Product
	Entries  []InventoryLogEntry
}

// InventoryHistoryFilter narrows ledger queries.
type InventoryHistoryFilter struct {
	ProductID string
	OrderID   string
	Reason    domain.InventoryReason
	Since     time.Time
	Limit     int
}

// BracketCommand carries the writable fields of a shipping bracket.
type BracketCommand struct {
	MinWeight float64
	MaxWeight float64
	CostCents int64
}

// CreateOrderItem is one requested line of a new order.
type CreateOrderItem struct {
	ProductID string
	Quantity  int
}

// CreateOrderCommand is the checkout submission. Card data is used for a
// single authorization and never stored beyond the last four digits.
type CreateOrderCommand struct {
	CustomerName    string
	CustomerEmail   string
	ShippingAddress string
	ShippingCity    string
	ShippingState   string
	ShippingZip     string
	ShippingCountry string

	CardNumber     string
	CardholderName string
	// CardExpiry is the raw expiration string in MM/YYYY form.
	CardExpiry string

	Items []CreateOrderItem
}

// CancelOrderCommand cancels an order, restoring stock and refunding the
// authorization.
type CancelOrderCommand struct {
	Key     OrderKey
	Reason  string
	ActorID string
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	Status         []OrderStatus
	OrderedAfter   *time.Time
	OrderedBefore  *time.Time
	Search         string
	MinAmountCents *int64
	MaxAmountCents *int64
	Limit          int
}
