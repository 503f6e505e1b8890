package domain

import (
	"slices"
	"time"
)

// OrderStatus enumerates the lifecycle states of an order. The values are a
// persisted contract surface and must not be renamed.
type OrderStatus string

const (
	// OrderStatusOrdered is the initial status assigned when an order is created.
	OrderStatusOrdered OrderStatus = "ORDERED"
	// OrderStatusPacking indicates a warehouse worker has started packing the order.
	OrderStatusPacking OrderStatus = "PACKING"
	// OrderStatusShipped is terminal; the order left the warehouse.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusCancelled is terminal; inventory was restored and a refund issued.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusOrdered: {OrderStatusPacking, OrderStatusShipped, OrderStatusCancelled},
	OrderStatusPacking: {OrderStatusShipped, OrderStatusCancelled},
}

// CanTransition reports whether an order may move from its current status to target.
// SHIPPED and CANCELLED are terminal.
func (s OrderStatus) CanTransition(target OrderStatus) bool {
	if s == target {
		return false
	}
	next, ok := orderStatusTransitions[s]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

// Terminal reports whether no further transitions are possible from the status.
func (s OrderStatus) Terminal() bool {
	_, ok := orderStatusTransitions[s]
	return !ok
}

// Valid reports whether the status is one of the known enum values.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusOrdered, OrderStatusPacking, OrderStatusShipped, OrderStatusCancelled:
		return true
	}
	return false
}

// InventoryReason classifies ledger entries. The values are a persisted
// contract surface and must not be renamed.
type InventoryReason string

const (
	// ReasonStockAdded records receiving-desk replenishment.
	ReasonStockAdded InventoryReason = "STOCK_ADDED"
	// ReasonOrderPlaced records a deduction made when an order is placed.
	ReasonOrderPlaced InventoryReason = "ORDER_PLACED"
	// ReasonOrderCancelled records a restoration made when an order is cancelled.
	ReasonOrderCancelled InventoryReason = "ORDER_CANCELLED"
)

// Product is a catalog entry. Quantity is mutated only through the inventory
// ledger and never drops below zero.
type Product struct {
	ID          string
	PartNumber  string
	Name        string
	Description string
	// PriceCents is the unit price in minor currency units.
	PriceCents int64
	// Weight is the unit weight in pounds.
	Weight    float64
	Quantity  int
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InventoryLogEntry is an immutable audit record of a single quantity change.
// Entries are append-only; QuantityAfter is the on-hand quantity immediately
// after the change was applied.
type InventoryLogEntry struct {
	ID        string
	ProductID string
	// ActorID identifies the staff member that caused the change; empty for
	// customer-initiated deductions.
	ActorID        string
	QuantityChange int
	QuantityAfter  int
	Reason         InventoryReason
	OrderID        string
	CreatedAt      time.Time
}

// ShippingBracket maps a weight range to a flat shipping cost. Brackets are
// expected to partition the weight axis; the calculator falls back to a
// default cost when they do not.
type ShippingBracket struct {
	ID        string
	MinWeight float64
	MaxWeight float64
	CostCents int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contains reports whether the bracket covers the given total weight.
func (b ShippingBracket) Contains(weight float64) bool {
	return b.MinWeight <= weight && weight <= b.MaxWeight
}

// OrderItem is a line of an order. Name, price, and weight are snapshots taken
// when the order was created so the order stays consistent with what the
// customer was charged even after later catalog edits.
type OrderItem struct {
	ProductID      string
	ProductName    string
	Quantity       int
	UnitPriceCents int64
	UnitWeight     float64
}

// LineTotalCents returns the snapshot price multiplied by quantity.
func (i OrderItem) LineTotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

// Order is the fulfillment aggregate. Financial totals are frozen at creation
// and always recomputable from the item snapshots.
type Order struct {
	ID string
	// OrderNumber is the externally visible, stable identifier used in
	// customer communication (AP-<year>-<sequence>).
	OrderNumber string
	Status      OrderStatus

	CustomerName    string
	CustomerEmail   string
	ShippingAddress string
	ShippingCity    string
	ShippingState   string
	ShippingZip     string
	ShippingCountry string

	// CardLast4 is the only fragment of the card number ever persisted.
	CardLast4         string
	AuthorizationCode string
	TransactionID     string

	SubtotalCents     int64
	ShippingCostCents int64
	TotalWeight       float64
	TotalAmountCents  int64

	Items []OrderItem

	OrderedAt        time.Time
	PackingStartedAt *time.Time
	PackedBy         string
	ShippedAt        *time.Time
	CancelledAt      *time.Time
}

// SubtotalFromItems recomputes the subtotal from line snapshots. It must equal
// SubtotalCents for every persisted order.
func (o Order) SubtotalFromItems() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.LineTotalCents()
	}
	return total
}
