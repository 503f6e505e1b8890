package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/gearbelt/api/internal/domain"
	pfirestore "github.com/gearbelt/api/internal/platform/firestore"
	"github.com/gearbelt/api/internal/repositories"
)

const ordersCollection = "orders"

type orderItemDocument struct {
	ProductID      string  `firestore:"productId"`
	ProductName    string  `firestore:"productName"`
	Quantity       int     `firestore:"quantity"`
	UnitPriceCents int64   `firestore:"unitPriceCents"`
	UnitWeight     float64 `firestore:"unitWeight"`
}

type orderDocument struct {
	OrderNumber string `firestore:"orderNumber"`
	Status      string `firestore:"status"`

	CustomerName    string `firestore:"customerName"`
	CustomerEmail   string `firestore:"customerEmail"`
	ShippingAddress string `firestore:"shippingAddress"`
	ShippingCity    string `firestore:"shippingCity"`
	ShippingState   string `firestore:"shippingState"`
	ShippingZip     string `firestore:"shippingZip"`
	ShippingCountry string `firestore:"shippingCountry,omitempty"`

	CardLast4         string `firestore:"cardLast4"`
	AuthorizationCode string `firestore:"authorizationCode,omitempty"`
	TransactionID     string `firestore:"transactionId,omitempty"`

	SubtotalCents     int64   `firestore:"subtotalCents"`
	ShippingCostCents int64   `firestore:"shippingCostCents"`
	TotalWeight       float64 `firestore:"totalWeight"`
	TotalAmountCents  int64   `firestore:"totalAmountCents"`

	Items []orderItemDocument `firestore:"items"`

	OrderedAt        time.Time  `firestore:"orderedAt"`
	PackingStartedAt *time.Time `firestore:"packingStartedAt,omitempty"`
	PackedBy         string     `firestore:"packedBy,omitempty"`
	ShippedAt        *time.Time `firestore:"shippedAt,omitempty"`
	CancelledAt      *time.Time `firestore:"cancelledAt,omitempty"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			UnitWeight:     item.UnitWeight,
		})
	}
	return orderDocument{
		OrderNumber:       order.OrderNumber,
		Status:            string(order.Status),
		CustomerName:      order.CustomerName,
		CustomerEmail:     order.CustomerEmail,
		ShippingAddress:   order.ShippingAddress,
		ShippingCity:      order.ShippingCity,
		ShippingState:     order.ShippingState,
		ShippingZip:       order.ShippingZip,
		ShippingCountry:   order.ShippingCountry,
		CardLast4:         order.CardLast4,
		AuthorizationCode: order.AuthorizationCode,
		TransactionID:     order.TransactionID,
		SubtotalCents:     order.SubtotalCents,
		ShippingCostCents: order.ShippingCostCents,
		TotalWeight:       order.TotalWeight,
		TotalAmountCents:  order.TotalAmountCents,
		Items:             items,
		OrderedAt:         order.OrderedAt.UTC(),
		PackingStartedAt:  normalizeTimePtr(order.PackingStartedAt),
		PackedBy:          order.PackedBy,
		ShippedAt:         normalizeTimePtr(order.ShippedAt),
		CancelledAt:       normalizeTimePtr(order.CancelledAt),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			UnitWeight:     item.UnitWeight,
		})
	}
	return domain.Order{
		ID:                id,
		OrderNumber:       d.OrderNumber,
		Status:            domain.OrderStatus(d.Status),
		CustomerName:      d.CustomerName,
		CustomerEmail:     d.CustomerEmail,
		ShippingAddress:   d.ShippingAddress,
		ShippingCity:      d.ShippingCity,
		ShippingState:     d.ShippingState,
		ShippingZip:       d.ShippingZip,
		ShippingCountry:   d.ShippingCountry,
		CardLast4:         d.CardLast4,
		AuthorizationCode: d.AuthorizationCode,
		TransactionID:     d.TransactionID,
		SubtotalCents:     d.SubtotalCents,
		ShippingCostCents: d.ShippingCostCents,
		TotalWeight:       d.TotalWeight,
		TotalAmountCents:  d.TotalAmountCents,
		Items:             items,
		OrderedAt:         d.OrderedAt,
		PackingStartedAt:  d.PackingStartedAt,
		PackedBy:          d.PackedBy,
		ShippedAt:         d.ShippedAt,
		CancelledAt:       d.CancelledAt,
	}
}

func normalizeTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{provider: provider, orders: base}, nil
}

// Insert creates the order document, failing on duplicate IDs.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order insert: id is required")
	}
	_, err := r.orders.Create(ctx, order.ID, newOrderDocument(order))
	return err
}

// Update overwrites the order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order update: id is required")
	}
	_, err := r.orders.Set(ctx, order.ID, newOrderDocument(order))
	return err
}

// Delete removes the order document. Used only for provisional orders whose
// payment authorization was declined.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if r == nil || r.orders == nil {
		return errors.New("order repository not initialised")
	}
	return r.orders.Delete(ctx, orderID)
}

// FindByID fetches an order by internal identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByNumber fetches an order by the customer-facing order number.
func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	trimmed := strings.TrimSpace(orderNumber)
	if trimmed == "" {
		return domain.Order{}, errors.New("order lookup: order number is required")
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderNumber", "==", trimmed).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.find_by_number", errNotFound("order "+trimmed))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// List returns orders matching the filter, newest first. Status and date
// filtering runs server-side; substring search and amount bounds are applied
// in memory.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if r == nil || r.orders == nil {
		return nil, errors.New("order repository not initialised")
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		if len(filter.Status) == 1 {
			q = q.Where("status", "==", string(filter.Status[0]))
		} else if len(filter.Status) > 1 {
			statuses := make([]string, 0, len(filter.Status))
			for _, s := range filter.Status {
				statuses = append(statuses, string(s))
			}
			q = q.Where("status", "in", statuses)
		}
		if filter.OrderedAfter != nil {
			q = q.Where("orderedAt", ">=", filter.OrderedAfter.UTC())
		}
		if filter.OrderedBefore != nil {
			q = q.Where("orderedAt", "<=", filter.OrderedBefore.UTC())
		}
		return q
	})
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order := doc.Data.toDomain(doc.ID)
		if filter.MinAmountCents != nil && order.TotalAmountCents < *filter.MinAmountCents {
			continue
		}
		if filter.MaxAmountCents != nil && order.TotalAmountCents > *filter.MaxAmountCents {
			continue
		}
		if search != "" && !orderMatches(order, search) {
			continue
		}
		orders = append(orders, order)
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].OrderedAt.After(orders[j].OrderedAt)
	})

	if filter.Limit > 0 && len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}
	return orders, nil
}

func orderMatches(order domain.Order, search string) bool {
	return strings.Contains(strings.ToLower(order.CustomerName), search) ||
		strings.Contains(strings.ToLower(order.CustomerEmail), search) ||
		strings.Contains(strings.ToLower(order.OrderNumber), search)
}
