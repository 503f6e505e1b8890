package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gearbelt/api/internal/domain"
	"github.com/gearbelt/api/internal/payments"
	"github.com/gearbelt/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid arguments.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order does not exist.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidTransition indicates the requested status change is not allowed.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrPaymentUnavailable indicates the card processor could not be reached.
	ErrPaymentUnavailable = errors.New("order: payment processor unavailable")
)

// PaymentDeclinedError carries the processor's decline message. The order is
// not created when payment is declined.
type PaymentDeclinedError struct {
	Reason string
}

func (e *PaymentDeclinedError) Error() string {
	return "order: payment declined: " + e.Reason
}

// OrderServiceDeps bundles the collaborators required to construct an order
// service.
type OrderServiceDeps struct {
	Orders       repositories.OrderRepository
	Products     repositories.ProductRepository
	Counters     repositories.CounterRepository
	Inventory    InventoryService
	Shipping     ShippingService
	Notification NotificationService
	Gateway      payments.Gateway
	Clock        func() time.Time
	IDGenerator  func() string
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders       repositories.OrderRepository
	products     repositories.ProductRepository
	counters     repositories.CounterRepository
	inventory    InventoryService
	shipping     ShippingService
	notification NotificationService
	gateway      payments.Gateway
	clock        func() time.Time
	newID        func() string
	logger       func(context.Context, string, map[string]any)
}

var _ OrderService = (*orderService)(nil)

// NewOrderService wires dependencies into a concrete OrderService.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("order service: order repository is required")
	case deps.Products == nil:
		return nil, errors.New("order service: product repository is required")
	case deps.Counters == nil:
		return nil, errors.New("order service: counter repository is required")
	case deps.Inventory == nil:
		return nil, errors.New("order service: inventory service is required")
	case deps.Shipping == nil:
		return nil, errors.New("order service: shipping service is required")
	case deps.Notification == nil:
		return nil, errors.New("order service: notification service is required")
	case deps.Gateway == nil:
		return nil, errors.New("order service: payment gateway is required")
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

	return &orderService{
		orders:       deps.Orders,
		products:     deps.Products,
		counters:     deps.Counters,
		inventory:    deps.Inventory,
		shipping:     deps.Shipping,
		notification: deps.Notification,
		gateway:      deps.Gateway,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// CreateOrder runs the checkout flow: availability precheck, snapshot and
// price the items, authorize the card, then deduct stock. The conditional
// deduction inside the inventory transaction is the authoritative guard; the
// precheck only fails fast before touching the card.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	now := s.clock()
	if err := validateCreateOrder(cmd, now); err != nil {
		return Order{}, err
	}

	lines := make([]AvailabilityLine, len(cmd.Items))
	for i, item := range cmd.Items {
		lines[i] = AvailabilityLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	if err := s.inventory.CheckAvailability(ctx, lines); err != nil {
		return Order{}, err
	}

	items, subtotal, totalWeight, err := s.snapshotItems(ctx, cmd.Items)
	if err != nil {
		return Order{}, err
	}

	shippingCost, err := s.shipping.CostForWeight(ctx, totalWeight)
	if err != nil {
		return Order{}, err
	}

	orderNumber, err := s.nextOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}

	cardNumber := strings.ReplaceAll(strings.TrimSpace(cmd.CardNumber), " ", "")
	order := domain.Order{
		ID:          domain.OrderIDPrefix + s.newID(),
		OrderNumber: orderNumber,
		Status:      domain.OrderStatusOrdered,

		CustomerName:    strings.TrimSpace(cmd.CustomerName),
		CustomerEmail:   strings.TrimSpace(cmd.CustomerEmail),
		ShippingAddress: strings.TrimSpace(cmd.ShippingAddress),
		ShippingCity:    strings.TrimSpace(cmd.ShippingCity),
		ShippingState:   strings.TrimSpace(cmd.ShippingState),
		ShippingZip:     strings.TrimSpace(cmd.ShippingZip),
		ShippingCountry: strings.TrimSpace(cmd.ShippingCountry),

		CardLast4: cardNumber[len(cardNumber)-4:],

		SubtotalCents:     subtotal,
		ShippingCostCents: shippingCost,
		TotalWeight:       totalWeight,
		TotalAmountCents:  subtotal + shippingCost,

		Items:     items,
		OrderedAt: now,
	}

	// The order document exists before the charge so a crash between
	// authorization and the final update leaves an auditable record.
	if err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, err
	}

	auth, err := s.gateway.Authorize(ctx, payments.AuthorizeRequest{
		OrderID:        order.ID,
		CardNumber:     cardNumber,
		CardholderName: strings.TrimSpace(cmd.CardholderName),
		Expiry:         strings.TrimSpace(cmd.CardExpiry),
		AmountCents:    order.TotalAmountCents,
	})
	if err != nil {
		s.discardProvisional(ctx, order.ID)
		if errors.Is(err, payments.ErrGatewayUnavailable) {
			return Order{}, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
		}
		return Order{}, err
	}
	if !auth.Approved {
		s.discardProvisional(ctx, order.ID)
		return Order{}, &PaymentDeclinedError{Reason: auth.DeclineReason}
	}

	order.AuthorizationCode = auth.AuthorizationCode
	order.TransactionID = auth.TransactionID
	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, err
	}

	if _, err := s.inventory.DeductForOrder(ctx, OrderStockCommand{
		OrderID: order.ID,
		Lines:   lines,
	}); err != nil {
		// Stock ran out between the precheck and the deduction. Undo the
		// charge and the provisional order.
		s.refund(ctx, order)
		s.discardProvisional(ctx, order.ID)
		return Order{}, err
	}

	s.notification.OrderConfirmed(ctx, order)

	s.logger(ctx, "order.created", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"totalCents":  order.TotalAmountCents,
		"items":       len(order.Items),
	})

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, key OrderKey) (Order, error) {
	return s.resolve(ctx, key)
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) ([]Order, error) {
	return s.orders.List(ctx, repositories.OrderListFilter{
		Status:         filter.Status,
		OrderedAfter:   filter.OrderedAfter,
		OrderedBefore:  filter.OrderedBefore,
		Search:         strings.TrimSpace(filter.Search),
		MinAmountCents: filter.MinAmountCents,
		MaxAmountCents: filter.MaxAmountCents,
		Limit:          filter.Limit,
	})
}

// StartPacking moves an order from ORDERED to PACKING and stamps who picked
// it up. Any other status returns the order untouched, so a second worker
// scanning the same order, or a packing-list fetch after shipment or
// cancellation, stays harmless.
func (s *orderService) StartPacking(ctx context.Context, key OrderKey, actorID string) (Order, error) {
	order, err := s.resolve(ctx, key)
	if err != nil {
		return Order{}, err
	}

	if order.Status != domain.OrderStatusOrdered {
		return order, nil
	}

	now := s.clock()
	order.Status = domain.OrderStatusPacking
	order.PackingStartedAt = &now
	order.PackedBy = strings.TrimSpace(actorID)

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, err
	}

	s.logger(ctx, "order.packing_started", map[string]any{
		"orderId": order.ID,
		"actorId": actorID,
	})
	return order, nil
}

func (s *orderService) MarkShipped(ctx context.Context, key OrderKey, actorID string) (Order, error) {
	order, err := s.resolve(ctx, key)
	if err != nil {
		return Order{}, err
	}

	if !order.Status.CanTransition(domain.OrderStatusShipped) {
		return Order{}, transitionError(order.Status, domain.OrderStatusShipped)
	}

	now := s.clock()
	order.Status = domain.OrderStatusShipped
	order.ShippedAt = &now
	if order.PackedBy == "" {
		order.PackedBy = strings.TrimSpace(actorID)
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, err
	}

	s.notification.OrderShipped(ctx, order)

	s.logger(ctx, "order.shipped", map[string]any{
		"orderId": order.ID,
		"actorId": actorID,
	})
	return order, nil
}

// CancelOrder restores the deducted stock, refunds the authorization, and
// moves the order to CANCELLED. Terminal orders cannot be cancelled.
func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	order, err := s.resolve(ctx, cmd.Key)
	if err != nil {
		return Order{}, err
	}

	if !order.Status.CanTransition(domain.OrderStatusCancelled) {
		return Order{}, transitionError(order.Status, domain.OrderStatusCancelled)
	}

	lines := make([]AvailabilityLine, len(order.Items))
	for i, item := range order.Items {
		lines[i] = AvailabilityLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	if _, err := s.inventory.RestoreForOrder(ctx, OrderStockCommand{
		OrderID: order.ID,
		Lines:   lines,
		ActorID: strings.TrimSpace(cmd.ActorID),
	}); err != nil {
		return Order{}, err
	}

	s.refund(ctx, order)

	now := s.clock()
	order.Status = domain.OrderStatusCancelled
	order.CancelledAt = &now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, err
	}

	s.notification.OrderCancelled(ctx, order)

	s.logger(ctx, "order.cancelled", map[string]any{
		"orderId": order.ID,
		"actorId": cmd.ActorID,
		"reason":  cmd.Reason,
	})
	return order, nil
}

func (s *orderService) resolve(ctx context.Context, key OrderKey) (Order, error) {
	value := strings.TrimSpace(key.Value)
	if value == "" {
		return Order{}, fmt.Errorf("%w: order key is required", ErrOrderInvalidInput)
	}

	var (
		order domain.Order
		err   error
	)
	switch key.Kind {
	case domain.OrderKeyByNumber:
		order, err = s.orders.FindByNumber(ctx, value)
	default:
		order, err = s.orders.FindByID(ctx, value)
	}
	if err != nil {
		if isNotFound(err) {
			return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, value)
		}
		return Order{}, err
	}
	return order, nil
}

// snapshotItems loads each product and freezes name, price, and weight into
// the order lines.
func (s *orderService) snapshotItems(ctx context.Context, requested []CreateOrderItem) ([]domain.OrderItem, int64, float64, error) {
	items := make([]domain.OrderItem, 0, len(requested))
	var subtotal int64
	var totalWeight float64

	for _, req := range requested {
		product, err := s.products.FindByID(ctx, strings.TrimSpace(req.ProductID))
		if err != nil {
			if isNotFound(err) {
				return nil, 0, 0, fmt.Errorf("%w: unknown product %s", ErrOrderInvalidInput, req.ProductID)
			}
			return nil, 0, 0, err
		}

		item := domain.OrderItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       req.Quantity,
			UnitPriceCents: product.PriceCents,
			UnitWeight:     product.Weight,
		}
		items = append(items, item)
		subtotal += item.LineTotalCents()
		totalWeight += product.Weight * float64(req.Quantity)
	}

	return items, subtotal, totalWeight, nil
}

// nextOrderNumber allocates the next sequence for the order's calendar year
// and formats it as AP-<year>-<sequence>.
func (s *orderService) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	year := now.Year()
	seq, err := s.counters.Next(ctx, fmt.Sprintf("orders:%d", year), 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("AP-%04d-%06d", year, seq), nil
}

func (s *orderService) refund(ctx context.Context, order domain.Order) {
	if order.AuthorizationCode == "" {
		return
	}
	if err := s.gateway.Refund(ctx, payments.RefundRequest{
		OrderID:           order.ID,
		AuthorizationCode: order.AuthorizationCode,
		TransactionID:     order.TransactionID,
		AmountCents:       order.TotalAmountCents,
	}); err != nil {
		s.logger(ctx, "order.refund_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) discardProvisional(ctx context.Context, orderID string) {
	if err := s.orders.Delete(ctx, orderID); err != nil {
		s.logger(ctx, "order.discard_failed", map[string]any{
			"orderId": orderID,
			"error":   err.Error(),
		})
	}
}

func transitionError(from, to domain.OrderStatus) error {
	return fmt.Errorf("%w: %s to %s", ErrOrderInvalidTransition, from, to)
}

func validateCreateOrder(cmd CreateOrderCommand, now time.Time) error {
	required := []struct {
		value string
		label string
	}{
		{cmd.CustomerName, "customer name"},
		{cmd.CustomerEmail, "customer email"},
		{cmd.ShippingAddress, "shipping address"},
		{cmd.ShippingCity, "shipping city"},
		{cmd.ShippingState, "shipping state"},
		{cmd.ShippingZip, "shipping zip"},
		{cmd.CardholderName, "cardholder name"},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrOrderInvalidInput, field.label)
		}
	}
	if !strings.Contains(cmd.CustomerEmail, "@") {
		return fmt.Errorf("%w: customer email is malformed", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	for _, item := range cmd.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: item product id is required", ErrOrderInvalidInput)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item quantity must be positive", ErrOrderInvalidInput)
		}
	}

	cardNumber := strings.ReplaceAll(strings.TrimSpace(cmd.CardNumber), " ", "")
	if len(cardNumber) < 12 || len(cardNumber) > 19 {
		return fmt.Errorf("%w: card number length is invalid", ErrOrderInvalidInput)
	}
	for _, r := range cardNumber {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: card number must be numeric", ErrOrderInvalidInput)
		}
	}
	if err := validateExpiry(cmd.CardExpiry, now); err != nil {
		return err
	}
	return nil
}

// validateExpiry accepts MM/YYYY and rejects cards already expired relative
// to the supplied time. The month's last day counts as valid.
func validateExpiry(raw string, now time.Time) error {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(parts) != 2 {
		return fmt.Errorf("%w: card expiry must be MM/YYYY", ErrOrderInvalidInput)
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return fmt.Errorf("%w: card expiry month is invalid", ErrOrderInvalidInput)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || year < 2000 || year > 2999 {
		return fmt.Errorf("%w: card expiry year is invalid", ErrOrderInvalidInput)
	}
	endOfMonth := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.UTC().Before(endOfMonth) {
		return fmt.Errorf("%w: card is expired", ErrOrderInvalidInput)
	}
	return nil
}
