package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
)

const (
	mailKindOrderConfirmed = "order_confirmed"
	mailKindOrderShipped   = "order_shipped"
	mailKindOrderCancelled = "order_cancelled"
)

// NotificationServiceDeps bundles the collaborators required to construct a
// notification service.
type NotificationServiceDeps struct {
	Publisher MailPublisher
	// From is the sender address stamped on every outbound message.
	From   string
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type notificationService struct {
	publisher MailPublisher
	from      string
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

var _ NotificationService = (*notificationService)(nil)

// NewNotificationService wires dependencies into a concrete NotificationService.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Publisher == nil {
		return nil, errors.New("notification service: mail publisher is required")
	}
	from := strings.TrimSpace(deps.From)
	if from == "" {
		return nil, errors.New("notification service: sender address is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &notificationService{
		publisher: deps.Publisher,
		from:      from,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *notificationService) OrderConfirmed(ctx context.Context, order Order) {
	s.send(ctx, order, mailKindOrderConfirmed,
		fmt.Sprintf("Order %s confirmed", order.OrderNumber),
		confirmationBody(order))
}

func (s *notificationService) OrderShipped(ctx context.Context, order Order) {
	s.send(ctx, order, mailKindOrderShipped,
		fmt.Sprintf("Order %s has shipped", order.OrderNumber),
		shippedBody(order))
}

func (s *notificationService) OrderCancelled(ctx context.Context, order Order) {
	s.send(ctx, order, mailKindOrderCancelled,
		fmt.Sprintf("Order %s cancelled", order.OrderNumber),
		cancelledBody(order))
}

// send is best effort. A publish failure is logged and swallowed so mail
// trouble never fails the order operation that triggered it.
func (s *notificationService) send(ctx context.Context, order Order, kind, subject, body string) {
	to := strings.TrimSpace(order.CustomerEmail)
	if to == "" {
		s.logger(ctx, "notification.skipped_no_recipient", map[string]any{
			"orderId": order.ID,
			"kind":    kind,
		})
		return
	}

	id, err := s.publisher.PublishMail(ctx, MailMessage{
		From:     s.from,
		To:       to,
		Subject:  subject,
		HTML:     body,
		OrderID:  order.ID,
		Kind:     kind,
		QueuedAt: s.clock(),
	})
	if err != nil {
		s.logger(ctx, "notification.publish_failed", map[string]any{
			"orderId": order.ID,
			"kind":    kind,
			"error":   err.Error(),
		})
		return
	}

	s.logger(ctx, "notification.queued", map[string]any{
		"orderId":   order.ID,
		"kind":      kind,
		"messageId": id,
	})
}

func confirmationBody(order Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>Thanks for your order, %s!</h1>", html.EscapeString(order.CustomerName))
	fmt.Fprintf(&b, "<p>Your order <strong>%s</strong> has been received.</p>", html.EscapeString(order.OrderNumber))
	b.WriteString("<table><tr><th>Part</th><th>Qty</th><th>Price</th></tr>")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td><td>%s</td></tr>",
			html.EscapeString(item.ProductName), item.Quantity, dollars(item.LineTotalCents()))
	}
	b.WriteString("</table>")
	fmt.Fprintf(&b, "<p>Subtotal: %s<br>Shipping: %s<br><strong>Total: %s</strong></p>",
		dollars(order.SubtotalCents), dollars(order.ShippingCostCents), dollars(order.TotalAmountCents))
	return b.String()
}

func shippedBody(order Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>Your order %s is on its way</h1>", html.EscapeString(order.OrderNumber))
	fmt.Fprintf(&b, "<p>It is headed to %s, %s, %s %s.</p>",
		html.EscapeString(order.ShippingAddress),
		html.EscapeString(order.ShippingCity),
		html.EscapeString(order.ShippingState),
		html.EscapeString(order.ShippingZip))
	return b.String()
}

func cancelledBody(order Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>Order %s cancelled</h1>", html.EscapeString(order.OrderNumber))
	fmt.Fprintf(&b, "<p>A refund of %s has been issued to your card ending in %s.</p>",
		dollars(order.TotalAmountCents), html.EscapeString(order.CardLast4))
	return b.String()
}

func dollars(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
