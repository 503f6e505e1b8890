package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gearbelt/api/internal/domain"
)

type stubMailPublisher struct {
	messages []MailMessage
	err      error
}

func (s *stubMailPublisher) PublishMail(ctx context.Context, msg MailMessage) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.messages = append(s.messages, msg)
	return "msg_1", nil
}

func testOrder() Order {
	return Order{
		ID:            "ord_1",
		OrderNumber:   "AP-2026-000042",
		Status:        domain.OrderStatusOrdered,
		CustomerName:  "Dana Ferris",
		CustomerEmail: "dana@example.com",
		CardLast4:     "1111",
		Items: []OrderItem{
			{ProductID: "prod_1", ProductName: "Brake Pad Set", Quantity: 2, UnitPriceCents: 4999},
		},
		SubtotalCents:     9998,
		ShippingCostCents: 1299,
		TotalAmountCents:  11297,
	}
}

func newTestNotificationService(t *testing.T, publisher MailPublisher, logger func(context.Context, string, map[string]any)) NotificationService {
	t.Helper()
	svc, err := NewNotificationService(NotificationServiceDeps{
		Publisher: publisher,
		From:      "orders@gearbelt.example",
		Clock:     func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) },
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("new notification service: %v", err)
	}
	return svc
}

func TestOrderConfirmedPublishesMail(t *testing.T) {
	publisher := &stubMailPublisher{}
	svc := newTestNotificationService(t, publisher, nil)

	svc.OrderConfirmed(context.Background(), testOrder())

	if len(publisher.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(publisher.messages))
	}
	msg := publisher.messages[0]
	if msg.To != "dana@example.com" || msg.From != "orders@gearbelt.example" {
		t.Fatalf("unexpected addressing %+v", msg)
	}
	if msg.Kind != "order_confirmed" || msg.OrderID != "ord_1" {
		t.Fatalf("unexpected metadata %+v", msg)
	}
	if !strings.Contains(msg.Subject, "AP-2026-000042") {
		t.Fatalf("subject must carry the order number, got %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "Brake Pad Set") || !strings.Contains(msg.HTML, "$112.97") {
		t.Fatalf("body must list items and total, got %q", msg.HTML)
	}
}

func TestOrderCancelledMentionsRefund(t *testing.T) {
	publisher := &stubMailPublisher{}
	svc := newTestNotificationService(t, publisher, nil)

	svc.OrderCancelled(context.Background(), testOrder())

	if len(publisher.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(publisher.messages))
	}
	body := publisher.messages[0].HTML
	if !strings.Contains(body, "$112.97") || !strings.Contains(body, "1111") {
		t.Fatalf("cancellation must mention refund amount and card last four, got %q", body)
	}
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	var logged string
	publisher := &stubMailPublisher{err: errors.New("broker down")}
	svc := newTestNotificationService(t, publisher, func(ctx context.Context, event string, fields map[string]any) {
		logged = event
	})

	// Must not panic or surface the error.
	svc.OrderShipped(context.Background(), testOrder())

	if logged != "notification.publish_failed" {
		t.Fatalf("failure must be logged, got %q", logged)
	}
}

func TestMissingRecipientSkipsPublish(t *testing.T) {
	publisher := &stubMailPublisher{}
	svc := newTestNotificationService(t, publisher, nil)

	order := testOrder()
	order.CustomerEmail = "  "
	svc.OrderConfirmed(context.Background(), order)

	if len(publisher.messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(publisher.messages))
	}
}

func TestCustomerNameIsEscaped(t *testing.T) {
	publisher := &stubMailPublisher{}
	svc := newTestNotificationService(t, publisher, nil)

	order := testOrder()
	order.CustomerName = `<script>alert("x")</script>`
	svc.OrderConfirmed(context.Background(), order)

	if strings.Contains(publisher.messages[0].HTML, "<script>") {
		t.Fatalf("customer supplied text must be escaped")
	}
}
