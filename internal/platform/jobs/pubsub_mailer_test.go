package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/gearbelt/api/internal/services"
)

func TestPubSubMailPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "order-mail")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubMailPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubMailPublisher: %v", err)
	}

	msg := services.MailMessage{
		From:     "orders@gearbelt.example.com",
		To:       "customer@example.com",
		Subject:  "Order Confirmation",
		HTML:     "<p>Thank you for your order.</p>",
		OrderID:  "ord_01ABCDEF",
		Kind:     "order-confirmed",
		QueuedAt: time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC),
	}

	if _, err := publisher.PublishMail(ctx, msg); err != nil {
		t.Fatalf("PublishMail: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.MailMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.To != msg.To || payload.Subject != msg.Subject {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["orderId"]; attr != "ord_01ABCDEF" {
		t.Fatalf("expected orderId attribute, got %q", attr)
	}
	if _, ok := messages[0].Attributes["to"]; ok {
		t.Fatalf("recipient address should not be an attribute")
	}
}
