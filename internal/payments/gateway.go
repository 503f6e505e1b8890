package payments

import (
	"context"
	"errors"
)

// ErrGatewayUnavailable is returned when the card processor cannot be reached
// or responds outside its protocol. It is distinct from a decline.
var ErrGatewayUnavailable = errors.New("payments: gateway unavailable")

// AuthorizeRequest carries the card details for a one-shot authorization.
// Card numbers are never persisted; callers keep only the last four digits.
type AuthorizeRequest struct {
	OrderID        string
	CardNumber     string
	CardholderName string
	// Expiry is the raw expiration string in MM/YYYY form.
	Expiry      string
	AmountCents int64
}

// AuthorizeResult reports the processor's decision.
type AuthorizeResult struct {
	Approved          bool
	AuthorizationCode string
	TransactionID     string
	// DeclineReason holds the processor's message when Approved is false.
	DeclineReason string
}

// RefundRequest asks for a previously authorized amount to be returned.
type RefundRequest struct {
	OrderID           string
	AuthorizationCode string
	TransactionID     string
	AmountCents       int64
}

// Gateway is the contract for card processor adapters.
type Gateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResult, error)
	Refund(ctx context.Context, req RefundRequest) error
}
