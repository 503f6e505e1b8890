package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gearbelt/api/internal/platform/config"
)

const maxResponseBytes = 4 << 10

// LegacyGateway adapts the university card processing endpoint. The protocol
// is a single JSON POST answered with a plain text body: an authorization
// code on approval, or a message starting with "Error" on decline.
type LegacyGateway struct {
	endpoint string
	vendor   string
	client   *http.Client
	logger   *zap.Logger
	now      func() time.Time
}

// LegacyGatewayOption customises gateway construction.
type LegacyGatewayOption func(*LegacyGateway)

// WithHTTPClient overrides the HTTP client, primarily for tests.
func WithHTTPClient(client *http.Client) LegacyGatewayOption {
	return func(g *LegacyGateway) {
		if client != nil {
			g.client = client
		}
	}
}

// WithLogger sets the logger used for refund audit lines.
func WithLogger(logger *zap.Logger) LegacyGatewayOption {
	return func(g *LegacyGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithClock injects a time source, primarily for tests.
func WithClock(now func() time.Time) LegacyGatewayOption {
	return func(g *LegacyGateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewLegacyGateway constructs a gateway against the configured endpoint.
func NewLegacyGateway(cfg config.PaymentConfig, opts ...LegacyGatewayOption) (*LegacyGateway, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("payments: endpoint is required")
	}
	vendor := strings.TrimSpace(cfg.Vendor)
	if vendor == "" {
		return nil, errors.New("payments: vendor id is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	g := &LegacyGateway{
		endpoint: endpoint,
		vendor:   vendor,
		client:   &http.Client{Timeout: timeout},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

type authorizePayload struct {
	Vendor string `json:"vendor"`
	Trans  string `json:"trans"`
	CC     string `json:"cc"`
	Name   string `json:"name"`
	Exp    string `json:"exp"`
	Amount string `json:"amount"`
}

// Authorize submits the charge. A decline is a successful call with
// Approved=false; transport and protocol failures return ErrGatewayUnavailable.
func (g *LegacyGateway) Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResult, error) {
	if g == nil || g.client == nil {
		return AuthorizeResult{}, ErrGatewayUnavailable
	}
	if strings.TrimSpace(req.CardNumber) == "" {
		return AuthorizeResult{}, errors.New("payments: card number is required")
	}
	if req.AmountCents <= 0 {
		return AuthorizeResult{}, fmt.Errorf("payments: amount must be positive, got %d", req.AmountCents)
	}

	transactionID := fmt.Sprintf("%s-%d", req.OrderID, g.now().UnixMilli())
	payload := authorizePayload{
		Vendor: g.vendor,
		Trans:  transactionID,
		CC:     strings.ReplaceAll(req.CardNumber, " ", ""),
		Name:   strings.TrimSpace(req.CardholderName),
		Exp:    strings.TrimSpace(req.Expiry),
		Amount: formatAmount(req.AmountCents),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return AuthorizeResult{}, fmt.Errorf("payments: encode authorization: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return AuthorizeResult{}, fmt.Errorf("payments: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return AuthorizeResult{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return AuthorizeResult{}, fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return AuthorizeResult{}, fmt.Errorf("%w: unexpected status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	reply := strings.TrimSpace(string(raw))
	if reply == "" {
		return AuthorizeResult{}, fmt.Errorf("%w: empty response", ErrGatewayUnavailable)
	}

	// The processor signals declines with a body beginning "Error".
	if strings.HasPrefix(reply, "Error") {
		return AuthorizeResult{
			Approved:      false,
			TransactionID: transactionID,
			DeclineReason: reply,
		}, nil
	}

	return AuthorizeResult{
		Approved:          true,
		AuthorizationCode: reply,
		TransactionID:     transactionID,
	}, nil
}

// Refund records the refund intent. The legacy processor exposes no refund
// API, so settlement happens out of band against the recorded authorization.
func (g *LegacyGateway) Refund(ctx context.Context, req RefundRequest) error {
	if g == nil {
		return ErrGatewayUnavailable
	}
	g.logger.Info("refund recorded for manual settlement",
		zap.String("order_id", req.OrderID),
		zap.String("authorization_code", req.AuthorizationCode),
		zap.String("transaction_id", req.TransactionID),
		zap.Int64("amount_cents", req.AmountCents),
	)
	return nil
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
