package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Refund reasons accepted by the payment processor. Anything outside this set
// is rejected by the processor, so it is validated before submission.
const (
	ReasonRequestedByCustomer = "requested_by_customer"
	ReasonDuplicate           = "duplicate"
	ReasonFraudulent          = "fraudulent"
	ReasonOrderChange         = "order_change"
)

// IsValidReason reports whether reason is one the processor accepts.
func IsValidReason(reason string) bool {
	switch reason {
	case ReasonRequestedByCustomer, ReasonDuplicate, ReasonFraudulent, ReasonOrderChange:
		return true
	default:
		return false
	}
}

// ErrUpstream is returned when the processor is unreachable or rejects the
// request.
var ErrUpstream = errors.New("payment processor request failed")

// RefundItem is one itemized line of a refund submission.
type RefundItem struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

// RefundRequest is a refund submission. The idempotency key guarantees
// at-most-once processing even if the same request is retried or raced.
type RefundRequest struct {
	OrderNumber    string          `json:"order_number"`
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason"`
	IdempotencyKey string          `json:"-"`
	Items          []RefundItem    `json:"items,omitempty"`
}

// RefundResult carries the processor-side refund identifier.
type RefundResult struct {
	RefundID string `json:"refund_id"`
}

// RefundClient submits refunds to the external payment processor. Once a
// refund is submitted it cannot be aborted from this system.
type RefundClient interface {
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

type httpRefundClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPRefundClient builds the production refund client.
func NewHTTPRefundClient(baseURL, apiKey string) RefundClient {
	return &httpRefundClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *httpRefundClient) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if !IsValidReason(req.Reason) {
		return nil, fmt.Errorf("invalid refund reason: %s", req.Reason)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshalling refund request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/refunds", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building refund request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, string(payload))
	}

	var result RefundResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding refund response: %v", ErrUpstream, err)
	}
	return &result, nil
}
