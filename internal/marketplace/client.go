package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when the marketplace API cannot be reached.
var ErrUnavailable = errors.New("marketplace API unavailable")

// ExternalOrderItem is one line of a marketplace order.
type ExternalOrderItem struct {
	ExternalID string          `json:"external_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// ExternalOrder is an order placed on a third-party delivery marketplace.
// The marketplace owns fulfillment; these orders are never auto-completed.
type ExternalOrder struct {
	ExternalID   string              `json:"external_id"`
	StoreID      string              `json:"store_id"`
	CustomerName string              `json:"customer_name"`
	Subtotal     decimal.Decimal     `json:"subtotal"`
	TaxGST       decimal.Decimal     `json:"tax_gst"`
	TaxQST       decimal.Decimal     `json:"tax_qst"`
	Total        decimal.Decimal     `json:"total"`
	PlacedAt     time.Time           `json:"placed_at"`
	Items        []ExternalOrderItem `json:"items"`
}

// Client pulls new orders placed on a delivery marketplace.
type Client interface {
	FetchOrders(ctx context.Context, storeID string, since time.Time) ([]ExternalOrder, error)
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient builds the production marketplace client.
func NewHTTPClient(baseURL, apiKey string) Client {
	return &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *httpClient) FetchOrders(ctx context.Context, storeID string, since time.Time) ([]ExternalOrder, error) {
	endpoint := fmt.Sprintf("%s/stores/%s/orders?since=%s",
		c.baseURL, url.PathEscape(storeID), url.QueryEscape(since.Format(time.RFC3339)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building marketplace request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(payload))
	}

	var result struct {
		Orders []ExternalOrder `json:"orders"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding orders: %v", ErrUnavailable, err)
	}
	return result.Orders, nil
}
