package websrm

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// ErrSubmission is returned when the fiscal endpoint is unreachable or
// rejects the transaction. Callers must not retry automatically: a double
// submission to the government endpoint is a correctness hazard.
var ErrSubmission = errors.New("fiscal submission failed")

// ClosingTransaction is the signed end-of-day summary submitted to WEB-SRM.
type ClosingTransaction struct {
	BranchID     int64           `json:"branch_id"`
	GSTNumber    string          `json:"gst_number"`
	QSTNumber    string          `json:"qst_number"`
	ClosingDate  string          `json:"closing_date"`
	GrossSales   decimal.Decimal `json:"gross_sales"`
	TotalRefunds decimal.Decimal `json:"total_refunds"`
	TaxGST       decimal.Decimal `json:"tax_gst"`
	TaxQST       decimal.Decimal `json:"tax_qst"`
	NetSales     decimal.Decimal `json:"net_sales"`
	OrderCount   int             `json:"order_count"`
	Signature    string          `json:"signature"`
}

// Client submits daily closing transactions to the fiscal reporting service.
type Client interface {
	SubmitClosing(ctx context.Context, tx ClosingTransaction) (transactionID string, err error)
}

type httpClient struct {
	baseURL    string
	signingKey []byte
	http       *http.Client
}

// NewHTTPClient builds the production WEB-SRM client. The signing key signs
// each closing payload before submission.
func NewHTTPClient(baseURL, signingKey string) Client {
	return &httpClient{
		baseURL:    baseURL,
		signingKey: []byte(signingKey),
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

// sign computes the HMAC-SHA256 signature over the transaction's fiscal
// fields in a fixed order.
func (c *httpClient) sign(tx *ClosingTransaction) string {
	mac := hmac.New(sha256.New, c.signingKey)
	fmt.Fprintf(mac, "%d|%s|%s|%s|%s|%s|%s|%d",
		tx.BranchID, tx.ClosingDate,
		tx.GrossSales.StringFixed(2), tx.TotalRefunds.StringFixed(2),
		tx.TaxGST.StringFixed(2), tx.TaxQST.StringFixed(2), tx.NetSales.StringFixed(2),
		tx.OrderCount,
	)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *httpClient) SubmitClosing(ctx context.Context, tx ClosingTransaction) (string, error) {
	tx.Signature = c.sign(&tx)

	body, err := json.Marshal(tx)
	if err != nil {
		return "", fmt.Errorf("marshalling closing transaction: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions/closing", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building closing submission: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s", ErrSubmission, resp.StatusCode, string(payload))
	}

	var result struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrSubmission, err)
	}
	if result.TransactionID == "" {
		return "", fmt.Errorf("%w: empty transaction id in response", ErrSubmission)
	}
	return result.TransactionID, nil
}
